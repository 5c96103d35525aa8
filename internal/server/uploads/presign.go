// Package uploads hands out presigned S3 URLs so clients upload source
// photos straight to object storage.
package uploads

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/photoai/internal/server/config"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
)

// Upload is a one-shot write grant for a single object key.
type Upload struct {
	Key       string
	URL       string
	ExpiresAt time.Time
}

type Presigner struct {
	bucket   string
	validity time.Duration
	client   *s3.PresignClient
	now      func() time.Time
}

// NewPresigner builds an S3 presign client from static credentials. An
// empty base endpoint means AWS itself; otherwise path-style addressing is
// used so MinIO works.
func NewPresigner(ctx context.Context, c *sc.Config) (*Presigner, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.S3RootUser,
			c.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &Presigner{
		bucket:   c.S3Bucket,
		validity: c.UploadURLValidityDuration,
		client:   s3.NewPresignClient(client),
		now:      time.Now,
	}, nil
}

// StorageKey returns a fresh object key under the user's prefix.
func StorageKey(userID string, now time.Time) string {
	return fmt.Sprintf("users/%s/%d/%02d/%02d/%s", userID, now.Year(), now.Month(), now.Day(), uuid.New())
}

// PresignPut returns a URL that accepts one PUT of contentType for the
// returned key until it expires.
func (p *Presigner) PresignPut(ctx context.Context, userID, contentType string) (*Upload, error) {
	now := p.now()
	key := StorageKey(userID, now)

	in := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}
	if ct := strings.TrimSpace(contentType); ct != "" {
		in.ContentType = aws.String(ct)
	}

	req, err := presignPutObject(p.client, ctx, in, s3.WithPresignExpires(p.validity))
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}

	return &Upload{Key: key, URL: req.URL, ExpiresAt: now.Add(p.validity)}, nil
}
