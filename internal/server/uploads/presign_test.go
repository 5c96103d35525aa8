package uploads

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/photoai/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *sc.Config {
	return &sc.Config{
		S3Region:                  "us-east-1",
		S3RootUser:                "minioadmin",
		S3RootPassword:            "minioadmin",
		S3BaseEndpoint:            "http://127.0.0.1:9000",
		S3Bucket:                  "uploads",
		UploadURLValidityDuration: 15 * time.Minute,
	}
}

func TestStorageKey(t *testing.T) {
	now := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	key := StorageKey("u1", now)
	assert.Regexp(t, regexp.MustCompile(`^users/u1/2026/02/03/[0-9a-f-]{36}$`), key)
	assert.NotEqual(t, key, StorageKey("u1", now))
}

func TestPresigner_PresignPut(t *testing.T) {
	p, err := NewPresigner(context.Background(), testConfig())
	require.NoError(t, err)

	up, err := p.PresignPut(context.Background(), "u1", "image/jpeg")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(up.URL, "http://127.0.0.1:9000/uploads/users/u1/"), up.URL)
	assert.Contains(t, up.URL, "X-Amz-Signature=")
	assert.Contains(t, up.URL, "X-Amz-Expires=900")
	assert.Contains(t, up.URL, up.Key)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), up.ExpiresAt, time.Minute)
}

func TestNewPresigner_OptionsApplied(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "us-east-1", lo.Region)
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}

	_, err := NewPresigner(context.Background(), testConfig())
	require.NoError(t, err)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
}

func TestNewPresigner_LoadError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = origLoad })

	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}

	_, err := NewPresigner(context.Background(), testConfig())
	require.Error(t, err)
}

func TestPresigner_PresignError(t *testing.T) {
	origPut := presignPutObject
	t.Cleanup(func() { presignPutObject = origPut })

	p, err := NewPresigner(context.Background(), testConfig())
	require.NoError(t, err)

	presignPutObject = func(*s3.PresignClient, context.Context, *s3.PutObjectInput, ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("sign failed")
	}

	_, err = p.PresignPut(context.Background(), "u1", "")
	require.Error(t, err)
}
