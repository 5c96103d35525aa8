// Package httpapi is the public JSON API: passwordless sign-in, payment
// confirmation, the processor webhook and upload presigning.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/photoai/internal/common"
	"github.com/dmitrijs2005/photoai/internal/logging"
	"github.com/dmitrijs2005/photoai/internal/server/conversion"
	"github.com/dmitrijs2005/photoai/internal/server/models"
	"github.com/dmitrijs2005/photoai/internal/server/services"
	"github.com/dmitrijs2005/photoai/internal/server/uploads"
	"github.com/dmitrijs2005/photoai/internal/server/webhookdedup"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

const (
	serviceTimeout = 30 * time.Second
	maxBodyBytes   = 64 * 1024
)

type CodeFlow interface {
	SendCode(ctx context.Context, email string, attr conversion.Attribution) (*services.SendCodeResult, error)
	VerifyCode(ctx context.Context, email, code string, attr conversion.Attribution) (*services.VerifyCodeResult, error)
}

type Credits interface {
	GrantCreditsForSession(ctx context.Context, sessionID, userID string, source models.GrantSource) (*services.GrantResult, error)
	GrantFromWebhookSession(ctx context.Context, sess *models.PaymentSession) (*services.GrantResult, error)
}

type Uploads interface {
	PresignPut(ctx context.Context, userID, contentType string) (*uploads.Upload, error)
}

// Deduper runs fn at most once per processor event id.
type Deduper interface {
	Do(ctx context.Context, eventID string, fn func() error) (already bool, err error)
}

// Deps are the collaborators the API is built from. Uploads may be nil, in
// which case the presign route is not mounted.
type Deps struct {
	Logger              logging.Logger
	CodeFlow            CodeFlow
	Credits             Credits
	Uploads             Uploads
	Deduper             Deduper
	JWTSecret           []byte
	StripeWebhookSecret string
	Service             string
	Version             string
}

type API struct {
	deps     Deps
	log      logging.Logger
	validate *validator.Validate
}

// NewRouter returns the chi router with middleware and every route mounted.
func NewRouter(d Deps) *chi.Mux {
	if d.Deduper == nil {
		d.Deduper = webhookdedup.Passthrough{}
	}
	a := &API{
		deps:     d,
		log:      d.Logger.With("module", "httpapi"),
		validate: validator.New(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(a.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/send-code", a.sendCode)
		r.Post("/auth/verify-code", a.verifyCode)
		r.Post("/payments/webhook", a.stripeWebhook)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth(d.JWTSecret))

			r.Post("/payments/confirm", a.confirmPayment)
			if d.Uploads != nil {
				r.Post("/uploads/presign", a.presignUpload)
			}

			r.With(requireRole(common.RoleAdmin)).Post("/admin/credits/grant", a.adminGrant)
		})
	})

	return r
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Service: a.deps.Service, Version: a.deps.Version})
}
