package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/photoai/internal/common"
	"github.com/dmitrijs2005/photoai/internal/server/models"
)

type attributionInput struct {
	FirstName string `json:"first_name" validate:"omitempty,max=100"`
	LastName  string `json:"last_name" validate:"omitempty,max=100"`
	Phone     string `json:"phone" validate:"omitempty,max=32"`
	FBP       string `json:"fbp" validate:"omitempty,max=255"`
	FBC       string `json:"fbc" validate:"omitempty,max=255"`
}

type sendCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	attributionInput
}

type sendCodeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type verifyCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type userResponse struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	Role             string `json:"role"`
	SubscriptionPlan string `json:"subscription_plan"`
	CreditsTotal     int64  `json:"credits_total"`
	CreditsRemaining int64  `json:"credits_remaining"`
}

type verifyCodeResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	User    *userResponse `json:"user,omitempty"`
	Token   string        `json:"token,omitempty"`
}

func newUserResponse(p *models.Profile) *userResponse {
	if p == nil {
		return nil
	}
	return &userResponse{
		ID:               p.ID,
		Email:            p.Email,
		FirstName:        p.FirstName,
		LastName:         p.LastName,
		Role:             p.Role,
		SubscriptionPlan: p.SubscriptionPlan,
		CreditsTotal:     p.CreditsTotal,
		CreditsRemaining: p.CreditsRemaining(),
	}
}

// decode reads a size-limited JSON body into dst and validates it.
func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
	}
	if err := a.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
	}
	return nil
}

func (a *API) sendCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := a.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	res, err := a.deps.CodeFlow.SendCode(ctx, req.Email, attributionFromRequest(r, req.attributionInput))
	if err != nil {
		a.log.Warn(r.Context(), "send code failed", "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sendCodeResponse{Success: res.Success, Message: res.Message})
}

func (a *API) verifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := a.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	res, err := a.deps.CodeFlow.VerifyCode(ctx, req.Email, req.Code, attributionFromRequest(r, attributionInput{}))
	if err != nil {
		a.log.Info(r.Context(), "verify code rejected", "email", req.Email, "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyCodeResponse{
		Success: res.Success,
		Message: res.Message,
		User:    newUserResponse(res.User),
		Token:   res.Token,
	})
}
