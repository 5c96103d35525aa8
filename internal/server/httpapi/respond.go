package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/photoai/internal/common"
)

// Error codes returned in the "code" field of failure envelopes.
const (
	CodeInvalidInput         = "INVALID_INPUT"
	CodeInvalidCode          = "INVALID_CODE"
	CodeProfileNotFound      = "PROFILE_NOT_FOUND"
	CodeAccountInactive      = "ACCOUNT_INACTIVE"
	CodeUpstreamUnavailable  = "UPSTREAM_UNAVAILABLE"
	CodePaymentNotCompleted  = "PAYMENT_NOT_COMPLETED"
	CodeSessionOwnerMismatch = "SESSION_OWNER_MISMATCH"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeInternal             = "INTERNAL"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiError struct {
	status  int
	code    string
	message string
}

var errorTable = []struct {
	err error
	apiError
}{
	{common.ErrInvalidInput, apiError{http.StatusBadRequest, CodeInvalidInput, "Invalid input."}},
	{common.ErrInvalidCode, apiError{http.StatusBadRequest, CodeInvalidCode, "Invalid or expired code."}},
	{common.ErrProfileNotFound, apiError{http.StatusNotFound, CodeProfileNotFound, "Profile not found."}},
	{common.ErrAccountInactive, apiError{http.StatusForbidden, CodeAccountInactive, "Account is inactive."}},
	{common.ErrUpstreamUnavailable, apiError{http.StatusServiceUnavailable, CodeUpstreamUnavailable, "A dependent service is unavailable. Try again later."}},
	{common.ErrPaymentNotCompleted, apiError{http.StatusPaymentRequired, CodePaymentNotCompleted, "Payment has not completed."}},
	{common.ErrSessionOwnerMismatch, apiError{http.StatusForbidden, CodeSessionOwnerMismatch, "Payment session belongs to another account."}},
	{common.ErrTokenExpired, apiError{http.StatusUnauthorized, CodeUnauthorized, "Token expired."}},
	{common.ErrInvalidToken, apiError{http.StatusUnauthorized, CodeUnauthorized, "Invalid token."}},
	{common.ErrorUnauthorized, apiError{http.StatusUnauthorized, CodeUnauthorized, "Unauthorized."}},
	{common.ErrorForbidden, apiError{http.StatusForbidden, CodeForbidden, "Forbidden."}},
}

// classify maps a service error onto the public envelope. Anything
// unrecognised is a 500 with a generic message.
func classify(err error) apiError {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.apiError
		}
	}
	return apiError{http.StatusInternalServerError, CodeInternal, "Internal server error."}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	e := classify(err)
	writeJSON(w, e.status, errorResponse{Success: false, Code: e.code, Message: e.message})
}
