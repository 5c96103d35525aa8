package httpapi

import (
	"net/http"
	"time"
)

type presignRequest struct {
	ContentType string `json:"content_type" validate:"omitempty,oneof=image/jpeg image/png image/webp image/heic"`
}

type presignResponse struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *API) presignUpload(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	var req presignRequest
	if r.ContentLength != 0 {
		if err := a.decode(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
	}

	up, err := a.deps.Uploads.PresignPut(r.Context(), claims.ID, req.ContentType)
	if err != nil {
		a.log.Error(r.Context(), "presign upload failed", "user_id", claims.ID, "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, presignResponse{URL: up.URL, Key: up.Key, ExpiresAt: up.ExpiresAt})
}
