package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/photoai/internal/common"
	"github.com/dmitrijs2005/photoai/internal/logging"
	"github.com/dmitrijs2005/photoai/internal/server/auth"
	"github.com/dmitrijs2005/photoai/internal/server/conversion"
	"github.com/dmitrijs2005/photoai/internal/server/models"
	"github.com/dmitrijs2005/photoai/internal/server/services"
	"github.com/dmitrijs2005/photoai/internal/server/uploads"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

type fakeCodeFlow struct {
	mu         sync.Mutex
	sendRes    *services.SendCodeResult
	verifyRes  *services.VerifyCodeResult
	err        error
	gotEmail   string
	gotCode    string
	gotAttr    conversion.Attribution
	verifyHits int
}

func (f *fakeCodeFlow) SendCode(_ context.Context, email string, attr conversion.Attribution) (*services.SendCodeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotEmail, f.gotAttr = email, attr
	if f.err != nil {
		return nil, f.err
	}
	return f.sendRes, nil
}

func (f *fakeCodeFlow) VerifyCode(_ context.Context, email, code string, attr conversion.Attribution) (*services.VerifyCodeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyHits++
	f.gotEmail, f.gotCode, f.gotAttr = email, code, attr
	if f.err != nil {
		return nil, f.err
	}
	return f.verifyRes, nil
}

type grantCall struct {
	sessionID string
	userID    string
	source    models.GrantSource
}

type fakeCredits struct {
	mu       sync.Mutex
	res      *services.GrantResult
	err      error
	calls    []grantCall
	sessions []*models.PaymentSession
}

func (f *fakeCredits) GrantCreditsForSession(_ context.Context, sessionID, userID string, source models.GrantSource) (*services.GrantResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, grantCall{sessionID, userID, source})
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

func (f *fakeCredits) GrantFromWebhookSession(_ context.Context, sess *models.PaymentSession) (*services.GrantResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, sess)
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type fakeUploads struct {
	gotUser string
	gotType string
}

func (f *fakeUploads) PresignPut(_ context.Context, userID, contentType string) (*uploads.Upload, error) {
	f.gotUser, f.gotType = userID, contentType
	return &uploads.Upload{Key: "users/u1/k", URL: "http://s3/put", ExpiresAt: time.Now().Add(time.Minute)}, nil
}

type testAPI struct {
	handler http.Handler
	flow    *fakeCodeFlow
	credits *fakeCredits
	uploads *fakeUploads
}

func newTestAPI(t *testing.T, mods ...func(*Deps)) *testAPI {
	t.Helper()
	ta := &testAPI{
		flow:    &fakeCodeFlow{},
		credits: &fakeCredits{res: &services.GrantResult{Granted: true, Amount: 800, CreditsTotal: 800}},
		uploads: &fakeUploads{},
	}
	d := Deps{
		Logger:              logging.Nop{},
		CodeFlow:            ta.flow,
		Credits:             ta.credits,
		Uploads:             ta.uploads,
		JWTSecret:           testSecret,
		StripeWebhookSecret: testWebhookSecret,
		Service:             "photoai",
		Version:             "test",
	}
	for _, m := range mods {
		m(&d)
	}
	ta.handler = NewRouter(d)
	return ta
}

func (ta *testAPI) do(t *testing.T, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ta.handler.ServeHTTP(rec, req)
	return rec
}

func bearer(t *testing.T, id, role string, ttl time.Duration) map[string]string {
	t.Helper()
	tok, err := auth.GenerateToken(auth.Identity{ID: id, Email: id + "@x.com", Role: role, SubscriptionPlan: "free"}, testSecret, ttl)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + tok}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestHealth(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "photoai", body["service"])
	assert.Equal(t, "test", body["version"])
}

func TestSendCode(t *testing.T) {
	ta := newTestAPI(t)
	ta.flow.sendRes = &services.SendCodeResult{Success: true, Message: services.MessageSignupCodeSent}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/send-code", bytes.NewBufferString(`{"email":"a@x.com","first_name":"Ada"}`))
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Referer", "https://photo.example/?utm_source=meta&utm_campaign=spring")
	req.AddCookie(&http.Cookie{Name: "_fbp", Value: "fb.1.111"})
	rec := httptest.NewRecorder()
	ta.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, services.MessageSignupCodeSent, body["message"])

	assert.Equal(t, "a@x.com", ta.flow.gotEmail)
	assert.Equal(t, conversion.Attribution{
		IP:        "203.0.113.7",
		UserAgent: "test-agent",
		FBP:       "fb.1.111",
		FirstName: "Ada",
		UTM:       conversion.UTM{Source: "meta", Campaign: "spring"},
	}, ta.flow.gotAttr)
}

func TestSendCode_InvalidInput(t *testing.T) {
	ta := newTestAPI(t)

	for _, body := range []string{`{"email":"nope"}`, `{`, `{"email":""}`} {
		rec := ta.do(t, http.MethodPost, "/api/auth/send-code", body, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
		got := decodeBody(t, rec)
		assert.Equal(t, false, got["success"])
		assert.Equal(t, CodeInvalidInput, got["code"])
	}
	assert.Empty(t, ta.flow.gotEmail)
}

func TestVerifyCode(t *testing.T) {
	ta := newTestAPI(t)
	ta.flow.verifyRes = &services.VerifyCodeResult{
		Success: true,
		Message: services.MessageRegistered,
		User:    &models.Profile{ID: "u1", Email: "a@x.com", Role: common.RoleUser, SubscriptionPlan: "free", CreditsTotal: 10, CreditsUsed: 4},
		Token:   "tok",
	}

	rec := ta.do(t, http.MethodPost, "/api/auth/verify-code", map[string]string{"email": "a@x.com", "code": "123456"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, "tok", body["token"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "u1", user["id"])
	assert.Equal(t, float64(6), user["credits_remaining"])
}

func TestVerifyCode_MalformedCodeNeverReachesService(t *testing.T) {
	ta := newTestAPI(t)

	for _, code := range []string{"12345", "abcdef", "1234567"} {
		rec := ta.do(t, http.MethodPost, "/api/auth/verify-code", map[string]string{"email": "a@x.com", "code": code}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, code)
	}
	assert.Equal(t, 0, ta.flow.verifyHits)
}

func TestVerifyCode_ErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantBody string
	}{
		{common.ErrInvalidCode, http.StatusBadRequest, CodeInvalidCode},
		{common.ErrProfileNotFound, http.StatusNotFound, CodeProfileNotFound},
		{common.ErrAccountInactive, http.StatusForbidden, CodeAccountInactive},
		{common.ErrUpstreamUnavailable, http.StatusServiceUnavailable, CodeUpstreamUnavailable},
		{context.DeadlineExceeded, http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.wantBody, func(t *testing.T) {
			ta := newTestAPI(t)
			ta.flow.err = tt.err

			rec := ta.do(t, http.MethodPost, "/api/auth/verify-code", map[string]string{"email": "a@x.com", "code": "123456"}, nil)
			require.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantBody, decodeBody(t, rec)["code"])
		})
	}
}

func TestConfirmPayment(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodPost, "/api/payments/confirm", map[string]string{"session_id": "sess_1"}, bearer(t, "u1", common.RoleUser, time.Hour))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["granted"])
	assert.Equal(t, float64(800), body["credits_total"])
	require.Len(t, ta.credits.calls, 1)
	assert.Equal(t, grantCall{"sess_1", "u1", models.GrantSourceClient}, ta.credits.calls[0])
}

func TestConfirmPayment_Unauthorized(t *testing.T) {
	ta := newTestAPI(t)

	cases := map[string]map[string]string{
		"missing": nil,
		"garbage": {"Authorization": "Bearer not.a.jwt"},
		"scheme":  {"Authorization": "Basic abc"},
		"expired": bearer(t, "u1", common.RoleUser, -time.Minute),
	}
	for name, hdr := range cases {
		rec := ta.do(t, http.MethodPost, "/api/payments/confirm", map[string]string{"session_id": "sess_1"}, hdr)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
	}
	assert.Empty(t, ta.credits.calls)
}

func TestConfirmPayment_ErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
	}{
		{common.ErrPaymentNotCompleted, http.StatusPaymentRequired},
		{common.ErrSessionOwnerMismatch, http.StatusForbidden},
		{common.ErrProfileNotFound, http.StatusNotFound},
		{common.ErrUpstreamUnavailable, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		ta := newTestAPI(t)
		ta.credits.err = tt.err

		rec := ta.do(t, http.MethodPost, "/api/payments/confirm", map[string]string{"session_id": "sess_1"}, bearer(t, "u1", common.RoleUser, time.Hour))
		assert.Equal(t, tt.wantCode, rec.Code, tt.err.Error())
	}
}

func TestAdminGrant(t *testing.T) {
	ta := newTestAPI(t)
	body := map[string]string{"session_id": "sess_9", "user_id": "u2"}

	rec := ta.do(t, http.MethodPost, "/api/admin/credits/grant", body, bearer(t, "u1", common.RoleUser, time.Hour))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, ta.credits.calls)

	rec = ta.do(t, http.MethodPost, "/api/admin/credits/grant", body, bearer(t, "root", common.RoleAdmin, time.Hour))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, ta.credits.calls, 1)
	assert.Equal(t, grantCall{"sess_9", "u2", models.GrantSourceAdmin}, ta.credits.calls[0])
}

func TestPresignUpload(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodPost, "/api/uploads/presign", map[string]string{"content_type": "image/png"}, bearer(t, "u1", common.RoleUser, time.Hour))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "http://s3/put", body["url"])
	assert.Equal(t, "users/u1/k", body["key"])
	assert.Equal(t, "u1", ta.uploads.gotUser)
	assert.Equal(t, "image/png", ta.uploads.gotType)

	rec = ta.do(t, http.MethodPost, "/api/uploads/presign", map[string]string{"content_type": "text/html"}, bearer(t, "u1", common.RoleUser, time.Hour))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPresignUpload_NotMountedWithoutStorage(t *testing.T) {
	ta := newTestAPI(t, func(d *Deps) { d.Uploads = nil })

	rec := ta.do(t, http.MethodPost, "/api/uploads/presign", nil, bearer(t, "u1", common.RoleUser, time.Hour))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
