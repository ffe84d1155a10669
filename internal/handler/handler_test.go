package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/config"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
)

const testSecret = "test-secret"

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	cfg := &config.Config{}
	cfg.JWT.Secret = testSecret
	h, err := NewHandler(cfg, nil, nil, Services{})
	require.NoError(t, err)
	return h
}

type decodedResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) decodedResponse {
	t.Helper()
	var resp decodedResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestServiceError(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", &domain.DateOutOfRangeError{Date: time.Now(), Earliest: time.Now(), Latest: time.Now()}, http.StatusOK},
		{"invalid transition", &domain.InvalidTransitionError{From: domain.StatusRejected, To: domain.StatusApproved}, http.StatusOK},
		{"lock not acquired", domain.ErrLockNotAcquired, http.StatusOK},
		{"not found", domain.ErrNotFound, http.StatusOK},
		{"upstream", &domain.UpstreamError{Op: "CreateArrangement", Err: errors.New("connection reset")}, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/requests", nil)

			h.serviceError(rec, req, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			resp := decode(t, rec)
			assert.False(t, resp.Success)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.err.Error(), resp.Message)
			} else {
				assert.Equal(t, "服务器内部错误", resp.Message)
			}
		})
	}
}

func TestServiceError_AdmissionDeniedCarriesFailures(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/requests", nil)

	denied := &domain.AdmissionDeniedError{Failures: []domain.DateFailure{
		{Date: time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC), Reason: "团队居家办公比例将超过 50%"},
		{Date: time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), Reason: "团队居家办公比例将超过 50%"},
	}}
	h.serviceError(rec, req, denied)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "2025-03-17")

	var failures []domain.DateFailure
	require.NoError(t, json.Unmarshal(resp.Data, &failures))
	require.Len(t, failures, 2)
	assert.Equal(t, 31, failures[1].Date.Day())
}

func TestReadJSON(t *testing.T) {
	h := newTestHandler(t)

	var body struct {
		Reason string `json:"reason"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.NoError(t, h.readJSON(req, &body))
	assert.Empty(t, body.Reason)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"家中维修"}`))
	require.NoError(t, h.readJSON(req, &body))
	assert.Equal(t, "家中维修", body.Reason)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":`))
	assert.Error(t, h.readJSON(req, &body))
}

func TestBadRequest_TranslatesValidationErrors(t *testing.T) {
	h := newTestHandler(t)

	var body struct {
		Timeslot string `json:"timeslot" validate:"required,oneof=AM PM FULL"`
	}
	body.Timeslot = "EVENING"
	err := h.validate.Struct(body)
	require.Error(t, err)

	rec := httptest.NewRecorder()
	h.badRequest(rec, httptest.NewRequest(http.MethodPost, "/", nil), err)

	resp := decode(t, rec)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "Timeslot")
}

func signToken(t *testing.T, secret string, method jwt.SigningMethod, sub, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(method, AuthClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuth(t *testing.T) {
	h := newTestHandler(t)

	var gotRole, gotSub string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRole = r.Context().Value(RoleCtxKey).(string)
		gotSub = r.Context().Value(SubCtxKey).(string)
		h.successResponse(w, r, "ok", nil)
	})
	protected := h.auth(next)

	t.Run("missing cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/my-info", nil))

		resp := decode(t, rec)
		assert.False(t, resp.Success)
		assert.Equal(t, "用户未登录", resp.Message)
	})

	t.Run("wrong secret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/my-info", nil)
		req.AddCookie(&http.Cookie{Name: tokenCookieName, Value: signToken(t, "other", jwt.SigningMethodHS256, "101", "Staff")})
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		resp := decode(t, rec)
		assert.False(t, resp.Success)
		assert.Equal(t, "无效的令牌", resp.Message)
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/my-info", nil)
		req.AddCookie(&http.Cookie{Name: tokenCookieName, Value: signToken(t, testSecret, jwt.SigningMethodHS512, "101", "Staff")})
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		assert.False(t, decode(t, rec).Success)
	})

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/my-info", nil)
		req.AddCookie(&http.Cookie{Name: tokenCookieName, Value: signToken(t, testSecret, jwt.SigningMethodHS256, "101", "Staff")})
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		assert.True(t, decode(t, rec).Success)
		assert.Equal(t, "Staff", gotRole)
		assert.Equal(t, "101", gotSub)
	})
}

func contextWithRole(r *http.Request, role domain.Role) context.Context {
	return context.WithValue(r.Context(), RoleCtxKey, string(role))
}

func TestRequiredRole(t *testing.T) {
	h := newTestHandler(t)
	guarded := h.RequiredRole([]domain.Role{domain.RoleHR})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.successResponse(w, r, "ok", nil)
	}))

	for role, allowed := range map[domain.Role]bool{
		domain.RoleHR:      true,
		domain.RoleManager: false,
		domain.RoleStaff:   false,
	} {
		req := httptest.NewRequest(http.MethodPost, "/revocations", nil)
		req = req.WithContext(contextWithRole(req, role))
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, req)

		assert.Equal(t, allowed, decode(t, rec).Success, role)
	}
}

func TestCanManage(t *testing.T) {
	managerID := int64(201)
	staff := &domain.Employee{ID: 101, Role: domain.RoleStaff, ReportingManager: &managerID}

	assert.True(t, canManage(&domain.Employee{ID: 201, Role: domain.RoleManager}, staff))
	assert.True(t, canManage(&domain.Employee{ID: 1, Role: domain.RoleHR}, staff))
	assert.False(t, canManage(&domain.Employee{ID: 202, Role: domain.RoleManager}, staff))
	assert.False(t, canManage(&domain.Employee{ID: 201, Role: domain.RoleManager}, &domain.Employee{ID: 1}))

	assert.True(t, canAccess(&domain.Employee{ID: 101, Role: domain.RoleStaff}, 101, 201))
	assert.True(t, canAccess(&domain.Employee{ID: 201, Role: domain.RoleManager}, 101, 201))
	assert.False(t, canAccess(&domain.Employee{ID: 102, Role: domain.RoleStaff}, 101, 201))
}
