package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTokenValidator is a test implementation of TokenValidator for unit tests.
type testTokenValidator struct {
	validTokens map[string]uuid.UUID
}

func newTestTokenValidator() *testTokenValidator {
	return &testTokenValidator{validTokens: make(map[string]uuid.UUID)}
}

func (v *testTokenValidator) ValidateToken(tokenString string) (UserIDGetter, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("token string is empty")
	}
	userID, ok := v.validTokens[tokenString]
	if !ok {
		return nil, fmt.Errorf("invalid token")
	}
	return &testClaims{userID: userID}, nil
}

type testClaims struct {
	userID uuid.UUID
}

func (c *testClaims) GetUserID() uuid.UUID {
	return c.userID
}

func echoUser(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := GetUserID(r)
		require.NoError(t, err)
		_, _ = w.Write([]byte(id.String()))
	})
}

func TestAuthMiddleware(t *testing.T) {
	validator := newTestTokenValidator()
	owner := uuid.New()
	stranger := uuid.New()
	validator.validTokens["owner-token"] = owner
	validator.validTokens["stranger-token"] = stranger

	tests := []struct {
		name       string
		method     string
		target     string
		header     string
		wantStatus int
	}{
		{name: "valid header", method: http.MethodGet, target: "/pipeline", header: "Bearer owner-token", wantStatus: http.StatusOK},
		{name: "case-insensitive scheme", method: http.MethodPost, target: "/clicks", header: "bearer owner-token", wantStatus: http.StatusOK},
		{name: "query token on GET", method: http.MethodGet, target: "/events?access_token=owner-token", wantStatus: http.StatusOK},
		{name: "query token ignored on POST", method: http.MethodPost, target: "/clicks?access_token=owner-token", wantStatus: http.StatusUnauthorized},
		{name: "missing header", method: http.MethodGet, target: "/pipeline", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", method: http.MethodGet, target: "/pipeline", header: "Basic owner-token", wantStatus: http.StatusUnauthorized},
		{name: "extra parts", method: http.MethodGet, target: "/pipeline", header: "Bearer a b", wantStatus: http.StatusUnauthorized},
		{name: "unknown token", method: http.MethodGet, target: "/pipeline", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "other user", method: http.MethodGet, target: "/pipeline", header: "Bearer stranger-token", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := AuthMiddleware(validator, owner)(echoUser(t))
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, owner.String(), rec.Body.String())
				return
			}
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestAuthMiddleware_AnyUserWithoutOwner(t *testing.T) {
	validator := newTestTokenValidator()
	userID := uuid.New()
	validator.validTokens["tok"] = userID

	h := AuthMiddleware(validator, uuid.Nil)(echoUser(t))
	req := httptest.NewRequest(http.MethodGet, "/pipeline", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID.String(), rec.Body.String())
}

func TestGetUserID(t *testing.T) {
	userID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, err := GetUserID(req)
	assert.Error(t, err)

	req = req.WithContext(context.WithValue(req.Context(), UserIDKey(), "not-a-uuid"))
	_, err = GetUserID(req)
	assert.Error(t, err)

	req = req.WithContext(context.WithValue(req.Context(), UserIDKey(), userID))
	got, err := GetUserID(req)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}
