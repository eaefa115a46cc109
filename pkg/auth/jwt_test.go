package auth

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmehra2102/checkout-saga/pkg/auth/authtest"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef0123456789abcdef"))

func okHandler(w http.ResponseWriter, r *http.Request) {
	p, _ := FromContext(r.Context())
	_, _ = w.Write([]byte(p.Email))
}

func TestVerifyRoundTrip(t *testing.T) {
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)

	token, err := authtest.IssueToken(testSecret, "ann@example.com", time.Hour, "ROLE_USER", RoleAdmin)
	require.NoError(t, err)

	p, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", p.Email)
	assert.True(t, p.HasRole(RoleAdmin))
	assert.Equal(t, token, p.Token)
}

func TestVerifyRejects(t *testing.T) {
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)

	expired, err := authtest.IssueToken(testSecret, "ann@example.com", -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := base64.StdEncoding.EncodeToString([]byte("another-secret-another-secret-another-secret!!"))
	forged, err := authtest.IssueToken(other, "ann@example.com", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "ann@example.com"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = v.Verify(none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRolesClaimAcceptsString(t *testing.T) {
	var r roles
	require.NoError(t, r.UnmarshalJSON([]byte(`"ROLE_USER, ROLE_ADMIN"`)))
	assert.Equal(t, roles{"ROLE_USER", "ROLE_ADMIN"}, r)
}

func TestNewVerifierBadSecret(t *testing.T) {
	_, err := NewVerifier("%%%")
	assert.Error(t, err)
	_, err = NewVerifier("")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)
	h := v.Middleware(http.HandlerFunc(okHandler))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := authtest.IssueToken(testSecret, "bob@example.com", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bob@example.com", rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(RoleAdmin)(http.HandlerFunc(okHandler))

	cases := []struct {
		name string
		p    *Principal
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"user", &Principal{Email: "u@x", Roles: []string{"ROLE_USER"}}, http.StatusForbidden},
		{"admin", &Principal{Email: "a@x", Roles: []string{RoleAdmin}}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.p != nil {
				req = req.WithContext(WithPrincipal(req.Context(), *tc.p))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestInternalSecret(t *testing.T) {
	h := InternalSecret("s3cret")(http.HandlerFunc(okHandler))

	for header, want := range map[string]int{
		"":       http.StatusUnauthorized,
		"wrong":  http.StatusUnauthorized,
		"s3cret": http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodPatch, "/", nil)
		if header != "" {
			req.Header.Set(InternalSecretHeader, header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "header %q", header)
	}

	empty := InternalSecret("")(http.HandlerFunc(okHandler))
	rec := httptest.NewRecorder()
	empty.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
