package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/phrazzld/assessment-engine/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-for-testing"

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newHMACJWTService(testSecret, time.Hour, func() time.Time { return fixedTime })

	token, err := svc.GenerateToken(context.Background(), "analyst-7")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "analyst-7", claims.Subject)
	assert.Equal(t, fixedTime.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, fixedTime.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.NotEmpty(t, claims.ID)

	_, err = svc.GenerateToken(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingSubject)
}

func TestValidateToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	at := func(ts time.Time) func() time.Time { return func() time.Time { return ts } }

	sign := func(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name    string
		token   func(t *testing.T) string
		now     time.Time
		wantErr error
	}{
		{
			name: "valid token",
			token: func(t *testing.T) string {
				tok, err := newHMACJWTService(testSecret, time.Hour, at(fixedTime)).
					GenerateToken(context.Background(), "analyst")
				require.NoError(t, err)
				return tok
			},
			now: fixedTime.Add(30 * time.Minute),
		},
		{
			name: "expired token",
			token: func(t *testing.T) string {
				tok, err := newHMACJWTService(testSecret, time.Hour, at(fixedTime)).
					GenerateToken(context.Background(), "analyst")
				require.NoError(t, err)
				return tok
			},
			now:     fixedTime.Add(2 * time.Hour),
			wantErr: ErrExpiredToken,
		},
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				tok, err := newHMACJWTService("wrong-secret-that-is-long-enough-for-testing", time.Hour, at(fixedTime)).
					GenerateToken(context.Background(), "analyst")
				require.NoError(t, err)
				return tok
			},
			now:     fixedTime,
			wantErr: ErrInvalidToken,
		},
		{
			name:    "malformed token",
			token:   func(t *testing.T) string { return "not.a.jwt" },
			now:     fixedTime,
			wantErr: ErrInvalidToken,
		},
		{
			name: "not yet valid",
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
					Subject:   "analyst",
					NotBefore: jwt.NewNumericDate(fixedTime.Add(time.Hour)),
					ExpiresAt: jwt.NewNumericDate(fixedTime.Add(2 * time.Hour)),
				})
			},
			now:     fixedTime,
			wantErr: ErrTokenNotYetValid,
		},
		{
			name: "missing subject",
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
					ExpiresAt: jwt.NewNumericDate(fixedTime.Add(time.Hour)),
				})
			},
			now:     fixedTime,
			wantErr: ErrMissingSubject,
		},
		{
			name: "missing expiry",
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
					Subject: "analyst",
				})
			},
			now:     fixedTime,
			wantErr: ErrInvalidToken,
		},
		{
			name: "wrong signing method",
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS512, []byte(testSecret), jwt.RegisteredClaims{
					Subject:   "analyst",
					ExpiresAt: jwt.NewNumericDate(fixedTime.Add(time.Hour)),
				})
			},
			now:     fixedTime,
			wantErr: ErrInvalidToken,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := newHMACJWTService(testSecret, time.Hour, at(tc.now))
			claims, err := svc.ValidateToken(context.Background(), tc.token(t))
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "analyst", claims.Subject)
		})
	}
}

func TestNewJWTService(t *testing.T) {
	t.Parallel()

	_, err := NewJWTService(config.AuthConfig{JWTSecret: "short", TokenLifetimeMinutes: 60})
	assert.Error(t, err)

	_, err = NewJWTService(config.AuthConfig{JWTSecret: testSecret})
	assert.Error(t, err)

	svc, err := NewJWTService(config.AuthConfig{JWTSecret: testSecret, TokenLifetimeMinutes: 60})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}
