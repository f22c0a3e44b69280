package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "tokenledger/pkg/domain"
	dErrors "tokenledger/pkg/domain-errors"
)

func newService() *JWTService {
	return NewJWTService("test-signing-key", "test-issuer")
}

func TestIssueAndValidate(t *testing.T) {
	svc := newService()
	token, err := svc.IssueAccessToken("alice", time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "test-issuer", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestIssueAccessToken_RejectsZeroAccount(t *testing.T) {
	_, err := newService().IssueAccessToken(id.AccountID("0x00"), time.Hour)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestValidateToken_Failures(t *testing.T) {
	svc := newService()

	expired, err := svc.IssueAccessToken("alice", -time.Hour)
	require.NoError(t, err)

	foreign, err := NewJWTService("other-key", "test-issuer").IssueAccessToken("alice", time.Hour)
	require.NoError(t, err)

	otherIssuer, err := NewJWTService("test-signing-key", "someone-else").IssueAccessToken("alice", time.Hour)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice", Issuer: "test-issuer"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		msg   string
	}{
		{"garbage", "not-a-token", "invalid token"},
		{"expired", expired, "token has expired"},
		{"wrong key", foreign, "invalid token"},
		{"wrong issuer", otherIssuer, "invalid token"},
		{"alg none", none, "invalid token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestAdapter_MapsSubject(t *testing.T) {
	svc := newService()
	token, err := svc.IssueAccessToken("bob", time.Minute)
	require.NoError(t, err)

	claims, err := NewAdapter(svc).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.Subject)
	assert.NotEmpty(t, claims.JTI)
}
