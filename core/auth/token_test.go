package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/microlms/core"
)

func newTestTokenService(now time.Time) *TokenService {
	ts := NewTokenService(core.NewTestConfig())
	ts.SetNowFunc(func() time.Time { return now })
	return ts
}

func TestTokenService_IssueValidate(t *testing.T) {
	now := time.Now().UTC()
	ts := newTestTokenService(now)

	token, err := ts.Issue("teacher@test.cd", Roles{RoleTeacher})
	require.NoError(t, err)

	claims, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "teacher@test.cd", claims.Subject)
	assert.Equal(t, []string{"TEACHER"}, claims.Roles)
	assert.Equal(t, "MicroLMS", claims.Issuer)

	// other secret
	otherConf := core.NewTestConfig()
	otherConf.SecretKey = "other"
	forged, err := NewTokenService(otherConf).Issue("teacher@test.cd", Roles{RoleAdmin})
	require.NoError(t, err)

	// expired: issued long enough ago
	past := newTestTokenService(now.Add(-time.Hour))
	expired, err := past.Issue("teacher@test.cd", Roles{RoleTeacher})
	require.NoError(t, err)

	// expired AND forged: signature wins
	otherPast := NewTokenService(otherConf)
	otherPast.SetNowFunc(func() time.Time { return now.Add(-time.Hour) })
	expiredForged, err := otherPast.Issue("teacher@test.cd", nil)
	require.NoError(t, err)

	// tampered payload
	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + jwt.EncodeSegment([]byte(`{"sub":"admin@test.cd","roles":["ADMIN"]}`)) + "." + parts[2]

	// no subject
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "empty", token: "", wantErr: ErrTokenMalformed},
		{name: "garbage", token: "lol.mdr.ptdr", wantErr: ErrTokenMalformed},
		{name: "forged", token: forged, wantErr: ErrTokenSignature},
		{name: "tampered", token: tampered, wantErr: ErrTokenSignature},
		{name: "expired", token: expired, wantErr: ErrTokenExpired},
		{name: "expired and forged", token: expiredForged, wantErr: ErrTokenSignature},
		{name: "no subject", token: noSubject, wantErr: ErrTokenMalformed},
		{name: "valid", token: token},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ts.Validate(tt.token); err != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				assert.Equal(t, core.KindUnauthenticated, core.KindOf(tt.wantErr))
			}
		})
	}
}
