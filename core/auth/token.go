package auth

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/trezcool/microlms/core"
)

var (
	ErrUnauthenticated = core.NewError(core.KindUnauthenticated, "user not authenticated")
	ErrTokenExpired    = core.NewError(core.KindUnauthenticated, "token has expired")
	ErrTokenMalformed  = core.NewError(core.KindUnauthenticated, "malformed token")
	ErrTokenSignature  = core.NewError(core.KindUnauthenticated, "token signature is invalid")

	signingMethod = jwt.SigningMethodHS256
)

// Claims represents the authorization claims transmitted via a JWT.
// The subject is the user's email.
type Claims struct {
	jwt.StandardClaims
	Roles []string `json:"roles,omitempty"`
}

// TokenService issues and validates stateless signed tokens.
type TokenService struct {
	key        []byte
	issuer     string
	expiration time.Duration
	now        core.NowFunc
}

func NewTokenService(conf *core.Config) *TokenService {
	return &TokenService{
		key:        []byte(conf.SecretKey),
		issuer:     conf.AppName,
		expiration: conf.Server.JWTExpiration,
		now:        core.UTCNow,
	}
}

// SetNowFunc replaces the service clock.
func (ts *TokenService) SetNowFunc(now core.NowFunc) {
	ts.now = now
}

// Issue generates a signed token for the subject and its roles.
func (ts *TokenService) Issue(subject string, roles Roles) (string, error) {
	now := ts.now()
	claims := Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    ts.issuer,
			Subject:   subject,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ts.expiration).Unix(),
		},
		Roles: roles.Strings(),
	}
	token, err := jwt.NewWithClaims(signingMethod, claims).SignedString(ts.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return token, nil
}

// Validate checks the token signature first, then its expiry.
func (ts *TokenService) Validate(token string) (Claims, error) {
	var claims Claims
	parser := jwt.Parser{
		ValidMethods:         []string{signingMethod.Alg()},
		SkipClaimsValidation: true, // expiry is checked against ts.now below
	}
	_, err := parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return ts.key, nil
	})
	if err != nil {
		var vErr *jwt.ValidationError
		if errors.As(err, &vErr) && vErr.Errors&jwt.ValidationErrorSignatureInvalid != 0 {
			return Claims{}, ErrTokenSignature
		}
		return Claims{}, ErrTokenMalformed
	}
	if claims.Subject == "" {
		return Claims{}, ErrTokenMalformed
	}
	if !claims.VerifyExpiresAt(ts.now().Unix(), true) {
		return Claims{}, ErrTokenExpired
	}
	return claims, nil
}
