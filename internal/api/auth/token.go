// Package auth resolves API callers from bearer tokens issued by the hosted
// auth provider, or from the ops API key used by operator tooling.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/codr1/leagueoffice/internal/api/authz"
	"github.com/codr1/leagueoffice/internal/config"
)

const (
	OpsKeyHeader = "X-Ops-Key"
	opsUserID    = "ops"
)

var (
	ErrInvalidToken  = errors.New("invalid access token")
	ErrInvalidOpsKey = errors.New("invalid ops key")
)

// Claims are the access token claims the API relies on.
type Claims struct {
	Role  string `json:"role,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret     []byte
	issuer     string
	opsKeyHash string
}

func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	return &Authenticator{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		opsKeyHash: cfg.OpsAPIKeyHash,
	}
}

// ParseToken verifies an HS256 access token and returns its caller.
func (a *Authenticator) ParseToken(raw string) (*authz.AuthUser, error) {
	if len(a.secret) == 0 {
		return nil, fmt.Errorf("%w: token verification is not configured", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	role := strings.ToLower(strings.TrimSpace(claims.Role))
	if role == "" {
		role = authz.RolePlayer
	}
	return &authz.AuthUser{
		ID:    claims.Subject,
		Role:  role,
		Email: claims.Email,
	}, nil
}

// IssueToken signs an access token. The API only verifies tokens; this is
// used by operator tooling and tests.
func (a *Authenticator) IssueToken(userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// UserFromRequest resolves the caller. It returns nil, nil when the request
// carries no credentials.
func (a *Authenticator) UserFromRequest(r *http.Request) (*authz.AuthUser, error) {
	if key := strings.TrimSpace(r.Header.Get(OpsKeyHeader)); key != "" {
		if !VerifyOpsKey(a.opsKeyHash, key) {
			return nil, ErrInvalidOpsKey
		}
		return &authz.AuthUser{ID: opsUserID, Role: authz.RoleAdmin, Operator: true}, nil
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return nil, nil
	}
	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
		return nil, ErrInvalidToken
	}
	return a.ParseToken(strings.TrimSpace(raw))
}
