package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Claims are issued by the external identity provider.
type Claims struct {
	jwt.RegisteredClaims
	Role     string `json:"role"`
	Name     string `json:"name,omitempty"`
	Username string `json:"preferred_username,omitempty"`
	Picture  string `json:"picture,omitempty"`
}

func (c *Claims) Session() Session {
	return Session{
		UserID:      strings.TrimSpace(c.Subject),
		DisplayName: strings.TrimSpace(c.Name),
		Username:    strings.TrimSpace(c.Username),
		PhotoURL:    strings.TrimSpace(c.Picture),
		Role:        strings.TrimSpace(c.Role),
	}
}

// clockSkew tolerated on exp, nbf and iat.
const clockSkew = 30 * time.Second

var (
	errNoBearer  = errors.New("missing bearer token")
	errScheme    = errors.New("unsupported authorization scheme")
	errNoSubject = errors.New("token without subject")
	errBadClaims = errors.New("invalid token claims")
)

// JWTVerifier checks HS256 tokens. Issuer and Audience are enforced only
// when set.
type JWTVerifier struct {
	Secret   []byte
	Issuer   string
	Audience string
}

func (v JWTVerifier) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}
	return opts
}

func (v JWTVerifier) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.Secret, nil
	}, v.parserOptions()...)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errBadClaims
	}
	return claims, nil
}

// Authenticate resolves the session behind the request's bearer token.
func (v JWTVerifier) Authenticate(r *http.Request) (Session, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return Session{}, errNoBearer
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return Session{}, errScheme
	}
	claims, err := v.Parse(strings.TrimSpace(token))
	if err != nil {
		return Session{}, err
	}
	s := claims.Session()
	if s.UserID == "" {
		return Session{}, errNoSubject
	}
	return s, nil
}
