package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"orgmanager/internal/common"
	"orgmanager/internal/config"
	"orgmanager/internal/models"
)

// TokenService issues and verifies access tokens. Verification covers the
// signature and expiry only; binding to current directory state is the
// caller's job.
type TokenService interface {
	Issue(email, organizationName string, ttl time.Duration) (string, error)
	Validate(token string) (*models.TokenIdentity, error)
}

// TokenClaims is the signed payload: sub is the admin email, org the
// organization name.
type TokenClaims struct {
	Org string `json:"org"`
	jwt.RegisteredClaims
}

type tokenService struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption customises a token service.
type TokenOption func(*tokenService)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) TokenOption {
	return func(s *tokenService) {
		s.now = now
	}
}

func NewTokenService(cfg config.TokenConfig, opts ...TokenOption) (TokenService, error) {
	method := jwt.GetSigningMethod(cfg.Algorithm)
	if method == nil {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("signing algorithm %q is not an HMAC algorithm", cfg.Algorithm)
	}
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("signing secret is required")
	}

	s := &tokenService{
		secret: cfg.Secret,
		method: method,
		ttl:    cfg.TTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a token expiring ttl from now. A non-positive ttl selects the
// configured default.
func (s *tokenService) Issue(email, organizationName string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	now := s.now()

	claims := TokenClaims{
		Org: organizationName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, nil
}

func (s *tokenService) Validate(token string) (*models.TokenIdentity, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	claims := &TokenClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.Org == "" {
		return nil, fmt.Errorf("%w: missing sub or org claim", common.ErrInvalidToken)
	}

	return &models.TokenIdentity{
		Email:            claims.Subject,
		OrganizationName: claims.Org,
		ExpiresAt:        claims.ExpiresAt.Time,
	}, nil
}
