package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"orgmanager/internal/common"
	"orgmanager/internal/models"
)

// AdminResolver finds admin accounts by email. Email is not unique across
// organizations, so every match is returned.
type AdminResolver interface {
	ListByEmail(ctx context.Context, email string) ([]*models.Admin, error)
}

// AuthService logs admins in and resolves bearer tokens back to the admin
// they were issued for.
type AuthService interface {
	Login(ctx context.Context, req *models.LoginRequest) (*models.TokenResponse, error)
	Authenticate(ctx context.Context, token string) (*models.Admin, error)
}

type authService struct {
	admins      AdminResolver
	credentials CredentialService
	tokens      TokenService
	log         *zap.Logger
	timeout     time.Duration
	// dummyDigest keeps the cost of a login for an unknown email in line
	// with a wrong password.
	dummyDigest string
}

func NewAuthService(admins AdminResolver, credentials CredentialService, tokens TokenService, log *zap.Logger, timeout time.Duration) (AuthService, error) {
	digest, err := credentials.Hash("placeholder-password")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare auth service: %w", err)
	}
	return &authService{
		admins:      admins,
		credentials: credentials,
		tokens:      tokens,
		log:         log.Named("auth"),
		timeout:     timeout,
		dummyDigest: digest,
	}, nil
}

// Login issues a token for the first linked admin with this email whose
// password matches. Unknown email and wrong password fail the same way.
func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (*models.TokenResponse, error) {
	if err := common.ValidateRequiredString(req.Email, "email"); err != nil {
		return nil, err
	}
	if err := common.ValidateRequiredString(req.Password, "password"); err != nil {
		return nil, err
	}

	admins, err := s.listByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}

	var matched *models.Admin
	for _, admin := range admins {
		if admin.OrganizationID == nil {
			continue
		}
		if s.credentials.Verify(req.Password, admin.PasswordHash) {
			matched = admin
			break
		}
	}
	if matched == nil {
		if len(admins) == 0 {
			s.credentials.Verify(req.Password, s.dummyDigest)
		}
		s.log.Info("login rejected", zap.String("email", req.Email))
		return nil, common.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(matched.Email, matched.OrganizationName, 0)
	if err != nil {
		return nil, err
	}

	s.log.Info("admin logged in",
		zap.String("admin_id", matched.ID.String()),
		zap.String("organization_name", matched.OrganizationName))
	return &models.TokenResponse{AccessToken: token, TokenType: models.TokenType}, nil
}

// Authenticate verifies the token and binds it to the admin that currently
// holds both the token's email and organization. A token issued before a
// rename or credential change no longer resolves.
func (s *authService) Authenticate(ctx context.Context, token string) (*models.Admin, error) {
	identity, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	admins, err := s.listByEmail(ctx, identity.Email)
	if err != nil {
		return nil, err
	}
	for _, admin := range admins {
		if admin.OrganizationID != nil && admin.OrganizationName == identity.OrganizationName {
			return admin, nil
		}
	}
	return nil, fmt.Errorf("%w: no admin for token subject", common.ErrInvalidToken)
}

func (s *authService) listByEmail(ctx context.Context, email string) ([]*models.Admin, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	admins, err := s.admins.ListByEmail(ctx, email)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, common.StorageError(err)
	}
	return admins, nil
}
