package services

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"orgmanager/internal/common"
	"orgmanager/internal/config"
)

// CredentialService hashes and verifies administrator passwords.
type CredentialService interface {
	Hash(password string) (string, error)
	Verify(plain, digest string) bool
}

type bcryptCredentialService struct {
	cost int
}

// NewCredentialService returns a bcrypt backed service. The salt is random
// per call and embedded in the digest.
func NewCredentialService(cfg config.CredentialConfig) CredentialService {
	return &bcryptCredentialService{cost: cfg.Cost}
}

func (s *bcryptCredentialService) Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password must be at most 72 bytes", common.ErrValidation)
		}
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// Verify never fails on a malformed digest, it just reports false.
func (s *bcryptCredentialService) Verify(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}
