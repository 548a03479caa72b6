package access

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const initialSecretBytes = 24

// newCredential generates the one-time provisioning credential and the
// bcrypt hash the store keeps. The plaintext secret appears only in the
// returned Credential.
func newCredential(issuedAt time.Time) (Credential, string, error) {
	raw := make([]byte, initialSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return Credential{}, "", fmt.Errorf("generate secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(raw)
	hash, err := hashSecret(secret)
	if err != nil {
		return Credential{}, "", err
	}
	cred := Credential{
		ID:                   uuid.NewString(),
		InitialSecret:        secret,
		MustChangeOnFirstUse: true,
		IssuedAt:             issuedAt,
	}
	return cred, hash, nil
}

func hashSecret(secret string) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("secret is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func verifySecret(hash, secret string) error {
	if hash == "" {
		return errors.New("secret hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
}
