package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/vibeteen/vibe-teen/internal/apperror"
)

// PINs are short numeric codes a member may add to their account so that
// knowing someone's e-mail is not enough to post as them. They are hashed with
// bcrypt exactly like passwords would be; the salt and cost live in the hash.
const (
	MinPINLength = 4
	MaxPINLength = 8
	defaultCost  = 12
)

// ErrWrongPIN is returned by Verify when the PIN does not match.
var ErrWrongPIN = errors.New("auth: wrong PIN")

// PINService hashes and checks member PINs. The cost is a field so tests can
// drop it to bcrypt.MinCost.
type PINService struct {
	cost int
}

// NewPINService uses the production bcrypt cost.
func NewPINService() *PINService {
	return &PINService{cost: defaultCost}
}

// NewPINServiceForTest uses the given bcrypt cost (usually 4). Never in
// production.
func NewPINServiceForTest(cost int) *PINService {
	return &PINService{cost: cost}
}

// ValidatePIN checks the PIN format: 4 to 8 ASCII digits.
func ValidatePIN(pin string) error {
	if len(pin) < MinPINLength || len(pin) > MaxPINLength {
		return apperror.ValidationFailed("pin",
			fmt.Sprintf("PIN must have between %d and %d digits", MinPINLength, MaxPINLength))
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return apperror.ValidationFailed("pin", "PIN must contain only digits")
		}
	}
	return nil
}

// Hash validates and hashes a PIN.
func (p *PINService) Hash(pin string) (string, error) {
	if err := ValidatePIN(pin); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(pin), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing PIN: %w", err)
	}
	return string(hashed), nil
}

// Verify compares a PIN against a stored hash in constant time. A mismatch
// returns ErrWrongPIN; a corrupt hash returns a different error.
func (p *PINService) Verify(hash, pin string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrWrongPIN
		}
		return fmt.Errorf("auth: comparing PIN hash: %w", err)
	}
	return nil
}
