package account

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode"

	"gorm.io/gorm"

	"github.com/gmsas95/mediremind/internal/errors"
	"github.com/gmsas95/mediremind/internal/store"
)

// Store handles account persistence and credential checks. It also serves
// as the dispatcher's recipient resolver: patient phone for reminders,
// caretaker phone for escalations.
type Store struct {
	db  *gorm.DB
	hub *store.Hub
}

// NewStore creates a new account store
func NewStore(db *gorm.DB, hub *store.Hub) (*Store, error) {
	if err := db.AutoMigrate(&Account{}); err != nil {
		return nil, fmt.Errorf("failed to migrate account schema: %w", err)
	}
	return &Store{db: db, hub: hub}, nil
}

// Register creates a new account. The caretaker phone must be unused and
// the password must meet the policy.
func (s *Store) Register(acct *Account, password string) error {
	if acct.CaretakerPhone == "" || acct.PatientPhone == "" {
		return errors.ErrBadRequest
	}
	if err := CheckPasswordPolicy(password); err != nil {
		return err
	}

	existing, err := s.Get(acct.CaretakerPhone)
	if err != nil {
		return err
	}
	if existing != nil {
		return errors.ErrAccountExists
	}

	acct.PasswordHash = hashPassword(password)
	acct.CreatedAt = time.Now()
	acct.UpdatedAt = acct.CreatedAt

	if err := s.db.Create(acct).Error; err != nil {
		return err
	}

	s.hub.Publish(store.Change{Key: store.KeyAccounts, Op: "create", ID: acct.CaretakerPhone})
	return nil
}

// Get retrieves an account by caretaker phone
func (s *Store) Get(caretakerPhone string) (*Account, error) {
	var acct Account
	err := s.db.Where("caretaker_phone = ?", caretakerPhone).First(&acct).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &acct, err
}

// Authenticate checks a caretaker phone/password pair
func (s *Store) Authenticate(caretakerPhone, password string) (*Account, error) {
	acct, err := s.Get(caretakerPhone)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, errors.ErrBadCredentials
	}
	hash := hashPassword(password)
	if subtle.ConstantTimeCompare([]byte(hash), []byte(acct.PasswordHash)) != 1 {
		return nil, errors.ErrBadCredentials
	}
	return acct, nil
}

// List returns all accounts. Used by the face matcher to scan enrolments.
func (s *Store) List() ([]Account, error) {
	var accts []Account
	err := s.db.Find(&accts).Error
	return accts, err
}

// PatientPhone resolves the patient reminder recipient for an owner.
func (s *Store) PatientPhone(ownerID string) (string, error) {
	acct, err := s.Get(ownerID)
	if err != nil {
		return "", err
	}
	if acct == nil || acct.PatientPhone == "" {
		return "", errors.ErrNoRecipient
	}
	return acct.PatientPhone, nil
}

// CaretakerPhone resolves the escalation recipient for an owner.
func (s *Store) CaretakerPhone(ownerID string) (string, error) {
	acct, err := s.Get(ownerID)
	if err != nil {
		return "", err
	}
	if acct == nil || acct.CaretakerPhone == "" {
		return "", errors.ErrNoRecipient
	}
	return acct.CaretakerPhone, nil
}

// CheckPasswordPolicy enforces the registration password requirements:
// at least 6 characters with a letter, a digit, and a special character.
func CheckPasswordPolicy(password string) error {
	if len(password) < 6 {
		return errors.ErrWeakPassword
	}
	var hasLetter, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune("!@#$%^&*()-_=+[]{};:'\",.<>/?\\|`~", r):
			hasSpecial = true
		}
	}
	if !hasLetter || !hasDigit || !hasSpecial {
		return errors.ErrWeakPassword
	}
	return nil
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
