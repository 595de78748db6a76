package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gmsas95/mediremind/internal/errors"
	"github.com/gmsas95/mediremind/internal/store"
)

func setupTestStore(t *testing.T) *Store {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	s, err := NewStore(db, store.NewHub())
	require.NoError(t, err)
	return s
}

func register(t *testing.T, s *Store, caretaker, patient string) *Account {
	acct := &Account{CaretakerPhone: caretaker, PatientPhone: patient}
	require.NoError(t, s.Register(acct, "secret1!"))
	return acct
}

func TestStore_RegisterAndAuthenticate(t *testing.T) {
	s := setupTestStore(t)
	register(t, s, "9876543210", "9123456780")

	acct, err := s.Authenticate("9876543210", "secret1!")
	require.NoError(t, err)
	assert.Equal(t, "9123456780", acct.PatientPhone)

	_, err = s.Authenticate("9876543210", "wrong1!x")
	assert.Equal(t, errors.ErrBadCredentials.Code, errors.GetCode(err))

	_, err = s.Authenticate("0000000000", "secret1!")
	assert.Equal(t, errors.ErrBadCredentials.Code, errors.GetCode(err))
}

func TestStore_RegisterDuplicate(t *testing.T) {
	s := setupTestStore(t)
	register(t, s, "9876543210", "9123456780")

	err := s.Register(&Account{CaretakerPhone: "9876543210", PatientPhone: "9000000000"}, "secret1!")
	assert.Equal(t, errors.ErrAccountExists.Code, errors.GetCode(err))
}

func TestCheckPasswordPolicy(t *testing.T) {
	tests := []struct {
		password string
		ok       bool
	}{
		{"secret1!", true},
		{"a1!xyz", true},
		{"short", false},
		{"lettersonly", false},
		{"12345678", false},
		{"letters123", false}, // no special
		{"!!!!!!!1", false},   // no letter
	}

	for _, tt := range tests {
		err := CheckPasswordPolicy(tt.password)
		if tt.ok {
			assert.NoError(t, err, tt.password)
		} else {
			assert.Equal(t, errors.ErrWeakPassword.Code, errors.GetCode(err), tt.password)
		}
	}
}

func TestStore_RecipientResolution(t *testing.T) {
	s := setupTestStore(t)
	register(t, s, "9876543210", "9123456780")

	patient, err := s.PatientPhone("9876543210")
	require.NoError(t, err)
	assert.Equal(t, "9123456780", patient)

	caretaker, err := s.CaretakerPhone("9876543210")
	require.NoError(t, err)
	assert.Equal(t, "9876543210", caretaker)

	_, err = s.PatientPhone("unknown")
	assert.Equal(t, errors.ErrNoRecipient.Code, errors.GetCode(err))
}

func TestEuclideanMatcher(t *testing.T) {
	s := setupTestStore(t)

	alice := &Account{CaretakerPhone: "9876543210", PatientPhone: "9123456780"}
	alice.SetDescriptor([]float64{0.1, 0.2, 0.3})
	require.NoError(t, s.Register(alice, "secret1!"))

	bob := &Account{CaretakerPhone: "9000000000", PatientPhone: "9111111111"}
	bob.SetDescriptor([]float64{0.9, 0.8, 0.7})
	require.NoError(t, s.Register(bob, "secret1!"))

	matcher := NewEuclideanMatcher(s, 0.6)

	acct, ok, err := matcher.Match([]float64{0.12, 0.19, 0.31})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "9876543210", acct.CaretakerPhone)

	// A probe far from every enrolment is rejected.
	_, ok, err = matcher.Match([]float64{5, 5, 5})
	require.NoError(t, err)
	assert.False(t, ok)

	// Dimension mismatch never matches.
	_, ok, err = matcher.Match([]float64{0.1, 0.2})
	require.NoError(t, err)
	assert.False(t, ok)

	// Empty probe never matches.
	_, ok, err = matcher.Match(nil)
	require.NoError(t, err)
	assert.False(t, ok)
}
