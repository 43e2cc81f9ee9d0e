package schema

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Password hashes credential values before they reach the storage so the
// clear text can't be read back even when a projection leaks.
type Password struct {
	// MinLen defines the minimum password length (default 0).
	MinLen int
	// MaxLen defines the maximum password length (default no limit).
	MaxLen int
	// Cost sets a custom bcrypt hashing cost.
	Cost int
}

// Hash validates the clear text password and returns its bcrypt hash. A value
// which is already a bcrypt hash is returned as is.
func (v Password) Hash(value interface{}) ([]byte, error) {
	s, ok := value.(string)
	if !ok {
		if b, ok := value.([]byte); ok {
			if _, err := bcrypt.Cost(b); err == nil {
				return b, nil
			}
		}
		return nil, errors.New("not a string")
	}
	l := len(s)
	if l < v.MinLen {
		return nil, fmt.Errorf("is shorter than %d", v.MinLen)
	}
	if v.MaxLen > 0 && l > v.MaxLen {
		return nil, fmt.Errorf("is longer than %d", v.MaxLen)
	}
	cost := v.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return bcrypt.GenerateFromPassword([]byte(s), cost)
}

// HashPassword hashes password with the default cost.
func HashPassword(password string) ([]byte, error) {
	return Password{}.Hash(password)
}

// VerifyPassword compares a hashed password with a clear text password and
// returns true if they match.
func VerifyPassword(hash interface{}, password []byte) bool {
	var h []byte
	switch t := hash.(type) {
	case []byte:
		h = t
	case string:
		h = []byte(t)
	default:
		return false
	}
	return bcrypt.CompareHashAndPassword(h, password) == nil
}
