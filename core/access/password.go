package access

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ErrWrongPassword is returned by CheckPassword when the password does not match
var ErrWrongPassword = errors.New("wrong password")

// HashPassword returns the bcrypt hash of password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares password with a hash created by HashPassword
func CheckPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrWrongPassword
	}
	return err
}

var (
	unknownUserHash     []byte
	unknownUserHashOnce sync.Once
)

// CheckPasswordOfUnknownUser costs as much time as CheckPassword and always
// returns ErrWrongPassword. Logins of unknown users call it so that the
// response time does not tell which users exist.
func CheckPasswordOfUnknownUser(password string) error {
	unknownUserHashOnce.Do(func() {
		unknownUserHash, _ = bcrypt.GenerateFromPassword([]byte("unknown user"), bcrypt.DefaultCost)
	})
	bcrypt.CompareHashAndPassword(unknownUserHash, []byte(password))
	return ErrWrongPassword
}
