package auth

import (
	"net/mail"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword returns an empty string for an acceptable password, or the reason it is rejected.
func ValidatePassword(password string) string {
	if len(password) < 8 {
		return "Password must be at least 8 characters long"
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return "Password must contain an uppercase letter, a lowercase letter and a digit"
	}
	return ""
}

func ValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email, "@")
}

// EmailInDomain matches the part after '@'. An empty domain allows everything.
func EmailInDomain(email, domain string) bool {
	if domain == "" {
		return true
	}
	at := strings.LastIndexByte(email, '@')
	return at >= 0 && strings.EqualFold(email[at+1:], strings.TrimPrefix(domain, "@"))
}
