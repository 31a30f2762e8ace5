package utils

import (
	"crypto/rand"
	"math/big"
	"regexp"

	"github.com/google/uuid"
)

// joinCodeAlphabet leaves out 0/O and 1/I.
const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

var joinCodePattern = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}$`)

func GenerateID() string {
	return uuid.NewString()
}

// GenerateJoinCode returns eight random characters formatted as XXXX-XXXX.
func GenerateJoinCode() (string, error) {
	code := make([]byte, 0, 9)
	max := big.NewInt(int64(len(joinCodeAlphabet)))
	for i := 0; i < 8; i++ {
		if i == 4 {
			code = append(code, '-')
		}
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code = append(code, joinCodeAlphabet[n.Int64()])
	}
	return string(code), nil
}

func IsValidJoinCodeFormat(code string) bool {
	return joinCodePattern.MatchString(code)
}
