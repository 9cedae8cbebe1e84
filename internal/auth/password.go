package auth

import (
	"errors"
	"regexp"
	"strings"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9-_]{4,12}$`)
)

const (
	allowedSpecialChars = `!@#$%^&*()_+\-=[]{};':"\|,.<>/?`
)

func validatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("Password must be at least 8 characters long.")
	}

	hasNumber := false
	hasLower := false
	hasUpper := false
	hasSpecial := false

	for _, char := range password {
		if char >= '0' && char <= '9' {
			hasNumber = true
		} else if char >= 'a' && char <= 'z' {
			hasLower = true
		} else if char >= 'A' && char <= 'Z' {
			hasUpper = true
		} else if strings.ContainsRune(allowedSpecialChars, char) {
			hasSpecial = true
		} else {
			// Character is not in any of the allowed groups
			return errors.New("Password contains disallowed characters.")
		}
	}

	if !hasNumber {
		return errors.New("Password must contain at least one number.")
	}
	if !hasLower {
		return errors.New("Password must contain at least one lowercase letter.")
	}
	if !hasUpper {
		return errors.New("Password must contain at least one uppercase letter.")
	}
	if !hasSpecial {
		return errors.New("Password must contain at least one special character.")
	}

	return nil
}
