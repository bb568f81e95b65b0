package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Code generates the current TOTP passcode for a shared secret, used to
// answer a verification-code prompt during sign-in. Secrets are accepted
// the way identity providers display them, with spaces and lowercase.
func Code(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("totp secret cannot be empty")
	}

	cleanSecret := strings.ToUpper(strings.ReplaceAll(secret, " ", ""))

	opts := totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    6,
		Algorithm: otp.AlgorithmSHA1,
	}

	passcode, err := totp.GenerateCodeCustom(cleanSecret, time.Now().UTC(), opts)
	if err != nil {
		return "", fmt.Errorf("failed to generate totp code: %w", err)
	}

	return passcode, nil
}
