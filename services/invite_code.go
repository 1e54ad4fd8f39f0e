package services

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"wordlewise/models"
)

// inviteAlphabet is A-Z and 2-9 without the look-alikes O, 0, I, 1 and L.
const inviteAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const maxInviteCodeAttempts = 32

var inviteAlphabetLen = big.NewInt(int64(len(inviteAlphabet)))

// GenerateInviteCode returns a random code of models.InviteCodeLength
// characters. It does not check for collisions.
func GenerateInviteCode() (string, error) {
	code := make([]byte, models.InviteCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, inviteAlphabetLen)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		code[i] = inviteAlphabet[n.Int64()]
	}
	return string(code), nil
}

// UniqueInviteCode draws codes until exists reports one as free. Collisions
// are retried silently; running out of attempts is an internal error.
func UniqueInviteCode(exists func(code string) (bool, error)) (string, error) {
	return uniqueInviteCode(GenerateInviteCode, exists)
}

func uniqueInviteCode(generate func() (string, error), exists func(string) (bool, error)) (string, error) {
	for attempt := 0; attempt < maxInviteCodeAttempts; attempt++ {
		code, err := generate()
		if err != nil {
			return "", err
		}
		taken, err := exists(code)
		if err != nil {
			return "", fmt.Errorf("failed to check invite code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrInviteCodeExhausted
}
