package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	// InviteCodeAlphabet leaves out 0, O, 1 and I
	InviteCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	InviteCodeLength   = 6

	maxInviteCodeAttempts = 10
)

// CodeGenerator produces candidate invite codes
type CodeGenerator func() (string, error)

// GenerateInviteCode returns a random code drawn uniformly from the alphabet
func GenerateInviteCode() (string, error) {
	alphabetLen := big.NewInt(int64(len(InviteCodeAlphabet)))
	var b strings.Builder
	b.Grow(InviteCodeLength)
	for i := 0; i < InviteCodeLength; i++ {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate invite code: %w", err)
		}
		b.WriteByte(InviteCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeInviteCode trims and upper-cases user input
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidInviteCode reports whether code could have been generated
func ValidInviteCode(code string) bool {
	if len(code) != InviteCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(InviteCodeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
