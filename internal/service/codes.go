package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// generateOTPCode returns a 6-digit numeric code from crypto/rand.
func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// generateVoterNo builds a voter identifier like VOTER_20260829_3847.
// Uniqueness is enforced by the database; callers regenerate on collision.
func generateVoterNo(prefix string, now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10_000))
	if err != nil {
		return "", fmt.Errorf("failed to generate voter number: %w", err)
	}
	return fmt.Sprintf("%s_%s_%04d", prefix, now.Format("20060102"), n.Int64()), nil
}
