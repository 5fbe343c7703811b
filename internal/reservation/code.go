package reservation

import (
	"context"
	"crypto/rand"
	"math/big"
)

const (
	codePrefix      = "RES-"
	codeLength      = 5
	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeAttempts = 20
)

// CodeGenerator returns a candidate reservation code.
type CodeGenerator func() (string, error)

// RandomCode returns codePrefix followed by codeLength random alphanumeric characters.
func RandomCode() (string, error) {
	buf := make([]byte, codeLength)
	limit := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return codePrefix + string(buf), nil
}

// uniqueCode draws codes until one is unused, including by deleted reservations.
// The unique index on code still guards against a concurrent writer taking the same value.
func uniqueCode(ctx context.Context, repo Repository, gen CodeGenerator) (string, error) {
	for range maxCodeAttempts {
		code, err := gen()
		if err != nil {
			return "", err
		}
		exists, err := repo.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}
