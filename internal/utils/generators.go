package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

func GeneratePaymentID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("pay_%d_%06d", timestamp, randomNum.Int64())
}

const passwordCharset = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz23456789"

// GenerateTempPassword returns a random temporary credential for a newly
// provisioned client account. The charset skips lookalike characters
// since the value is read out of a welcome email.
func GenerateTempPassword(length int) string {
	if length <= 0 {
		length = 16
	}
	out := make([]byte, length)
	max := big.NewInt(int64(len(passwordCharset)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// Fall back to a timestamp-derived index if the random source fails
			n = big.NewInt(time.Now().UnixNano() % int64(len(passwordCharset)))
		}
		out[i] = passwordCharset[n.Int64()]
	}
	return string(out)
}
