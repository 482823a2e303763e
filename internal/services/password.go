package services

import (
	"crypto/rand"
	"math"
	"math/big"
)

const (
	tempPasswordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789!@#$%&*"
	TempPasswordLength   = 12
)

// GenerateTempPassword 使用crypto/rand生成临时密码
func GenerateTempPassword(length int) (string, error) {
	if length < TempPasswordLength {
		length = TempPasswordLength
	}
	max := big.NewInt(int64(len(tempPasswordAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = tempPasswordAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// TempPasswordEntropyBits 临时密码的熵（位）
func TempPasswordEntropyBits(length int) float64 {
	return float64(length) * math.Log2(float64(len(tempPasswordAlphabet)))
}
