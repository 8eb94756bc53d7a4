package access

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 8

// HashPin хэширует PIN-код для хранения в токене
func HashPin(pin string) (string, error) {
	if pin == "" {
		return "", fmt.Errorf("pin is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash pin: %w", err)
	}
	return string(hash), nil
}

// VerifyPin сверяет предъявленный PIN с хэшем из токена.
// Канонический порядок аргументов зафиксирован один раз: хэш из хранилища,
// затем предъявленное значение. Хэш никогда не логируется и не возвращается.
func VerifyPin(storedHash, proof string) bool {
	if storedHash == "" || proof == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(proof)) == nil
}
