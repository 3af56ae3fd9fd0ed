package auth

import "golang.org/x/crypto/bcrypt"

// bcryptCost trades hashing latency against brute-force resistance.
const bcryptCost = 12

// passwordHasher derives and checks bcrypt password hashes.
type passwordHasher struct {
	cost int
}

func newPasswordHasher() *passwordHasher {
	return &passwordHasher{cost: bcryptCost}
}

func (h *passwordHasher) hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// matches reports whether password produced hash.
func (h *passwordHasher) matches(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
