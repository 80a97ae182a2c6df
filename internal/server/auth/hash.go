package auth

import "golang.org/x/crypto/bcrypt"

// bcryptCost matches the cost the rest of the record uses for OTP hashes, so
// stored secrets are uniformly one-way.
const bcryptCost = 10

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	return string(bytes), err
}

func CheckPasswordHash(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
