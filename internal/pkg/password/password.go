package password

import "golang.org/x/crypto/bcrypt"

// bcryptCost matches the rounds used when the user base was first hashed;
// changing it only affects newly written hashes.
const bcryptCost = 12

// Hash hashes a plaintext password with bcrypt.
func Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether plain matches hash. A malformed hash verifies as
// false rather than erroring, so callers can treat it as bad credentials.
func Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
