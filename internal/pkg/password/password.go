package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

var (
	mu     sync.RWMutex
	params = &argon2id.Params{
		Memory:      64 * 1024, // 64 MB
		Iterations:  3,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
)

// ErrUnknownFormat is returned for hashes written by an unsupported scheme
var ErrUnknownFormat = errors.New("unknown password hash format")

// Configure sets the argon2id memory (KiB) and iteration cost for new hashes
func Configure(memoryKB, iterations uint32) {
	mu.Lock()
	defer mu.Unlock()
	if memoryKB > 0 {
		params.Memory = memoryKB
	}
	if iterations > 0 {
		params.Iterations = iterations
	}
}

// Hash hashes a password (or OTP) using argon2id
func Hash(password string) (string, error) {
	mu.RLock()
	p := *params
	mu.RUnlock()
	return argon2id.CreateHash(password, &p)
}

// Verify compares a password with a stored hash in constant time.
// Accepts argon2id, bcrypt and passlib "$pbkdf2-sha256$" hashes.
func Verify(password, hash string) bool {
	ok, err := verify(password, hash)
	return err == nil && ok
}

func verify(password, hash string) (bool, error) {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		return argon2id.ComparePasswordAndHash(password, hash)
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return err == nil, err
	case strings.HasPrefix(hash, "$pbkdf2-sha256$"):
		return verifyPBKDF2(password, hash)
	default:
		return false, ErrUnknownFormat
	}
}

// verifyPBKDF2 checks passlib's "$pbkdf2-sha256$<rounds>$<salt>$<checksum>" format.
// Salt and checksum use passlib's adapted base64 ("." instead of "+", no padding).
func verifyPBKDF2(password, hash string) (bool, error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 5 {
		return false, ErrUnknownFormat
	}
	rounds, err := strconv.Atoi(parts[2])
	if err != nil || rounds <= 0 {
		return false, ErrUnknownFormat
	}
	salt, err := decodeAB64(parts[3])
	if err != nil {
		return false, ErrUnknownFormat
	}
	want, err := decodeAB64(parts[4])
	if err != nil {
		return false, ErrUnknownFormat
	}

	got := pbkdf2.Key([]byte(password), salt, rounds, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func decodeAB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.ReplaceAll(s, ".", "+"))
}

// NeedsRehash reports whether hash was written by a legacy scheme
func NeedsRehash(hash string) bool {
	return !strings.HasPrefix(hash, "$argon2id$")
}
