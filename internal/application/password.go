package application

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidPasswordHash         = errors.New("invalid password hash format")
	ErrIncompatiblePasswordVersion = errors.New("incompatible password hash version")
)

// MinPasswordLength is the shortest password Register accepts.
const MinPasswordLength = 8

// Argon2idParams are the cost settings encoded into every hash.
type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// CreatePasswordHash returns a PHC formatted argon2id hash:
// $argon2id$v=19$m=...,t=...,p=...$salt$hash
func CreatePasswordHash(password string, params Argon2idParams) (string, error) {
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, params.Memory, params.Iterations, params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

type decodedHash struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

func decodePasswordHash(encoded string) (decodedHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return decodedHash{}, ErrInvalidPasswordHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return decodedHash{}, fmt.Errorf("%w: %w", ErrInvalidPasswordHash, err)
	}
	if version != argon2.Version {
		return decodedHash{}, ErrIncompatiblePasswordVersion
	}

	var d decodedHash
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &d.params.Memory, &d.params.Iterations, &d.params.Parallelism); err != nil {
		return decodedHash{}, fmt.Errorf("%w: %w", ErrInvalidPasswordHash, err)
	}

	var err error
	if d.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return decodedHash{}, fmt.Errorf("%w: %w", ErrInvalidPasswordHash, err)
	}
	if d.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return decodedHash{}, fmt.Errorf("%w: %w", ErrInvalidPasswordHash, err)
	}
	d.params.SaltLength = uint32(len(d.salt))
	d.params.KeyLength = uint32(len(d.key))
	return d, nil
}

// VerifyPassword compares password with an encoded hash in constant time. A
// mismatch yields ErrInvalidCredentials.
func VerifyPassword(hashedPassword, password string) error {
	d, err := decodePasswordHash(hashedPassword)
	if err != nil {
		return err
	}
	candidate := argon2.IDKey([]byte(password), d.salt, d.params.Iterations, d.params.Memory, d.params.Parallelism, d.params.KeyLength)
	if subtle.ConstantTimeCompare(d.key, candidate) == 1 {
		return nil
	}
	return ErrInvalidCredentials
}

// NeedsRehash reports whether an encoded hash was produced with cost settings
// other than params.
func NeedsRehash(hashedPassword string, params Argon2idParams) bool {
	d, err := decodePasswordHash(hashedPassword)
	if err != nil {
		return true
	}
	return d.params.Memory != params.Memory ||
		d.params.Iterations != params.Iterations ||
		d.params.Parallelism != params.Parallelism ||
		d.params.KeyLength != params.KeyLength
}

// NewSessionToken returns 32 random bytes hex encoded.
func NewSessionToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("application: read random token: %v", err))
	}
	return hex.EncodeToString(buf)
}
