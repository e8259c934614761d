package password

import (
	"errors"
	"strings"
)

var (
	// ErrMalformedHash is returned when a stored hash cannot be decoded.
	ErrMalformedHash = errors.New("malformed password hash")
	// ErrUnsupportedHash is returned for hashes of an unknown algorithm.
	ErrUnsupportedHash = errors.New("unsupported password hash")
	// ErrPasswordTooShort is returned by Hash for passwords below MinLength.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrPasswordTooLong is returned when bcrypt would silently truncate.
	ErrPasswordTooLong = errors.New("password too long")
)

// MinLength is the minimum number of bytes Hash accepts.
const MinLength = 8

// Algorithm names a hashing scheme.
type Algorithm string

const (
	AlgorithmBcrypt   Algorithm = "bcrypt"
	AlgorithmArgon2id Algorithm = "argon2id"
)

// Hasher is implemented by Bcrypt and Argon2.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, encoded string) (bool, error)
	NeedsRehash(encoded string) (bool, error)
}

// Verifier checks passwords against hashes of any supported algorithm and
// hashes new passwords with its primary algorithm.
type Verifier struct {
	primary Algorithm
	bcrypt  *Bcrypt
	argon2  *Argon2
}

// Config configures a Verifier.
type Config struct {
	Primary    Algorithm
	BcryptCost int
	Argon2     Argon2Config
}

// DefaultConfig hashes new passwords with bcrypt.
func DefaultConfig() Config {
	return Config{
		Primary:    AlgorithmBcrypt,
		BcryptCost: 10,
		Argon2:     DefaultArgon2Config(),
	}
}

// NewVerifier builds a Verifier from cfg.
func NewVerifier(cfg Config) (*Verifier, error) {
	b, err := NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	a, err := NewArgon2(cfg.Argon2)
	if err != nil {
		return nil, err
	}
	switch cfg.Primary {
	case AlgorithmBcrypt, AlgorithmArgon2id:
	case "":
		cfg.Primary = AlgorithmBcrypt
	default:
		return nil, ErrUnsupportedHash
	}
	return &Verifier{primary: cfg.Primary, bcrypt: b, argon2: a}, nil
}

// Hash hashes plaintext with the primary algorithm.
func (v *Verifier) Hash(plaintext string) (string, error) {
	return v.hasherFor(v.primary).Hash(plaintext)
}

// Verify reports whether plaintext matches encoded. An empty plaintext or
// empty hash never matches.
func (v *Verifier) Verify(plaintext, encoded string) (bool, error) {
	if plaintext == "" || encoded == "" {
		return false, nil
	}
	algo, err := Detect(encoded)
	if err != nil {
		return false, err
	}
	return v.hasherFor(algo).Verify(plaintext, encoded)
}

// NeedsRehash reports whether encoded should be replaced by a primary hash.
func (v *Verifier) NeedsRehash(encoded string) (bool, error) {
	algo, err := Detect(encoded)
	if err != nil {
		return false, err
	}
	if algo != v.primary {
		return true, nil
	}
	return v.hasherFor(algo).NeedsRehash(encoded)
}

// Detect returns the algorithm encoded was produced with.
func Detect(encoded string) (Algorithm, error) {
	switch {
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		return AlgorithmBcrypt, nil
	case strings.HasPrefix(encoded, argon2Prefix):
		return AlgorithmArgon2id, nil
	default:
		return "", ErrUnsupportedHash
	}
}

func (v *Verifier) hasherFor(algo Algorithm) Hasher {
	if algo == AlgorithmArgon2id {
		return v.argon2
	}
	return v.bcrypt
}

func checkPlaintext(plaintext string) error {
	if len(plaintext) < MinLength {
		return ErrPasswordTooShort
	}
	return nil
}
