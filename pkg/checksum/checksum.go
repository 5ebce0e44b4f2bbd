// Package checksum verifies downloaded artifacts against vendor digests.
//
// A digest is compared as case-insensitive hex after trimming whitespace.
// When no algorithm is named, it is inferred from the digest length:
//
//	32 hex characters -> md5
//	40 hex characters -> sha1
//	64 hex characters -> sha256
//
// Any other length falls back to sha256. The heuristic is kept as is; a
// vendor that publishes a digest of another length will mismatch rather
// than be guessed at.
package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/jaenvtix/jaenvtix/pkg/errors"
)

// Algorithm names a digest function.
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

// Default is used when neither a name nor a recognised digest length is available.
const Default = SHA256

// ParseAlgorithm parses an explicit algorithm name. Case, dashes and
// underscores are ignored, so "SHA-256" and "sha_256" both yield SHA256.
// An empty name returns "" and no error.
func ParseAlgorithm(name string) (Algorithm, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.NewReplacer("-", "", "_", "").Replace(n)
	switch n {
	case "":
		return "", nil
	case "md5":
		return MD5, nil
	case "sha1":
		return SHA1, nil
	case "sha256":
		return SHA256, nil
	case "sha512":
		return SHA512, nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "unsupported checksum algorithm %q", name)
}

// Infer guesses the algorithm from the length of a hex digest.
func Infer(digest string) Algorithm {
	switch len(Normalize(digest)) {
	case 32:
		return MD5
	case 40:
		return SHA1
	case 64:
		return SHA256
	}
	return Default
}

// Resolve picks the algorithm for an expected digest: an explicit name
// wins, otherwise the digest length decides.
func Resolve(expected, explicit string) (Algorithm, error) {
	a, err := ParseAlgorithm(explicit)
	if err != nil {
		return "", err
	}
	if a != "" {
		return a, nil
	}
	return Infer(expected), nil
}

// New returns a fresh hash for the algorithm.
func (a Algorithm) New() hash.Hash {
	switch a {
	case MD5:
		return md5.New()
	case SHA1:
		return sha1.New()
	case SHA512:
		return sha512.New()
	default:
		return sha256.New()
	}
}

// String implements fmt.Stringer.
func (a Algorithm) String() string {
	if a == "" {
		return string(Default)
	}
	return string(a)
}

// Normalize trims whitespace and lowercases a hex digest.
func Normalize(digest string) string {
	return strings.ToLower(strings.TrimSpace(digest))
}

// Equal reports whether two hex digests match, ignoring case and
// surrounding whitespace.
func Equal(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	return na != "" && na == nb
}

// Hasher is a streaming digest. It is an io.Writer so it can sit in an
// io.MultiWriter beside the destination file.
type Hasher struct {
	alg Algorithm
	h   hash.Hash
	n   int64
}

// NewHasher returns a hasher for alg.
func NewHasher(alg Algorithm) *Hasher {
	if alg == "" {
		alg = Default
	}
	return &Hasher{alg: alg, h: alg.New()}
}

// Write adds p to the running digest.
func (h *Hasher) Write(p []byte) (int, error) {
	n, err := h.h.Write(p)
	h.n += int64(n)
	return n, err
}

// Algorithm returns the algorithm in use.
func (h *Hasher) Algorithm() Algorithm { return h.alg }

// Size returns the number of bytes hashed so far.
func (h *Hasher) Size() int64 { return h.n }

// Sum returns the lowercase hex digest of everything written so far.
func (h *Hasher) Sum() string {
	return hex.EncodeToString(h.h.Sum(nil))
}

// Verify compares the running digest against expected.
func (h *Hasher) Verify(expected string) error {
	actual := h.Sum()
	if !Equal(actual, expected) {
		return &MismatchError{Algorithm: h.alg, Expected: Normalize(expected), Actual: actual}
	}
	return nil
}

// MismatchError reports a digest that did not match.
type MismatchError struct {
	Algorithm Algorithm
	Expected  string
	Actual    string
}

func (e *MismatchError) Error() string {
	return "checksum mismatch (" + e.Algorithm.String() + "): expected " + e.Expected + ", got " + e.Actual
}

// Sum hashes everything read from r.
func Sum(r io.Reader, alg Algorithm) (string, int64, error) {
	h := NewHasher(alg)
	if _, err := io.Copy(h, r); err != nil {
		return "", h.Size(), err
	}
	return h.Sum(), h.Size(), nil
}

// SumFile hashes the file at path.
func SumFile(path string, alg Algorithm) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	return Sum(f, alg)
}

// VerifyFile hashes the file at path and compares it to expected. The
// algorithm is resolved from explicit and the digest length.
func VerifyFile(path, expected, explicit string) error {
	alg, err := Resolve(expected, explicit)
	if err != nil {
		return err
	}
	actual, _, err := SumFile(path, alg)
	if err != nil {
		return err
	}
	if !Equal(actual, expected) {
		m := &MismatchError{Algorithm: alg, Expected: Normalize(expected), Actual: actual}
		return errors.Wrap(errors.ErrCodeChecksumMismatch, m, "%s", path)
	}
	return nil
}
