package checksum

import (
	"bufio"
	"strings"

	"github.com/jaenvtix/jaenvtix/pkg/errors"
)

// Policy decides what happens when no expected digest is available.
type Policy string

const (
	// Strict refuses to download anything without an expected digest.
	Strict Policy = "strict"
	// BestEffort proceeds without verification and logs a warning.
	BestEffort Policy = "best-effort"
)

// DefaultPolicy is used when none is configured.
const DefaultPolicy = BestEffort

// ParsePolicy parses a policy name. An empty string yields DefaultPolicy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultPolicy, nil
	case "strict":
		return Strict, nil
	case "best-effort", "besteffort", "best_effort":
		return BestEffort, nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "unknown checksum policy %q (want strict or best-effort)", s)
}

// Plan is the resolved verification plan for a single download.
type Plan struct {
	Expected  string
	Algorithm Algorithm
	// Skipped is true when best-effort policy allowed a download without a digest.
	Skipped bool
}

// Enabled reports whether a digest will be computed and compared.
func (p Plan) Enabled() bool { return !p.Skipped && p.Expected != "" }

// Resolve builds a verification plan. Strict policy without an expected
// digest fails with CHECKSUM_REQUIRED.
func (p Policy) Resolve(expected, explicit string) (Plan, error) {
	expected = Normalize(expected)
	if expected == "" {
		if p == Strict {
			return Plan{}, errors.New(errors.ErrCodeChecksumRequired, "checksum policy is strict but no checksum was provided")
		}
		return Plan{Skipped: true}, nil
	}
	alg, err := Resolve(expected, explicit)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Expected: expected, Algorithm: alg}, nil
}

// ParseSidecar extracts the expected digest from a checksum file as
// published next to vendor artifacts. Both "<hex>" and "<hex>  <filename>"
// forms are accepted; the first token of the first non-blank, non-comment
// line wins.
func ParseSidecar(content string) (string, error) {
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		token := strings.Fields(line)[0]
		if !isHex(token) {
			return "", errors.New(errors.ErrCodeInvalidInput, "checksum file does not start with a hex digest: %q", token)
		}
		return Normalize(token), nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "checksum file is empty")
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
