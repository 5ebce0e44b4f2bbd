package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}

// javaVersionRegex matches the version strings vendors publish:
// "21", "17.0.9", "21.0.2+13", "11.0.21+9-LTS", "1.8.0_392".
var javaVersionRegex = regexp.MustCompile(`^[0-9]+(\.[0-9]+)*([_+-][0-9A-Za-z.+-]*)?$`)

// ValidateVersion validates a Java version string before it becomes a
// directory name under the provisioning base directory.
func ValidateVersion(version string) error {
	if version == "" {
		return New(ErrCodeInvalidVersion, "version cannot be empty")
	}
	if len(version) > 64 {
		return New(ErrCodeInvalidVersion, "version too long (max 64 characters)")
	}
	if strings.Contains(version, "..") {
		return New(ErrCodeInvalidVersion, "version contains path traversal sequence: %q", version)
	}
	if !javaVersionRegex.MatchString(version) {
		return New(ErrCodeInvalidVersion, "invalid Java version: %q", version)
	}
	return nil
}

// ValidateFileName validates a plain file name (no directory components).
// Used for names that arrive from untrusted sources such as URLs and
// mirror requests.
func ValidateFileName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidPath, "file name cannot be empty")
	}
	if len(name) > 255 {
		return New(ErrCodeInvalidPath, "file name too long (max 255 characters)")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "file name contains invalid control characters")
		}
	}
	if strings.ContainsAny(name, "/\\") {
		return New(ErrCodeInvalidPath, "file name cannot contain path separators")
	}
	if name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return New(ErrCodeInvalidPath, "file name cannot be hidden or relative: %q", name)
	}
	return nil
}
