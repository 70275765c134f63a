package utils

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
)

// Die is the unified exit strategy for facepack.
// It prints a formatted error box to stderr and exits with status 1.
func Die(context string, err error) {
	fmt.Fprint(os.Stderr, ErrorBox(context, err))
	os.Exit(1)
}

// ErrorBox renders the box Die prints.
func ErrorBox(context string, err error) string {
	s := "\n---------------------------------------------------------\n"
	s += fmt.Sprintf("🚨 FACEPACK ERROR: %s\n", context)
	if err != nil {
		s += fmt.Sprintf("DETAILS: %v\n", err)
	}
	s += "---------------------------------------------------------\n"
	return s
}

// NewSessionID returns a random capture session id.
func NewSessionID() string {
	return uuid.NewString()
}

// ValidSessionID reports whether id parses as a UUID.
func ValidSessionID(id string) bool {
	return uuid.Validate(id) == nil
}

// OpenInput opens path for reading; "" and "-" mean stdin, which is never
// closed.
func OpenInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, expected a file", path)
	}
	return os.Open(path)
}

// HumanBytes formats n with a binary unit suffix.
func HumanBytes(n float64) string {
	units := []string{"B", "KiB", "MiB", "GiB"}
	i := 0
	for n >= 1024 && i < len(units)-1 {
		n /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%.0f %s", n, units[i])
	}
	return fmt.Sprintf("%.1f %s", n, units[i])
}
