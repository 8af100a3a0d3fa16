package inference

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

// DigestFile returns the hex BLAKE3 digest of a file's contents.
func DigestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyDigest checks a file against an expected hex digest. An empty
// expectation always passes and only reports the actual digest.
func VerifyDigest(path, expected string) (string, error) {
	actual, err := DigestFile(path)
	if err != nil {
		return "", err
	}
	expected = strings.ToLower(strings.TrimSpace(expected))
	if expected != "" && expected != actual {
		return actual, fmt.Errorf("blake3 digest mismatch: got %s, want %s", actual, expected)
	}
	return actual, nil
}
