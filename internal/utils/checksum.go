package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

func SHA256Bytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// ShortDigest returns the first n hex characters of the sha256 of b.
func ShortDigest(b []byte, n int) string {
	full := SHA256Bytes(b)
	if n <= 0 || n > len(full) {
		return full
	}
	return full[:n]
}

func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
