// Package hasher computes file digests used to verify document transfers.
package hasher

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// Algorithms lists the supported digest algorithms.
var Algorithms = []string{"md5", "sha1", "sha256", "sha512"}

// IsValidAlgo reports whether algo (any case) is supported.
func IsValidAlgo(algo string) bool {
	algo = strings.ToLower(algo)
	for _, a := range Algorithms {
		if algo == a {
			return true
		}
	}
	return false
}

// New returns a fresh hash for algo.
func New(algo string) (hash.Hash, error) {
	switch strings.ToLower(algo) {
	case "md5":
		return md5.New(), nil
	case "sha1":
		return sha1.New(), nil
	case "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", algo)
	}
}

// Sum reads r to the end and returns its hex digest.
func Sum(r io.Reader, algo string) (string, error) {
	h, err := New(algo)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumFile returns the hex digest of the file at path.
func SumFile(path, algo string) (string, error) {
	if !IsValidAlgo(algo) {
		return "", fmt.Errorf("unsupported hash algorithm: %s", algo)
	}
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	return Sum(file, algo)
}
