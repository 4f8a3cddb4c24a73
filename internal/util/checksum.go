package util

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// ChecksumMetadataKey is the object metadata key holding the hex sha256 of
// the object body.
const ChecksumMetadataKey = "sha256"

// SHA256File returns the hex sha256 of the file at path and its size.
func SHA256File(path string) (sum string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = f.Close() }()
	return SHA256Reader(f)
}

// SHA256Reader drains r.
func SHA256Reader(r io.Reader) (sum string, size int64, err error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// SHA256Bytes is the hex sha256 of b.
func SHA256Bytes(b []byte) string {
	s := sha256.Sum256(b)
	return hex.EncodeToString(s[:])
}
