// Package checksum implements the digest helpers used when verifying
// fetched content files and confirming object-storage writes. Digests are
// exchanged as "<algo>:<hex>" strings; a bare hex value is treated as
// sha256 for compatibility with older registry records.
package checksum

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// MD5Hex returns the lowercase hex MD5 digest of data.
func MD5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// SHA256Hex returns the lowercase hex SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verify checks data against an expected digest string. Supported forms are
// "md5:<hex>", "sha256:<hex>" and a bare sha256 hex value.
func Verify(expected string, data []byte) error {
	algo, want := "sha256", expected
	if idx := strings.IndexByte(expected, ':'); idx >= 0 {
		algo, want = strings.ToLower(expected[:idx]), expected[idx+1:]
	}
	var got string
	switch algo {
	case "md5":
		got = MD5Hex(data)
	case "sha256":
		got = SHA256Hex(data)
	default:
		return fmt.Errorf("unsupported checksum algorithm %q", algo)
	}
	// Constant-time comparison; digests may originate from remote input.
	if !hmac.Equal([]byte(strings.ToLower(want)), []byte(got)) {
		return fmt.Errorf("checksum mismatch: expected %s:%s, got %s:%s", algo, strings.ToLower(want), algo, got)
	}
	return nil
}
