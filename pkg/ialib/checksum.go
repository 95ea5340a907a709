package ialib

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/spf13/afero"
)

// ChecksumAlgorithm names a supported digest algorithm.
type ChecksumAlgorithm string

const (
	ChecksumMD5    ChecksumAlgorithm = "md5"
	ChecksumSHA1   ChecksumAlgorithm = "sha1"
	ChecksumSHA256 ChecksumAlgorithm = "sha256"
	ChecksumSHA512 ChecksumAlgorithm = "sha512"
)

// ExpectedChecksum is a parsed expected digest for a task.
type ExpectedChecksum struct {
	Algorithm ChecksumAlgorithm
	Value     []byte
}

// NewHasher creates a hash.Hash for the given algorithm.
func NewHasher(algo ChecksumAlgorithm) (hash.Hash, error) {
	switch algo {
	case ChecksumMD5:
		return md5.New(), nil
	case ChecksumSHA1:
		return sha1.New(), nil
	case ChecksumSHA256:
		return sha256.New(), nil
	case ChecksumSHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm: %s", algo)
	}
}

// ParseChecksum parses the task-store "algo:hex" digest form, e.g.
// "sha256:9f86d0...". Archive metadata commonly supplies md5 or sha1;
// only algorithms with a registered hasher are accepted.
func ParseChecksum(s string) (*ExpectedChecksum, error) {
	if s == "" {
		return nil, fmt.Errorf("empty checksum")
	}
	idx := strings.Index(s, ":")
	if idx <= 0 || idx == len(s)-1 {
		return nil, fmt.Errorf("invalid checksum format: %q", s)
	}
	algo := ChecksumAlgorithm(strings.ToLower(s[:idx]))
	if _, err := NewHasher(algo); err != nil {
		return nil, err
	}
	value, err := hex.DecodeString(s[idx+1:])
	if err != nil {
		return nil, fmt.Errorf("invalid checksum hex: %w", err)
	}
	return &ExpectedChecksum{Algorithm: algo, Value: value}, nil
}

// VerifyFile hashes the finished file and compares it against the
// expected digest. A mismatch is an IntegrityError and is never
// silently accepted.
func VerifyFile(fs afero.Fs, path string, exp *ExpectedChecksum) error {
	h, err := NewHasher(exp.Algorithm)
	if err != nil {
		return err
	}
	f, err := fs.Open(path)
	if err != nil {
		return &StorageError{Op: "open for verify", Err: err}
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return &StorageError{Op: "read for verify", Err: err}
	}
	actual := h.Sum(nil)
	if !hashEqual(actual, exp.Value) {
		return &IntegrityError{
			Reason:   fmt.Sprintf("%s digest mismatch", exp.Algorithm),
			Expected: hex.EncodeToString(exp.Value),
			Actual:   hex.EncodeToString(actual),
		}
	}
	return nil
}

func hashEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
