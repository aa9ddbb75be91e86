// Package integrity computes and compares whole-file content digests.
package integrity

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// blockSize bounds memory use while digesting; replica objects can be
// multi-gigabyte, so the file is never read whole.
const blockSize = 8 * 1024

// Result classifies a verification outcome.
type Result int

const (
	// Match means the file content digest equals the declared checksum.
	Match Result = iota
	// Mismatch means the file was read fully but its digest differs.
	Mismatch
	// ReadError means the file content could not be assessed at all.
	ReadError
)

func (r Result) String() string {
	switch r {
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	case ReadError:
		return "read_error"
	default:
		return "unknown"
	}
}

// Verification carries the comparison result plus the computed digest when
// one was produced. Err is set only for ReadError.
type Verification struct {
	Result Result
	Actual string
	Err    error
}

// NormalizeChecksum lowercases and trims a declared checksum so comparisons
// are case and whitespace insensitive.
func NormalizeChecksum(checksum string) string {
	return strings.ToLower(strings.TrimSpace(checksum))
}

// FileDigest computes the hex md5 digest of the file at path using fixed-size
// block reads.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for digest: %w", err)
	}

	defer f.Close()

	h := md5.New()
	buf := make([]byte, blockSize)

	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}

		if err == io.EOF {
			break
		}

		if err != nil {
			return "", fmt.Errorf("failed to read file for digest: %w", err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify digests the file at path and compares it against expected.
// A file that cannot be read reports ReadError, never Mismatch, so callers
// can distinguish "wrong content" from "content could not be assessed".
func Verify(path, expected string) Verification {
	actual, err := FileDigest(path)
	if err != nil {
		return Verification{Result: ReadError, Err: err}
	}

	if actual != NormalizeChecksum(expected) {
		return Verification{Result: Mismatch, Actual: actual}
	}

	return Verification{Result: Match, Actual: actual}
}
