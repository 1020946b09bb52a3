package classify

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// defaultChunkSize bounds how much of a document is resident in memory while
// hashing. The digest depends only on the byte stream, never on the chunk
// size.
const defaultChunkSize = 64 * 1024

// Fingerprint computes the SHA-256 digest of the file contents, streamed in
// fixed-size chunks so arbitrarily large documents never load fully into
// memory.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer f.Close()
	return FingerprintReader(f, defaultChunkSize)
}

// FingerprintReader hashes r in chunkSize reads. Identical byte streams yield
// identical digests regardless of the chunk size used.
func FingerprintReader(r io.Reader, chunkSize int) (string, error) {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	hasher := sha256.New()
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read source: %w", err)
		}
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
