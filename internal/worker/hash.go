package worker

import (
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"lightview/internal/logging"
)

const (
	// Files at or below this size get a full-content hash.
	fullHashLimit = 2 * 1024 * 1024

	// Larger files are fingerprinted from their head, tail, and size.
	fingerprintChunk = 64 * 1024

	// fingerprintPrefix marks a fast fingerprint so it can never collide
	// with a full hash of different bytes.
	fingerprintPrefix = "fp:"
)

// Fingerprint computes the content identity of a file. Small files get the
// hex SHA-512 of their full content. Large files get a fast fingerprint:
// SHA-512 over the first 64KiB, the last 64KiB, and the byte size, with a
// "fp:" prefix so the two schemes occupy disjoint namespaces.
//
// The result is cached in an extended attribute keyed by size and mtime, so
// an unchanged file is never re-read on later passes.
func Fingerprint(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrFileVanished, path)
		}
		return "", err
	}

	if info.Size() == 0 {
		return "", fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	if fp, ok := cachedFingerprint(path, info.Size(), info.ModTime().Unix()); ok {
		logging.Debug("fingerprint cache hit: %s", path)
		return fp, nil
	}

	var fp string
	if info.Size() <= fullHashLimit {
		fp, err = fullHash(path)
	} else {
		fp, err = fastFingerprint(path, info.Size())
	}
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrFileVanished, path)
		}
		return "", err
	}

	storeFingerprint(path, info.Size(), info.ModTime().Unix(), fp)
	return fp, nil
}

func fullHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha512.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func fastFingerprint(path string, size int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha512.New()

	head := make([]byte, fingerprintChunk)
	if _, err := io.ReadFull(f, head); err != nil {
		return "", fmt.Errorf("failed to read head of %s: %w", path, err)
	}
	h.Write(head)

	if _, err := f.Seek(-fingerprintChunk, io.SeekEnd); err != nil {
		return "", fmt.Errorf("failed to seek tail of %s: %w", path, err)
	}
	tail := make([]byte, fingerprintChunk)
	if _, err := io.ReadFull(f, tail); err != nil {
		return "", fmt.Errorf("failed to read tail of %s: %w", path, err)
	}
	h.Write(tail)

	var sz [8]byte
	binary.LittleEndian.PutUint64(sz[:], uint64(size))
	h.Write(sz[:])

	return fingerprintPrefix + hex.EncodeToString(h.Sum(nil)), nil
}
