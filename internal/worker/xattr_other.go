//go:build !linux

package worker

// Non-Linux platforms skip the xattr cache and recompute fingerprints.

func cachedFingerprint(path string, size, mtime int64) (string, bool) {
	return "", false
}

func storeFingerprint(path string, size, mtime int64, fp string) {}
