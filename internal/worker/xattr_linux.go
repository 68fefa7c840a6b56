//go:build linux

package worker

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"lightview/internal/logging"
)

// Fingerprints are cached in an extended attribute on the file itself, so
// the cache moves with the file and vanishes with it. The value embeds size
// and mtime; a mismatch invalidates the entry. Everything here is best
// effort: filesystems without xattr support just recompute.
const xattrName = "user.lv.sha512"

func cachedFingerprint(path string, size, mtime int64) (string, bool) {
	buf := make([]byte, 256)
	n, err := unix.Getxattr(path, xattrName, buf)
	if err != nil || n <= 0 {
		return "", false
	}

	parts := strings.SplitN(string(buf[:n]), "|", 3)
	if len(parts) != 3 {
		return "", false
	}

	cachedSize, err1 := strconv.ParseInt(parts[0], 10, 64)
	cachedMtime, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil {
		return "", false
	}

	if cachedSize != size || cachedMtime != mtime || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}

func storeFingerprint(path string, size, mtime int64, fp string) {
	value := fmt.Sprintf("%d|%d|%s", size, mtime, fp)
	if err := unix.Setxattr(path, xattrName, []byte(value), 0); err != nil {
		logging.Debug("failed to store fingerprint xattr on %s: %v", path, err)
	}
}
