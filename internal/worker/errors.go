package worker

import "errors"

// Job execution errors. Permanent errors fail the job terminally on the
// first occurrence; anything else is treated as transient and retried by
// the queue's attempt policy.
var (
	// ErrFileVanished means the target path no longer exists on disk.
	ErrFileVanished = errors.New("file vanished")

	// ErrUnsupported means the file's type has no executor for this job kind.
	ErrUnsupported = errors.New("unsupported media type")

	// ErrDecode means the file's bytes could not be decoded as media.
	ErrDecode = errors.New("media decode failed")

	// ErrEmptyFile means the file has no bytes to hash or render.
	ErrEmptyFile = errors.New("empty file")
)

// permanent reports whether a job error should skip the retry policy.
func permanent(err error) bool {
	return errors.Is(err, ErrFileVanished) ||
		errors.Is(err, ErrUnsupported) ||
		errors.Is(err, ErrDecode) ||
		errors.Is(err, ErrEmptyFile)
}
