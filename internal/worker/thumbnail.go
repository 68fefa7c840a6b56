package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"time"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"lightview/internal/logging"
	"lightview/internal/mediatypes"
)

// DefaultThumbSize is the bounding box for generated thumbnails.
const DefaultThumbSize = 256

const thumbJPEGQuality = 80

// ffmpegTimeout bounds a single frame-extraction attempt. Some corrupt
// videos make ffmpeg hang instead of failing.
const ffmpegTimeout = 30 * time.Second

// GenerateThumbnail renders a JPEG thumbnail for the file at path, fitted
// into a size x size box. Videos get a frame extracted near 30% of their
// duration, which skips past black intros and title cards.
func GenerateThumbnail(ctx context.Context, path string, kind mediatypes.Kind, size int) ([]byte, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileVanished, path)
		}
		return nil, fmt.Errorf("file not accessible: %w", err)
	}

	if size <= 0 {
		size = DefaultThumbSize
	}

	var img image.Image
	var err error

	switch kind {
	case mediatypes.KindImage:
		img, err = decodeImage(path)
	case mediatypes.KindVideo:
		img, err = extractVideoFrame(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, kind)
	}
	if err != nil {
		return nil, err
	}

	thumb := imaging.Fit(img, size, size, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: thumbJPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return buf.Bytes(), nil
}

func decodeImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}

	logging.Debug("imaging.Open failed for %s: %v, trying stdlib decode", path, err)

	f, openErr := os.Open(path)
	if openErr != nil {
		if errors.Is(openErr, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileVanished, path)
		}
		return nil, openErr
	}
	defer f.Close()

	img, format, decErr := image.Decode(f)
	if decErr != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, decErr)
	}

	logging.Debug("decoded %s as %s via stdlib fallback", path, format)
	return img, nil
}

// extractVideoFrame asks ffmpeg for a single frame. The first attempt seeks
// to 30% of the probed duration; if that fails (duration unknown, stream
// shorter than its header claims), a second attempt takes the first frame.
func extractVideoFrame(ctx context.Context, path string) (image.Image, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	var seekArgs []string
	if durationMS, err := probeDuration(ctx, path); err == nil && durationMS > 0 {
		seek := time.Duration(durationMS) * time.Millisecond * 3 / 10
		seekArgs = []string{"-ss", fmt.Sprintf("%.3f", seek.Seconds())}
	}

	stdout, err := runFFmpegFrame(ctx, path, seekArgs)
	if err != nil && len(seekArgs) > 0 {
		logging.Debug("seeked frame extraction failed for %s: %v, retrying from start", path, err)
		stdout, err = runFFmpegFrame(ctx, path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}

	img, _, err := image.Decode(bytes.NewReader(stdout))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode ffmpeg output for %s: %v", ErrDecode, path, err)
	}
	return img, nil
}

func runFFmpegFrame(ctx context.Context, path string, seekArgs []string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, ffmpegTimeout)
	defer cancel()

	// -ss before -i makes ffmpeg seek on the demuxer, which is fast.
	args := append([]string{}, seekArgs...)
	args = append(args,
		"-i", path,
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, stderr.String())
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output for %s", path)
	}

	return stdout.Bytes(), nil
}
