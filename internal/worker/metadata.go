package worker

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"lightview/internal/catalog"
	"lightview/internal/logging"
	"lightview/internal/mediatypes"
)

const ffprobeTimeout = 15 * time.Second

// ProbeMedia fills width/height/format and, for videos, duration, codec and
// bitrate on a content record. For PNG images it also extracts the
// "parameters" text chunk that image-generation tools embed.
func ProbeMedia(ctx context.Context, path string, kind mediatypes.Kind, c *catalog.ContentRecord) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileVanished, path)
		}
		return fmt.Errorf("file not accessible: %w", err)
	}

	switch kind {
	case mediatypes.KindImage:
		return probeImage(path, c)
	case mediatypes.KindVideo:
		return probeVideo(ctx, path, c)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, kind)
	}
}

func probeImage(path string, c *catalog.ContentRecord) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileVanished, path)
		}
		return err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}

	c.Width = cfg.Width
	c.Height = cfg.Height
	c.Format = format

	if format == "png" {
		if params, err := pngParameters(path); err == nil && params != "" {
			c.PNGInfo = params
		}
	}

	return nil
}

// pngParameters extracts the "parameters" text chunk from a PNG, the field
// image-generation frontends use for prompt and sampler settings. Both tEXt
// and uncompressed iTXt carriers are checked.
func pngParameters(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sig [8]byte
	if _, err := io.ReadFull(f, sig[:]); err != nil {
		return "", err
	}
	if string(sig[:]) != "\x89PNG\r\n\x1a\n" {
		return "", fmt.Errorf("not a PNG: %s", path)
	}

	for {
		var header [8]byte
		if _, err := io.ReadFull(f, header[:]); err != nil {
			// Truncated files just yield no parameters.
			return "", nil
		}

		length := binary.BigEndian.Uint32(header[:4])
		chunkType := string(header[4:8])

		// Text chunks precede IDAT in every real-world writer; stop at
		// pixel data rather than scanning megabytes for nothing.
		if chunkType == "IDAT" || chunkType == "IEND" {
			return "", nil
		}

		if chunkType != "tEXt" && chunkType != "iTXt" {
			if _, err := f.Seek(int64(length)+4, io.SeekCurrent); err != nil {
				return "", err
			}
			continue
		}

		data := make([]byte, length)
		if _, err := io.ReadFull(f, data); err != nil {
			return "", nil
		}
		if _, err := f.Seek(4, io.SeekCurrent); err != nil { // skip CRC
			return "", err
		}

		keyword, text, ok := parseTextChunk(chunkType, data)
		if ok && keyword == "parameters" {
			return text, nil
		}
	}
}

func parseTextChunk(chunkType string, data []byte) (keyword, text string, ok bool) {
	sep := -1
	for i, b := range data {
		if b == 0 {
			sep = i
			break
		}
	}
	if sep < 0 {
		return "", "", false
	}
	keyword = string(data[:sep])

	switch chunkType {
	case "tEXt":
		return keyword, string(data[sep+1:]), true
	case "iTXt":
		// keyword \0 compression-flag compression-method \0 language \0
		// translated-keyword \0 text
		rest := data[sep+1:]
		if len(rest) < 2 || rest[0] != 0 { // only uncompressed
			return "", "", false
		}
		rest = rest[2:]
		for i := 0; i < 2; i++ {
			idx := -1
			for i, b := range rest {
				if b == 0 {
					idx = i
					break
				}
			}
			if idx < 0 {
				return "", "", false
			}
			rest = rest[idx+1:]
		}
		return keyword, string(rest), true
	}
	return "", "", false
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
}

func probeVideo(ctx context.Context, path string, c *catalog.ContentRecord) error {
	out, err := runFFprobe(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}

	for _, s := range out.Streams {
		if s.CodecType == "video" {
			c.Width = s.Width
			c.Height = s.Height
			c.Codec = s.CodecName
			break
		}
	}

	if name := out.Format.FormatName; name != "" {
		// ffprobe reports demuxer lists like "mov,mp4,m4a,3gp,3g2,mj2".
		c.Format = strings.SplitN(name, ",", 2)[0]
	}
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		c.DurationMS = int64(d * 1000)
	}
	if b, err := strconv.ParseInt(out.Format.BitRate, 10, 64); err == nil {
		c.Bitrate = b
	}

	return nil
}

// probeDuration returns a video's duration in milliseconds, or an error if
// ffprobe cannot determine it.
func probeDuration(ctx context.Context, path string) (int64, error) {
	out, err := runFFprobe(ctx, path)
	if err != nil {
		return 0, err
	}

	d, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("no duration for %s: %w", path, err)
	}
	return int64(d * 1000), nil
}

func runFFprobe(ctx context.Context, path string) (*ffprobeOutput, error) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return nil, fmt.Errorf("ffprobe not found: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, ffprobeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)

	raw, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	var out ffprobeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output for %s: %w", path, err)
	}

	logging.Debug("ffprobe %s: %d streams", path, len(out.Streams))
	return &out, nil
}
