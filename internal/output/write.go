// Package output writes the rendered map and its optional side outputs.
package output

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/rs/zerolog/log"
)

// IOWriteError reports an output that could not be written.
type IOWriteError struct {
	Err  error
	Path string
}

func (e *IOWriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *IOWriteError) Unwrap() error { return e.Err }

// Format is an image encoding.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	WebP Format = "webp"
)

// FormatFromPath picks the encoding from the file extension, PNG by default.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return JPEG
	case ".webp":
		return WebP
	default:
		return PNG
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case JPEG:
		return "image/jpeg"
	case WebP:
		return "image/webp"
	default:
		return "image/png"
	}
}

// Encode writes img to w. For PNG the dpi is stored in a pHYs chunk.
func Encode(w io.Writer, img image.Image, format Format, dpi int) error {
	switch format {
	case JPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	case WebP:
		return webp.Encode(w, img, &webp.Options{Lossless: false, Quality: 90})
	default:
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return err
		}

		data := buf.Bytes()
		if dpi > 0 {
			data = withPhys(data, dpi)
		}

		_, err := w.Write(data)
		return err
	}
}

// Write encodes img into path, replacing any existing file.
// The image goes to a temporary file first, so a failed run never leaves a partial output.
func Write(path string, img image.Image, dpi int) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return &IOWriteError{Path: path, Err: err}
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := Encode(tmp, img, FormatFromPath(path), dpi); err != nil {
		_ = tmp.Close()
		return &IOWriteError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &IOWriteError{Path: path, Err: err}
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return &IOWriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &IOWriteError{Path: path, Err: err}
	}

	log.Info().
		Str("path", path).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Int("dpi", dpi).
		Msg("Map image written")

	return nil
}

// pngHeaderEnd is the offset after the signature and the IHDR chunk.
const pngHeaderEnd = 8 + 4 + 4 + 13 + 4

// withPhys inserts a pHYs chunk with the resolution in pixels per meter after IHDR.
func withPhys(data []byte, dpi int) []byte {
	if len(data) < pngHeaderEnd {
		return data
	}

	ppm := uint32(float64(dpi)/0.0254 + 0.5)

	chunk := make([]byte, 0, 4+4+9+4)
	chunk = binary.BigEndian.AppendUint32(chunk, 9)
	chunk = append(chunk, "pHYs"...)
	chunk = binary.BigEndian.AppendUint32(chunk, ppm)
	chunk = binary.BigEndian.AppendUint32(chunk, ppm)
	chunk = append(chunk, 1) // unit: meter
	chunk = binary.BigEndian.AppendUint32(chunk, crc32.ChecksumIEEE(chunk[4:]))

	out := make([]byte, 0, len(data)+len(chunk))
	out = append(out, data[:pngHeaderEnd]...)
	out = append(out, chunk...)
	out = append(out, data[pngHeaderEnd:]...)

	return out
}
