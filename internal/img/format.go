package img

import (
	"fmt"
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/avif"
	"github.com/gen2brain/webp"

	"github.com/your-org/mediaforge/internal/fault"
)

// Format identifies an image codec.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
	FormatAVIF Format = "avif"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

// ParseOutputFormat validates an explicit output format request. Only the
// codecs we can encode are accepted; anything else is an input error.
func ParseOutputFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatWebP, FormatAVIF, FormatJPEG, FormatPNG:
		return Format(s), nil
	default:
		return "", fault.New(fault.KindInvalidOutputFormat, "unsupported output format %q", s)
	}
}

// MimeType maps a Format to its content type.
func (f Format) MimeType() string {
	return "image/" + string(f)
}

// detectFormat sniffs the codec of the file at path. The imaging import
// registers jpeg/png/gif/bmp/tiff decoders; webp and avif register themselves.
func detectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	_, name, err := image.DecodeConfig(f)
	if err != nil {
		return "", fmt.Errorf("decode config %s: %w", path, err)
	}
	return Format(name), nil
}

// encode writes m to w in the given format. Quality is 1-100; zero selects
// the encoder default. PNG and GIF have no scalar quality and ignore it.
func encode(w io.Writer, m image.Image, format Format, quality int) error {
	switch format {
	case FormatJPEG:
		if quality <= 0 {
			quality = 95
		}
		return imaging.Encode(w, m, imaging.JPEG, imaging.JPEGQuality(quality))
	case FormatPNG:
		return imaging.Encode(w, m, imaging.PNG)
	case FormatGIF:
		return imaging.Encode(w, m, imaging.GIF)
	case FormatBMP:
		return imaging.Encode(w, m, imaging.BMP)
	case FormatTIFF:
		return imaging.Encode(w, m, imaging.TIFF)
	case FormatWebP:
		opts := webp.Options{Quality: webp.DefaultQuality}
		if quality > 0 {
			opts.Quality = quality
		}
		return webp.Encode(w, m, opts)
	case FormatAVIF:
		opts := avif.Options{Quality: avif.DefaultQuality, Speed: avif.DefaultSpeed}
		if quality > 0 {
			opts.Quality = quality
		}
		return avif.Encode(w, m, opts)
	default:
		return fmt.Errorf("no encoder for format %q", format)
	}
}

// encodeToFile encodes m into path, truncating any existing file.
func encodeToFile(path string, m image.Image, format Format, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := encode(f, m, format, quality); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
