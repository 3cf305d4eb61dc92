package img

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/your-org/mediaforge/internal/fault"
	"github.com/your-org/mediaforge/internal/profile"
)

// Derived is one transform output written next to the source.
type Derived struct {
	LocalPath string
	Name      string
	MimeType  string
}

// Result describes everything Process wrote or rewrote on disk.
type Result struct {
	// SourcePath is unchanged; the file is re-encoded in place when an
	// explicit output format was requested.
	SourcePath string
	SourceMime string
	Derived    []Derived
}

// Engine derives output variants from a single decoded source image.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Process decodes the source once and walks the transform list in order.
// Resize and blur accumulate on a working image carried forward between
// entries; every non-empty-name entry triggers its own encode, named
// {sourceFilename}_{transformName} in the source's directory so cleanup finds
// all variants together. When outputFormat is set the source itself is
// re-encoded in place; empty outputFormat falls back to the source codec.
func (e *Engine) Process(srcPath string, transforms []profile.Transform, outputFormat string) (*Result, error) {
	srcFormat, err := detectFormat(srcPath)
	if err != nil {
		return nil, fault.Wrap(fault.KindTransform, err, "detect source format")
	}

	format := srcFormat
	if outputFormat != "" {
		format, err = ParseOutputFormat(outputFormat)
		if err != nil {
			return nil, err
		}
	}

	src, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fault.Wrap(fault.KindTransform, err, "decode %s", srcPath)
	}

	res := &Result{
		SourcePath: srcPath,
		SourceMime: format.MimeType(),
	}

	if outputFormat != "" {
		if err := encodeToFile(srcPath, src, format, 0); err != nil {
			return nil, fault.Wrap(fault.KindTransform, err, "re-encode source as %s", format)
		}
	}

	working := src
	for _, t := range transforms {
		if t.Name == "" {
			continue
		}
		working = applyResize(working, t)
		if t.Blur > 0 {
			working = imaging.Blur(working, t.Blur)
		}

		dstPath := srcPath + "_" + t.Name
		if err := encodeToFile(dstPath, working, format, t.Quality); err != nil {
			return res, fault.Wrap(fault.KindTransform, err, "encode transform %q", t.Name)
		}
		res.Derived = append(res.Derived, Derived{
			LocalPath: dstPath,
			Name:      t.Name,
			MimeType:  format.MimeType(),
		})
	}

	return res, nil
}

// applyResize implements the resize policy: both dimensions force an exact
// resize (aspect ratio not preserved), a single dimension scales the other
// proportionally, neither leaves the image untouched.
func applyResize(m image.Image, t profile.Transform) image.Image {
	switch {
	case t.Width > 0 && t.Height > 0:
		return imaging.Resize(m, t.Width, t.Height, imaging.Lanczos)
	case t.Width > 0:
		return imaging.Resize(m, t.Width, 0, imaging.Lanczos)
	case t.Height > 0:
		return imaging.Resize(m, 0, t.Height, imaging.Lanczos)
	default:
		return m
	}
}
