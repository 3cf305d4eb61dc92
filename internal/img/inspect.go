package img

import (
	"fmt"
	"image"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/your-org/mediaforge/internal/fault"
	"github.com/your-org/mediaforge/internal/profile"
)

// Ratio comparison rounds both sides to one decimal digit. This coarse
// tolerance is intentional; tightening it would reject uploads that the
// original profiles were written to accept.
const ratioRoundFactor = 10

// Default search bounds for NearestAspectRatio.
const (
	DefaultAspectMaxW = 16
	DefaultAspectMaxH = 16
)

// Dimensions reads the pixel size of the image at path without decoding the
// full pixel data.
func Dimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Validate checks the source image against the object's constraints. All
// configured rules must pass independently.
func Validate(path string, c *profile.Constraints) error {
	if c == nil {
		return nil
	}

	w, h, err := Dimensions(path)
	if err != nil {
		return fault.Wrap(fault.KindTransform, err, "inspect %s", path)
	}

	if c.Width > 0 && w != c.Width {
		return fault.New(fault.KindInvalidWidth, "width %d, want %d", w, c.Width)
	}
	if c.Height > 0 && h != c.Height {
		return fault.New(fault.KindInvalidHeight, "height %d, want %d", h, c.Height)
	}
	if c.MinWidth > 0 && w < c.MinWidth {
		return fault.New(fault.KindInvalidWidth, "width %d below minimum %d", w, c.MinWidth)
	}
	if c.MinHeight > 0 && h < c.MinHeight {
		return fault.New(fault.KindInvalidHeight, "height %d below minimum %d", h, c.MinHeight)
	}
	if c.Ratio != "" {
		want, err := parseRatio(c.Ratio)
		if err != nil {
			return fault.Wrap(fault.KindInvalidRatio, err, "constraint ratio %q", c.Ratio)
		}
		got := float64(w) / float64(h)
		if roundRatio(got) != roundRatio(want) {
			return fault.New(fault.KindInvalidRatio, "ratio %dx%d does not match %s", w, h, c.Ratio)
		}
	}
	return nil
}

// NearestAspectRatio labels the image with the closest small-integer aspect
// ratio, searching numerators up to maxW and denominators up to maxH. The
// search runs on the portrait orientation and the pair is reversed back for
// landscape sources, so the label always reflects the original orientation.
// Best effort for display only; never used for validation decisions.
func NearestAspectRatio(path string, maxW, maxH int) (string, error) {
	w, h, err := Dimensions(path)
	if err != nil {
		return "", err
	}

	swapped := false
	if w > h {
		w, h = h, w
		swapped = true
	}
	target := float64(w) / float64(h)

	bestJ, bestI := 1, 1
	bestDiff := math.Inf(1)
	for i := 1; i <= maxH; i++ {
		for j := 1; j <= maxW; j++ {
			diff := math.Abs(float64(j)/float64(i) - target)
			if diff < bestDiff {
				bestDiff = diff
				bestJ, bestI = j, i
			}
		}
	}

	if swapped {
		return fmt.Sprintf("%d:%d", bestI, bestJ), nil
	}
	return fmt.Sprintf("%d:%d", bestJ, bestI), nil
}

func parseRatio(s string) (float64, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("ratio %q is not in W/H form", s)
	}
	num, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, fmt.Errorf("ratio numerator: %w", err)
	}
	den, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, fmt.Errorf("ratio denominator: %w", err)
	}
	if den == 0 {
		return 0, fmt.Errorf("ratio %q has zero denominator", s)
	}
	return num / den, nil
}

func roundRatio(v float64) float64 {
	return math.Round(v*ratioRoundFactor) / ratioRoundFactor
}
