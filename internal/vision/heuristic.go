// Package vision implements the pixel heuristic that turns a camera frame
// into per-region snow coverage estimates.
package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"

	// Register the frame formats the camera network serves.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"gonum.org/v1/gonum/stat"

	"github.com/curbwatch/curbwatch/internal/types"
	"github.com/curbwatch/curbwatch/pkg/config"
)

var (
	// ErrImageUnavailable indicates missing or undecodable image bytes.
	ErrImageUnavailable = errors.New("image unavailable")

	// ErrAnalysisFailed indicates the image decoded but pixel statistics
	// could not be computed.
	ErrAnalysisFailed = errors.New("image analysis failed")
)

// Heuristic scores frames for snow coverage.  A pixel counts as snow-like
// when it is bright and nearly colorless, which isolates snow from pavement
// markings and vehicles.  All thresholds come from configuration.
type Heuristic struct {
	cfg config.VisionData
}

// Result carries the per-region scores plus the frame geometry the
// presentation layer needs to draw region overlays.
type Result struct {
	Scores        map[string]types.SnowScore
	Width         int
	Height        int
	CurbTop       int // first pixel row of the curb band
	MeanLuminance float64
	LowLight      bool
}

// NewHeuristic creates a snow heuristic with the given thresholds
func NewHeuristic(cfg config.VisionData) *Heuristic {
	return &Heuristic{cfg: cfg}
}

// Analyze decodes a frame and returns one SnowScore per region.  The curb
// region is the bottom band of the frame (closest to the sidewalk, highest
// detection priority); the ground region is the full frame.
func (h *Heuristic) Analyze(data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image data", ErrImageUnavailable)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrImageUnavailable, err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: zero-sized image (%dx%d)", ErrAnalysisFailed, width, height)
	}

	luminance := make([]float64, 0, width*height)
	saturation := make([]float64, 0, width*height)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r16, g16, b16, _ := img.At(x, y).RGBA()
			r := float64(r16 >> 8)
			g := float64(g16 >> 8)
			b := float64(b16 >> 8)

			luminance = append(luminance, 0.299*r+0.587*g+0.114*b)
			saturation = append(saturation, hsvSaturation(r, g, b))
		}
	}

	meanLum := stat.Mean(luminance, nil)

	brightness, satCeiling, lowLight := h.effectiveThresholds(meanLum)

	curbBand := int(float64(height) * h.cfg.CurbBandFraction)
	if curbBand < 1 {
		curbBand = 1
	}
	curbTop := height - curbBand

	var groundSnow, curbSnow, curbTotal int
	for i := range luminance {
		snowLike := luminance[i] > brightness && saturation[i] < satCeiling
		if snowLike {
			groundSnow++
		}
		if i/width >= curbTop {
			curbTotal++
			if snowLike {
				curbSnow++
			}
		}
	}

	scores := map[string]types.SnowScore{
		types.RegionCurb: {
			Region:   types.RegionCurb,
			Coverage: float64(curbSnow) / float64(curbTotal),
			LowLight: lowLight,
		},
		types.RegionGround: {
			Region:   types.RegionGround,
			Coverage: float64(groundSnow) / float64(len(luminance)),
			LowLight: lowLight,
		},
	}

	return &Result{
		Scores:        scores,
		Width:         width,
		Height:        height,
		CurbTop:       curbTop,
		MeanLuminance: meanLum,
		LowLight:      lowLight,
	}, nil
}

// effectiveThresholds rescales the brightness/saturation gates on dim frames.
// The scaling is linear in mean luminance, so darker frames always get a
// proportionally lower brightness bar -- normalizing for exposure without
// defeating detection at night.
func (h *Heuristic) effectiveThresholds(meanLum float64) (brightness, satCeiling float64, lowLight bool) {
	brightness = h.cfg.BrightnessThreshold
	satCeiling = h.cfg.SaturationThreshold

	if meanLum >= h.cfg.NightLuminance || h.cfg.NightLuminance <= 0 {
		return brightness, satCeiling, false
	}

	scale := meanLum / h.cfg.NightLuminance
	brightness = math.Max(h.cfg.MinBrightness, brightness*scale)

	widen := h.cfg.NightLuminance / math.Max(meanLum, 1)
	if widen > 1.5 {
		widen = 1.5
	}
	satCeiling *= widen

	return brightness, satCeiling, true
}

// RegionRect returns the pixel rectangle for a region tag, for overlay
// rendering on the analyzed frame.
func (r *Result) RegionRect(region string) types.RegionRect {
	rect := types.RegionRect{Region: region, X1: r.Width, Y1: r.Height}
	if region == types.RegionCurb {
		rect.Y0 = r.CurbTop
	}
	return rect
}

// hsvSaturation returns the HSV saturation channel on a 0-255 scale.
func hsvSaturation(r, g, b float64) float64 {
	max := math.Max(r, math.Max(g, b))
	if max == 0 {
		return 0
	}
	min := math.Min(r, math.Min(g, b))
	return (max - min) * 255 / max
}
