// Package imaging derives a compact fingerprint from an arbitrary photo:
// dominant colors, brightness, contrast and palette saturation
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"math/rand"
	"runtime"

	colorful "github.com/lucasb-eyer/go-colorful"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/semaphore"

	"github.com/kass/go-aqi-viz/pkg/models"
)

// ErrUnsupportedImage is returned when the input is not a decodable raster image
var ErrUnsupportedImage = errors.New("unsupported image")

// ErrImageTooLarge is returned when the declared dimensions exceed the pixel limit
var ErrImageTooLarge = errors.New("image too large")

const (
	DefaultSeed      int64 = 42
	DefaultSize            = 150
	DefaultClusters        = 5
	DefaultMaxIter         = 300
	DefaultTolerance       = 1e-4
	DefaultMaxPixels int64 = 50_000_000
)

// Options configures an Extractor. Zero values select the defaults.
// Seed drives k-means++ initialisation; a fixed seed gives reproducible palettes.
type Options struct {
	Seed      int64
	Size      int
	Clusters  int
	MaxIter   int
	Tolerance float64
	// Workers bounds how many extractions run at once
	Workers int
	// MaxPixels rejects images whose header declares more pixels than this
	MaxPixels int64
}

// Extractor computes image fingerprints. It is safe for concurrent use.
type Extractor struct {
	seed      int64
	size      int
	clusters  int
	maxIter   int
	tolerance float64
	maxPixels int64
	slots     *semaphore.Weighted
}

// NewExtractor creates an extractor from opts
func NewExtractor(opts Options) *Extractor {
	e := &Extractor{
		seed:      opts.Seed,
		size:      opts.Size,
		clusters:  opts.Clusters,
		maxIter:   opts.MaxIter,
		tolerance: opts.Tolerance,
		maxPixels: opts.MaxPixels,
	}
	if e.seed == 0 {
		e.seed = DefaultSeed
	}
	if e.size <= 0 {
		e.size = DefaultSize
	}
	if e.clusters <= 0 {
		e.clusters = DefaultClusters
	}
	if e.maxIter <= 0 {
		e.maxIter = DefaultMaxIter
	}
	if e.tolerance <= 0 {
		e.tolerance = DefaultTolerance
	}
	if e.maxPixels <= 0 {
		e.maxPixels = DefaultMaxPixels
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	e.slots = semaphore.NewWeighted(int64(workers))
	return e
}

// Extract decodes r and fingerprints the image. The header is checked against
// the pixel limit before any pixel data is decoded, and the full decode runs
// inside a worker slot. Waiting for a slot gives up when ctx is done.
func (e *Extractor) Extract(ctx context.Context, r io.Reader) (models.Fingerprint, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return models.Fingerprint{}, fmt.Errorf("failed to read image: %w", err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return models.Fingerprint{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return models.Fingerprint{}, fmt.Errorf("%w: %s image has no pixels", ErrUnsupportedImage, format)
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > e.maxPixels {
		return models.Fingerprint{}, fmt.Errorf("%w: %dx%d %s exceeds %d pixels",
			ErrImageTooLarge, cfg.Width, cfg.Height, format, e.maxPixels)
	}

	if err := e.slots.Acquire(ctx, 1); err != nil {
		return models.Fingerprint{}, fmt.Errorf("waiting for extraction slot: %w", err)
	}
	defer e.slots.Release(1)

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return models.Fingerprint{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return e.ExtractImage(img), nil
}

// ExtractImage fingerprints an already decoded image
func (e *Extractor) ExtractImage(img image.Image) models.Fingerprint {
	canvas := e.resample(img)

	n := e.size * e.size
	pixels := make([]vec3, 0, n)
	luma := make([]float64, 0, n)
	for i := 0; i < len(canvas.Pix); i += 4 {
		r, g, b := canvas.Pix[i], canvas.Pix[i+1], canvas.Pix[i+2]
		pixels = append(pixels, vec3{float64(r), float64(g), float64(b)})
		luma = append(luma, float64(gray(r, g, b)))
	}

	brightness, contrast := meanStd(luma)
	palette := e.palette(pixels)

	return models.Fingerprint{
		Palette:    palette,
		Brightness: brightness / 255.0,
		Contrast:   contrast / 255.0,
		Saturation: paletteSaturation(palette),
	}
}

// resample scales img to the working resolution, flattening transparency onto black
func (e *Extractor) resample(img image.Image) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, e.size, e.size))
	draw.Draw(canvas, canvas.Bounds(), image.Black, image.Point{}, draw.Src)
	xdraw.CatmullRom.Scale(canvas, canvas.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return canvas
}

// palette clusters pixel colors and returns the centroids, most populous first
func (e *Extractor) palette(pixels []vec3) []models.RGB {
	k := distinctColors(pixels, e.clusters)
	r := rand.New(rand.NewSource(e.seed))
	clusters := kmeans(pixels, k, e.maxIter, e.tolerance, r)

	palette := make([]models.RGB, 0, len(clusters))
	for _, c := range clusters {
		palette = append(palette, models.RGB{
			R: channel(c.centroid[0]),
			G: channel(c.centroid[1]),
			B: channel(c.centroid[2]),
		})
	}
	return palette
}

// distinctColors counts distinct colors up to limit
func distinctColors(pixels []vec3, limit int) int {
	seen := make(map[vec3]struct{}, limit+1)
	for _, p := range pixels {
		seen[p] = struct{}{}
		if len(seen) >= limit {
			return limit
		}
	}
	return len(seen)
}

// gray is the ITU-R 601-2 luma transform used for 8-bit grayscale
func gray(r, g, b uint8) uint8 {
	return uint8((uint32(r)*299 + uint32(g)*587 + uint32(b)*114) / 1000)
}

// meanStd returns the mean and population standard deviation of values
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	sq := 0.0
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

// paletteSaturation is the mean HSV saturation of the palette colors
func paletteSaturation(palette []models.RGB) float64 {
	if len(palette) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range palette {
		_, s, _ := colorful.Color{
			R: float64(c.R) / 255.0,
			G: float64(c.G) / 255.0,
			B: float64(c.B) / 255.0,
		}.Hsv()
		sum += s
	}
	return sum / float64(len(palette))
}

func channel(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
