package imagegen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	fontLarge   font.Face
	fontRegular font.Face
	fontOnce    sync.Once
	fontErr     error

	// font faces keep per-glyph scratch buffers and are not safe for concurrent use
	drawMu sync.Mutex
)

func loadFonts() {
	fontOnce.Do(func() {
		regularFont, err := opentype.Parse(goregular.TTF)
		if err != nil {
			fontErr = fmt.Errorf("parse goregular: %w", err)
			return
		}

		fontRegular, err = opentype.NewFace(regularFont, &opentype.FaceOptions{
			Size:    36,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			fontErr = fmt.Errorf("create regular face: %w", err)
			return
		}

		// Medium weight for the large temperature readout
		mediumFont, err := opentype.Parse(gomedium.TTF)
		if err != nil {
			fontErr = fmt.Errorf("parse gomedium: %w", err)
			return
		}

		fontLarge, err = opentype.NewFace(mediumFont, &opentype.FaceOptions{
			Size:    120,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			fontErr = fmt.Errorf("create large face: %w", err)
			return
		}
	})
}

// OGImageData contains the dynamic data for the OG image.
type OGImageData struct {
	Temperature float64 // current temperature in °F
	HasReading  bool
	Records     string // e.g. "Low 12.0°F · High 96.1°F"
	Since       string // e.g. "Collecting Data Since September 29, 2021"
	Site        string
}

// OGImageCache caches the generated OG image for a short period.
type OGImageCache struct {
	mu        sync.RWMutex
	data      []byte
	expiresAt time.Time
	cacheTTL  time.Duration
}

func NewOGImageCache(ttl time.Duration) *OGImageCache {
	return &OGImageCache{
		cacheTTL: ttl,
	}
}

// Get returns the cached OG image if still valid.
func (c *OGImageCache) Get() ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.data == nil || time.Now().After(c.expiresAt) {
		return nil, false
	}
	return c.data, true
}

func (c *OGImageCache) Set(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = data
	c.expiresAt = time.Now().Add(c.cacheTTL)
}

// Invalidate drops the cached image; the scheduler calls it after each refresh.
func (c *OGImageCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
}

// OGWidth and OGHeight are the standard Open Graph image dimensions.
const (
	OGWidth  = 1200
	OGHeight = 630
)

// GenerateOGImage draws the share card: a dark gradient with the current reading
// and the record callouts.
func GenerateOGImage(data OGImageData) ([]byte, error) {
	loadFonts()
	if fontErr != nil {
		return nil, fmt.Errorf("load fonts: %w", fontErr)
	}

	img := image.NewRGBA(image.Rect(0, 0, OGWidth, OGHeight))
	drawBackground(img)
	drawMu.Lock()
	drawTextOverlay(img, data)
	drawMu.Unlock()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode OG image: %w", err)
	}
	return buf.Bytes(), nil
}

// drawBackground fills a vertical dark-blue gradient with a cyan accent bar at the
// bottom in the dashboard's primary colour.
func drawBackground(img *image.RGBA) {
	for y := 0; y < OGHeight; y++ {
		progress := float64(y) / float64(OGHeight)
		r := uint8(20 + progress*10)
		g := uint8(20 + progress*15)
		b := uint8(40 + progress*20)
		for x := 0; x < OGWidth; x++ {
			img.SetRGBA(x, y, color.RGBA{r, g, b, 255})
		}
	}

	accent := color.RGBA{56, 250, 251, 255}
	for y := OGHeight - 12; y < OGHeight; y++ {
		for x := 0; x < OGWidth; x++ {
			img.SetRGBA(x, y, accent)
		}
	}
}

func drawTextOverlay(img *image.RGBA, data OGImageData) {
	white := color.RGBA{255, 255, 255, 255}
	lightGray := color.RGBA{200, 200, 200, 255}

	tempStr := "--°F"
	if data.HasReading {
		tempStr = fmt.Sprintf("%.0f°F", data.Temperature)
	}
	drawText(img, tempStr, 60, 220, white, fontLarge)

	if data.Records != "" {
		drawText(img, data.Records, 60, OGHeight-200, white, fontRegular)
	}
	if data.Since != "" {
		drawText(img, data.Since, 60, OGHeight-140, lightGray, fontRegular)
	}
	if data.Site != "" {
		drawText(img, data.Site, 60, OGHeight-50, lightGray, fontRegular)
	}
}

func drawText(img *image.RGBA, text string, x, y int, col color.Color, face font.Face) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
