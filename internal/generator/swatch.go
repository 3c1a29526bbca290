package generator

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/colornames"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/jin-gizmo/docma/internal/content"
	"github.com/jin-gizmo/docma/internal/plugins"
)

const maxSwatchSide = 4000

// DefaultSwatchColor fills a swatch when no color option is given.
const DefaultSwatchColor = "grey"

// SwatchOptions are the query options of docma:swatch.
type SwatchOptions struct {
	Width     int    `mapstructure:"width"`
	Height    int    `mapstructure:"height"`
	Color     string `mapstructure:"color"`
	Text      string `mapstructure:"text"`
	TextColor string `mapstructure:"text_color"`
	// Font is accepted for template compatibility. Text is always drawn
	// with the builtin bitmap face.
	Font     string `mapstructure:"font"`
	FontSize int    `mapstructure:"font_size"`
}

// Validate implements validator.
func (o *SwatchOptions) Validate() error {
	switch {
	case o.Width <= 0 || o.Width > maxSwatchSide:
		return fmt.Errorf("width must be between 1 and %d", maxSwatchSide)
	case o.Height <= 0 || o.Height > maxSwatchSide:
		return fmt.Errorf("height must be between 1 and %d", maxSwatchSide)
	case o.FontSize < 0:
		return fmt.Errorf("font_size must not be negative")
	}

	return nil
}

// Swatch renders a solid colour block as a PNG, optionally with centred
// text.
func Swatch(_ context.Context, options map[string]any, _ Env) (content.Content, error) {
	opts := SwatchOptions{Color: DefaultSwatchColor}
	if err := DecodeOptions("swatch", options, &opts); err != nil {
		return content.Content{}, err
	}
	fill, err := ParseColor(opts.Color)
	if err != nil {
		return content.Content{}, err
	}

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	xdraw.Draw(img, img.Bounds(), image.NewUniform(fill), image.Point{}, xdraw.Src)

	if opts.Text != "" {
		ink := color.RGBA{A: 0xff}
		if opts.TextColor != "" {
			if ink, err = ParseColor(opts.TextColor); err != nil {
				return content.Content{}, err
			}
		}
		drawText(img, opts.Text, ink, opts.FontSize)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return content.Content{}, err
	}

	return content.Content{Data: buf.Bytes(), MimeType: "image/png"}, nil
}

// drawText centres text on img using the builtin face scaled by whole
// multiples to approximate size pixels.
func drawText(img *image.RGBA, text string, ink color.Color, size int) {
	face := basicfont.Face7x13
	metrics := face.Metrics()
	d := &font.Drawer{Face: face, Src: image.NewUniform(ink)}
	w := d.MeasureString(text).Ceil()
	h := metrics.Height.Ceil()
	if w == 0 || h == 0 {
		return
	}

	glyphs := image.NewRGBA(image.Rect(0, 0, w, h))
	d.Dst = glyphs
	d.Dot = fixed.P(0, metrics.Ascent.Ceil())
	d.DrawString(text)

	scale := max(1, (size+h/2)/h)
	sw, sh := w*scale, h*scale
	b := img.Bounds()
	x0, y0 := (b.Dx()-sw)/2, (b.Dy()-sh)/2
	xdraw.NearestNeighbor.Scale(img, image.Rect(x0, y0, x0+sw, y0+sh), glyphs, glyphs.Bounds(), xdraw.Over, nil)
}

// ParseColor accepts an SVG colour name or a hex colour with or without a
// leading #: rgb, rrggbb or rrggbbaa.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := colornames.Map[s]; ok {
		return c, nil
	}

	digits := strings.TrimPrefix(s, "#")
	if len(digits) == 3 {
		digits = string([]byte{digits[0], digits[0], digits[1], digits[1], digits[2], digits[2]})
	}
	if len(digits) == 6 {
		digits += "ff"
	}
	raw, err := hex.DecodeString(digits)
	if err != nil || len(raw) != 4 {
		return color.RGBA{}, fmt.Errorf("bad color: %s", s)
	}

	return color.RGBA{R: raw[0], G: raw[1], B: raw[2], A: raw[3]}, nil
}

func loadSwatch(reg *plugins.Registrar) error {
	return reg.Add(Generator(Swatch), plugins.Names("swatch"), plugins.Types(plugins.TypeGenerator))
}
