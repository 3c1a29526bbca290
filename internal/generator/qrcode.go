package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/jin-gizmo/docma/internal/content"
	"github.com/jin-gizmo/docma/internal/plugins"
)

const (
	defaultQRSize = 256
	maxQRSize     = 4000
)

var qrLevels = map[string]qrcode.RecoveryLevel{
	"L": qrcode.Low,
	"M": qrcode.Medium,
	"Q": qrcode.High,
	"H": qrcode.Highest,
}

// QRCodeOptions are the query options of docma:qrcode.
type QRCodeOptions struct {
	Text string `mapstructure:"text"`
	FG   string `mapstructure:"fg"`
	BG   string `mapstructure:"bg"`
	// Size is the image side in pixels.
	Size int `mapstructure:"size"`
	// Level is the error correction level: L, M, Q or H.
	Level  string `mapstructure:"level"`
	Border bool   `mapstructure:"border"`
}

// Validate implements validator.
func (o *QRCodeOptions) Validate() error {
	switch {
	case o.Text == "":
		return fmt.Errorf("text is required")
	case o.Size <= 0 || o.Size > maxQRSize:
		return fmt.Errorf("size must be between 1 and %d", maxQRSize)
	}
	if _, ok := qrLevels[strings.ToUpper(o.Level)]; !ok {
		return fmt.Errorf("level must be one of L, M, Q, H")
	}

	return nil
}

// QRCode renders text as a QR code PNG.
func QRCode(_ context.Context, options map[string]any, _ Env) (content.Content, error) {
	opts := QRCodeOptions{FG: "black", BG: "white", Size: defaultQRSize, Level: "M", Border: true}
	if err := DecodeOptions("qrcode", options, &opts); err != nil {
		return content.Content{}, err
	}
	fg, err := ParseColor(opts.FG)
	if err != nil {
		return content.Content{}, err
	}
	bg, err := ParseColor(opts.BG)
	if err != nil {
		return content.Content{}, err
	}

	qr, err := qrcode.New(opts.Text, qrLevels[strings.ToUpper(opts.Level)])
	if err != nil {
		return content.Content{}, err
	}
	qr.ForegroundColor = fg
	qr.BackgroundColor = bg
	qr.DisableBorder = !opts.Border

	data, err := qr.PNG(opts.Size)
	if err != nil {
		return content.Content{}, err
	}

	return content.Content{Data: data, MimeType: "image/png"}, nil
}

func loadQRCode(reg *plugins.Registrar) error {
	return reg.Add(Generator(QRCode), plugins.Names("qrcode"), plugins.Types(plugins.TypeGenerator))
}
