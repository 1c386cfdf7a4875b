package cli

import (
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/yeqown/go-qrcode/v2"
)

const (
	qrPadding   = 8 // pixels around the code
	qrBlockSize = 4 // pixels per module
)

var (
	qrBackground = color.Gray{Y: 0xff}
	qrForeground = color.Gray{Y: 0x00}
)

// pngWriter renders a QR matrix as a two-color paletted PNG. The library's
// bundled writers live in separate modules; a paletted image keeps the
// output small enough to drop in a terminal image viewer or an email.
type pngWriter struct {
	out io.Writer
}

func (w pngWriter) Write(mat qrcode.Matrix) error {
	width := mat.Width()*qrBlockSize + 2*qrPadding
	height := width

	img := image.NewPaletted(
		image.Rect(0, 0, width, height),
		color.Palette{qrBackground, qrForeground},
	)
	bg := uint8(img.Palette.Index(qrBackground))
	fg := uint8(img.Palette.Index(qrForeground))

	fill := func(x1, y1, x2, y2 int, c uint8) {
		for x := x1; x < x2; x++ {
			for y := y1; y < y2; y++ {
				img.Pix[img.PixOffset(x, y)] = c
			}
		}
	}

	fill(0, 0, width, height, bg)
	mat.Iterate(qrcode.IterDirection_COLUMN, func(x, y int, v qrcode.QRValue) {
		if v.IsSet() {
			fill(
				x*qrBlockSize+qrPadding, y*qrBlockSize+qrPadding,
				(x+1)*qrBlockSize+qrPadding, (y+1)*qrBlockSize+qrPadding,
				fg,
			)
		}
	})

	encoder := png.Encoder{CompressionLevel: png.BestCompression}
	return encoder.Encode(w.out, img)
}

func (w pngWriter) Close() error { return nil }

// writeQR encodes text as a QR code PNG on out.
func writeQR(out io.Writer, text string) error {
	code, err := qrcode.New(text)
	if err != nil {
		return err
	}
	return code.Save(pngWriter{out: out})
}
