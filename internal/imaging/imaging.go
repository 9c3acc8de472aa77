// Package imaging normalises product and receipt photos before storage.
package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Default limits for stored photos.
const (
	DefaultMaxDimension = 1600
	DefaultQuality      = 85
)

var accepted = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Options bounds the normalised output.
type Options struct {
	MaxDimension int
	Quality      int
}

// Photo is a normalised JPEG ready to be stored.
type Photo struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
	// Hash is the hex SHA-256 of Data.
	Hash string
}

// Ext returns the file extension for the photo's format.
func (p *Photo) Ext() string { return ".jpg" }

// Normalize sniffs the upload, rejects anything but JPEG, PNG or WebP,
// shrinks it to fit opts.MaxDimension and re-encodes it as JPEG.
func Normalize(r io.Reader, opts Options) (*Photo, error) {
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = DefaultMaxDimension
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}

	detected := http.DetectContentType(data)
	if !accepted[detected] {
		return nil, fmt.Errorf("unsupported image format %s", detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	img = fit(img, opts.MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}

	sum := sha256.Sum256(buf.Bytes())
	b := img.Bounds()
	return &Photo{
		Data:   buf.Bytes(),
		MIME:   "image/jpeg",
		Width:  b.Dx(),
		Height: b.Dy(),
		Hash:   hex.EncodeToString(sum[:]),
	}, nil
}

// fit scales img down with Catmull-Rom so its longer side is at most limit.
// Smaller images are returned unchanged.
func fit(img image.Image, limit int) image.Image {
	src := img.Bounds()
	w, h := src.Dx(), src.Dy()
	if w <= limit && h <= limit {
		return img
	}

	nw, nh := limit, h*limit/w
	if h > w {
		nw, nh = w*limit/h, limit
	}
	nw, nh = at1(nw), at1(nh)

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Over, nil)
	return dst
}

func at1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
