package analysis

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	// Decoders for uploads that may need scaling or re-encoding.
	_ "image/gif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"

	"github.com/mkkukul/Elif-Hoca/internal/llm"
)

// MIME types the model accepts as-is.
var nativeImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
	"image/heif": true,
}

const mimePDF = "application/pdf"

// DefaultMaxImagePx is the default longest side of an image sent to the model.
const DefaultMaxImagePx = 3072

// MaxDecodeMegapixels bounds the pixel count of an uploaded image. Larger images are
// rejected from their header, before any pixel data is decoded.
const MaxDecodeMegapixels = 50

// ErrUnsupportedFile is wrapped by Prepare for uploads that are neither images nor PDFs.
var ErrUnsupportedFile = fmt.Errorf("only images and PDF documents are accepted")

// Prepare sniffs the upload and turns it into a document the model accepts.
// Raster images whose longest side exceeds maxPx are downscaled and re-encoded as JPEG;
// decodable images in formats the model does not take are re-encoded as PNG.
func Prepare(data []byte, maxPx int) (llm.Document, error) {
	if len(data) == 0 {
		return llm.Document{}, newError(KindUnsupportedFile, fmt.Errorf("empty upload"))
	}

	mt := mimetype.Detect(data)
	mime := strings.ToLower(strings.SplitN(mt.String(), ";", 2)[0])

	if mime == mimePDF {
		return llm.Document{MIMEType: mimePDF, Data: data}, nil
	}
	if !strings.HasPrefix(mime, "image/") {
		return llm.Document{}, newError(KindUnsupportedFile, fmt.Errorf("%w (got %s)", ErrUnsupportedFile, mime))
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		// Not decodable here (e.g. HEIC); forward untouched when the model takes it.
		if nativeImageTypes[mime] {
			return llm.Document{MIMEType: mime, Data: data}, nil
		}
		return llm.Document{}, newError(KindUnsupportedFile, fmt.Errorf("%w (got %s)", ErrUnsupportedFile, mime))
	}

	if px := int64(cfg.Width) * int64(cfg.Height); px > MaxDecodeMegapixels*1_000_000 {
		return llm.Document{}, newError(KindTooLarge,
			fmt.Errorf("image is %dx%d pixels, the limit is %d megapixels", cfg.Width, cfg.Height, MaxDecodeMegapixels))
	}

	tooLarge := maxPx > 0 && (cfg.Width > maxPx || cfg.Height > maxPx)
	if !tooLarge && nativeImageTypes[mime] {
		return llm.Document{MIMEType: mime, Data: data}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return llm.Document{}, newError(KindUnsupportedFile, fmt.Errorf("decode %s image: %w", format, err))
	}

	if tooLarge {
		img = downscale(img, maxPx)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			return llm.Document{}, newError(KindInternal, fmt.Errorf("encode jpeg: %w", err))
		}
		return llm.Document{MIMEType: "image/jpeg", Data: buf.Bytes()}, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return llm.Document{}, newError(KindInternal, fmt.Errorf("encode png: %w", err))
	}
	return llm.Document{MIMEType: "image/png", Data: buf.Bytes()}, nil
}

// downscale resizes img so its longest side equals maxPx, keeping the aspect ratio.
func downscale(img image.Image, maxPx int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	nw, nh := maxPx, maxPx
	if w >= h {
		nh = h * maxPx / w
	} else {
		nw = w * maxPx / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
