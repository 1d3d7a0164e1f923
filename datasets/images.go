package datasets

import (
	"bytes"
	"image"
	"image/jpeg"
	"math/rand"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Modcrop crops an image down so both dimensions are multiples of scale.
// Used in the validation/test phase so downsampled outputs align exactly.
func Modcrop(img image.Image, scale int) image.Image {
	if scale <= 1 {
		return img
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	cw := w - w%scale
	ch := h - h%scale
	if cw == w && ch == h {
		return img
	}
	return imaging.Crop(img, image.Rect(0, 0, cw, ch))
}

// CompressArtifacts introduces synthetic JPEG compression artifacts by
// encoding the image at the given quality and decoding it again.
func CompressArtifacts(img image.Image, quality int) (image.Image, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, errors.Wrap(err, "failed to JPEG-encode for artifact corruption")
	}
	corrupted, err := jpeg.Decode(&buf)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode corrupted JPEG")
	}
	return corrupted, nil
}

// augmentPair applies the same randomly chosen flip/rotation to both images
// of a training pair so their alignment survives augmentation.
func augmentPair(a, b image.Image, useFlip, useRot bool, rng *rand.Rand) (image.Image, image.Image) {
	if useFlip && rng.Intn(2) == 1 {
		a = imaging.FlipH(a)
		b = imaging.FlipH(b)
	}
	if useRot {
		if rng.Intn(2) == 1 {
			a = imaging.FlipV(a)
			b = imaging.FlipV(b)
		}
		if rng.Intn(2) == 1 {
			a = imaging.Rotate90(a)
			b = imaging.Rotate90(b)
		}
	}
	return a, b
}
