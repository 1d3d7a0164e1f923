package datasets

import (
	"image"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	timage "github.com/gomlx/gomlx/pkg/core/tensors/images"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// DownsampleConfig configures a DownsampleDataset.
type DownsampleConfig struct {
	// GTRoot and LQRoot locate the high-quality and low-quality corpora.
	// With DataType "dir" they are directory roots; with "lmdb" they are
	// LMDB environment paths whose values are encoded images.
	GTRoot, LQRoot string

	// DataType selects the image store backend: "dir" (default) or "lmdb".
	DataType string

	// Scale is the downsampling factor between GT and LQ (e.g. 2 or 4).
	Scale int

	// TargetSize is the LQ-side crop size used during training. The GT
	// crop is TargetSize*Scale.
	TargetSize int

	// Train enables random crops and augmentation. Outside training the
	// GT image is only modcropped to a multiple of Scale.
	Train bool

	// DoCrop selects aligned random crops; when false both images are
	// resized to the target sizes instead.
	DoCrop bool

	// UseFlip and UseRot enable flip and rotation augmentation.
	UseFlip, UseRot bool

	// CompressionArtifacts runs the GT image through a JPEG round-trip at
	// a random quality in [15, 100) before tensor conversion.
	CompressionArtifacts bool

	// MismatchedSizesOK allows the GT and LQ corpora to have different
	// numbers of images. Off by default: a mismatch is almost always a
	// corpus preparation mistake.
	MismatchedSizesOK bool

	// BatchSize used by Yield. Defaults to 1; training-phase batches
	// larger than 1 are fine because all crops share the same size.
	BatchSize int

	// DType of the yielded tensors. Defaults to Float32.
	DType dtypes.DType

	// Seed for the augmentation RNG. Zero means time-based.
	Seed int64
}

// DownsampleSample is one training pair. The goal is to reuse the existing
// super-resolution training loop in reverse: that loop treats LQ as the
// model input and GT as the expected output, so here LQ carries the
// (optionally JPEG-corrupted) high-quality image and GT carries the
// low-quality image. PIX is the manually downsampled high-quality image and
// serves as the reference for pixel losses.
type DownsampleSample struct {
	LQ  *tensors.Tensor // [1, gtSize, gtSize, 3] during training
	GT  *tensors.Tensor // [1, targetSize, targetSize, 3] during training
	PIX *tensors.Tensor // same shape as GT

	LQPath, GTPath string
}

// DownsampleDataset reads an unpaired HQ and LQ image per index, clips both
// to the model's input sizes and derives a downsampled copy of the HQ
// image. It implements train.Dataset.
type DownsampleDataset struct {
	cfg    DownsampleConfig
	gt, lq ImageStore

	toTensor *timage.ToTensorConfig

	mu   sync.Mutex
	rng  *rand.Rand
	next int
}

var _ train.Dataset = &DownsampleDataset{}

// NewDownsampleDataset opens both image stores and validates the
// configuration.
func NewDownsampleDataset(cfg DownsampleConfig) (*DownsampleDataset, error) {
	if cfg.Scale <= 0 {
		return nil, errors.Errorf("scale must be positive, got %d", cfg.Scale)
	}
	if cfg.Train && cfg.TargetSize <= 0 {
		return nil, errors.Errorf("target size must be positive for training, got %d", cfg.TargetSize)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.DType == dtypes.InvalidDType {
		cfg.DType = dtypes.Float32
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	openStore := func(root string) (ImageStore, error) {
		switch cfg.DataType {
		case "", "dir":
			return NewDirStore(root)
		case "lmdb":
			return NewLMDBStore(root)
		default:
			return nil, errors.Errorf("unknown image data type %q", cfg.DataType)
		}
	}
	gt, err := openStore(cfg.GTRoot)
	if err != nil {
		return nil, errors.WithMessage(err, "GT corpus")
	}
	lq, err := openStore(cfg.LQRoot)
	if err != nil {
		return nil, errors.WithMessage(err, "LQ corpus; it is required for downsampling")
	}
	if !cfg.MismatchedSizesOK && gt.Len() != lq.Len() {
		return nil, errors.Errorf(
			"GT and LQ corpora have different number of images - %d, %d", gt.Len(), lq.Len())
	}

	return &DownsampleDataset{
		cfg:      cfg,
		gt:       gt,
		lq:       lq,
		toTensor: timage.ToTensor(cfg.DType),
		rng:      rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Len returns the virtual dataset length: the larger of the two corpora.
// Indices wrap modulo each corpus independently.
func (ds *DownsampleDataset) Len() int {
	if ds.gt.Len() > ds.lq.Len() {
		return ds.gt.Len()
	}
	return ds.lq.Len()
}

// Sample loads, clips and augments the pair at index i.
func (ds *DownsampleDataset) Sample(i int) (*DownsampleSample, error) {
	gtImg, lqImg, pixImg, gtPath, lqPath, err := ds.sampleImages(i)
	if err != nil {
		return nil, err
	}
	return &DownsampleSample{
		LQ:     ds.toTensor.Batch([]image.Image{gtImg}),
		GT:     ds.toTensor.Batch([]image.Image{lqImg}),
		PIX:    ds.toTensor.Batch([]image.Image{pixImg}),
		LQPath: lqPath,
		GTPath: gtPath,
	}, nil
}

// sampleImages performs the per-index image pipeline and returns the three
// images before tensor conversion: the (corrupted) GT image, the LQ image
// and the downsampled GT image.
func (ds *DownsampleDataset) sampleImages(i int) (gtImg, lqImg, pixImg image.Image, gtPath, lqPath string, err error) {
	gtIdx := i % ds.gt.Len()
	lqIdx := i % ds.lq.Len()
	gtPath = ds.gt.Key(gtIdx)
	lqPath = ds.lq.Key(lqIdx)

	gtImg, err = ds.gt.Image(gtIdx)
	if err != nil {
		return
	}
	lqImg, err = ds.lq.Image(lqIdx)
	if err != nil {
		return
	}

	if !ds.cfg.Train {
		gtImg = Modcrop(gtImg, ds.cfg.Scale)
	} else {
		gtSize := ds.cfg.TargetSize * ds.cfg.Scale
		gtW, gtH := gtImg.Bounds().Dx(), gtImg.Bounds().Dy()
		if gtW < gtSize || gtH < gtSize {
			err = errors.Errorf("GT image %s is %dx%d, smaller than the %d GT crop size",
				gtPath, gtW, gtH, gtSize)
			return
		}

		lqSize := ds.cfg.TargetSize
		if ds.cfg.DoCrop {
			lqW, lqH := lqImg.Bounds().Dx(), lqImg.Bounds().Dy()
			ds.mu.Lock()
			rndW := ds.rng.Intn(max(1, lqW-lqSize+1))
			rndH := ds.rng.Intn(max(1, lqH-lqSize+1))
			ds.mu.Unlock()
			lqImg = imaging.Crop(lqImg, image.Rect(rndW, rndH, rndW+lqSize, rndH+lqSize))
			// The GT crop starts at the LQ offset scaled up so both
			// windows cover the same content.
			gtX, gtY := rndW*ds.cfg.Scale, rndH*ds.cfg.Scale
			gtImg = imaging.Crop(gtImg, image.Rect(gtX, gtY, gtX+gtSize, gtY+gtSize))
		} else {
			lqImg = imaging.Resize(lqImg, lqSize, lqSize, imaging.Linear)
			gtImg = imaging.Resize(gtImg, gtSize, gtSize, imaging.Linear)
		}

		if ds.cfg.UseFlip || ds.cfg.UseRot {
			ds.mu.Lock()
			lqImg, gtImg = augmentPair(lqImg, gtImg, ds.cfg.UseFlip, ds.cfg.UseRot, ds.rng)
			ds.mu.Unlock()
		}
	}

	if ds.cfg.CompressionArtifacts {
		ds.mu.Lock()
		quality := 15 + ds.rng.Intn(85)
		ds.mu.Unlock()
		gtImg, err = CompressArtifacts(gtImg, quality)
		if err != nil {
			return
		}
	}

	// Downsampled copy of the (corrupted) GT image for feature and pixel
	// losses.
	w := gtImg.Bounds().Dx() / ds.cfg.Scale
	h := gtImg.Bounds().Dy() / ds.cfg.Scale
	pixImg = imaging.Resize(gtImg, w, h, imaging.Linear)
	return
}

// Name implements train.Dataset.
func (ds *DownsampleDataset) Name() string { return "downsample" }

// Yield implements train.Dataset. It walks the dataset sequentially and
// returns io.EOF at the end of an epoch.
//
// The batch is laid out for the reversed super-resolution loop:
//   - inputs: one tensor with the (corrupted) GT images, shaped
//     [batch, gtSize, gtSize, 3].
//   - labels: two tensors, the LQ images and the downsampled GT images,
//     both shaped [batch, targetSize, targetSize, 3].
func (ds *DownsampleDataset) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	spec = ds
	n := ds.cfg.BatchSize
	gtImgs := make([]image.Image, 0, n)
	lqImgs := make([]image.Image, 0, n)
	pixImgs := make([]image.Image, 0, n)
	for len(gtImgs) < n {
		idx := ds.nextIndex()
		if idx < 0 {
			err = io.EOF
			return
		}
		gtImg, lqImg, pixImg, gtPath, _, sErr := ds.sampleImages(idx)
		if sErr != nil {
			err = errors.WithMessagef(sErr, "failed to load image pair #%d (%s)", idx, gtPath)
			return
		}
		gtImgs = append(gtImgs, gtImg)
		lqImgs = append(lqImgs, lqImg)
		pixImgs = append(pixImgs, pixImg)
	}
	inputs = []*tensors.Tensor{ds.toTensor.Batch(gtImgs)}
	labels = []*tensors.Tensor{ds.toTensor.Batch(lqImgs), ds.toTensor.Batch(pixImgs)}
	return
}

// nextIndex returns the next sequential index, or -1 at the end of the
// epoch. Concurrency safe.
func (ds *DownsampleDataset) nextIndex() int {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.next < 0 {
		return -1
	}
	idx := ds.next
	ds.next++
	if ds.next >= ds.Len() {
		ds.next = -1
	}
	return idx
}

// Reset implements train.Dataset.
func (ds *DownsampleDataset) Reset() {
	ds.mu.Lock()
	ds.next = 0
	ds.mu.Unlock()
}
