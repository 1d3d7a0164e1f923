// Command inspect walks a corpus configuration the same way training would
// and reports what the datasets will feed the model: sample counts, clip
// durations, token lengths and batch tensor shapes. It writes length
// histograms so corpus problems (truncation, oversized clips) are visible
// before a training run is started.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	mldatasets "github.com/gomlx/gomlx/pkg/ml/datasets"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/schollz/progressbar/v3"

	"github.com/voxtrain/datafeed/datasets"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

func main() {
	// Conjoined (voice) corpus flags.
	pairedFlag := flag.String("paired", "", "comma-separated LJSpeech-style metadata files (wav|transcript per line)")
	audioFlag := flag.String("audio", "", "comma-separated directory roots with unpaired audio clips")
	textFlag := flag.String("text", "", "glob pattern for unpaired text corpus files")
	onlyPaired := flag.Bool("only-paired", false, "restrict the conjoined dataset to the paired corpus")
	sampleRate := flag.Int("sample-rate", 22050, "audio sample rate")

	// Downsample (image) corpus flags.
	gtFlag := flag.String("gt", "", "high-quality image corpus root")
	lqFlag := flag.String("lq", "", "low-quality image corpus root")
	dataType := flag.String("data-type", "dir", "image store backend: dir or lmdb")
	scale := flag.Int("scale", 2, "downsampling scale between GT and LQ")
	targetSize := flag.Int("target-size", 64, "LQ-side crop size")

	n := flag.Int("n", 200, "number of samples to inspect per dataset")
	batchSize := flag.Int("batch-size", 4, "batch size used for the collated batch check")
	outDir := flag.String("out", "plots", "output directory for histograms")
	parallel := flag.Bool("parallel", true, "prefetch batches with parallel workers during the batch check")
	flag.Parse()

	inspectedAny := false
	if *pairedFlag != "" {
		inspectVoice(voiceOptions{
			pairedPaths: strings.Split(*pairedFlag, ","),
			audioRoots:  splitNonEmpty(*audioFlag),
			textPattern: *textFlag,
			onlyPaired:  *onlyPaired,
			sampleRate:  *sampleRate,
			n:           *n,
			batchSize:   *batchSize,
			outDir:      *outDir,
			parallel:    *parallel,
		})
		inspectedAny = true
	}
	if *gtFlag != "" && *lqFlag != "" {
		inspectImages(*gtFlag, *lqFlag, *dataType, *scale, *targetSize, *n)
		inspectedAny = true
	}
	if !inspectedAny {
		log.Fatal("nothing to inspect: pass -paired (plus -audio/-text) and/or -gt/-lq")
	}
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

type voiceOptions struct {
	pairedPaths []string
	audioRoots  []string
	textPattern string
	onlyPaired  bool
	sampleRate  int
	n           int
	batchSize   int
	outDir      string
	parallel    bool
}

func inspectVoice(opts voiceOptions) {
	cfg := datasets.ConjoinedConfig{
		Paired:     datasets.PairedVoiceConfig{MetadataPaths: opts.pairedPaths},
		Speech:     datasets.UnsupervisedAudioConfig{Paths: opts.audioRoots},
		Text:       datasets.TextCorpusConfig{Pattern: opts.textPattern, Verbose: true},
		OnlyPaired: opts.onlyPaired,
		SampleRate: opts.sampleRate,
	}
	ds, err := datasets.NewGrandConjoinedDataset(cfg)
	if err != nil {
		log.Fatalf("failed to open conjoined dataset: %v", err)
	}
	log.Printf("Conjoined dataset: %s virtual samples", humanize.Comma(int64(ds.Len())))

	count := opts.n
	if count > ds.Len() {
		count = ds.Len()
	}
	pairedSecs := make(plotter.Values, 0, count)
	soloSecs := make(plotter.Values, 0, count)
	pairedToks := make(plotter.Values, 0, count)
	soloToks := make(plotter.Values, 0, count)
	var totalAudioSamples int64

	pbar := progressbar.Default(int64(count), "Inspecting samples")
	for i := 0; i < count; i++ {
		s, err := ds.Sample(i)
		if err != nil {
			log.Fatalf("failed to read sample #%d: %v", i, err)
		}
		pairedSecs = append(pairedSecs, float64(s.PairedAudioLength)/float64(opts.sampleRate))
		soloSecs = append(soloSecs, float64(s.SpeechAudioLength)/float64(opts.sampleRate))
		pairedToks = append(pairedToks, float64(len(s.PairedTextTokens)))
		soloToks = append(soloToks, float64(len(s.TextTokens)))
		totalAudioSamples += int64(s.PairedAudioLength) + int64(s.SpeechAudioLength)
		_ = pbar.Add(1)
	}
	_ = pbar.Finish()

	audioBytes := uint64(totalAudioSamples) * 4
	log.Printf("Inspected %d samples: %s of float32 audio", count, humanize.Bytes(audioBytes))

	if err := plotHistograms(opts.outDir, map[string]plotter.Values{
		"paired_audio_seconds": pairedSecs,
		"solo_audio_seconds":   soloSecs,
		"paired_text_tokens":   pairedToks,
		"solo_text_tokens":     soloToks,
	}); err != nil {
		log.Fatalf("failed to write histograms: %v", err)
	}
	log.Printf("Length histograms written to %s", opts.outDir)

	checkCollatedBatches(cfg, opts)
}

// checkCollatedBatches rebuilds the dataset in collate mode and pulls a few
// batches through the same prefetch pipeline training uses, reporting the
// tensor shapes and throughput.
func checkCollatedBatches(cfg datasets.ConjoinedConfig, opts voiceOptions) {
	cfg.NeedsCollate = true
	cfg.BatchSize = opts.batchSize
	ds, err := datasets.NewGrandConjoinedDataset(cfg)
	if err != nil {
		log.Fatalf("failed to reopen conjoined dataset for collation: %v", err)
	}

	var src train.Dataset = ds
	if opts.parallel {
		src = mldatasets.Parallel(ds)
	}

	start := time.Now()
	batches := 0
	for batches < 3 {
		spec, inputs, _, err := src.Yield()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("failed to assemble batch: %v", err)
		}
		if batches == 0 {
			batch, ok := spec.(*datasets.ConjoinedBatch)
			if !ok {
				log.Fatalf("unexpected batch spec type %T", spec)
			}
			for i, t := range inputs {
				fmt.Printf("  input[%d]: %s\n", i, t.Shape())
			}
			fmt.Printf("  first paired file: %s\n", batch.PairedFiles[0])
		}
		batches++
	}
	log.Printf("Assembled %d collated batches of %d in %v", batches, opts.batchSize, time.Since(start))
}

func inspectImages(gtRoot, lqRoot, dataType string, scale, targetSize, n int) {
	ds, err := datasets.NewDownsampleDataset(datasets.DownsampleConfig{
		GTRoot:     gtRoot,
		LQRoot:     lqRoot,
		DataType:   dataType,
		Scale:      scale,
		TargetSize: targetSize,
		Train:      true,
		DoCrop:     true,
	})
	if err != nil {
		log.Fatalf("failed to open downsample dataset: %v", err)
	}
	log.Printf("Downsample dataset: %s image pairs", humanize.Comma(int64(ds.Len())))

	count := n
	if count > ds.Len() {
		count = ds.Len()
	}
	pbar := progressbar.Default(int64(count), "Inspecting image pairs")
	for i := 0; i < count; i++ {
		s, err := ds.Sample(i)
		if err != nil {
			log.Fatalf("failed to read pair #%d: %v", i, err)
		}
		if i == 0 {
			fmt.Printf("  LQ (model input): %s\n", s.LQ.Shape())
			fmt.Printf("  GT (target):      %s\n", s.GT.Shape())
			fmt.Printf("  PIX (reference):  %s\n", s.PIX.Shape())
		}
		_ = pbar.Add(1)
	}
	_ = pbar.Finish()
	log.Printf("Inspected %d image pairs without errors", count)
}

// plotHistograms writes one PNG per named value set.
func plotHistograms(outDir string, series map[string]plotter.Values) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}
	for name, values := range series {
		if len(values) == 0 {
			continue
		}
		p := plot.New()
		p.Title.Text = name
		p.Y.Label.Text = "samples"
		h, err := plotter.NewHist(values, 32)
		if err != nil {
			return err
		}
		p.Add(h)
		outPath := filepath.Join(outDir, name+".png")
		if err := p.Save(6*vg.Inch, 4*vg.Inch, outPath); err != nil {
			return err
		}
	}
	return nil
}
