package datasets

import (
	"io"
	"sync"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ConjoinedConfig configures a GrandConjoinedDataset.
type ConjoinedConfig struct {
	// Paired configures the speech+transcript corpus. Always required.
	Paired PairedVoiceConfig

	// Speech and Text configure the unpaired corpora. Ignored when
	// OnlyPaired is set.
	Speech UnsupervisedAudioConfig
	Text   TextCorpusConfig

	// OnlyPaired restricts the dataset to the paired corpus; the solo
	// fields of every sample mirror the paired ones.
	OnlyPaired bool

	// NeedsCollate pads every sample to the maximum lengths below so
	// samples can be stacked into batch tensors. Yield requires it.
	NeedsCollate bool

	// SampleRate for all audio branches. Defaults to 22050.
	SampleRate int

	// Maximum lengths, in audio samples and text tokens respectively.
	// Paired clips are short curated utterances; solo clips and texts may
	// be much longer and are truncated rather than rejected.
	MaxPairedAudioLength int // default 255995
	MaxPairedTextLength  int // default 200
	MaxSoloAudioLength   int // default 735189
	MaxSoloTextLength    int // default 500

	// BatchSize used by Yield. Defaults to 1.
	BatchSize int
}

// ConjoinedSample is the fixed output schema. Every field is populated on
// every sample regardless of which corpora drive the dataset, so downstream
// training code never branches on corpus availability.
type ConjoinedSample struct {
	PairedAudio       []float32
	PairedAudioLength int
	PairedText        string
	PairedTextTokens  []int
	PairedFile        string

	SpeechAudio       []float32
	SpeechAudioLength int
	SpeechFile        string

	TextText   string
	TextTokens []int
}

// GrandConjoinedDataset joins three differently-sized corpora - unpaired
// text, unpaired speech and paired speech+text - into one virtual indexable
// dataset. Its length is the largest corpus; smaller corpora repeat modulo
// their own length, so one pass over the conjoined dataset is one pass over
// the largest corpus and several passes over the others.
type GrandConjoinedDataset struct {
	cfg ConjoinedConfig

	paired *PairedVoiceDataset
	speech *UnsupervisedAudioDataset
	text   *TextCorpus

	mu   sync.Mutex
	next int
}

var _ train.Dataset = &GrandConjoinedDataset{}

// NewGrandConjoinedDataset builds the three sub-datasets, forcing their
// sample rates and length bounds to match the conjoined configuration.
func NewGrandConjoinedDataset(cfg ConjoinedConfig) (*GrandConjoinedDataset, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 22050
	}
	if cfg.MaxPairedAudioLength <= 0 {
		cfg.MaxPairedAudioLength = 255995
	}
	if cfg.MaxPairedTextLength <= 0 {
		cfg.MaxPairedTextLength = 200
	}
	if cfg.MaxSoloAudioLength <= 0 {
		cfg.MaxSoloAudioLength = 735189
	}
	if cfg.MaxSoloTextLength <= 0 {
		cfg.MaxSoloTextLength = 500
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}

	// Sub-dataset settings that would break the conjoined schema are
	// overridden rather than honored.
	cfg.Paired.SampleRate = cfg.SampleRate
	cfg.Paired.MaxWavLength = cfg.MaxPairedAudioLength
	cfg.Paired.MaxTextLength = cfg.MaxPairedTextLength

	cfg.Speech.SampleRate = cfg.SampleRate
	if cfg.NeedsCollate {
		cfg.Speech.PadToSamples = cfg.MaxSoloAudioLength
	} else {
		cfg.Speech.PadToSamples = 0
	}

	paired, err := NewPairedVoiceDataset(cfg.Paired)
	if err != nil {
		return nil, errors.WithMessage(err, "paired corpus")
	}
	ds := &GrandConjoinedDataset{cfg: cfg, paired: paired}

	if !cfg.OnlyPaired {
		ds.speech, err = NewUnsupervisedAudioDataset(cfg.Speech)
		if err != nil {
			return nil, errors.WithMessage(err, "solo speech corpus")
		}
		ds.text, err = NewTextCorpus(cfg.Text)
		if err != nil {
			return nil, errors.WithMessage(err, "solo text corpus")
		}
	}
	return ds, nil
}

// Len returns the virtual length: the size of the largest corpus.
func (ds *GrandConjoinedDataset) Len() int {
	n := ds.paired.Len()
	if ds.cfg.OnlyPaired {
		return n
	}
	if ds.speech.Len() > n {
		n = ds.speech.Len()
	}
	if ds.text.Len() > n {
		n = ds.text.Len()
	}
	return n
}

// Sample assembles the conjoined sample at index i. Each corpus is indexed
// modulo its own length.
func (ds *GrandConjoinedDataset) Sample(i int) (*ConjoinedSample, error) {
	paired, err := ds.paired.Sample(i % ds.paired.Len())
	if err != nil {
		return nil, err
	}

	s := &ConjoinedSample{
		PairedAudio:       paired.Clip,
		PairedAudioLength: len(paired.Clip),
		PairedText:        paired.Text,
		PairedTextTokens:  paired.Tokens,
		PairedFile:        paired.Path,
	}
	if ds.cfg.NeedsCollate {
		s.PairedAudio = padOrTruncateFloats(s.PairedAudio, ds.cfg.MaxPairedAudioLength)
		s.PairedTextTokens = PadOrTruncateTokens(s.PairedTextTokens, ds.cfg.MaxPairedTextLength)
	}

	if ds.cfg.OnlyPaired {
		// Mirror the paired fields so the schema stays uniform.
		s.SpeechAudio = s.PairedAudio
		s.SpeechAudioLength = s.PairedAudioLength
		s.SpeechFile = s.PairedFile
		s.TextText = s.PairedText
		s.TextTokens = s.PairedTextTokens
		return s, nil
	}

	clip, err := ds.speech.Sample(i % ds.speech.Len())
	if err != nil {
		return nil, err
	}
	s.SpeechAudio = clip.Clip
	s.SpeechAudioLength = clamp(clip.ClipLength, 0, ds.cfg.MaxSoloAudioLength)
	s.SpeechFile = clip.Path
	if !ds.cfg.NeedsCollate && len(s.SpeechAudio) > ds.cfg.MaxSoloAudioLength {
		s.SpeechAudio = s.SpeechAudio[:ds.cfg.MaxSoloAudioLength]
	}

	text, tokens, err := ds.fetchTextAt(i % ds.text.Len())
	if err != nil {
		return nil, err
	}
	if len(tokens) > ds.cfg.MaxSoloTextLength {
		tokens = tokens[:ds.cfg.MaxSoloTextLength]
	}
	if ds.cfg.NeedsCollate {
		tokens = PadOrTruncateTokens(tokens, ds.cfg.MaxSoloTextLength)
	}
	s.TextText = text
	s.TextTokens = tokens
	return s, nil
}

// fetchTextAt reads the text sample at idx, skipping forward over unusable
// lines (blank, masked or invalid UTF-8). Real corpora contain a small
// fraction of such lines and failing the whole batch for one of them would
// make large corpora untrainable. The walk is bounded to one full cycle so
// a corpus of exclusively bad lines errors instead of spinning.
func (ds *GrandConjoinedDataset) fetchTextAt(idx int) (string, []int, error) {
	n := ds.text.Len()
	for tries := 0; tries < n; tries++ {
		i := (idx + tries) % n
		text, err := ds.text.Line(i)
		if err != nil {
			return "", nil, err
		}
		if err := ValidateText(text); err != nil {
			klog.Warningf("Skipping text sample #%d: %v", i, err)
			continue
		}
		tokens, err := ds.paired.Tokenize(text)
		if err != nil {
			return "", nil, errors.Wrapf(err, "failed to tokenize text sample #%d", i)
		}
		return text, tokens, nil
	}
	return "", nil, errors.Errorf("no usable text sample found in a full pass starting at #%d", idx)
}

// Name implements train.Dataset.
func (ds *GrandConjoinedDataset) Name() string { return "grand_conjoined" }

// Yield implements train.Dataset: it collates the next BatchSize samples
// into a ConjoinedBatch, returned as the batch spec with its tensor fields
// as inputs (see ConjoinedBatch.Inputs for the order). NeedsCollate must be
// set, otherwise the variable-length samples cannot be stacked.
func (ds *GrandConjoinedDataset) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	if !ds.cfg.NeedsCollate {
		err = errors.New("Yield requires NeedsCollate; use Sample for variable-length access")
		return
	}
	samples := make([]*ConjoinedSample, 0, ds.cfg.BatchSize)
	for len(samples) < ds.cfg.BatchSize {
		idx := ds.nextIndex()
		if idx < 0 {
			err = io.EOF
			return
		}
		var s *ConjoinedSample
		s, err = ds.Sample(idx)
		if err != nil {
			err = errors.WithMessagef(err, "failed to assemble conjoined sample #%d", idx)
			return
		}
		samples = append(samples, s)
	}
	var batch *ConjoinedBatch
	batch, err = CollateConjoined(samples)
	if err != nil {
		return
	}
	spec = batch
	inputs = batch.Inputs()
	return
}

// nextIndex returns the next sequential index, or -1 at the end of the
// epoch. Concurrency safe.
func (ds *GrandConjoinedDataset) nextIndex() int {
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
func (ds *GrandConjoinedDataset) Reset() {
	ds.mu.Lock()
	ds.next = 0
	ds.mu.Unlock()
}
