package datasets

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// PairedVoiceConfig configures a PairedVoiceDataset.
type PairedVoiceConfig struct {
	// MetadataPaths are LJSpeech-style metadata files, one
	// "wav_path|transcript" entry per line. Relative wav paths are
	// resolved against the metadata file's directory.
	MetadataPaths []string

	// SampleRate clips are resampled to. Defaults to 22050.
	SampleRate int

	// MaxWavLength and MaxTextLength bound the audio (in samples) and the
	// transcript (in tokens). A paired sample over either bound is a
	// fatal error: paired corpora are curated, an oversized entry means
	// the curation step was skipped.
	MaxWavLength  int
	MaxTextLength int

	// Tokenizer encodes transcripts. Defaults to the GPT-2 BPE vocabulary.
	Tokenizer TextTokenizer
}

// pairedEntry is one metadata line, audio not yet loaded.
type pairedEntry struct {
	wavPath string
	text    string
}

// PairedVoiceSample is one speech+transcript pair.
type PairedVoiceSample struct {
	Tokens []int
	Clip   []float32
	Text   string
	Path   string
}

// PairedVoiceDataset provides indexed access to paired speech+text corpora.
// Metadata is read eagerly at construction; audio is loaded per sample.
type PairedVoiceDataset struct {
	cfg     PairedVoiceConfig
	entries []pairedEntry
}

// NewPairedVoiceDataset reads and concatenates all metadata files.
func NewPairedVoiceDataset(cfg PairedVoiceConfig) (*PairedVoiceDataset, error) {
	if len(cfg.MetadataPaths) == 0 {
		return nil, errors.New("no paired metadata files given")
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 22050
	}
	if cfg.Tokenizer == nil {
		tok, err := NewTikTokenizer(DefaultEncoding)
		if err != nil {
			return nil, err
		}
		cfg.Tokenizer = tok
	}

	ds := &PairedVoiceDataset{cfg: cfg}
	for _, path := range cfg.MetadataPaths {
		entries, err := readPairedMetadata(path)
		if err != nil {
			return nil, err
		}
		ds.entries = append(ds.entries, entries...)
	}
	if len(ds.entries) == 0 {
		return nil, errors.Errorf("metadata files %v contain no entries", cfg.MetadataPaths)
	}
	return ds, nil
}

// readPairedMetadata parses one "wav|transcript" metadata file.
func readPairedMetadata(path string) ([]pairedEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open paired metadata %s", path)
	}
	defer f.Close()

	dir := filepath.Dir(path)
	var entries []pairedEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		wavPath, text, ok := strings.Cut(line, "|")
		if !ok {
			return nil, errors.Errorf("%s:%d: expected \"wav|transcript\", got %q", path, lineNo, line)
		}
		if !filepath.IsAbs(wavPath) {
			wavPath = filepath.Join(dir, wavPath)
		}
		entries = append(entries, pairedEntry{wavPath: wavPath, text: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read paired metadata %s", path)
	}
	return entries, nil
}

// Len returns the number of paired entries.
func (ds *PairedVoiceDataset) Len() int { return len(ds.entries) }

// Tokenize encodes text with the dataset's tokenizer.
func (ds *PairedVoiceDataset) Tokenize(text string) ([]int, error) {
	return ds.cfg.Tokenizer.Encode(text)
}

// Sample loads the clip and tokenizes the transcript at index i. Entries
// over the configured audio or token bounds fail loudly instead of being
// skipped.
func (ds *PairedVoiceDataset) Sample(i int) (*PairedVoiceSample, error) {
	entry := ds.entries[i]
	clip, err := LoadAudio(entry.wavPath, ds.cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	if ds.cfg.MaxWavLength > 0 && len(clip) > ds.cfg.MaxWavLength {
		return nil, errors.Errorf("paired clip %s is %d samples, over the %d bound; curate the corpus",
			entry.wavPath, len(clip), ds.cfg.MaxWavLength)
	}
	tokens, err := ds.cfg.Tokenizer.Encode(entry.text)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to tokenize transcript for %s", entry.wavPath)
	}
	if ds.cfg.MaxTextLength > 0 && len(tokens) > ds.cfg.MaxTextLength {
		return nil, errors.Errorf("paired transcript for %s is %d tokens, over the %d bound; curate the corpus",
			entry.wavPath, len(tokens), ds.cfg.MaxTextLength)
	}
	return &PairedVoiceSample{
		Tokens: tokens,
		Clip:   clip,
		Text:   entry.text,
		Path:   entry.wavPath,
	}, nil
}
