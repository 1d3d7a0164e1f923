package datasets

import (
	"github.com/pkg/errors"
)

// UnsupervisedAudioConfig configures an UnsupervisedAudioDataset.
type UnsupervisedAudioConfig struct {
	// Paths are directory roots scanned recursively for audio files.
	Paths []string

	// SampleRate clips are resampled to. Defaults to 22050.
	SampleRate int

	// PadToSamples, when positive, pads or truncates every clip to this
	// many samples. ClipLength still reports the pre-padding length
	// (capped at PadToSamples).
	PadToSamples int
}

// AudioClip is one unpaired audio sample.
type AudioClip struct {
	Clip       []float32
	ClipLength int
	Path       string
}

// UnsupervisedAudioDataset provides indexed access to a corpus of unpaired
// audio clips discovered on disk.
type UnsupervisedAudioDataset struct {
	cfg   UnsupervisedAudioConfig
	paths []string
}

// NewUnsupervisedAudioDataset scans the configured roots for clips.
func NewUnsupervisedAudioDataset(cfg UnsupervisedAudioConfig) (*UnsupervisedAudioDataset, error) {
	if len(cfg.Paths) == 0 {
		return nil, errors.New("no audio corpus roots given")
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 22050
	}
	paths, err := FindAudioFiles(cfg.Paths)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.Errorf("no audio files found under %v", cfg.Paths)
	}
	return &UnsupervisedAudioDataset{cfg: cfg, paths: paths}, nil
}

// Len returns the number of discovered clips.
func (ds *UnsupervisedAudioDataset) Len() int { return len(ds.paths) }

// Path returns the file path of clip i.
func (ds *UnsupervisedAudioDataset) Path(i int) string { return ds.paths[i] }

// Sample loads clip i, padded or truncated per the configuration.
func (ds *UnsupervisedAudioDataset) Sample(i int) (*AudioClip, error) {
	path := ds.paths[i]
	clip, err := LoadAudio(path, ds.cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	length := len(clip)
	if ds.cfg.PadToSamples > 0 {
		if length > ds.cfg.PadToSamples {
			length = ds.cfg.PadToSamples
		}
		clip = padOrTruncateFloats(clip, ds.cfg.PadToSamples)
	}
	return &AudioClip{Clip: clip, ClipLength: length, Path: path}, nil
}
