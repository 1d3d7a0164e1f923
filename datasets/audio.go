package datasets

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/pkg/errors"
)

// audioExtensions lists the clip formats the audio loaders accept.
var audioExtensions = map[string]bool{".wav": true}

// IsAudioFile reports whether path has a supported audio extension.
func IsAudioFile(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}

// FindAudioFiles recursively discovers audio files under the given roots,
// sorted by path.
func FindAudioFiles(roots []string) ([]string, error) {
	return findFilesOfType(roots, audioExtensions)
}

// LoadAudio decodes a WAV file into a mono float32 clip with samples in
// [-1, 1]. Multi-channel files are averaged down to mono, and clips whose
// rate disagrees with sampleRate are linearly resampled.
func LoadAudio(path string, sampleRate int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open audio clip %s", path)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, errors.Errorf("%s is not a valid WAV file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 {
		return nil, errors.Errorf("%s has no channel information", path)
	}

	channels := buf.Format.NumChannels
	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, errors.Errorf("%s has unsupported bit depth %d", path, bitDepth)
	}
	scale := float32(int64(1) << (bitDepth - 1))

	frames := len(buf.Data) / channels
	clip := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(buf.Data[i*channels+c]) / scale
		}
		clip[i] = sum / float32(channels)
	}

	rate := buf.Format.SampleRate
	if sampleRate > 0 && rate != sampleRate {
		clip = resampleLinear(clip, rate, sampleRate)
	}
	return clip, nil
}

// resampleLinear converts a clip between sample rates by linear
// interpolation. Good enough for training data; the corpora are expected to
// already be near the target rate.
func resampleLinear(in []float32, from, to int) []float32 {
	if from == to || len(in) == 0 {
		return in
	}
	outLen := int(int64(len(in)) * int64(to) / int64(from))
	if outLen == 0 {
		outLen = 1
	}
	out := make([]float32, outLen)
	ratio := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = in[j]*(1-frac) + in[j+1]*frac
	}
	return out
}
