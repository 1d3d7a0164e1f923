package datasets

import (
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// ConjoinedBatch holds a batch of collated conjoined samples. Audio tensors
// are shaped [batch, 1, samples] (single channel), token tensors
// [batch, tokens], lengths [batch]. String metadata rides along outside the
// tensors.
type ConjoinedBatch struct {
	PairedAudio        *tensors.Tensor
	PairedAudioLengths *tensors.Tensor
	PairedTextTokens   *tensors.Tensor
	PairedTexts        []string
	PairedFiles        []string

	SpeechAudio        *tensors.Tensor
	SpeechAudioLengths *tensors.Tensor
	SpeechFiles        []string

	TextTokens *tensors.Tensor
	TextTexts  []string
}

// Inputs returns the batch's tensor fields in a fixed order for feeding a
// training step: paired audio, paired audio lengths, paired text tokens,
// speech audio, speech audio lengths, text tokens.
func (b *ConjoinedBatch) Inputs() []*tensors.Tensor {
	return []*tensors.Tensor{
		b.PairedAudio, b.PairedAudioLengths, b.PairedTextTokens,
		b.SpeechAudio, b.SpeechAudioLengths, b.TextTokens,
	}
}

// CollateConjoined stacks pre-padded samples into batch tensors. All samples
// must share the same audio and token lengths (the dataset's NeedsCollate
// mode guarantees this); uneven lengths are an error.
func CollateConjoined(samples []*ConjoinedSample) (*ConjoinedBatch, error) {
	if len(samples) == 0 {
		return nil, errors.New("cannot collate an empty batch")
	}
	first := samples[0]
	for i, s := range samples[1:] {
		if len(s.PairedAudio) != len(first.PairedAudio) ||
			len(s.PairedTextTokens) != len(first.PairedTextTokens) ||
			len(s.SpeechAudio) != len(first.SpeechAudio) ||
			len(s.TextTokens) != len(first.TextTokens) {
			return nil, errors.Errorf(
				"sample #%d has different lengths than sample #0; collate requires pre-padded samples", i+1)
		}
	}

	b := &ConjoinedBatch{
		PairedTexts: make([]string, 0, len(samples)),
		PairedFiles: make([]string, 0, len(samples)),
		SpeechFiles: make([]string, 0, len(samples)),
		TextTexts:   make([]string, 0, len(samples)),
	}
	pairedLengths := make([]int64, len(samples))
	speechLengths := make([]int64, len(samples))
	for i, s := range samples {
		b.PairedTexts = append(b.PairedTexts, s.PairedText)
		b.PairedFiles = append(b.PairedFiles, s.PairedFile)
		b.SpeechFiles = append(b.SpeechFiles, s.SpeechFile)
		b.TextTexts = append(b.TextTexts, s.TextText)
		pairedLengths[i] = int64(s.PairedAudioLength)
		speechLengths[i] = int64(s.SpeechAudioLength)
	}

	b.PairedAudio = stackAudio(samples, func(s *ConjoinedSample) []float32 { return s.PairedAudio })
	b.SpeechAudio = stackAudio(samples, func(s *ConjoinedSample) []float32 { return s.SpeechAudio })
	b.PairedTextTokens = stackTokens(samples, func(s *ConjoinedSample) []int { return s.PairedTextTokens })
	b.TextTokens = stackTokens(samples, func(s *ConjoinedSample) []int { return s.TextTokens })
	b.PairedAudioLengths = tensors.FromValue(pairedLengths)
	b.SpeechAudioLengths = tensors.FromValue(speechLengths)
	return b, nil
}

// stackAudio builds a [batch, 1, samples] float32 tensor from one audio
// field of each sample.
func stackAudio(samples []*ConjoinedSample, field func(*ConjoinedSample) []float32) *tensors.Tensor {
	n := len(field(samples[0]))
	t := tensors.FromShape(shapes.Make(dtypes.Float32, len(samples), 1, n))
	t.MutableFlatData(func(flatAny any) {
		flat := flatAny.([]float32)
		for i, s := range samples {
			copy(flat[i*n:(i+1)*n], field(s))
		}
	})
	return t
}

// stackTokens builds a [batch, tokens] int64 tensor from one token field of
// each sample.
func stackTokens(samples []*ConjoinedSample, field func(*ConjoinedSample) []int) *tensors.Tensor {
	n := len(field(samples[0]))
	t := tensors.FromShape(shapes.Make(dtypes.Int64, len(samples), n))
	t.MutableFlatData(func(flatAny any) {
		flat := flatAny.([]int64)
		for i, s := range samples {
			row := flat[i*n : (i+1)*n]
			for j, tok := range field(s) {
				row[j] = int64(tok)
			}
		}
	})
	return t
}
