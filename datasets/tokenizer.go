package datasets

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TextTokenizer converts between text and integer token sequences. The
// GrandConjoinedDataset tokenizes at its own level, ignoring any
// tokenization performed by upstream datasets, so all three branches share
// one implementation of this interface.
type TextTokenizer interface {
	Encode(text string) ([]int, error)
	Decode(tokens []int) (string, error)
}

// TikTokenizer is a TextTokenizer backed by a tiktoken BPE encoding. The
// default r50k_base encoding matches the GPT-2 vocabulary used by the
// voice models trained on these datasets.
type TikTokenizer struct {
	enc *tiktoken.Tiktoken
}

// DefaultEncoding is the tiktoken encoding used when none is specified.
const DefaultEncoding = "r50k_base"

// NewTikTokenizer loads the named tiktoken encoding ("" means
// DefaultEncoding).
func NewTikTokenizer(encoding string) (*TikTokenizer, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encoding, err)
	}
	return &TikTokenizer{enc: enc}, nil
}

// Encode tokenizes text without any special-token handling.
func (t *TikTokenizer) Encode(text string) ([]int, error) {
	return t.enc.EncodeOrdinary(text), nil
}

// Decode converts a token sequence back into text.
func (t *TikTokenizer) Decode(tokens []int) (string, error) {
	return t.enc.Decode(tokens), nil
}

// PadOrTruncateTokens returns tokens adjusted to exactly length entries:
// longer sequences are truncated, shorter ones are right-padded with zeros.
// The input slice is never mutated.
func PadOrTruncateTokens(tokens []int, length int) []int {
	out := make([]int, length)
	copy(out, tokens)
	return out
}

// padOrTruncateFloats is PadOrTruncateTokens for audio sample buffers.
func padOrTruncateFloats(clip []float32, length int) []float32 {
	out := make([]float32, length)
	copy(out, clip)
	return out
}
