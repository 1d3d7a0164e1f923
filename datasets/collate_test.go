package datasets

import (
	"testing"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gopjrt/dtypes"
)

func collateSample(tag byte) *ConjoinedSample {
	return &ConjoinedSample{
		PairedAudio:       []float32{float32(tag), 0, 0, 0},
		PairedAudioLength: 2,
		PairedText:        string(tag),
		PairedTextTokens:  []int{int(tag), 0},
		PairedFile:        "paired-" + string(tag),
		SpeechAudio:       []float32{0, float32(tag)},
		SpeechAudioLength: 2,
		SpeechFile:        "speech-" + string(tag),
		TextText:          string(tag),
		TextTokens:        []int{int(tag), 0, 0},
	}
}

func TestCollateConjoined(t *testing.T) {
	batch, err := CollateConjoined([]*ConjoinedSample{collateSample('a'), collateSample('b')})
	if err != nil {
		t.Fatalf("CollateConjoined failed: %v", err)
	}

	if err := batch.PairedAudio.Shape().Check(dtypes.Float32, 2, 1, 4); err != nil {
		t.Errorf("PairedAudio shape: %v", err)
	}
	if err := batch.SpeechAudio.Shape().Check(dtypes.Float32, 2, 1, 2); err != nil {
		t.Errorf("SpeechAudio shape: %v", err)
	}
	if err := batch.PairedTextTokens.Shape().Check(dtypes.Int64, 2, 2); err != nil {
		t.Errorf("PairedTextTokens shape: %v", err)
	}
	if err := batch.TextTokens.Shape().Check(dtypes.Int64, 2, 3); err != nil {
		t.Errorf("TextTokens shape: %v", err)
	}

	// Row order follows sample order.
	tensors.ConstFlatData(batch.PairedAudio, func(flat []float32) {
		if flat[0] != float32('a') || flat[4] != float32('b') {
			t.Errorf("PairedAudio rows misordered: %v", flat)
		}
	})
	tensors.ConstFlatData(batch.PairedTextTokens, func(flat []int64) {
		if flat[0] != int64('a') || flat[2] != int64('b') {
			t.Errorf("PairedTextTokens rows misordered: %v", flat)
		}
	})
	tensors.ConstFlatData(batch.PairedAudioLengths, func(flat []int64) {
		if len(flat) != 2 || flat[0] != 2 {
			t.Errorf("PairedAudioLengths = %v, want [2 2]", flat)
		}
	})

	if got := len(batch.Inputs()); got != 6 {
		t.Errorf("Inputs() returned %d tensors, want 6", got)
	}
	if batch.PairedFiles[1] != "paired-b" || batch.SpeechFiles[0] != "speech-a" {
		t.Error("string metadata misordered")
	}
}

func TestCollateUnevenLengths(t *testing.T) {
	a := collateSample('a')
	b := collateSample('b')
	b.SpeechAudio = append(b.SpeechAudio, 0)
	if _, err := CollateConjoined([]*ConjoinedSample{a, b}); err == nil {
		t.Fatal("expected an error for uneven sample lengths")
	}
}

func TestCollateEmpty(t *testing.T) {
	if _, err := CollateConjoined(nil); err == nil {
		t.Fatal("expected an error for an empty batch")
	}
}
