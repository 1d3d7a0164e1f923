package datasets

import (
	"path/filepath"
	"testing"
)

func TestUnsupervisedAudioPadding(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "short.wav"), 8000, 1, []int{16384, 16384, 16384, 16384})

	ds, err := NewUnsupervisedAudioDataset(UnsupervisedAudioConfig{
		Paths:        []string{dir},
		SampleRate:   8000,
		PadToSamples: 8,
	})
	if err != nil {
		t.Fatalf("NewUnsupervisedAudioDataset failed: %v", err)
	}
	if ds.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", ds.Len())
	}

	clip, err := ds.Sample(0)
	if err != nil {
		t.Fatalf("Sample(0) failed: %v", err)
	}
	if len(clip.Clip) != 8 {
		t.Fatalf("padded clip has %d samples, want 8", len(clip.Clip))
	}
	if clip.ClipLength != 4 {
		t.Fatalf("ClipLength = %d, want the pre-padding 4", clip.ClipLength)
	}
	for i := 4; i < 8; i++ {
		if clip.Clip[i] != 0 {
			t.Fatalf("clip[%d] = %g, padding should be zero", i, clip.Clip[i])
		}
	}
}

func TestUnsupervisedAudioTruncation(t *testing.T) {
	dir := t.TempDir()
	data := make([]int, 16)
	for i := range data {
		data[i] = 1000
	}
	writeWAV(t, filepath.Join(dir, "long.wav"), 8000, 1, data)

	ds, err := NewUnsupervisedAudioDataset(UnsupervisedAudioConfig{
		Paths:        []string{dir},
		SampleRate:   8000,
		PadToSamples: 8,
	})
	if err != nil {
		t.Fatalf("NewUnsupervisedAudioDataset failed: %v", err)
	}
	clip, err := ds.Sample(0)
	if err != nil {
		t.Fatalf("Sample(0) failed: %v", err)
	}
	if len(clip.Clip) != 8 {
		t.Fatalf("truncated clip has %d samples, want 8", len(clip.Clip))
	}
	if clip.ClipLength != 8 {
		t.Fatalf("ClipLength = %d, want 8 (capped at the pad size)", clip.ClipLength)
	}
}

func TestUnsupervisedAudioEmptyRoot(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewUnsupervisedAudioDataset(UnsupervisedAudioConfig{Paths: []string{dir}}); err == nil {
		t.Fatal("expected an error for a root with no audio files")
	}
}
