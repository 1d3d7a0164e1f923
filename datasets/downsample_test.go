package datasets

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gomlx/gopjrt/dtypes"
)

// writeImageDir writes count gradient PNGs of the given size under dir.
func writeImageDir(t *testing.T, dir string, count, w, h int) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < count; i++ {
		path := filepath.Join(dir, string(rune('a'+i))+".png")
		if err := imaging.Save(testImage(w, h), path); err != nil {
			t.Fatalf("failed to save %s: %v", path, err)
		}
	}
}

// downsampleFixture writes GT images at 4x the LQ size for scale-2 tests.
func downsampleFixture(t *testing.T, count int) DownsampleConfig {
	t.Helper()
	dir := t.TempDir()
	gtDir := filepath.Join(dir, "gt")
	lqDir := filepath.Join(dir, "lq")
	writeImageDir(t, gtDir, count, 32, 32)
	writeImageDir(t, lqDir, count, 16, 16)
	return DownsampleConfig{
		GTRoot:     gtDir,
		LQRoot:     lqDir,
		Scale:      2,
		TargetSize: 8,
		Train:      true,
		DoCrop:     true,
		Seed:       1,
	}
}

func TestDownsampleTrainShapes(t *testing.T) {
	ds, err := NewDownsampleDataset(downsampleFixture(t, 2))
	if err != nil {
		t.Fatalf("NewDownsampleDataset failed: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", ds.Len())
	}

	s, err := ds.Sample(0)
	if err != nil {
		t.Fatalf("Sample(0) failed: %v", err)
	}
	// LQ carries the 16x16 GT crop, GT the 8x8 LQ crop, PIX its
	// downsampled twin.
	if err := s.LQ.Shape().Check(dtypes.Float32, 1, 16, 16, 3); err != nil {
		t.Errorf("LQ shape: %v", err)
	}
	if err := s.GT.Shape().Check(dtypes.Float32, 1, 8, 8, 3); err != nil {
		t.Errorf("GT shape: %v", err)
	}
	if err := s.PIX.Shape().Check(dtypes.Float32, 1, 8, 8, 3); err != nil {
		t.Errorf("PIX shape: %v", err)
	}
	if s.GTPath == "" || s.LQPath == "" {
		t.Error("sample paths missing")
	}
}

func TestDownsampleCompressionArtifacts(t *testing.T) {
	cfg := downsampleFixture(t, 1)
	cfg.CompressionArtifacts = true
	ds, err := NewDownsampleDataset(cfg)
	if err != nil {
		t.Fatalf("NewDownsampleDataset failed: %v", err)
	}
	s, err := ds.Sample(0)
	if err != nil {
		t.Fatalf("Sample(0) failed: %v", err)
	}
	if err := s.LQ.Shape().Check(dtypes.Float32, 1, 16, 16, 3); err != nil {
		t.Errorf("LQ shape after corruption: %v", err)
	}
}

func TestDownsampleResizeMode(t *testing.T) {
	cfg := downsampleFixture(t, 1)
	cfg.DoCrop = false
	ds, err := NewDownsampleDataset(cfg)
	if err != nil {
		t.Fatalf("NewDownsampleDataset failed: %v", err)
	}
	s, err := ds.Sample(0)
	if err != nil {
		t.Fatalf("Sample(0) failed: %v", err)
	}
	if err := s.LQ.Shape().Check(dtypes.Float32, 1, 16, 16, 3); err != nil {
		t.Errorf("LQ shape: %v", err)
	}
	if err := s.GT.Shape().Check(dtypes.Float32, 1, 8, 8, 3); err != nil {
		t.Errorf("GT shape: %v", err)
	}
}

func TestDownsampleEvalModcrop(t *testing.T) {
	dir := t.TempDir()
	gtDir := filepath.Join(dir, "gt")
	lqDir := filepath.Join(dir, "lq")
	writeImageDir(t, gtDir, 1, 13, 11)
	writeImageDir(t, lqDir, 1, 6, 5)
	ds, err := NewDownsampleDataset(DownsampleConfig{
		GTRoot: gtDir,
		LQRoot: lqDir,
		Scale:  2,
	})
	if err != nil {
		t.Fatalf("NewDownsampleDataset failed: %v", err)
	}
	s, err := ds.Sample(0)
	if err != nil {
		t.Fatalf("Sample(0) failed: %v", err)
	}
	// GT modcropped to 12x10; PIX is that divided by the scale.
	if err := s.LQ.Shape().Check(dtypes.Float32, 1, 10, 12, 3); err != nil {
		t.Errorf("LQ shape: %v", err)
	}
	if err := s.PIX.Shape().Check(dtypes.Float32, 1, 5, 6, 3); err != nil {
		t.Errorf("PIX shape: %v", err)
	}
}

func TestDownsampleMismatchedSizes(t *testing.T) {
	dir := t.TempDir()
	gtDir := filepath.Join(dir, "gt")
	lqDir := filepath.Join(dir, "lq")
	writeImageDir(t, gtDir, 3, 32, 32)
	writeImageDir(t, lqDir, 1, 16, 16)
	cfg := DownsampleConfig{
		GTRoot:     gtDir,
		LQRoot:     lqDir,
		Scale:      2,
		TargetSize: 8,
		Train:      true,
		DoCrop:     true,
	}
	if _, err := NewDownsampleDataset(cfg); err == nil {
		t.Fatal("expected an error for mismatched corpus sizes")
	}

	cfg.MismatchedSizesOK = true
	ds, err := NewDownsampleDataset(cfg)
	if err != nil {
		t.Fatalf("NewDownsampleDataset failed: %v", err)
	}
	if ds.Len() != 3 {
		t.Fatalf("Len() = %d, want the larger corpus size 3", ds.Len())
	}
	// Index 2 wraps the single-image LQ corpus.
	if _, err := ds.Sample(2); err != nil {
		t.Fatalf("Sample(2) failed: %v", err)
	}
}

func TestDownsampleYield(t *testing.T) {
	cfg := downsampleFixture(t, 3)
	cfg.BatchSize = 2
	ds, err := NewDownsampleDataset(cfg)
	if err != nil {
		t.Fatalf("NewDownsampleDataset failed: %v", err)
	}

	_, inputs, labels, err := ds.Yield()
	if err != nil {
		t.Fatalf("Yield failed: %v", err)
	}
	if len(inputs) != 1 || len(labels) != 2 {
		t.Fatalf("got %d inputs and %d labels, want 1 and 2", len(inputs), len(labels))
	}
	if err := inputs[0].Shape().Check(dtypes.Float32, 2, 16, 16, 3); err != nil {
		t.Errorf("input shape: %v", err)
	}
	if err := labels[0].Shape().Check(dtypes.Float32, 2, 8, 8, 3); err != nil {
		t.Errorf("LQ label shape: %v", err)
	}
	if err := labels[1].Shape().Check(dtypes.Float32, 2, 8, 8, 3); err != nil {
		t.Errorf("PIX label shape: %v", err)
	}

	// Only one of the remaining samples is left; the batch cannot be
	// filled, so the epoch ends.
	if _, _, _, err := ds.Yield(); err != io.EOF {
		t.Fatalf("second Yield = %v, want io.EOF", err)
	}
	ds.Reset()
	if _, _, _, err := ds.Yield(); err != nil {
		t.Fatalf("Yield after Reset failed: %v", err)
	}
}
