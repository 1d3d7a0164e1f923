package datasets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writePairedFixture writes count short WAV clips plus a metadata file
// referencing them with relative paths, and returns the metadata path.
func writePairedFixture(t *testing.T, dir string, entries map[string]string) string {
	t.Helper()
	var lines []string
	for name, transcript := range entries {
		writeWAV(t, filepath.Join(dir, name), 8000, 1, []int{0, 8192, -8192, 0})
		lines = append(lines, name+"|"+transcript)
	}
	metaPath := filepath.Join(dir, "metadata.csv")
	writeTextFile(t, metaPath, lines)
	return metaPath
}

func TestPairedVoiceDataset(t *testing.T) {
	dir := t.TempDir()
	meta := writePairedFixture(t, dir, map[string]string{
		"one.wav": "first transcript",
	})

	ds, err := NewPairedVoiceDataset(PairedVoiceConfig{
		MetadataPaths: []string{meta},
		SampleRate:    8000,
		Tokenizer:     stubTokenizer{},
	})
	if err != nil {
		t.Fatalf("NewPairedVoiceDataset failed: %v", err)
	}
	if ds.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", ds.Len())
	}

	s, err := ds.Sample(0)
	if err != nil {
		t.Fatalf("Sample(0) failed: %v", err)
	}
	if s.Text != "first transcript" {
		t.Errorf("Text = %q, want %q", s.Text, "first transcript")
	}
	if len(s.Tokens) != len("first transcript") {
		t.Errorf("got %d tokens, want %d", len(s.Tokens), len("first transcript"))
	}
	if len(s.Clip) != 4 {
		t.Errorf("clip has %d samples, want 4", len(s.Clip))
	}
	// Relative wav paths resolve against the metadata file's directory.
	if !strings.HasPrefix(s.Path, dir) {
		t.Errorf("Path = %q, want it under %q", s.Path, dir)
	}
	if _, err := os.Stat(s.Path); err != nil {
		t.Errorf("resolved path does not exist: %v", err)
	}
}

func TestPairedVoiceOverLengthIsFatal(t *testing.T) {
	dir := t.TempDir()
	meta := writePairedFixture(t, dir, map[string]string{
		"one.wav": "a transcript that is definitely too long",
	})

	ds, err := NewPairedVoiceDataset(PairedVoiceConfig{
		MetadataPaths: []string{meta},
		SampleRate:    8000,
		MaxWavLength:  2,
		Tokenizer:     stubTokenizer{},
	})
	if err != nil {
		t.Fatalf("NewPairedVoiceDataset failed: %v", err)
	}
	if _, err := ds.Sample(0); err == nil {
		t.Fatal("expected an error for an over-length clip")
	}

	ds, err = NewPairedVoiceDataset(PairedVoiceConfig{
		MetadataPaths: []string{meta},
		SampleRate:    8000,
		MaxTextLength: 5,
		Tokenizer:     stubTokenizer{},
	})
	if err != nil {
		t.Fatalf("NewPairedVoiceDataset failed: %v", err)
	}
	if _, err := ds.Sample(0); err == nil {
		t.Fatal("expected an error for an over-length transcript")
	}
}

func TestPairedVoiceBadMetadata(t *testing.T) {
	dir := t.TempDir()
	metaPath := filepath.Join(dir, "metadata.csv")
	writeTextFile(t, metaPath, []string{"no separator here"})

	_, err := NewPairedVoiceDataset(PairedVoiceConfig{
		MetadataPaths: []string{metaPath},
		Tokenizer:     stubTokenizer{},
	})
	if err == nil {
		t.Fatal("expected an error for a malformed metadata line")
	}
}
