package datasets

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

// TextCorpusConfig configures a TextCorpus.
type TextCorpusConfig struct {
	// Pattern is a filepath.Glob pattern matching newline-delimited text
	// files (e.g. "corpus/*.txt"). One line is one sample.
	Pattern string

	// Verbose shows a progress bar while the corpus index is built.
	Verbose bool
}

// TextCorpus provides lazy indexed access to an unpaired text corpus spread
// across newline-delimited files. Only line counts are kept in memory; the
// text itself is read on demand.
type TextCorpus struct {
	paths      []string
	lineCounts []int

	// Cumulative counts for fast global index mapping.
	cumCounts []int

	total int
}

// NewTextCorpus indexes all files matching the config pattern. Line counting
// runs one goroutine per file.
func NewTextCorpus(cfg TextCorpusConfig) (*TextCorpus, error) {
	paths, err := filepath.Glob(cfg.Pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob pattern %s: %w", cfg.Pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no text files found matching pattern: %s", cfg.Pattern)
	}

	c := &TextCorpus{
		paths:      paths,
		lineCounts: make([]int, len(paths)),
	}

	var pbar *progressbar.ProgressBar
	if cfg.Verbose {
		pbar = progressbar.Default(int64(len(paths)), "Indexing text corpus")
	}
	var mu sync.Mutex
	var g errgroup.Group
	for i, path := range paths {
		g.Go(func() error {
			count, err := countLines(path)
			if err != nil {
				return fmt.Errorf("failed to count lines in %s: %w", path, err)
			}
			mu.Lock()
			c.lineCounts[i] = count
			if pbar != nil {
				_ = pbar.Add(1)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if pbar != nil {
		_ = pbar.Finish()
	}

	c.cumCounts = make([]int, len(paths)+1)
	for i, count := range c.lineCounts {
		c.cumCounts[i+1] = c.cumCounts[i] + count
	}
	c.total = c.cumCounts[len(paths)]
	if c.total == 0 {
		return nil, fmt.Errorf("text corpus %s contains no lines", cfg.Pattern)
	}
	return c, nil
}

// Len returns the total number of lines across all corpus files.
func (c *TextCorpus) Len() int {
	return c.total
}

// Line reads the text sample at the given global index. No validation is
// applied here; callers decide which samples are usable (see ValidateText).
func (c *TextCorpus) Line(idx int) (string, error) {
	if idx < 0 || idx >= c.total {
		return "", fmt.Errorf("index %d out of range [0, %d)", idx, c.total)
	}
	fileIdx, localIdx := c.mapGlobalIndex(idx)

	file, err := os.Open(c.paths[fileIdx])
	if err != nil {
		return "", fmt.Errorf("failed to open corpus file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for i := 0; scanner.Scan(); i++ {
		if i == localIdx {
			return scanner.Text(), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to scan to line %d of %s: %w", localIdx, c.paths[fileIdx], err)
	}
	return "", fmt.Errorf("line %d missing from %s; corpus changed since indexing", localIdx, c.paths[fileIdx])
}

// mapGlobalIndex maps a global line index to (file index, line within file).
func (c *TextCorpus) mapGlobalIndex(globalIdx int) (fileIdx, localIdx int) {
	for i := range c.paths {
		if globalIdx < c.cumCounts[i+1] {
			return i, globalIdx - c.cumCounts[i]
		}
	}
	// Unreachable for a valid globalIdx.
	return len(c.paths) - 1, c.lineCounts[len(c.paths)-1] - 1
}

// ValidateText reports whether a corpus line is usable for training.
// Lines containing '*' are rejected: some text-only corpora use it to mask
// expletives and there is no linguistic use for the character. Invalid
// UTF-8 and blank lines are rejected as well.
func ValidateText(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Errorf("blank text sample")
	}
	if strings.ContainsRune(text, '*') {
		return fmt.Errorf("text sample contains masked content")
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("text sample is not valid UTF-8")
	}
	return nil
}
