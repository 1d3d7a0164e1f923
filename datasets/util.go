package datasets

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func clamp(x, minimum, maximum int) int {
	if x < minimum {
		return minimum
	}
	if x > maximum {
		return maximum
	}
	return x
}

// findFilesOfType walks each root recursively and returns every regular file
// whose extension is in exts (lower-cased, including the dot). The result is
// sorted so corpus indices are stable across runs.
func findFilesOfType(roots []string, exts map[string]bool) ([]string, error) {
	var paths []string
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("failed to stat corpus root %s: %w", root, err)
		}
		if !info.IsDir() {
			if exts[strings.ToLower(filepath.Ext(root))] {
				paths = append(paths, root)
			}
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if exts[strings.ToLower(filepath.Ext(path))] {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk corpus root %s: %w", root, err)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// countLines counts newline-delimited records in a text file.
func countLines(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	count := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return count, nil
}

// maxLineBytes bounds a single corpus line; longer lines fail the scan
// instead of silently truncating.
const maxLineBytes = 1 << 20
