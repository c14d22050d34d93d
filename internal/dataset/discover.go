package dataset

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
)

var midiRegexp = regexp.MustCompile(`(?i)\.midi?$`)

// Discover returns the standard MIDI files beneath root, sorted.
func Discover(root string) ([]string, error) {
	entries := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if midiRegexp.MatchString(d.Name()) {
			entries = append(entries, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover midi files: %w", err)
	}
	sort.Strings(entries)
	return entries, nil
}

// DiscoverByRoot scans each root independently.
func DiscoverByRoot(roots []string) (map[string][]string, error) {
	result := make(map[string][]string, len(roots))
	for _, root := range roots {
		files, err := Discover(root)
		if err != nil {
			return nil, err
		}
		result[root] = files
	}
	return result, nil
}
