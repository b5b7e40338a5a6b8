package soundboard

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Index maps soundboard categories to sound names and back. Sound names
// are globally unique across categories; construction fails otherwise.
// The index is read-only once built; rebuild it to pick up new files.
type Index struct {
	dir              string
	categoryToSounds map[string][]string
	soundToCategory  map[string]string
	soundToFile      map[string]string
	names            []string
	recent           []string
}

// BuildIndex scans one level of category subdirectories under dir.
func BuildIndex(dir string, recentCount int) (*Index, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read sound directory: %w", err)
	}

	idx := &Index{
		dir:              dir,
		categoryToSounds: make(map[string][]string),
		soundToCategory:  make(map[string]string),
		soundToFile:      make(map[string]string),
	}

	type soundFile struct {
		name    string
		modTime time.Time
	}
	var files []soundFile

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		category := entry.Name()
		sounds, err := os.ReadDir(filepath.Join(dir, category))
		if err != nil {
			return nil, fmt.Errorf("read category %s: %w", category, err)
		}
		var names []string
		for _, f := range sounds {
			if f.IsDir() {
				continue
			}
			name := strings.TrimSuffix(f.Name(), filepath.Ext(f.Name()))
			if prev, ok := idx.soundToCategory[name]; ok {
				return nil, fmt.Errorf("duplicate sound name: %s/%s vs %s/%s", prev, name, category, name)
			}
			idx.soundToCategory[name] = category
			idx.soundToFile[name] = f.Name()
			names = append(names, name)

			info, err := f.Info()
			if err != nil {
				return nil, fmt.Errorf("stat %s/%s: %w", category, f.Name(), err)
			}
			files = append(files, soundFile{name: name, modTime: info.ModTime()})
		}
		sort.Strings(names)
		idx.categoryToSounds[category] = names
	}

	idx.names = make([]string, 0, len(idx.soundToCategory))
	for name := range idx.soundToCategory {
		idx.names = append(idx.names, name)
	}
	sort.Strings(idx.names)

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})
	if len(files) > recentCount {
		files = files[:recentCount]
	}
	for _, f := range files {
		idx.recent = append(idx.recent, f.name)
	}

	return idx, nil
}

func (idx *Index) Categories() []string {
	cats := make([]string, 0, len(idx.categoryToSounds))
	for c := range idx.categoryToSounds {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats
}

func (idx *Index) Sounds(category string) ([]string, bool) {
	sounds, ok := idx.categoryToSounds[category]
	return sounds, ok
}

func (idx *Index) Category(sound string) (string, bool) {
	category, ok := idx.soundToCategory[sound]
	return category, ok
}

// Names returns all sound names in stable sorted order. Fuzzy matching
// iterates this slice, so tie-breaks are deterministic.
func (idx *Index) Names() []string {
	return idx.names
}

// Recent returns the newest sound names, newest first.
func (idx *Index) Recent() []string {
	return idx.recent
}

func (idx *Index) Len() int {
	return len(idx.soundToCategory)
}

// Path returns the asset path for a known sound name, whatever
// extension the file on disk carries.
func (idx *Index) Path(sound string) (string, bool) {
	category, ok := idx.soundToCategory[sound]
	if !ok {
		return "", false
	}
	return filepath.Join(idx.dir, category, idx.soundToFile[sound]), true
}
