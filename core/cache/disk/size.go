package disk

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// cacheEntry groups the files that make up one stored archive.
type cacheEntry struct {
	stem    string
	paths   []string
	size    int64
	modTime time.Time
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || entryStem(path) == "" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	return total, err
}

// entryStem returns path without its entry extension, or "" for files that
// are not part of an entry (such as in-progress temp files).
func entryStem(path string) string {
	for _, ext := range []string{payloadExt, manifestExt} {
		if strings.HasSuffix(path, ext) {
			return strings.TrimSuffix(path, ext)
		}
	}
	return ""
}

// pruneDir removes whole entries, least recently modified first, until the
// entry files under root total at most targetBytes.
func pruneDir(root string, targetBytes int64) (freed int64, remaining int64, err error) {
	if targetBytes < 0 {
		targetBytes = 0
	}

	byStem := make(map[string]*cacheEntry)
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		stem := entryStem(path)
		if !d.Type().IsRegular() || stem == "" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		e, ok := byStem[stem]
		if !ok {
			e = &cacheEntry{stem: stem}
			byStem[stem] = e
		}
		e.paths = append(e.paths, path)
		e.size += info.Size()
		if info.ModTime().After(e.modTime) {
			e.modTime = info.ModTime()
		}
		remaining += info.Size()
		return nil
	})
	if errors.Is(walkErr, os.ErrNotExist) {
		return 0, 0, nil
	}
	if walkErr != nil {
		return 0, 0, walkErr
	}
	if remaining <= targetBytes {
		return 0, remaining, nil
	}

	entries := make([]*cacheEntry, 0, len(byStem))
	for _, e := range byStem {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].modTime.Equal(entries[j].modTime) {
			return entries[i].stem < entries[j].stem
		}
		return entries[i].modTime.Before(entries[j].modTime)
	})

	for _, entry := range entries {
		if remaining <= targetBytes {
			break
		}
		// Manifest first so a half-removed entry is never valid.
		sort.Slice(entry.paths, func(i, j int) bool {
			return strings.HasSuffix(entry.paths[i], manifestExt) && !strings.HasSuffix(entry.paths[j], manifestExt)
		})
		for _, path := range entry.paths {
			info, statErr := os.Stat(path)
			if statErr != nil {
				continue
			}
			if err := os.Remove(path); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					continue
				}
				return freed, remaining, err
			}
			remaining -= info.Size()
			freed += info.Size()
		}
	}

	return freed, remaining, nil
}
