package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"vidscribe/internal/services"
)

// Item is one input video and the artifact paths derived from its base name.
type Item struct {
	Path           string
	Name           string
	Base           string
	SizeBytes      int64
	TranscriptPath string
	SubtitlePath   string
	AudioPath      string
}

// Discover lists regular files directly inside dir whose extension matches
// one of extensions (case-insensitive), sorted by file name. Output paths are
// left empty until the runner assigns them.
func Discover(dir string, extensions []string) ([]Item, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, "discover", "read input dir", dir, err)
		}
		return nil, services.Wrap(services.ErrConfiguration, "discover", "read input dir", dir, err)
	}

	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}

	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if _, ok := allowed[strings.ToLower(ext)]; !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		items = append(items, Item{
			Path:      filepath.Join(dir, name),
			Name:      name,
			Base:      strings.TrimSuffix(name, ext),
			SizeBytes: info.Size(),
		})
	}
	slices.SortFunc(items, func(a, b Item) int { return strings.Compare(a.Name, b.Name) })
	return items, nil
}
