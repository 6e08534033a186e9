package playback

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"telecast/models"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// LocalLibrary scans configured directories for playable media files. It runs
// on an afero filesystem so tests exercise real walks without touching disk.
type LocalLibrary struct {
	fs   afero.Fs
	dirs []string
}

func NewLocalLibrary(fs afero.Fs, dirs []string) *LocalLibrary {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &LocalLibrary{fs: fs, dirs: dirs}
}

// Scan walks every configured directory and returns the playable file paths,
// sorted. Unreadable entries are skipped, not fatal.
func (l *LocalLibrary) Scan() ([]string, error) {
	var paths []string
	for _, dir := range l.dirs {
		err := afero.Walk(l.fs, dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if info.IsDir() || !l.playableFile(path) {
				return nil
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", dir, err)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// playableFile sniffs the file's content and accepts video and audio streams.
func (l *LocalLibrary) playableFile(path string) bool {
	f, err := l.fs.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mt.String(), "video/") || strings.HasPrefix(mt.String(), "audio/")
}

// BuildLocalQueue produces a queue over local file paths. Local files carry no
// fallback alternates: the file either plays or it does not.
func BuildLocalQueue(paths []string, selected string) models.PlaybackQueue {
	queue := models.PlaybackQueue{
		Items: make([]models.PlaybackQueueItem, 0, len(paths)),
	}
	for _, path := range paths {
		uri := fileURI(path)
		queue.Items = append(queue.Items, models.PlaybackQueueItem{
			MediaID: models.MediaID{Type: models.ContentTypeLocal, Path: uri},
			Title:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			Type:    models.ContentTypeLocal,
			URI:     uri,
		})
		if path == selected {
			queue.StartIndex = len(queue.Items) - 1
		}
	}
	return queue
}

func fileURI(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return "file://" + filepath.ToSlash(path)
}
