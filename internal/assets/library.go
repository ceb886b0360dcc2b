// Package assets maintains the registry of source media the timeline
// references. Clips point at assets by ID; compilation and playback
// resolve those references here.
package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dhowden/tag"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/cutline/internal/events"
)

// Kind classifies an asset by its media type.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
	KindImage Kind = "image"
)

var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".mov": true, ".avi": true,
	".webm": true, ".m4v": true, ".mts": true, ".mxf": true,
}

var audioExtensions = map[string]bool{
	".mp3": true, ".flac": true, ".wav": true, ".aac": true,
	".ogg": true, ".m4a": true, ".opus": true, ".wma": true,
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".tiff": true, ".bmp": true,
}

// KindForPath classifies a file by extension. Unknown extensions
// default to video, which is what an editor most often imports.
func KindForPath(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case audioExtensions[ext]:
		return KindAudio
	case imageExtensions[ext]:
		return KindImage
	case videoExtensions[ext]:
		return KindVideo
	default:
		return KindVideo
	}
}

// AudioTags is the embedded metadata read from audio files.
type AudioTags struct {
	Title       string `json:"title,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	AlbumArtist string `json:"album_artist,omitempty"`
	Genre       string `json:"genre,omitempty"`
}

// Asset is one registered source file. Online tracks whether the file
// is currently present on disk.
type Asset struct {
	ID         string     `json:"id"`
	Path       string     `json:"path"`
	Kind       Kind       `json:"kind"`
	Size       int64      `json:"size"`
	ModTime    time.Time  `json:"mod_time"`
	Online     bool       `json:"online"`
	Tags       AudioTags  `json:"tags,omitempty"`
	Info       *MediaInfo `json:"info,omitempty"`
	Registered time.Time  `json:"registered"`
}

// Library is the asset registry. It satisfies the path-resolver
// interfaces of the pipeline compiler and the playback synchronizer.
type Library struct {
	logger hclog.Logger
	bus    *events.Bus
	prober Prober

	mu     sync.RWMutex
	byID   map[string]*Asset
	byPath map[string]string
}

// NewLibrary creates an empty registry.
func NewLibrary(bus *events.Bus, logger hclog.Logger) *Library {
	return &Library{
		logger: logger.Named("assets"),
		bus:    bus,
		byID:   make(map[string]*Asset),
		byPath: make(map[string]string),
	}
}

// SetProber attaches a technical-metadata probe. Registered assets are
// probed; a probe failure does not fail registration.
func (l *Library) SetProber(p Prober) {
	l.prober = p
}

// Register adds a file to the registry and probes it. Registering a
// path twice returns the existing asset.
func (l *Library) Register(path string) (*Asset, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	l.mu.RLock()
	if id, ok := l.byPath[abs]; ok {
		asset := l.byID[id]
		l.mu.RUnlock()
		return asset.copy(), nil
	}
	l.mu.RUnlock()

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", abs, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", abs)
	}

	asset := &Asset{
		ID:         uuid.New().String(),
		Path:       abs,
		Kind:       KindForPath(abs),
		Size:       info.Size(),
		ModTime:    info.ModTime(),
		Online:     true,
		Registered: time.Now(),
	}
	if asset.Kind == KindAudio {
		asset.Tags = readAudioTags(abs, l.logger)
	}
	if l.prober != nil {
		info, err := l.prober.Probe(context.Background(), abs)
		if err != nil {
			l.logger.Warn("media probe failed", "path", abs, "error", err)
		} else {
			asset.Info = info
		}
	}

	l.mu.Lock()
	l.byID[asset.ID] = asset
	l.byPath[abs] = asset.ID
	l.mu.Unlock()

	l.logger.Info("asset registered", "asset_id", asset.ID, "path", abs, "kind", asset.Kind)
	l.publish(events.EventAssetRegistered, asset)
	return asset.copy(), nil
}

// Restore re-adds a previously registered asset, keeping its ID. The
// file is re-probed; a missing file comes back offline rather than
// failing the load.
func (l *Library) Restore(asset Asset) *Asset {
	a := asset
	a.Online = false
	if info, err := os.Stat(a.Path); err == nil && !info.IsDir() {
		a.Online = true
		a.Size = info.Size()
		a.ModTime = info.ModTime()
	}

	l.mu.Lock()
	l.byID[a.ID] = &a
	l.byPath[a.Path] = a.ID
	l.mu.Unlock()

	if !a.Online {
		l.logger.Warn("restored asset is offline", "asset_id", a.ID, "path", a.Path)
	}
	return a.copy()
}

// readAudioTags extracts embedded metadata. A file without readable
// tags is still a valid asset.
func readAudioTags(path string, logger hclog.Logger) AudioTags {
	file, err := os.Open(path)
	if err != nil {
		logger.Warn("failed to open audio file for tags", "path", path, "error", err)
		return AudioTags{}
	}
	defer file.Close()

	meta, err := tag.ReadFrom(file)
	if err != nil {
		logger.Debug("no readable tags", "path", path, "error", err)
		return AudioTags{}
	}
	return AudioTags{
		Title:       meta.Title(),
		Artist:      meta.Artist(),
		Album:       meta.Album(),
		AlbumArtist: meta.AlbumArtist(),
		Genre:       meta.Genre(),
	}
}

// Get returns an asset by ID.
func (l *Library) Get(assetID string) (*Asset, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	asset, ok := l.byID[assetID]
	if !ok {
		return nil, fmt.Errorf("asset not found: %s", assetID)
	}
	return asset.copy(), nil
}

// List returns all registered assets.
func (l *Library) List() []*Asset {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*Asset, 0, len(l.byID))
	for _, a := range l.byID {
		out = append(out, a.copy())
	}
	return out
}

// Remove drops an asset from the registry.
func (l *Library) Remove(assetID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	asset, ok := l.byID[assetID]
	if !ok {
		return fmt.Errorf("asset not found: %s", assetID)
	}
	delete(l.byID, assetID)
	delete(l.byPath, asset.Path)
	return nil
}

// ResolvePath returns the on-disk path of an online asset. Offline or
// unknown assets are unresolvable, which fails compilation of jobs
// referencing them.
func (l *Library) ResolvePath(assetID string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	asset, ok := l.byID[assetID]
	if !ok {
		return "", fmt.Errorf("asset not found: %s", assetID)
	}
	if !asset.Online {
		return "", fmt.Errorf("asset offline: %s (%s)", assetID, asset.Path)
	}
	return asset.Path, nil
}

// setOnline flips an asset's presence state by path. Returns the
// affected asset when the state actually changed.
func (l *Library) setOnline(path string, online bool) *Asset {
	l.mu.Lock()
	defer l.mu.Unlock()

	id, ok := l.byPath[path]
	if !ok {
		return nil
	}
	asset := l.byID[id]
	if asset.Online == online {
		return nil
	}
	asset.Online = online
	return asset.copy()
}

func (l *Library) publish(t events.EventType, asset *Asset) {
	if l.bus == nil {
		return
	}
	l.bus.Publish(events.Event{
		Type:   t,
		Source: "assets",
		Data: map[string]interface{}{
			"asset_id": asset.ID,
			"path":     asset.Path,
			"kind":     string(asset.Kind),
		},
	})
}

func (a *Asset) copy() *Asset {
	c := *a
	return &c
}
