package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ashwake/audiocache/internal/model"
)

// DefaultFileNameFormat is used when no filename template is configured.
const DefaultFileNameFormat = "{artist}/{album}/{tracknum} {title}"

// Settings holds all configuration options.
type Settings struct {
	// Server settings
	ListenAddr string `json:"listen_addr"`

	// Instances is the upstream pool, tried in order with failover.
	Instances []string `json:"instances"`

	// Storage settings
	StorageRoot string `json:"storage_root"`
	CacheDBPath string `json:"cache_db_path"`

	// File naming
	FileNameFormat string `json:"file_name_format"`

	// ForcedQuality overrides the quality of every trigger request when
	// set to a stored tier. The value "player" means passthrough: honor
	// whatever the caller asked for.
	ForcedQuality string `json:"forced_quality"`

	// Cover art settings
	SaveCoverArt    bool `json:"save_cover_art"`
	CoverArtMaxSize int  `json:"cover_art_max_size"`

	// Tag settings
	ModifyTags bool `json:"modify_tags"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	root := filepath.Join(homeDir, "Music", "audiocache")
	return &Settings{
		ListenAddr: ":8405",
		Instances: []string{
			"https://api.monochrome.tf",
			"https://arran.monochrome.tf",
			"https://triton.squid.wtf",
			"https://hifi-one.spotisaver.net",
			"https://hifi-two.spotisaver.net",
		},
		StorageRoot:     root,
		CacheDBPath:     filepath.Join(root, "cache.db"),
		FileNameFormat:  DefaultFileNameFormat,
		ForcedQuality:   string(model.QualityPlayer),
		SaveCoverArt:    true,
		CoverArtMaxSize: 1000,
		ModifyTags:      true,
	}
}

// Load reads settings from a JSON file. A missing file is not an error;
// defaults are returned so the server can run unconfigured.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// Save writes settings to a JSON file.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// FileNameTemplate returns the configured filename template, falling
// back to the default when the preference store supplied nothing.
func (s *Settings) FileNameTemplate() string {
	if s.FileNameFormat == "" {
		return DefaultFileNameFormat
	}
	return s.FileNameFormat
}

// ForcedQualityValue returns the server-side forced quality and whether
// one is in effect. The passthrough sentinel and any unrecognized value
// report false.
func (s *Settings) ForcedQualityValue() (model.Quality, bool) {
	q := model.Quality(s.ForcedQuality)
	if !q.Stored() {
		return "", false
	}
	return q, true
}
