package settings

import (
	"time"

	"book-library/internal/mediatypes"
)

// DefaultVersion is reported when the settings file carries no version.
const DefaultVersion = "v1.0.0"

// Settings are the library settings. Field names on the wire match the
// settings file keys.
type Settings struct {
	RootPath                 string   `yaml:"root_path" json:"root_path" validate:"required,dir"`
	IgnoredFileTypes         []string `yaml:"ignored_file_types" json:"ignored_file_types" validate:"dive,required"`
	CoverWidth               int      `yaml:"cover_width" json:"cover_width" validate:"gt=0"`
	ScanStrategyMaxWidth     int      `yaml:"scan_strategy_max_width" json:"scan_strategy_max_width" validate:"gt=0"`
	ScanStrategyMaxLength    int      `yaml:"scan_strategy_max_length" json:"scan_strategy_max_length" validate:"gt=0"`
	ScanStrategyMaxPixelArea int      `yaml:"scan_strategy_max_pixel_area" json:"scan_strategy_max_pixel_area" validate:"gt=0"`
	CompressedWidth          int      `yaml:"compressedWidth" json:"compressedWidth" validate:"gt=0"`
	ImageExts                []string `yaml:"image_exts" json:"image_exts" validate:"min=1,dive,required"`
	AutoScanOnStartup        bool     `yaml:"auto_scan_on_startup" json:"auto_scan_on_startup"`
	UseThreadPool            bool     `yaml:"use_thread_pool" json:"use_thread_pool"`
	ThreadPoolMaxWorkers     int      `yaml:"thread_pool_max_workers" json:"thread_pool_max_workers" validate:"gte=1,lte=256"`
	ThreadPoolIdleTimeout    int      `yaml:"thread_pool_idle_timeout" json:"thread_pool_idle_timeout" validate:"gte=0"`
	Version                  string   `yaml:"version" json:"version"`
}

// Defaults returns the built-in settings. RootPath is left empty.
func Defaults() Settings {
	return Settings{
		IgnoredFileTypes:         []string{},
		CoverWidth:               1200,
		ScanStrategyMaxWidth:     2500,
		ScanStrategyMaxLength:    2500,
		ScanStrategyMaxPixelArea: 5000000,
		CompressedWidth:          1920,
		ImageExts:                append([]string(nil), mediatypes.DefaultImageExtensions...),
		AutoScanOnStartup:        false,
		UseThreadPool:            true,
		ThreadPoolMaxWorkers:     9,
		ThreadPoolIdleTimeout:    30,
		Version:                  DefaultVersion,
	}
}

// ImageExtSet returns the configured image extensions as a normalized set.
func (s Settings) ImageExtSet() mediatypes.ExtSet {
	return mediatypes.NewExtSet(s.ImageExts...)
}

// IgnoredExtSet returns the ignored extensions as a normalized set.
func (s Settings) IgnoredExtSet() mediatypes.ExtSet {
	return mediatypes.NewExtSet(s.IgnoredFileTypes...)
}

// IdleTimeout returns the worker pool idle timeout as a duration.
func (s Settings) IdleTimeout() time.Duration {
	return time.Duration(s.ThreadPoolIdleTimeout) * time.Second
}

// clone returns a deep copy so callers cannot mutate the store's slices.
func (s Settings) clone() Settings {
	s.IgnoredFileTypes = append([]string(nil), s.IgnoredFileTypes...)
	s.ImageExts = append([]string(nil), s.ImageExts...)
	return s
}

// fillDefaults replaces zero values left by an older or partial file.
func (s *Settings) fillDefaults() {
	d := Defaults()
	if s.CoverWidth == 0 {
		s.CoverWidth = d.CoverWidth
	}
	if s.ScanStrategyMaxWidth == 0 {
		s.ScanStrategyMaxWidth = d.ScanStrategyMaxWidth
	}
	if s.ScanStrategyMaxLength == 0 {
		s.ScanStrategyMaxLength = d.ScanStrategyMaxLength
	}
	if s.ScanStrategyMaxPixelArea == 0 {
		s.ScanStrategyMaxPixelArea = d.ScanStrategyMaxPixelArea
	}
	if s.CompressedWidth == 0 {
		s.CompressedWidth = d.CompressedWidth
	}
	if len(s.ImageExts) == 0 {
		s.ImageExts = d.ImageExts
	}
	if s.IgnoredFileTypes == nil {
		s.IgnoredFileTypes = []string{}
	}
	if s.ThreadPoolMaxWorkers == 0 {
		s.ThreadPoolMaxWorkers = d.ThreadPoolMaxWorkers
	}
	if s.Version == "" {
		s.Version = d.Version
	}
}
