package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings(t *testing.T) Settings {
	t.Helper()
	s := Defaults()
	s.RootPath = t.TempDir()
	return s
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	d := Defaults()
	assert.Equal(t, 1200, d.CoverWidth)
	assert.Equal(t, 2500, d.ScanStrategyMaxWidth)
	assert.Equal(t, 2500, d.ScanStrategyMaxLength)
	assert.Equal(t, 5000000, d.ScanStrategyMaxPixelArea)
	assert.Equal(t, 1920, d.CompressedWidth)
	assert.True(t, d.UseThreadPool)
	assert.Equal(t, 9, d.ThreadPoolMaxWorkers)
	assert.Equal(t, 30, d.ThreadPoolIdleTimeout)
	assert.Contains(t, d.ImageExts, ".webp")
	assert.True(t, d.ImageExtSet().Has(".avif"))
}

func TestValidatorReportsJSONNames(t *testing.T) {
	t.Parallel()

	s := validSettings(t)
	s.RootPath = filepath.Join(s.RootPath, "missing")
	s.CoverWidth = 0
	s.ImageExts = nil

	err := NewValidator().Validate(s)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "must be an existing directory", verr.Fields["root_path"])
	assert.Equal(t, "must be greater than 0", verr.Fields["cover_width"])
	assert.Contains(t, verr.Fields, "image_exts")
	assert.Contains(t, err.Error(), "cover_width must be greater than 0")
}

func TestOpenMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store, err := Open(filepath.Join(t.TempDir(), "settings.yaml"), root)
	require.NoError(t, err)

	got := store.Get()
	assert.Equal(t, root, got.RootPath)
	assert.Equal(t, 1200, got.CoverWidth)
}

func TestOpenFillsMissingKeys(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	content := "root_path: " + dir + "\ncover_width: 800\nauto_scan_on_startup: true\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	store, err := Open(path, "")
	require.NoError(t, err)

	got := store.Get()
	assert.Equal(t, 800, got.CoverWidth)
	assert.True(t, got.AutoScanOnStartup)
	assert.Equal(t, 1920, got.CompressedWidth)
	assert.Equal(t, DefaultVersion, got.Version)
}

func TestOpenRejectsMalformedYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cover_width: [unterminated"), 0o644))

	_, err := Open(path, "")
	assert.Error(t, err)
}

func TestUpdatePersistsAndNotifies(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "conf", "settings.yaml")
	store, err := Open(path, "")
	require.NoError(t, err)

	var notified Settings
	store.OnChange(func(s Settings) { notified = s })

	next := validSettings(t)
	next.Version = ""
	next.CompressedWidth = 1600
	saved, err := store.Update(next)
	require.NoError(t, err)
	assert.Equal(t, DefaultVersion, saved.Version)
	assert.Equal(t, 1600, notified.CompressedWidth)

	reopened, err := Open(path, "")
	require.NoError(t, err)
	assert.Equal(t, 1600, reopened.Get().CompressedWidth)
	assert.Equal(t, next.RootPath, reopened.Get().RootPath)
}

func TestUpdateRejectsInvalid(t *testing.T) {
	t.Parallel()

	store, err := Open(filepath.Join(t.TempDir(), "settings.yaml"), "")
	require.NoError(t, err)

	bad := validSettings(t)
	bad.ThreadPoolMaxWorkers = 0
	_, err = store.Update(bad)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "thread_pool_max_workers")
	assert.Equal(t, 9, store.Get().ThreadPoolMaxWorkers, "store must keep previous settings")
}

func TestGetReturnsCopy(t *testing.T) {
	t.Parallel()

	store, err := Open(filepath.Join(t.TempDir(), "settings.yaml"), t.TempDir())
	require.NoError(t, err)

	s := store.Get()
	s.ImageExts[0] = ".mutated"
	assert.NotEqual(t, ".mutated", store.Get().ImageExts[0])
}
