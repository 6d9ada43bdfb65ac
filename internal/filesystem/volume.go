package filesystem

import (
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
)

const unknownVolume = "unknown"

// VolumeResolver labels paths with the configured directory that contains
// them. The most specific directory wins, so a cache dir nested in the
// data dir is reported as "cache".
type VolumeResolver struct {
	roots []volumeRoot
}

type volumeRoot struct {
	prefix string // cleaned absolute path ending in a separator
	label  string
}

// NewVolumeResolver builds a resolver from label to directory. Empty
// directories are ignored.
//
//	NewVolumeResolver(map[string]string{
//	    "library":  "/books",
//	    "cache":    "/data/cache",
//	    "database": "/data",
//	})
func NewVolumeResolver(volumes map[string]string) *VolumeResolver {
	vr := &VolumeResolver{}
	for label, dir := range volumes {
		if dir == "" {
			continue
		}
		vr.roots = append(vr.roots, volumeRoot{prefix: withSeparator(dir), label: label})
	}
	sort.Slice(vr.roots, func(i, j int) bool {
		return len(vr.roots[i].prefix) > len(vr.roots[j].prefix)
	})
	return vr
}

// Resolve returns the label of the innermost volume holding path, or
// "unknown".
func (vr *VolumeResolver) Resolve(path string) string {
	if vr == nil || len(vr.roots) == 0 {
		return unknownVolume
	}
	p := withSeparator(path)
	for _, r := range vr.roots {
		if strings.HasPrefix(p, r.prefix) {
			return r.label
		}
	}
	return unknownVolume
}

func withSeparator(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	path = filepath.Clean(path)
	if !strings.HasSuffix(path, string(filepath.Separator)) {
		path += string(filepath.Separator)
	}
	return path
}

var defaultResolver atomic.Pointer[VolumeResolver]

// SetDefaultVolumeResolver sets the resolver used when a RetryConfig
// carries none.
func SetDefaultVolumeResolver(vr *VolumeResolver) {
	defaultResolver.Store(vr)
}
