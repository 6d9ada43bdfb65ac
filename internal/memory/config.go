package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"book-library/internal/logging"
)

// DefaultHeapRatio is the share of the container limit given to the Go
// heap. The rest covers libvips, pdftocairo children and stacks.
const DefaultHeapRatio = 0.85

// Source names where the runtime memory limit came from.
type Source string

const (
	SourceNone       Source = "none"
	SourceGoMemLimit Source = "GOMEMLIMIT"
	SourceContainer  Source = "MEMORY_LIMIT"
)

// Limits describes the memory limit applied at startup.
type Limits struct {
	Source Source

	// Container is the MEMORY_LIMIT value in bytes, zero when unset.
	Container int64

	// Heap is the runtime soft limit in bytes, zero when none is set.
	Heap int64

	Ratio float64
}

// Configured reports whether the runtime has a soft memory limit.
func (l Limits) Configured() bool {
	return l.Heap > 0
}

// ConfigureFromEnv applies the memory limit described by the process
// environment. Call it before the first large allocation.
func ConfigureFromEnv() Limits {
	return Configure(os.Getenv)
}

// Configure is ConfigureFromEnv with an explicit variable lookup.
// GOMEMLIMIT wins when present; otherwise MEMORY_LIMIT scaled by
// MEMORY_RATIO becomes the runtime limit.
func Configure(getenv func(string) string) Limits {
	if v := getenv("GOMEMLIMIT"); v != "" {
		logging.Info("GOMEMLIMIT set via environment: %s", v)
		limits := Limits{Source: SourceNone}
		if current := debug.SetMemoryLimit(-1); current > 0 && current < math.MaxInt64 {
			limits = Limits{Source: SourceGoMemLimit, Heap: current}
		}
		return limits
	}

	raw := getenv("MEMORY_LIMIT")
	if raw == "" {
		logging.Debug("MEMORY_LIMIT not set, leaving the runtime memory limit alone")
		return Limits{Source: SourceNone}
	}
	container, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || container <= 0 {
		logging.Warn("Ignoring MEMORY_LIMIT %q: not a positive byte count", raw)
		return Limits{Source: SourceNone}
	}

	ratio := parseRatio(getenv("MEMORY_RATIO"))
	heap := int64(float64(container) * ratio)
	debug.SetMemoryLimit(heap)

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		FormatBytes(heap), ratio*100, FormatBytes(container))
	return Limits{Source: SourceContainer, Container: container, Heap: heap, Ratio: ratio}
}

func parseRatio(raw string) float64 {
	if raw == "" {
		return DefaultHeapRatio
	}
	r, err := strconv.ParseFloat(raw, 64)
	if err != nil || r <= 0 || r > 1 {
		logging.Warn("MEMORY_RATIO %q must be in (0, 1], using %.2f", raw, DefaultHeapRatio)
		return DefaultHeapRatio
	}
	return r
}

// FormatBytes renders b with binary units, one decimal above 1 KiB.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	value, suffix := float64(b)/unit, 0
	for value >= unit && suffix < 5 {
		value /= unit
		suffix++
	}
	return strconv.FormatFloat(value, 'f', 1, 64) + " " + string("KMGTPE"[suffix]) + "iB"
}
