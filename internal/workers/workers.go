package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Count sizes a pool at multiplier workers per usable CPU, clamped to
// [1, limit] (limit 0 means unbounded). A positive RENDER_WORKERS replaces
// the CPU-derived figure but is still clamped.
func Count(multiplier float64, limit int) int {
	n, ok := envWorkers()
	if !ok {
		n = int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	}
	n = max(n, 1)
	if limit > 0 {
		n = min(n, limit)
	}
	return n
}

func envWorkers() (int, bool) {
	n, err := strconv.Atoi(os.Getenv("RENDER_WORKERS"))
	return n, err == nil && n > 0
}

// ForCPU is Count with one worker per CPU, the right size for image
// decoding and resizing.
func ForCPU(limit int) int {
	return Count(1, limit)
}
