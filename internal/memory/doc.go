// Package memory sets the runtime memory limit from the container
// environment and holds back rendering when the heap nears it.
//
// [ConfigureFromEnv] runs first thing in main. GOMEMLIMIT is respected
// as is; otherwise MEMORY_LIMIT (bytes, typically from the Kubernetes
// Downward API) times MEMORY_RATIO (default 0.85) becomes the limit.
//
// A [Monitor] satisfies workers.Throttle: once usage reaches the pause
// mark, [Monitor.Wait] blocks new render tasks until usage falls below
// the resume mark.
package memory
