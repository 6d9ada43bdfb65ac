package filesystem

import "testing"

func TestVolumeResolverNestedRoots(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"database": "/data/",
		"cache":    "/data/cache",
	})

	if got := vr.Resolve("/data/cache/../library.db"); got != "database" {
		t.Errorf("cleaned path resolved to %q", got)
	}
	if got := vr.Resolve("/data/cache"); got != "cache" {
		t.Errorf("volume root resolved to %q", got)
	}
}

func TestVolumeResolverEmpty(t *testing.T) {
	if got := NewVolumeResolver(nil).Resolve("/books"); got != unknownVolume {
		t.Errorf("empty resolver = %q", got)
	}
}

func TestRetryEventString(t *testing.T) {
	want := map[RetryEvent]string{
		RetryStale:     "stale",
		RetryScheduled: "scheduled",
		RetryRecovered: "recovered",
		RetryExhausted: "exhausted",
		RetryEvent(42): "unknown",
	}
	for e, s := range want {
		if e.String() != s {
			t.Errorf("%d.String() = %q, want %q", int(e), e.String(), s)
		}
	}
}
