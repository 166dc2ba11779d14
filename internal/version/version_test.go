package version

import "testing"

func TestInfoString(t *testing.T) {
	info := Info{Version: "1.2.0", Commit: "abc123", BuildTime: "2026-03-01T12:00:00Z"}
	if got, want := info.String(), "1.2.0 (abc123) built 2026-03-01T12:00:00Z"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if Get().Version == "" {
		t.Error("Get().Version is empty")
	}
}
