package version

import "testing"

func TestResolve(t *testing.T) {
	t.Parallel()

	vcs := func() (string, string) { return "0123456789abcdef", "2026-01-02T03:04:05Z" }

	info := resolve("1.2.0", "", "", vcs)
	if info.Commit != "0123456789abcdef" || info.BuildTime != "2026-01-02T03:04:05Z" {
		t.Fatalf("expected vcs stamp, got %+v", info)
	}
	if got := info.String(); got != "1.2.0 (0123456)" {
		t.Fatalf("unexpected string %q", got)
	}

	info = resolve("1.2.0", "abc", "yesterday", vcs)
	if info.Commit != "abc" || info.BuildTime != "yesterday" {
		t.Fatalf("ldflags should win, got %+v", info)
	}

	info = resolve("dev", "", "", func() (string, string) { return "", "" })
	if got := info.String(); got != "dev" {
		t.Fatalf("unexpected string %q", got)
	}
}
