package xplat

import "testing"

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		input  string
		want   Platform
		wantOk bool
	}{
		{"android", Android, true},
		{" iOS ", IOS, true},
		{"Windows", Windows, true},
		{"tizen-7", Platform("tizen-7"), true},
		{"", "", false},
		{"mac os", "", false},
	}

	for _, tt := range tests {
		got, ok := ParsePlatform(tt.input)
		if ok != tt.wantOk {
			t.Errorf("ParsePlatform(%q) ok = %v, want %v", tt.input, ok, tt.wantOk)
		}
		if got != tt.want {
			t.Errorf("ParsePlatform(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDefaultStrategy(t *testing.T) {
	if DefaultStrategy(IOS) != MatchPrefix {
		t.Error("ios should match by prefix")
	}
	for _, p := range []Platform{Android, Windows, Wasm, "other"} {
		if DefaultStrategy(p) != MatchExact {
			t.Errorf("%s should match exactly", p)
		}
	}
}

func TestParseStrategy(t *testing.T) {
	if s, ok := ParseStrategy("PREFIX"); !ok || s != MatchPrefix {
		t.Errorf("ParseStrategy(PREFIX) = %q, %v", s, ok)
	}
	if _, ok := ParseStrategy("glob"); ok {
		t.Error("glob is not a strategy")
	}
}

func TestSortAndJoinPlatforms(t *testing.T) {
	ps := SortPlatforms([]Platform{Windows, Android, IOS})
	if got := JoinPlatforms(ps); got != "android, ios, windows" {
		t.Errorf("JoinPlatforms = %q", got)
	}
}
