package engine

import "testing"

func TestParseVersion(t *testing.T) {
	tests := []struct {
		raw                 string
		major, minor, patch int
	}{
		{"24.0.7", 24, 0, 7},
		{"v27.3.1", 27, 3, 1},
		{"4.9.3-rhel", 4, 9, 3},
		{"20.10", 20, 10, 0},
	}
	for _, tt := range tests {
		v, err := ParseVersion(tt.raw)
		if err != nil {
			t.Errorf("ParseVersion(%q) error: %v", tt.raw, err)
			continue
		}
		if v.Major != tt.major || v.Minor != tt.minor || v.Patch != tt.patch {
			t.Errorf("ParseVersion(%q) = %d.%d.%d, want %d.%d.%d",
				tt.raw, v.Major, v.Minor, v.Patch, tt.major, tt.minor, tt.patch)
		}
		if v.Raw != tt.raw {
			t.Errorf("raw = %q, want %q", v.Raw, tt.raw)
		}
	}
}

func TestParseVersionGarbage(t *testing.T) {
	if _, err := ParseVersion("not-a-version"); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestBelowMinimum(t *testing.T) {
	tests := []struct {
		kind Kind
		raw  string
		want bool
	}{
		{KindDocker, "19.03.15", true},
		{KindDocker, "20.10.0", false},
		{KindDocker, "27.3.1", false},
		{KindPodman, "3.4.4", true},
		{KindPodman, "4.9.3", false},
		{KindPodman, "garbage", false}, // unparseable is never flagged
	}
	for _, tt := range tests {
		v, _ := ParseVersion(tt.raw)
		if v.Raw == "" {
			v.Raw = tt.raw
		}
		if got := BelowMinimum(tt.kind, v); got != tt.want {
			t.Errorf("BelowMinimum(%s, %q) = %v, want %v", tt.kind, tt.raw, got, tt.want)
		}
	}
}

func TestVersionString(t *testing.T) {
	v := Version{Major: 4, Minor: 9, Patch: 3}
	if v.String() != "4.9.3" {
		t.Errorf("string = %q", v.String())
	}
	v.Raw = "4.9.3-rhel"
	if v.String() != "4.9.3-rhel" {
		t.Errorf("string = %q, want raw when present", v.String())
	}
}
