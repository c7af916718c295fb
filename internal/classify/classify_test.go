package classify

import (
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code string
		want int
	}{
		{"PT1H2M3S", 3723},
		{"PT45S", 45},
		{"PT1M5S", 65},
		{"PT1M", 60},
		{"PT2H", 7200},
		{"PT0S", 0},
		{"", 0},
		{"not-a-duration", 0},
	}
	for _, tt := range tests {
		if got := ParseDuration(tt.code); got != tt.want {
			t.Errorf("ParseDuration(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()
	tests := []struct {
		seconds int
		want    string
	}{
		{3723, "1h 2m 3s"},
		{65, "1m 5s"},
		{45, "45s"},
		{0, "0s"},
		{3600, "1h 0m 0s"},
		{-5, "0s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestClassifyBoundary(t *testing.T) {
	t.Parallel()

	// Exactly 60 seconds is still a Short; one more second makes it a video.
	if c := Classify(Input{DurationCode: "PT1M"}); c.Kind != KindShort {
		t.Fatalf("60s classified as %v, want Short", c.Kind)
	}
	if c := Classify(Input{DurationCode: "PT1M1S"}); c.Kind != KindLong {
		t.Fatalf("61s classified as %v, want Long", c.Kind)
	}
}

func TestClassifyLiveOverridesDuration(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := Classify(Input{DurationCode: "PT1H", LiveStart: start})
	if c.Kind != KindLive {
		t.Fatalf("live item classified as %v, want Live", c.Kind)
	}
	if c.DurationSeconds != 3600 {
		t.Fatalf("DurationSeconds = %d, want 3600", c.DurationSeconds)
	}
}

func TestClassifyVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   Input
		want Kind
	}{
		{"short clip", Input{DurationCode: "PT45S"}, KindShort},
		{"regular video", Input{DurationCode: "PT1M5S"}, KindLong},
		{"long video", Input{DurationCode: "PT2H30M"}, KindLong},
		{"ended live stream", Input{DurationCode: "PT1H", LiveStart: time.Unix(1700000000, 0)}, KindLive},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if c := Classify(tt.in); c.Kind != tt.want {
				t.Fatalf("Kind = %v, want %v", c.Kind, tt.want)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	t.Parallel()
	if KindLive.String() != "Live Stream" || KindShort.String() != "Short" || KindLong.String() != "Video" {
		t.Fatalf("unexpected kind labels: %q %q %q", KindLive, KindShort, KindLong)
	}
}
