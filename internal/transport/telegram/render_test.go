package telegram

import (
	"strings"
	"testing"
	"time"

	"tubewatch/internal/classify"
	"tubewatch/internal/resolver"
)

func TestRenderPayloadUpload(t *testing.T) {
	p := &resolver.Payload{
		ChannelName:  "Some Channel",
		Title:        "A <great> video",
		Description:  "First line & more",
		URL:          "https://www.youtube.com/watch?v=abc123",
		PublishedAt:  time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Kind:         classify.KindLong,
		DurationText: "1h 2m 3s",
	}
	msg := renderPayload(p)

	if !strings.Contains(msg, "<b>Some Channel</b>") {
		t.Fatalf("channel line missing: %q", msg)
	}
	if !strings.Contains(msg, `<a href="https://www.youtube.com/watch?v=abc123">A &lt;great&gt; video</a>`) {
		t.Fatalf("title link missing or unescaped: %q", msg)
	}
	if !strings.Contains(msg, "First line &amp; more") {
		t.Fatalf("description missing or unescaped: %q", msg)
	}
	if !strings.Contains(msg, "New Video has been uploaded! (1h 2m 3s)") {
		t.Fatalf("footer missing: %q", msg)
	}
	if !strings.Contains(msg, "2024-06-01 12:00 UTC") {
		t.Fatalf("timestamp missing: %q", msg)
	}
}

func TestRenderPayloadShort(t *testing.T) {
	p := &resolver.Payload{
		ChannelName:  "Some Channel",
		Title:        "quick clip",
		URL:          "https://www.youtube.com/watch?v=s1",
		Kind:         classify.KindShort,
		DurationText: "45s",
	}
	msg := renderPayload(p)
	if !strings.Contains(msg, "New Short has been uploaded! (45s)") {
		t.Fatalf("short footer missing: %q", msg)
	}
}

func TestRenderPayloadLive(t *testing.T) {
	p := &resolver.Payload{
		ChannelName: "Some Channel",
		Title:       "stream time",
		URL:         "https://www.youtube.com/watch?v=live1",
		Kind:        classify.KindLive,
		Live:        true,
	}
	msg := renderPayload(p)
	if !strings.Contains(msg, "The channel is currently live streaming: stream time") {
		t.Fatalf("live footer missing: %q", msg)
	}
	if strings.Contains(msg, "has been uploaded") {
		t.Fatalf("upload footer present for live item: %q", msg)
	}
}

func TestRenderPayloadEmptyDescriptionSkipsLine(t *testing.T) {
	p := &resolver.Payload{
		ChannelName: "c",
		Title:       "t",
		URL:         "https://www.youtube.com/watch?v=x",
		Description: "   ",
		Kind:        classify.KindLong,
	}
	msg := renderPayload(p)
	if strings.Contains(msg, "\n\n") {
		t.Fatalf("blank description produced an empty line: %q", msg)
	}
}

func TestRenderPayloadTruncatesDescription(t *testing.T) {
	p := &resolver.Payload{
		ChannelName: "c",
		Title:       "t",
		URL:         "https://www.youtube.com/watch?v=x",
		Description: strings.Repeat("a", 2000),
		Kind:        classify.KindLong,
	}
	msg := renderPayload(p)
	if !strings.Contains(msg, "…") {
		t.Fatalf("long description not truncated: %d chars", len(msg))
	}
	if strings.Contains(msg, strings.Repeat("a", 1000)) {
		t.Fatal("description kept past the cap")
	}
}

func TestRenderPayloadFallsBackToURLTitle(t *testing.T) {
	p := &resolver.Payload{
		ChannelName: "c",
		URL:         "https://www.youtube.com/watch?v=x",
		Kind:        classify.KindLong,
	}
	msg := renderPayload(p)
	if !strings.Contains(msg, ">https://www.youtube.com/watch?v=x</a>") {
		t.Fatalf("empty title not replaced with url: %q", msg)
	}
}
