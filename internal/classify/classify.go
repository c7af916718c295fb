// Package classify maps raw video metadata to a content kind.
//
// YouTube does not label Shorts or finished live streams in the videos.list
// response, so the kind is derived: a liveStreamingDetails block means the
// item is (or was) a live stream, anything at or under 60 seconds is a Short,
// everything else is a regular video.
package classify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type Kind int

const (
	KindLong Kind = iota
	KindShort
	KindLive
)

func (k Kind) String() string {
	switch k {
	case KindLive:
		return "Live Stream"
	case KindShort:
		return "Short"
	default:
		return "Video"
	}
}

// shortMaxSeconds is the inclusive upper bound for the Short classification.
const shortMaxSeconds = 60

var durationRe = regexp.MustCompile(`PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?`)

// ParseDuration converts an ISO-8601 compact duration code ("PT1H2M3S")
// into seconds. Absent components count as zero; anything unparseable
// yields zero.
func ParseDuration(code string) int {
	m := durationRe.FindStringSubmatch(code)
	if m == nil {
		return 0
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	s, _ := strconv.Atoi(m[3])
	return h*3600 + min*60 + s
}

// FormatDuration renders seconds as "Xh Ym Zs", dropping leading zero
// components. Seconds are always shown.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60

	var parts []string
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m > 0 || h > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	parts = append(parts, fmt.Sprintf("%ds", s))
	return strings.Join(parts, " ")
}

// Classification is the result of classifying one item.
type Classification struct {
	Kind            Kind
	DurationSeconds int
}

// Input is the slice of item metadata the classifier looks at.
type Input struct {
	DurationCode string
	// LiveStart is the actual start time of a live stream, zero if the
	// item never went live. An ended stream still carries its start time,
	// so a finished broadcast classifies as Live on purpose.
	LiveStart time.Time
}

// Classify derives the content kind. The live marker wins over duration.
func Classify(in Input) Classification {
	secs := ParseDuration(in.DurationCode)
	c := Classification{Kind: KindLong, DurationSeconds: secs}
	switch {
	case !in.LiveStart.IsZero():
		c.Kind = KindLive
	case secs <= shortMaxSeconds:
		c.Kind = KindShort
	}
	return c
}
