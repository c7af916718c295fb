package resolver

import (
	"fmt"
	"time"

	"tubewatch/internal/classify"
)

// Outcome tags a check result. Exactly one of the three applies.
type Outcome int

const (
	// OutcomeNoChange: nothing to report (not configured, inactive,
	// no items, or already seen). Not an error.
	OutcomeNoChange Outcome = iota
	// OutcomeFound: a new item was confirmed and the watermark advanced.
	OutcomeFound
	// OutcomeError: an upstream or store failure; the watermark is
	// untouched and the same candidate will be retried next tick.
	OutcomeError
)

// Check reasons surfaced in NoChange/Error results.
const (
	ReasonNotConfigured = "not configured"
	ReasonInactive      = "inactive"
	ReasonNoItems       = "no items"
	ReasonAlreadySeen   = "already seen"
	ReasonNoDetails     = "details unavailable"
)

// Result is the tagged outcome of one check. Payload is set only for
// OutcomeFound; Reason only for the other two. Never both.
type Result struct {
	Outcome Outcome
	Reason  string
	Payload *Payload
}

func noChange(reason string) Result { return Result{Outcome: OutcomeNoChange, Reason: reason} }

func found(p *Payload) Result { return Result{Outcome: OutcomeFound, Payload: p} }

func errorf(format string, args ...any) Result {
	return Result{Outcome: OutcomeError, Reason: fmt.Sprintf(format, args...)}
}

// Payload carries everything a sink needs to render one notification.
type Payload struct {
	ChannelName  string
	Title        string
	Description  string
	URL          string
	ThumbnailURL string
	PublishedAt  time.Time

	Kind         classify.Kind
	DurationText string

	// Live is set when the item carries a live-start marker; sinks swap
	// the standard "uploaded" footer for a currently-live annotation.
	Live bool
}
