package source

import "time"

// ItemDetails is the slice of videos.list metadata the rest of the system
// consumes. Everything else in the API response is dropped at decode time.
type ItemDetails struct {
	ID           string
	Title        string
	Description  string
	ThumbnailURL string
	PublishedAt  time.Time
	DurationCode string // ISO-8601, e.g. "PT4M13S"

	// LiveStart/LiveEnd are zero unless the item is (or was) a live stream.
	LiveStart time.Time
	LiveEnd   time.Time
}

// Stat is an aggregate channel statistic snapshot.
type Stat struct {
	Subscribers int64
	Views       int64
	Videos      int64
}
