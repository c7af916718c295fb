package store

import "time"

// Group is one independent tenant: a Telegram community with its own
// notifier configuration. Groups own their notifiers; removing a group
// cascades to them.
type Group struct {
	ID string

	// MainAnnounceChat and OptAnnounceChat are the delivery destinations
	// for main and optional notifications. The store never interprets
	// these beyond persisting them.
	MainAnnounceChat int64
	OptAnnounceChat  int64

	// LabelChat/LabelMessageID locate the pinned status message that
	// mirrors the subscriber count.
	LabelChat      int64
	LabelMessageID int

	CreatedAt time.Time
}

// MainNotifier is the single primary watched channel of a group.
//
// LatestItemID is the dedup watermark: empty means nothing has been seen
// yet. LastChecked is zero until the first successful check.
type MainNotifier struct {
	GroupID     string
	ChannelID   string
	ChannelName string

	LatestItemID string
	LastChecked  time.Time
}

// OptEntry is one channel in a group's optional notifier set. Entries are
// logically independent: each carries its own watermark and active flag,
// and an inactive entry is retained rather than deleted so its history
// survives toggling.
type OptEntry struct {
	GroupID     string
	ChannelID   string
	ChannelName string
	Active      bool
	OwnerID     int64

	LatestItemID string
	LastChecked  time.Time
}

// Config configures the store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}
