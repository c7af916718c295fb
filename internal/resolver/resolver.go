// Package resolver decides whether a watched channel has published
// something new and, exactly once per new item, produces the notification
// payload for it.
//
// The dedup gate is a plain value comparison against the stored watermark,
// never a timestamp comparison, so an out-of-order older id can never
// regress the watermark. The watermark advances only after the item's
// details have been fetched successfully, and always before the payload is
// handed to a sink: a delivery failure costs one missed notification, not
// a duplicate one.
package resolver

import (
	"context"
	"time"

	"tubewatch/internal/classify"
	"tubewatch/internal/source"
	"tubewatch/internal/store"

	logx "tubewatch/pkg/logx"
)

// Source is the content-source query surface the resolver needs.
type Source interface {
	LatestItemID(ctx context.Context, channelID string) (string, bool)
	ItemDetails(ctx context.Context, channelID, itemID string) (*source.ItemDetails, bool)
}

// Store is the watermark persistence the resolver needs. Advance calls are
// unconditional overwrites scoped to one notifier.
type Store interface {
	GetMain(ctx context.Context, groupID string) (*store.MainNotifier, error)
	GetOptEntry(ctx context.Context, groupID, channelID string) (*store.OptEntry, error)
	AdvanceMain(ctx context.Context, groupID, itemID string, checkedAt time.Time) error
	AdvanceOpt(ctx context.Context, groupID, channelID, itemID string, checkedAt time.Time) error
}

type Resolver struct {
	src Source
	db  Store
	log logx.Logger

	now func() time.Time
}

func New(src Source, db Store, log logx.Logger) *Resolver {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Resolver{src: src, db: db, log: log, now: time.Now}
}

// CheckMain runs the check algorithm against the group's main notifier.
// overrideID, when non-empty, is used as the candidate item instead of
// querying the source (manual re-check path).
func (r *Resolver) CheckMain(ctx context.Context, groupID, overrideID string) Result {
	n, err := r.db.GetMain(ctx, groupID)
	if err != nil {
		return errorf("load main notifier: %v", err)
	}
	if n == nil {
		return noChange(ReasonNotConfigured)
	}
	return r.check(ctx, target{
		channelID:   n.ChannelID,
		channelName: n.ChannelName,
		watermark:   n.LatestItemID,
		advance: func(ctx context.Context, itemID string, at time.Time) error {
			return r.db.AdvanceMain(ctx, groupID, itemID, at)
		},
	}, overrideID)
}

// CheckOpt runs the same algorithm against one entry of the group's
// optional set. Inactive entries short-circuit to NoChange.
func (r *Resolver) CheckOpt(ctx context.Context, groupID, channelID, overrideID string) Result {
	e, err := r.db.GetOptEntry(ctx, groupID, channelID)
	if err != nil {
		return errorf("load opt entry: %v", err)
	}
	if e == nil {
		return noChange(ReasonNotConfigured)
	}
	if !e.Active {
		return noChange(ReasonInactive)
	}
	return r.check(ctx, target{
		channelID:   e.ChannelID,
		channelName: e.ChannelName,
		watermark:   e.LatestItemID,
		advance: func(ctx context.Context, itemID string, at time.Time) error {
			return r.db.AdvanceOpt(ctx, groupID, channelID, itemID, at)
		},
	}, overrideID)
}

// target is the per-notifier view the shared algorithm works on: the two
// notifier flavors differ only in which watermark is read and written.
type target struct {
	channelID   string
	channelName string
	watermark   string
	advance     func(ctx context.Context, itemID string, at time.Time) error
}

func (r *Resolver) check(ctx context.Context, t target, overrideID string) Result {
	candidate := overrideID
	if candidate == "" {
		id, ok := r.src.LatestItemID(ctx, t.channelID)
		if !ok {
			return noChange(ReasonNoItems)
		}
		candidate = id
	}

	if candidate == t.watermark {
		return noChange(ReasonAlreadySeen)
	}

	details, ok := r.src.ItemDetails(ctx, t.channelID, candidate)
	if !ok {
		// Watermark untouched: the same candidate is retried next tick.
		return errorf("%s: item %s", ReasonNoDetails, candidate)
	}

	cls := classify.Classify(classify.Input{
		DurationCode: details.DurationCode,
		LiveStart:    details.LiveStart,
	})

	// Mark seen before the payload ever reaches a sink.
	if err := t.advance(ctx, candidate, r.now()); err != nil {
		return errorf("advance watermark: %v", err)
	}

	r.log.Debug("new item found",
		logx.String("channel", t.channelID),
		logx.String("item", candidate),
		logx.String("kind", cls.Kind.String()))

	return found(&Payload{
		ChannelName:  t.channelName,
		Title:        details.Title,
		Description:  details.Description,
		URL:          watchURL(candidate),
		ThumbnailURL: details.ThumbnailURL,
		PublishedAt:  details.PublishedAt,
		Kind:         cls.Kind,
		DurationText: classify.FormatDuration(cls.DurationSeconds),
		Live:         cls.Kind == classify.KindLive,
	})
}

func watchURL(itemID string) string {
	return "https://www.youtube.com/watch?v=" + itemID
}
