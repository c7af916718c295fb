package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "tubewatch/pkg/logx"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestGroupRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	g := Group{
		ID:               "g1",
		MainAnnounceChat: -100123,
		OptAnnounceChat:  -100456,
		LabelChat:        -100789,
		LabelMessageID:   42,
	}
	if err := db.UpsertGroup(ctx, g); err != nil {
		t.Fatalf("UpsertGroup: %v", err)
	}

	got, err := db.GetGroup(ctx, "g1")
	if err != nil {
		t.Fatalf("GetGroup: %v", err)
	}
	if got == nil {
		t.Fatal("GetGroup returned nil for existing group")
	}
	if got.MainAnnounceChat != g.MainAnnounceChat || got.LabelMessageID != 42 {
		t.Fatalf("unexpected group: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("CreatedAt not persisted")
	}

	// Upsert is idempotent and updates config fields.
	g.LabelMessageID = 43
	if err := db.UpsertGroup(ctx, g); err != nil {
		t.Fatalf("UpsertGroup again: %v", err)
	}
	got, _ = db.GetGroup(ctx, "g1")
	if got.LabelMessageID != 43 {
		t.Fatalf("LabelMessageID = %d, want 43", got.LabelMessageID)
	}

	if missing, err := db.GetGroup(ctx, "nope"); err != nil || missing != nil {
		t.Fatalf("GetGroup(nope) = (%v, %v), want (nil, nil)", missing, err)
	}
}

func TestMainNotifierWatermark(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := db.UpsertGroup(ctx, Group{ID: "g1"}); err != nil {
		t.Fatalf("UpsertGroup: %v", err)
	}
	if err := db.SetMainNotifier(ctx, MainNotifier{GroupID: "g1", ChannelID: "UC1", ChannelName: "chan"}); err != nil {
		t.Fatalf("SetMainNotifier: %v", err)
	}

	n, err := db.GetMain(ctx, "g1")
	if err != nil {
		t.Fatalf("GetMain: %v", err)
	}
	if n == nil || n.ChannelID != "UC1" {
		t.Fatalf("unexpected notifier: %+v", n)
	}
	if n.LatestItemID != "" || !n.LastChecked.IsZero() {
		t.Fatalf("fresh notifier has watermark: %+v", n)
	}

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := db.AdvanceMain(ctx, "g1", "v1", at); err != nil {
		t.Fatalf("AdvanceMain: %v", err)
	}
	n, _ = db.GetMain(ctx, "g1")
	if n.LatestItemID != "v1" {
		t.Fatalf("watermark = %q, want v1", n.LatestItemID)
	}
	if !n.LastChecked.Equal(at) {
		t.Fatalf("LastChecked = %v, want %v", n.LastChecked, at)
	}

	// Reconfiguring the same channel keeps the watermark.
	if err := db.SetMainNotifier(ctx, MainNotifier{GroupID: "g1", ChannelID: "UC1", ChannelName: "renamed"}); err != nil {
		t.Fatalf("SetMainNotifier same channel: %v", err)
	}
	n, _ = db.GetMain(ctx, "g1")
	if n.LatestItemID != "v1" || n.ChannelName != "renamed" {
		t.Fatalf("reconfigure lost state: %+v", n)
	}

	// Switching channels resets it so the new channel's latest is reported.
	if err := db.SetMainNotifier(ctx, MainNotifier{GroupID: "g1", ChannelID: "UC2", ChannelName: "other"}); err != nil {
		t.Fatalf("SetMainNotifier new channel: %v", err)
	}
	n, _ = db.GetMain(ctx, "g1")
	if n.ChannelID != "UC2" || n.LatestItemID != "" || !n.LastChecked.IsZero() {
		t.Fatalf("channel switch kept old watermark: %+v", n)
	}
}

func TestAdvanceMainWithoutNotifier(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	if err := db.AdvanceMain(ctx, "ghost", "v1", time.Now()); err == nil {
		t.Fatal("AdvanceMain for missing notifier should fail")
	}
}

func TestOptEntries(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := db.UpsertGroup(ctx, Group{ID: "g1"}); err != nil {
		t.Fatalf("UpsertGroup: %v", err)
	}
	for _, ch := range []string{"UC1", "UC2", "UC3"} {
		if err := db.UpsertOptEntry(ctx, OptEntry{GroupID: "g1", ChannelID: ch, ChannelName: "n-" + ch, Active: true, OwnerID: 7}); err != nil {
			t.Fatalf("UpsertOptEntry(%s): %v", ch, err)
		}
	}

	set, err := db.GetOptSet(ctx, "g1")
	if err != nil {
		t.Fatalf("GetOptSet: %v", err)
	}
	if len(set) != 3 {
		t.Fatalf("len(set) = %d, want 3", len(set))
	}
	// Insertion order is preserved.
	if set[0].ChannelID != "UC1" || set[2].ChannelID != "UC3" {
		t.Fatalf("unexpected order: %v %v %v", set[0].ChannelID, set[1].ChannelID, set[2].ChannelID)
	}

	// Advancing one entry leaves siblings untouched.
	at := time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC)
	if err := db.AdvanceOpt(ctx, "g1", "UC2", "v5", at); err != nil {
		t.Fatalf("AdvanceOpt: %v", err)
	}
	e, _ := db.GetOptEntry(ctx, "g1", "UC2")
	if e.LatestItemID != "v5" || !e.LastChecked.Equal(at) {
		t.Fatalf("UC2 not advanced: %+v", e)
	}
	e, _ = db.GetOptEntry(ctx, "g1", "UC1")
	if e.LatestItemID != "" {
		t.Fatalf("UC1 watermark touched: %+v", e)
	}

	// Re-upserting config preserves the watermark.
	if err := db.UpsertOptEntry(ctx, OptEntry{GroupID: "g1", ChannelID: "UC2", ChannelName: "renamed", Active: true}); err != nil {
		t.Fatalf("UpsertOptEntry update: %v", err)
	}
	e, _ = db.GetOptEntry(ctx, "g1", "UC2")
	if e.LatestItemID != "v5" || e.ChannelName != "renamed" {
		t.Fatalf("upsert lost watermark: %+v", e)
	}

	// Toggling off retains the row and its state.
	if err := db.SetActive(ctx, "g1", "UC2", false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	e, _ = db.GetOptEntry(ctx, "g1", "UC2")
	if e == nil || e.Active || e.LatestItemID != "v5" {
		t.Fatalf("toggle lost state: %+v", e)
	}

	if err := db.RemoveOptEntry(ctx, "g1", "UC3"); err != nil {
		t.Fatalf("RemoveOptEntry: %v", err)
	}
	if e, _ := db.GetOptEntry(ctx, "g1", "UC3"); e != nil {
		t.Fatalf("UC3 still present: %+v", e)
	}
}

func TestRemoveGroupCascades(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := db.UpsertGroup(ctx, Group{ID: "g1"}); err != nil {
		t.Fatalf("UpsertGroup: %v", err)
	}
	if err := db.SetMainNotifier(ctx, MainNotifier{GroupID: "g1", ChannelID: "UC1"}); err != nil {
		t.Fatalf("SetMainNotifier: %v", err)
	}
	if err := db.UpsertOptEntry(ctx, OptEntry{GroupID: "g1", ChannelID: "UC2", Active: true}); err != nil {
		t.Fatalf("UpsertOptEntry: %v", err)
	}

	if err := db.RemoveGroup(ctx, "g1"); err != nil {
		t.Fatalf("RemoveGroup: %v", err)
	}
	if n, _ := db.GetMain(ctx, "g1"); n != nil {
		t.Fatalf("main notifier survived group removal: %+v", n)
	}
	if set, _ := db.GetOptSet(ctx, "g1"); len(set) != 0 {
		t.Fatalf("opt entries survived group removal: %+v", set)
	}
}

func TestRemoveNotifiersKeepsGroup(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := db.UpsertGroup(ctx, Group{ID: "g1"}); err != nil {
		t.Fatalf("UpsertGroup: %v", err)
	}
	if err := db.SetMainNotifier(ctx, MainNotifier{GroupID: "g1", ChannelID: "UC1"}); err != nil {
		t.Fatalf("SetMainNotifier: %v", err)
	}
	if err := db.UpsertOptEntry(ctx, OptEntry{GroupID: "g1", ChannelID: "UC2", Active: true}); err != nil {
		t.Fatalf("UpsertOptEntry: %v", err)
	}

	if err := db.RemoveNotifiers(ctx, "g1"); err != nil {
		t.Fatalf("RemoveNotifiers: %v", err)
	}
	if n, _ := db.GetMain(ctx, "g1"); n != nil {
		t.Fatal("main notifier not removed")
	}
	if set, _ := db.GetOptSet(ctx, "g1"); len(set) != 0 {
		t.Fatal("opt entries not removed")
	}
	if g, _ := db.GetGroup(ctx, "g1"); g == nil {
		t.Fatal("group removed; only its notifiers should be")
	}
}

func TestListGroups(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for _, id := range []string{"g1", "g2"} {
		if err := db.UpsertGroup(ctx, Group{ID: id}); err != nil {
			t.Fatalf("UpsertGroup(%s): %v", id, err)
		}
	}
	groups, err := db.ListGroups(ctx)
	if err != nil {
		t.Fatalf("ListGroups: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2", len(groups))
	}
}
