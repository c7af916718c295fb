// Package store persists group configuration and per-channel dedup
// watermarks in SQLite.
//
// The store is the sole writer of watermark fields. Advance* calls are
// unconditional overwrites, so every operation here is idempotent under
// retry. Cross-notifier writes target disjoint rows and never conflict.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "tubewatch/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const timeFormat = time.RFC3339Nano

// DB is the SQLite-backed store.
type DB struct {
	db  *sql.DB
	log logx.Logger
}

func Open(cfg Config, log logx.Logger) (*DB, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("store path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	s := &DB{db: db, log: log}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *DB) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *DB) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- groups ----

func (s *DB) UpsertGroup(ctx context.Context, g Group) error {
	if g.ID == "" {
		return errors.New("group id is empty")
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO groups(id, main_chat_id, opt_chat_id, label_chat_id, label_message_id, created_at)
		 VALUES(?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   main_chat_id=excluded.main_chat_id,
		   opt_chat_id=excluded.opt_chat_id,
		   label_chat_id=excluded.label_chat_id,
		   label_message_id=excluded.label_message_id`,
		g.ID, g.MainAnnounceChat, g.OptAnnounceChat, g.LabelChat, g.LabelMessageID,
		g.CreatedAt.Format(timeFormat),
	)
	return err
}

// GetGroup returns (nil, nil) when the group does not exist.
func (s *DB) GetGroup(ctx context.Context, id string) (*Group, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, main_chat_id, opt_chat_id, label_chat_id, label_message_id, created_at
		 FROM groups WHERE id = ?`, id)

	var g Group
	var created string
	err := row.Scan(&g.ID, &g.MainAnnounceChat, &g.OptAnnounceChat, &g.LabelChat, &g.LabelMessageID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	g.CreatedAt = parseTime(created)
	return &g, nil
}

func (s *DB) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, main_chat_id, opt_chat_id, label_chat_id, label_message_id, created_at
		 FROM groups ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Group
	for rows.Next() {
		var g Group
		var created string
		if err := rows.Scan(&g.ID, &g.MainAnnounceChat, &g.OptAnnounceChat, &g.LabelChat, &g.LabelMessageID, &created); err != nil {
			return nil, err
		}
		g.CreatedAt = parseTime(created)
		out = append(out, g)
	}
	return out, rows.Err()
}

// RemoveGroup deletes a group; its notifiers go with it (FK cascade).
func (s *DB) RemoveGroup(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id)
	return err
}

// ---- main notifier ----

// SetMainNotifier installs or reconfigures the group's single main
// notifier. The watermark survives reconfiguration unless the watched
// channel itself changes, in which case it resets so the new channel's
// latest item is reported.
func (s *DB) SetMainNotifier(ctx context.Context, n MainNotifier) error {
	if n.GroupID == "" || n.ChannelID == "" {
		return errors.New("main notifier needs group id and channel id")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO main_notifiers(group_id, channel_id, channel_name, latest_item_id, last_checked)
		 VALUES(?,?,?,NULL,NULL)
		 ON CONFLICT(group_id) DO UPDATE SET
		   channel_name=excluded.channel_name,
		   latest_item_id=CASE WHEN main_notifiers.channel_id=excluded.channel_id
		                       THEN main_notifiers.latest_item_id ELSE NULL END,
		   last_checked=CASE WHEN main_notifiers.channel_id=excluded.channel_id
		                     THEN main_notifiers.last_checked ELSE NULL END,
		   channel_id=excluded.channel_id`,
		n.GroupID, n.ChannelID, n.ChannelName,
	)
	return err
}

// GetMain returns (nil, nil) when the group has no main notifier.
func (s *DB) GetMain(ctx context.Context, groupID string) (*MainNotifier, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT group_id, channel_id, channel_name, latest_item_id, last_checked
		 FROM main_notifiers WHERE group_id = ?`, groupID)

	var n MainNotifier
	var latest, checked sql.NullString
	err := row.Scan(&n.GroupID, &n.ChannelID, &n.ChannelName, &latest, &checked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	n.LatestItemID = latest.String
	if checked.Valid {
		n.LastChecked = parseTime(checked.String)
	}
	return &n, nil
}

// AdvanceMain overwrites the main watermark. Call only after the item has
// been confirmed new and its details fetched.
func (s *DB) AdvanceMain(ctx context.Context, groupID, itemID string, checkedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE main_notifiers SET latest_item_id = ?, last_checked = ? WHERE group_id = ?`,
		itemID, checkedAt.Format(timeFormat), groupID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no main notifier for group %s", groupID)
	}
	return nil
}

func (s *DB) RemoveMainNotifier(ctx context.Context, groupID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM main_notifiers WHERE group_id = ?`, groupID)
	return err
}

// ---- optional entries ----

// UpsertOptEntry adds a channel to the group's optional set or updates its
// config. Watermark fields are preserved on update; only config fields
// (name, active, owner) follow the new value.
func (s *DB) UpsertOptEntry(ctx context.Context, e OptEntry) error {
	if e.GroupID == "" || e.ChannelID == "" {
		return errors.New("opt entry needs group id and channel id")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO opt_entries(group_id, channel_id, channel_name, active, owner_id, latest_item_id, last_checked)
		 VALUES(?,?,?,?,?,NULL,NULL)
		 ON CONFLICT(group_id, channel_id) DO UPDATE SET
		   channel_name=excluded.channel_name,
		   active=excluded.active,
		   owner_id=excluded.owner_id`,
		e.GroupID, e.ChannelID, e.ChannelName, boolInt(e.Active), e.OwnerID,
	)
	return err
}

// GetOptSet returns the group's entries in insertion order. An empty set
// yields a nil slice.
func (s *DB) GetOptSet(ctx context.Context, groupID string) ([]OptEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT group_id, channel_id, channel_name, active, owner_id, latest_item_id, last_checked
		 FROM opt_entries WHERE group_id = ? ORDER BY rowid`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OptEntry
	for rows.Next() {
		e, err := scanOptEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetOptEntry returns (nil, nil) when the entry does not exist.
func (s *DB) GetOptEntry(ctx context.Context, groupID, channelID string) (*OptEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT group_id, channel_id, channel_name, active, owner_id, latest_item_id, last_checked
		 FROM opt_entries WHERE group_id = ? AND channel_id = ?`, groupID, channelID)
	e, err := scanOptEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// AdvanceOpt overwrites one entry's watermark, leaving siblings untouched.
func (s *DB) AdvanceOpt(ctx context.Context, groupID, channelID, itemID string, checkedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE opt_entries SET latest_item_id = ?, last_checked = ?
		 WHERE group_id = ? AND channel_id = ?`,
		itemID, checkedAt.Format(timeFormat), groupID, channelID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no opt entry %s in group %s", channelID, groupID)
	}
	return nil
}

// SetActive toggles an entry without touching its watermark. Inactive
// entries are kept so config and history survive the toggle.
func (s *DB) SetActive(ctx context.Context, groupID, channelID string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE opt_entries SET active = ? WHERE group_id = ? AND channel_id = ?`,
		boolInt(active), groupID, channelID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no opt entry %s in group %s", channelID, groupID)
	}
	return nil
}

func (s *DB) RemoveOptEntry(ctx context.Context, groupID, channelID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM opt_entries WHERE group_id = ? AND channel_id = ?`, groupID, channelID)
	return err
}

// RemoveNotifiers drops both the main notifier and the whole optional set
// of a group, keeping the group row itself.
func (s *DB) RemoveNotifiers(ctx context.Context, groupID string) error {
	if err := s.RemoveMainNotifier(ctx, groupID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM opt_entries WHERE group_id = ?`, groupID)
	return err
}

// ---- helpers ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOptEntry(r rowScanner) (OptEntry, error) {
	var e OptEntry
	var active int
	var latest, checked sql.NullString
	if err := r.Scan(&e.GroupID, &e.ChannelID, &e.ChannelName, &active, &e.OwnerID, &latest, &checked); err != nil {
		return OptEntry{}, err
	}
	e.Active = active != 0
	e.LatestItemID = latest.String
	if checked.Valid {
		e.LastChecked = parseTime(checked.String)
	}
	return e, nil
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeFormat, s)
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
