package poller

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tubewatch/internal/resolver"
	"tubewatch/internal/source"
	"tubewatch/internal/store"
	kit "tubewatch/internal/transport"
	logx "tubewatch/pkg/logx"
)

// Config controls the poll schedules.
type Config struct {
	CheckInterval time.Duration // new-content checks per group
	StatInterval  time.Duration // subscriber-count label refresh per group
	SyncInterval  time.Duration // reconcile schedules with stored groups
	Workers       int
	QueueSize     int

	// BackoffBase/BackoffMax bound the per-notifier delay applied after
	// repeated upstream failures for the same channel.
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

func (c Config) withDefaults() Config {
	if c.CheckInterval <= 0 {
		c.CheckInterval = 2 * time.Hour
	}
	if c.StatInterval <= 0 {
		c.StatInterval = time.Hour
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = 5 * time.Minute
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Minute
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 30 * time.Minute
	}
	return c
}

// Store is the configuration surface the poller reads each tick. Targets
// are rebuilt from it on every cycle, so edits take effect without a
// restart.
type Store interface {
	ListGroups(ctx context.Context) ([]store.Group, error)
	GetGroup(ctx context.Context, id string) (*store.Group, error)
	GetMain(ctx context.Context, groupID string) (*store.MainNotifier, error)
	GetOptSet(ctx context.Context, groupID string) ([]store.OptEntry, error)
}

// Checker is the decision core invoked once per notifier per tick.
type Checker interface {
	CheckMain(ctx context.Context, groupID, overrideID string) resolver.Result
	CheckOpt(ctx context.Context, groupID, channelID, overrideID string) resolver.Result
}

// Sink receives Found payloads. In production this is the notify service,
// not the raw chat adapter.
type Sink interface {
	Deliver(ctx context.Context, to kit.ChatTarget, p *resolver.Payload) error
}

// StatSource feeds the label-refresh path.
type StatSource interface {
	ChannelStat(ctx context.Context, channelID string) (source.Stat, bool)
}

// task is one unit of per-notifier work handed to the worker pool.
type task struct {
	key string // notifier identity, e.g. "g1/main" or "g1/opt/UCxxx"
	run func(ctx context.Context)
}

// notifierState serializes checks for one notifier and tracks its upstream
// failure backoff. A tick that finds running=true is skipped, not queued.
type notifierState struct {
	mu          sync.Mutex
	running     bool
	failures    int
	nextAttempt time.Time
}

// groupEntries are the cron handles owned by one registered group.
type groupEntries struct {
	check cron.EntryID
	stat  cron.EntryID
}

// Service drives recurring content checks and label refreshes across all
// groups.
type Service struct {
	mu  sync.Mutex
	cfg Config

	db     Store
	check  Checker
	sink   Sink
	stats  StatSource
	labels kit.LabelUpdater
	log    logx.Logger

	c       *cron.Cron
	syncID  cron.EntryID
	entries map[string]groupEntries // keyed by group id

	queue  chan task
	stopCh chan struct{}

	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup

	stateMu sync.Mutex
	states  map[string]*notifierState
}
