// Package poller schedules recurring content checks and label refreshes,
// one independent cadence per subscriber group.
//
// Execution is a bounded worker pool fed one task per notifier, so a slow
// or hung upstream call for one channel never delays checks for other
// channels. A notifier's own checks are serialized by a skip-if-running
// gate; overlapping ticks are dropped, never queued.
package poller

import (
	"context"

	"github.com/robfig/cron/v3"

	kit "tubewatch/internal/transport"
	logx "tubewatch/pkg/logx"
)

func New(cfg Config, db Store, check Checker, sink Sink, stats StatSource, labels kit.LabelUpdater, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:     cfg.withDefaults(),
		db:      db,
		check:   check,
		sink:    sink,
		stats:   stats,
		labels:  labels,
		log:     log,
		entries: map[string]groupEntries{},
		states:  map[string]*notifierState{},
	}
}

// Start launches the worker pool and cron, then runs one immediate pass so
// a freshly (re)started service does not wait a full interval before its
// first output.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopCh != nil {
		s.mu.Unlock()
		return nil
	}
	s.stopCh = make(chan struct{})
	s.runCtx, s.runCancel = context.WithCancel(context.Background())
	s.queue = make(chan task, s.cfg.QueueSize)
	s.c = cron.New()

	syncSpec := "@every " + s.cfg.SyncInterval.String()
	id, err := s.c.AddFunc(syncSpec, func() {
		if err := s.Sync(s.runCtx); err != nil {
			s.log.Warn("group sync failed", logx.Err(err))
		}
	})
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.syncID = id

	workers := s.cfg.Workers
	runCtx := s.runCtx
	stopCh := s.stopCh
	queue := s.queue
	s.mu.Unlock()

	s.workerWG.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer s.workerWG.Done()
			s.worker(runCtx, stopCh, queue)
		}()
	}

	if err := s.Sync(ctx); err != nil {
		s.log.Warn("initial group sync failed", logx.Err(err))
	}

	s.mu.Lock()
	s.c.Start()
	s.mu.Unlock()

	// Immediate first pass across everything that is registered.
	s.enqueueAll(ctx)

	s.log.Info("poller started",
		logx.Int("workers", workers),
		logx.Duration("check_interval", s.cfg.CheckInterval),
		logx.Duration("stat_interval", s.cfg.StatInterval))
	return nil
}

// Stop halts timer registration and lets in-flight checks finish.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	stopCh := s.stopCh
	cancel := s.runCancel
	c := s.c
	s.stopCh = nil
	s.runCancel = nil
	s.c = nil
	s.queue = nil
	s.entries = map[string]groupEntries{}
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	close(stopCh)

	done := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		// workers keep draining in the background
		if cancel != nil {
			cancel()
		}
		return
	}
	if cancel != nil {
		cancel()
	}
	s.log.Info("poller stopped")
}

// Apply swaps the configuration. Changed intervals re-register every
// schedule; a stopped service just records the config for the next Start.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	rearm := s.stopCh != nil &&
		(cfg.CheckInterval != s.cfg.CheckInterval ||
			cfg.StatInterval != s.cfg.StatInterval ||
			cfg.SyncInterval != s.cfg.SyncInterval)
	s.cfg = cfg
	if rearm && s.c != nil {
		for gid, e := range s.entries {
			s.c.Remove(e.check)
			s.c.Remove(e.stat)
			delete(s.entries, gid)
		}
		s.c.Remove(s.syncID)
		if id, err := s.c.AddFunc("@every "+cfg.SyncInterval.String(), func() {
			if err := s.Sync(s.runCtx); err != nil {
				s.log.Warn("group sync failed", logx.Err(err))
			}
		}); err == nil {
			s.syncID = id
		}
	}
	s.mu.Unlock()

	if rearm {
		if err := s.Sync(context.Background()); err != nil {
			s.log.Warn("group sync after config change failed", logx.Err(err))
		}
	}
}

// Sync reconciles cron entries with the stored group set: new groups get
// their two recurring jobs, removed groups lose theirs.
func (s *Service) Sync(ctx context.Context) error {
	groups, err := s.db.ListGroups(ctx)
	if err != nil {
		return err
	}

	want := make(map[string]bool, len(groups))
	for _, g := range groups {
		want[g.ID] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return nil
	}

	for gid, e := range s.entries {
		if !want[gid] {
			s.c.Remove(e.check)
			s.c.Remove(e.stat)
			delete(s.entries, gid)
			s.log.Info("group unregistered", logx.String("group", gid))
		}
	}

	for gid := range want {
		if _, ok := s.entries[gid]; ok {
			continue
		}
		gid := gid
		checkID, err := s.c.AddFunc("@every "+s.cfg.CheckInterval.String(), func() {
			s.enqueueGroupCheck(s.runCtx, gid)
		})
		if err != nil {
			return err
		}
		statID, err := s.c.AddFunc("@every "+s.cfg.StatInterval.String(), func() {
			s.enqueueStat(s.runCtx, gid)
		})
		if err != nil {
			s.c.Remove(checkID)
			return err
		}
		s.entries[gid] = groupEntries{check: checkID, stat: statID}
		s.log.Info("group registered", logx.String("group", gid))
	}
	return nil
}

// enqueueAll performs the immediate start-up pass.
func (s *Service) enqueueAll(ctx context.Context) {
	s.mu.Lock()
	gids := make([]string, 0, len(s.entries))
	for gid := range s.entries {
		gids = append(gids, gid)
	}
	runCtx := s.runCtx
	s.mu.Unlock()

	if runCtx == nil {
		runCtx = ctx
	}
	for _, gid := range gids {
		s.enqueueGroupCheck(runCtx, gid)
		s.enqueueStat(runCtx, gid)
	}
}
