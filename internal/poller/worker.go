package poller

import (
	"context"
	"fmt"
	"time"

	"tubewatch/internal/resolver"
	kit "tubewatch/internal/transport"
	logx "tubewatch/pkg/logx"
)

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan task) {
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case t := <-queue:
			t.run(ctx)
		}
	}
}

func (s *Service) enqueue(t task) {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		s.log.Debug("poller not running; dropping task", logx.String("task", t.key))
		return
	}
	select {
	case q <- t:
	default:
		s.log.Warn("poller queue full; dropping task", logx.String("task", t.key))
	}
}

// enqueueGroupCheck resolves the group's current notifier set and enqueues
// one task per notifier. Targets are built fresh here every tick; nothing
// is cached across cycles.
func (s *Service) enqueueGroupCheck(ctx context.Context, groupID string) {
	g, err := s.db.GetGroup(ctx, groupID)
	if err != nil {
		s.log.Warn("load group failed", logx.String("group", groupID), logx.Err(err))
		return
	}
	if g == nil {
		return
	}

	main, err := s.db.GetMain(ctx, groupID)
	if err != nil {
		s.log.Warn("load main notifier failed", logx.String("group", groupID), logx.Err(err))
	} else if main != nil && g.MainAnnounceChat != 0 {
		to := kit.ChatTarget{ChatID: g.MainAnnounceChat}
		s.enqueue(task{
			key: groupID + "/main",
			run: func(ctx context.Context) {
				s.runCheck(ctx, groupID+"/main", to, func(ctx context.Context) resolver.Result {
					return s.check.CheckMain(ctx, groupID, "")
				})
			},
		})
	}

	entries, err := s.db.GetOptSet(ctx, groupID)
	if err != nil {
		s.log.Warn("load opt set failed", logx.String("group", groupID), logx.Err(err))
		return
	}
	if len(entries) == 0 || g.OptAnnounceChat == 0 {
		return
	}
	to := kit.ChatTarget{ChatID: g.OptAnnounceChat}
	for _, e := range entries {
		channelID := e.ChannelID
		s.enqueue(task{
			key: groupID + "/opt/" + channelID,
			run: func(ctx context.Context) {
				s.runCheck(ctx, groupID+"/opt/"+channelID, to, func(ctx context.Context) resolver.Result {
					return s.check.CheckOpt(ctx, groupID, channelID, "")
				})
			},
		})
	}
}

// runCheck executes one notifier check under its serialization gate and
// dispatches the outcome. Upstream errors trip a growing per-notifier
// backoff; any other outcome resets it.
func (s *Service) runCheck(ctx context.Context, key string, to kit.ChatTarget, fn func(ctx context.Context) resolver.Result) {
	st := s.state(key)

	st.mu.Lock()
	if st.running {
		st.mu.Unlock()
		s.log.Debug("check still running; skipping tick", logx.String("notifier", key))
		return
	}
	if !st.nextAttempt.IsZero() && time.Now().Before(st.nextAttempt) {
		until := st.nextAttempt
		st.mu.Unlock()
		s.log.Debug("check in backoff; skipping tick", logx.String("notifier", key), logx.Time("until", until))
		return
	}
	st.running = true
	st.mu.Unlock()
	defer func() {
		st.mu.Lock()
		st.running = false
		st.mu.Unlock()
	}()

	res := fn(ctx)
	switch res.Outcome {
	case resolver.OutcomeFound:
		s.clearBackoff(st)
		if err := s.sink.Deliver(ctx, to, res.Payload); err != nil {
			// Already logged as a missed notification by the pipeline.
			return
		}
		s.log.Info("notification delivered",
			logx.String("notifier", key),
			logx.String("title", res.Payload.Title),
			logx.String("kind", res.Payload.Kind.String()))
	case resolver.OutcomeNoChange:
		s.clearBackoff(st)
		s.log.Debug("no change", logx.String("notifier", key), logx.String("reason", res.Reason))
	case resolver.OutcomeError:
		delay := s.bumpBackoff(st)
		s.log.Warn("check failed",
			logx.String("notifier", key),
			logx.String("reason", res.Reason),
			logx.Duration("retry_in", delay))
	}
}

// enqueueStat fetches the channel stat and refreshes the group's label. A
// missing or malformed response leaves the previous label untouched.
func (s *Service) enqueueStat(ctx context.Context, groupID string) {
	s.enqueue(task{
		key: groupID + "/stat",
		run: func(ctx context.Context) {
			s.runStat(ctx, groupID)
		},
	})
}

func (s *Service) runStat(ctx context.Context, groupID string) {
	key := groupID + "/stat"
	st := s.state(key)
	st.mu.Lock()
	if st.running {
		st.mu.Unlock()
		return
	}
	st.running = true
	st.mu.Unlock()
	defer func() {
		st.mu.Lock()
		st.running = false
		st.mu.Unlock()
	}()

	g, err := s.db.GetGroup(ctx, groupID)
	if err != nil {
		s.log.Warn("load group failed", logx.String("group", groupID), logx.Err(err))
		return
	}
	if g == nil || g.LabelChat == 0 || g.LabelMessageID == 0 {
		return
	}
	main, err := s.db.GetMain(ctx, groupID)
	if err != nil {
		s.log.Warn("load main notifier failed", logx.String("group", groupID), logx.Err(err))
		return
	}
	if main == nil {
		return
	}

	stat, ok := s.stats.ChannelStat(ctx, main.ChannelID)
	if !ok {
		s.log.Debug("channel stat unavailable; keeping previous label",
			logx.String("group", groupID), logx.String("channel", main.ChannelID))
		return
	}

	ref := kit.MessageRef{ChatID: g.LabelChat, MessageID: g.LabelMessageID}
	if err := s.labels.SetLabel(ctx, ref, formatLabel(stat.Subscribers)); err != nil {
		s.log.Warn("label update failed", logx.String("group", groupID), logx.Err(err))
		return
	}
	s.log.Debug("label refreshed", logx.String("group", groupID), logx.Int64("subscribers", stat.Subscribers))
}

func formatLabel(subscribers int64) string {
	return fmt.Sprintf("YouTube Subs: %d", subscribers)
}

// ---- per-notifier state ----

func (s *Service) state(key string) *notifierState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	st, ok := s.states[key]
	if !ok {
		st = &notifierState{}
		s.states[key] = st
	}
	return st
}

func (s *Service) clearBackoff(st *notifierState) {
	st.mu.Lock()
	st.failures = 0
	st.nextAttempt = time.Time{}
	st.mu.Unlock()
}

func (s *Service) bumpBackoff(st *notifierState) time.Duration {
	s.mu.Lock()
	base, maxD := s.cfg.BackoffBase, s.cfg.BackoffMax
	s.mu.Unlock()

	st.mu.Lock()
	defer st.mu.Unlock()
	st.failures++
	delay := base
	for i := 1; i < st.failures; i++ {
		delay *= 2
		if delay >= maxD {
			delay = maxD
			break
		}
	}
	st.nextAttempt = time.Now().Add(delay)
	return delay
}
