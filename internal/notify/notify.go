// Package notify is the delivery pipeline between the poller and the chat
// sink: rate limiting plus a short bounded retry per message.
//
// By the time a payload reaches this service its watermark has already
// advanced, so a delivery that exhausts its retries is logged as a missed
// notification and dropped. Re-deriving the payload for a later attempt
// would reopen the door to duplicate delivery, which is the worse failure
// mode here.
package notify

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"tubewatch/internal/resolver"
	kit "tubewatch/internal/transport"
	logx "tubewatch/pkg/logx"
)

type Config struct {
	RatePerSec int
	RetryMax   int
}

type Service struct {
	sink    kit.Sink
	log     logx.Logger
	limiter *rate.Limiter
	retry   int
}

func New(cfg Config, sink kit.Sink, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	retryMax := cfg.RetryMax
	if retryMax < 0 {
		retryMax = 0
	}
	return &Service{
		sink:    sink,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		retry:   retryMax,
	}
}

// Deliver pushes one payload to its destination. The returned error is
// informational; callers must not re-derive the payload to retry it.
func (s *Service) Deliver(ctx context.Context, to kit.ChatTarget, p *resolver.Payload) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	var last error
	for i := 0; i <= s.retry; i++ {
		err := s.sink.Deliver(ctx, to, p)
		if err == nil {
			if i > 0 {
				s.log.Debug("delivery succeeded after retry", logx.Int64("chat_id", to.ChatID), logx.Int("attempt", i+1))
			}
			return nil
		}
		last = err
		if i == s.retry {
			break
		}
		delay := time.Duration(200+100*i) * time.Millisecond
		tmr := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			if !tmr.Stop() {
				<-tmr.C
			}
			return ctx.Err()
		case <-tmr.C:
		}
	}

	s.log.Warn("notification missed: delivery failed after watermark advance",
		logx.Int64("chat_id", to.ChatID),
		logx.String("title", p.Title),
		logx.Err(last))
	return last
}
