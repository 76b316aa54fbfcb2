package uploader

import (
	"context"
	"errors"
	"time"

	"fieldsnap/internal/logging"
)

// Start launches the scheduler goroutine. Passes run when Trigger is called
// and when a previous pass left work behind.
func (u *Uploader) Start(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.running {
		return errors.New("uploader already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	u.cancel = cancel
	u.done = make(chan struct{})
	u.running = true
	u.stats.Running = true

	go u.run(runCtx, u.done)

	u.logger.Info("upload scheduler started",
		logging.String(logging.FieldEventType, "scheduler_started"),
		logging.Int("max_per_pass", u.maxPerPass),
		logging.Int("retry_limit", u.retryLimit),
	)
	return nil
}

// Stop cancels the scheduler and waits for any running pass to return.
func (u *Uploader) Stop() {
	u.mu.Lock()
	if !u.running {
		u.mu.Unlock()
		return
	}
	cancel := u.cancel
	done := u.done
	u.running = false
	u.stats.Running = false
	u.cancel = nil
	u.mu.Unlock()

	cancel()
	<-done

	u.logger.Info("upload scheduler stopped",
		logging.String(logging.FieldEventType, "scheduler_stopped"),
	)
}

// Running reports whether the scheduler goroutine is active.
func (u *Uploader) Running() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.running
}

// Trigger requests a pass. Requests coalesce; a request made before Start
// is picked up once the scheduler runs.
func (u *Uploader) Trigger() {
	select {
	case u.trigger <- struct{}{}:
	default:
	}
}

// schedule requests a continuation pass after d. Only the latest request is kept.
func (u *Uploader) schedule(d time.Duration) {
	for {
		select {
		case u.reschedule <- d:
			return
		default:
		}
		select {
		case <-u.reschedule:
		default:
		}
	}
}

func (u *Uploader) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	var timer *time.Timer
	var timerC <-chan time.Time
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}
	defer stopTimer()

	for {
		select {
		case <-ctx.Done():
			return
		case <-u.trigger:
			stopTimer()
			u.Drain(ctx)
		case d := <-u.reschedule:
			stopTimer()
			timer = time.NewTimer(d)
			timerC = timer.C
		case <-timerC:
			timer = nil
			timerC = nil
			u.Drain(ctx)
		}
	}
}
