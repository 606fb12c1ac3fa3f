package procman

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Reaper terminates sessions that have been idle past a threshold. It
// runs on a cron schedule so long-lived daemons do not accumulate
// forgotten child processes.
type Reaper struct {
	manager  *Manager
	maxIdle  time.Duration
	schedule string
	cron     *cron.Cron
}

// NewReaper builds a reaper over manager. schedule is a standard cron
// expression; maxIdle is how long a session may sit unused before it
// is reclaimed.
func NewReaper(manager *Manager, schedule string, maxIdle time.Duration) *Reaper {
	return &Reaper{
		manager:  manager,
		maxIdle:  maxIdle,
		schedule: schedule,
		cron:     cron.New(),
	}
}

// Start begins the reap schedule. Returns an error only when the cron
// expression does not parse.
func (r *Reaper) Start() error {
	_, err := r.cron.AddFunc(r.schedule, func() {
		r.ReapIdle(context.Background())
	})
	if err != nil {
		return err
	}
	r.cron.Start()
	log.Info().
		Str("schedule", r.schedule).
		Dur("max_idle", r.maxIdle).
		Msg("Idle session reaper started")
	return nil
}

// Stop halts the schedule. Already-running reap passes finish.
func (r *Reaper) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// ReapIdle terminates every session idle longer than the threshold and
// returns the number reclaimed. Sessions still INITIALIZING are left
// alone; their init timeout bounds that state.
func (r *Reaper) ReapIdle(ctx context.Context) int {
	cutoff := time.Now().Add(-r.maxIdle)
	reaped := 0

	for _, info := range r.manager.List() {
		if info.State == StateInitializing {
			continue
		}
		if info.LastUsed.After(cutoff) {
			continue
		}
		if err := r.manager.Terminate(ctx, info.Tool); err != nil {
			log.Warn().Str("tool", info.Tool).Err(err).Msg("Failed to reap idle session")
			continue
		}
		log.Info().
			Str("tool", info.Tool).
			Time("last_used", info.LastUsed).
			Msg("Reaped idle session")
		reaped++
	}
	return reaped
}
