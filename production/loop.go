package production

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Loop drives an engine on a fixed interval for the lifetime of the world
// process. It is single-threaded: a tick runs to completion before the next
// one starts, and a tick that outruns the interval delays its successor.
type Loop struct {
	engine   *Engine
	interval time.Duration
	log      zerolog.Logger
	tick     int64
}

func NewLoop(engine *Engine, interval time.Duration, log zerolog.Logger) *Loop {
	return &Loop{
		engine:   engine,
		interval: interval,
		log:      log.With().Str("component", "tick_loop").Logger(),
	}
}

// Run ticks until the context is canceled. Tick errors are logged; the loop
// keeps running so one bad tick does not stop the world.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info().Dur("interval", l.interval).Msg("tick loop started")
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	warningThreshold := l.interval
	for {
		select {
		case <-ctx.Done():
			l.log.Info().Int64("tick", l.tick).Msg("tick loop stopped")
			return ctx.Err()
		case <-ticker.C:
			startTime := time.Now()
			tickAsString := strconv.FormatInt(l.tick, 10)
			if err := l.engine.Tick(ctx, l.tick); err != nil {
				l.log.Error().Err(err).Str("tick", tickAsString).Msg("tick failed")
			}
			l.tick++

			elapsedTime := time.Since(startTime)
			logEvent := l.log.Debug()
			message := "tick ended"
			if elapsedTime > warningThreshold {
				logEvent = l.log.Warn()
				message += fmt.Sprintf(", (warning: tick exceeded %dms)", warningThreshold.Milliseconds())
			}
			logEvent.
				Int("tick_execution_time", int(elapsedTime.Milliseconds())).
				Str("tick", tickAsString).
				Msg(message)
		}
	}
}
