package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/ports"
)

var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// CronScheduler owns a robfig cron runner and the entry ids it installed.
// Arm always tears the previous entries down first.
type CronScheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	loc     *time.Location
	logger  *slog.Logger
	entries []cron.EntryID
	started bool
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler evaluating expressions in loc.
func NewCronScheduler(loc *time.Location, logger *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger}
	return &CronScheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithParser(specParser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		loc:    loc,
		logger: logger,
	}
}

// Validate parses a five-field cron expression or descriptor.
func Validate(spec string) error {
	if _, err := specParser.Parse(spec); err != nil {
		return err
	}
	return nil
}

// Arm replaces every installed entry with specs. On a parse error nothing
// stays armed.
func (c *CronScheduler) Arm(specs []string, job func(time.Time)) error {
	if job == nil {
		return fmt.Errorf("arm: nil job")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.disarmLocked()
	for _, spec := range specs {
		id, err := c.cron.AddFunc(spec, func() { job(time.Now().In(c.loc)) })
		if err != nil {
			c.disarmLocked()
			return fmt.Errorf("add cron %q: %w", spec, err)
		}
		c.entries = append(c.entries, id)
	}

	if !c.started {
		c.cron.Start()
		c.started = true
	}
	c.logger.Info("cron armed", "specs", specs, "next", c.nextLocked())
	return nil
}

// Disarm removes every entry this scheduler installed.
func (c *CronScheduler) Disarm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disarmLocked()
}

// Entries reports how many triggers are currently armed.
func (c *CronScheduler) Entries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stop halts the runner and waits for running jobs or ctx.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.disarmLocked()
	started := c.started
	c.started = false
	c.mu.Unlock()

	if !started {
		return nil
	}
	select {
	case <-c.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CronScheduler) disarmLocked() {
	for _, id := range c.entries {
		c.cron.Remove(id)
	}
	c.entries = nil
}

func (c *CronScheduler) nextLocked() time.Time {
	var next time.Time
	for _, id := range c.entries {
		n := c.cron.Entry(id).Next
		if n.IsZero() {
			continue
		}
		if next.IsZero() || n.Before(next) {
			next = n
		}
	}
	return next
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
