package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/domain"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/ports"
)

const (
	scheduleSettingKey  = "test_scheduler_config"
	defaultHistoryLimit = 20

	TriggerCron   = "cron"
	TriggerManual = "manual"
)

var (
	ErrSweepInProgress = errors.New("test sweep already in progress")
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// SweepLauncher runs one extraction and waits for it.
type SweepLauncher interface {
	Launch(ctx context.Context, req LaunchRequest) (RunResult, error)
}

// TestSchedulerDeps wires the test scheduler.
type TestSchedulerDeps struct {
	Driver       ports.Scheduler
	Launcher     SweepLauncher
	Settings     ports.SettingsStore
	History      ports.SweepHistoryStore
	Notifier     ports.Notifier
	Regions      []string
	DefaultCrons []string
	// Validate checks a single cron expression. Nil accepts any non-empty one.
	Validate func(spec string) error
	Logger   *slog.Logger
	Now      func() time.Time
}

// TestScheduler owns the recurring dry-run sweep over every region. It is
// the only component that arms or disarms the cron driver.
type TestScheduler struct {
	driver       ports.Scheduler
	launcher     SweepLauncher
	settings     ports.SettingsStore
	history      ports.SweepHistoryStore
	notifier     ports.Notifier
	regions      []string
	defaultCrons []string
	validate     func(string) error
	logger       *slog.Logger
	now          func() time.Time

	cfgMu   sync.Mutex
	sweepMu sync.Mutex
	baseCtx context.Context
}

// NewTestScheduler constructs the scheduler controller.
func NewTestScheduler(deps TestSchedulerDeps) *TestScheduler {
	s := &TestScheduler{
		driver:       deps.Driver,
		launcher:     deps.Launcher,
		settings:     deps.Settings,
		history:      deps.History,
		notifier:     deps.Notifier,
		regions:      append([]string(nil), deps.Regions...),
		defaultCrons: append([]string(nil), deps.DefaultCrons...),
		validate:     deps.Validate,
		logger:       deps.Logger,
		now:          deps.Now,
		baseCtx:      context.Background(),
	}
	if s.validate == nil {
		s.validate = func(spec string) error {
			if strings.TrimSpace(spec) == "" {
				return errors.New("empty expression")
			}
			return nil
		}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Start loads the stored configuration and arms the triggers when enabled.
// Scheduled sweeps run under ctx.
func (s *TestScheduler) Start(ctx context.Context) error {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()

	s.baseCtx = ctx
	cfg, err := s.load(ctx)
	if err != nil {
		return err
	}
	return s.rearm(cfg)
}

// Stop tears down every armed trigger. A sweep already running finishes.
func (s *TestScheduler) Stop() {
	if s.driver != nil {
		s.driver.Disarm()
	}
}

// Config returns the stored configuration, or the default one when nothing
// usable is stored.
func (s *TestScheduler) Config(ctx context.Context) (domain.ScheduleConfig, error) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	return s.load(ctx)
}

// SaveConfig replaces the enabled flag and cron set, persists them and
// re-arms. The last sweep result is preserved.
func (s *TestScheduler) SaveConfig(ctx context.Context, next domain.ScheduleConfig) (domain.ScheduleConfig, error) {
	crons := make([]string, 0, len(next.Crons))
	for _, spec := range next.Crons {
		spec = strings.TrimSpace(spec)
		if err := s.validate(spec); err != nil {
			return domain.ScheduleConfig{}, fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, spec, err)
		}
		crons = append(crons, spec)
	}
	if next.Enabled && len(crons) == 0 {
		return domain.ScheduleConfig{}, fmt.Errorf("%w: enabled schedule needs at least one cron expression", ErrInvalidSchedule)
	}

	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()

	current, err := s.load(ctx)
	if err != nil {
		return domain.ScheduleConfig{}, err
	}
	current.Enabled = next.Enabled
	current.Crons = crons

	if err := s.store(ctx, current); err != nil {
		return domain.ScheduleConfig{}, err
	}
	if err := s.rearm(current); err != nil {
		return current, err
	}
	s.logger.Info("test schedule saved", "enabled", current.Enabled, "crons", current.Crons)
	return current, nil
}

// RunSweep runs one sweep synchronously. It fails fast with
// ErrSweepInProgress instead of overlapping a running sweep.
func (s *TestScheduler) RunSweep(ctx context.Context, trigger string) (domain.SweepSummary, error) {
	if !s.sweepMu.TryLock() {
		return domain.SweepSummary{}, ErrSweepInProgress
	}
	defer s.sweepMu.Unlock()
	return s.sweep(ctx, trigger), nil
}

// StartSweep claims the sweep guard and runs the sweep in the background.
func (s *TestScheduler) StartSweep(ctx context.Context, trigger string) error {
	if !s.sweepMu.TryLock() {
		return ErrSweepInProgress
	}
	go func() {
		defer s.sweepMu.Unlock()
		defer s.recoverJob(trigger)
		s.sweep(context.WithoutCancel(ctx), trigger)
	}()
	return nil
}

// History lists past sweeps, newest first.
func (s *TestScheduler) History(ctx context.Context, limit int) ([]domain.SweepRecord, error) {
	if s.history == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	records, err := s.history.ListSweeps(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list sweeps: %w", err)
	}
	return records, nil
}

func (s *TestScheduler) sweep(ctx context.Context, trigger string) domain.SweepSummary {
	summary := domain.SweepSummary{
		Total:         len(s.regions),
		FailedRegions: []string{},
		Trigger:       trigger,
		StartedAt:     s.now(),
	}
	s.logger.Info("test sweep started", "trigger", trigger, "regions", len(s.regions))

	for _, region := range s.regions {
		if ctx.Err() != nil {
			summary.FailedRegions = append(summary.FailedRegions, region)
			continue
		}
		res, err := s.launcher.Launch(ctx, LaunchRequest{
			Region:      region,
			DayRange:    1,
			DryRun:      true,
			MaxArticles: 1,
		})
		switch {
		case err != nil:
			s.logger.Warn("test sweep region failed to launch", "region", region, "error", err)
			summary.FailedRegions = append(summary.FailedRegions, region)
		case res.Status != domain.RunSuccess:
			s.logger.Warn("test sweep region failed", "region", region, "exit_code", res.ExitCode, "message", res.Message)
			summary.FailedRegions = append(summary.FailedRegions, region)
		default:
			summary.SuccessCount++
			s.logger.Debug("test sweep region passed", "region", region, "run_log_id", res.RunLogID)
		}
	}
	summary.FinishedAt = s.now()

	s.logger.Info("test sweep finished",
		"trigger", trigger,
		"total", summary.Total,
		"success", summary.SuccessCount,
		"failed", summary.FailedRegions,
	)
	s.record(context.WithoutCancel(ctx), summary)
	return summary
}

// record persists the summary on the config row and as a history record.
// Persistence failures are logged; the sweep itself already happened.
func (s *TestScheduler) record(ctx context.Context, summary domain.SweepSummary) {
	s.cfgMu.Lock()
	cfg, err := s.load(ctx)
	if err == nil {
		finished := summary.FinishedAt
		cfg.LastRun = &finished
		cfg.LastResult = &summary
		err = s.store(ctx, cfg)
	}
	s.cfgMu.Unlock()
	if err != nil {
		s.logger.Error("store sweep result on config", "error", err)
	}

	if s.history != nil {
		if err := s.history.AppendSweep(ctx, domain.SweepRecord{SweepSummary: summary}); err != nil {
			s.logger.Error("append sweep history", "error", err)
		}
	}

	if s.notifier != nil && len(summary.FailedRegions) > 0 {
		if err := s.notifier.PublishDigest(ctx, buildSweepAlert(summary)); err != nil {
			s.logger.Warn("publish sweep alert", "error", err)
		}
	}
}

func (s *TestScheduler) rearm(cfg domain.ScheduleConfig) error {
	if s.driver == nil {
		return nil
	}
	s.driver.Disarm()
	if !cfg.Enabled {
		return nil
	}
	if err := s.driver.Arm(cfg.Crons, s.onTick); err != nil {
		return fmt.Errorf("arm test schedule: %w", err)
	}
	return nil
}

func (s *TestScheduler) onTick(fired time.Time) {
	defer s.recoverJob(TriggerCron)
	if _, err := s.RunSweep(s.baseCtx, TriggerCron); err != nil {
		s.logger.Info("cron tick skipped", "fired_at", fired, "reason", err)
	}
}

func (s *TestScheduler) recoverJob(trigger string) {
	if r := recover(); r != nil {
		s.logger.Error("test sweep panicked", "trigger", trigger, "panic", r)
	}
}

func (s *TestScheduler) load(ctx context.Context) (domain.ScheduleConfig, error) {
	cfg := s.defaultConfig()
	if s.settings == nil {
		return cfg, nil
	}

	raw, err := s.settings.GetSetting(ctx, scheduleSettingKey)
	if errors.Is(err, domain.ErrNotFound) {
		return cfg, nil
	}
	if err != nil {
		return domain.ScheduleConfig{}, fmt.Errorf("load schedule config: %w", err)
	}

	var stored domain.ScheduleConfig
	if err := json.Unmarshal(raw, &stored); err != nil {
		s.logger.Warn("stored schedule config is malformed, using defaults", "error", err)
		return cfg, nil
	}

	valid := stored.Crons[:0:0]
	for _, spec := range stored.Crons {
		if err := s.validate(spec); err != nil {
			s.logger.Warn("dropping invalid stored cron expression", "spec", spec, "error", err)
			continue
		}
		valid = append(valid, spec)
	}
	if len(valid) == 0 {
		valid = cfg.Crons
	}
	stored.Crons = valid
	return stored, nil
}

func (s *TestScheduler) store(ctx context.Context, cfg domain.ScheduleConfig) error {
	if s.settings == nil {
		return nil
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode schedule config: %w", err)
	}
	if err := s.settings.PutSetting(ctx, scheduleSettingKey, raw); err != nil {
		return fmt.Errorf("store schedule config: %w", err)
	}
	return nil
}

func (s *TestScheduler) defaultConfig() domain.ScheduleConfig {
	return domain.ScheduleConfig{
		Enabled: false,
		Crons:   append([]string(nil), s.defaultCrons...),
	}
}

func buildSweepAlert(summary domain.SweepSummary) string {
	return fmt.Sprintf("스크래퍼 테스트 실패 (%s): %d/%d 성공\n실패 지역: %s",
		summary.Trigger,
		summary.SuccessCount,
		summary.Total,
		strings.Join(summary.FailedRegions, ", "),
	)
}
