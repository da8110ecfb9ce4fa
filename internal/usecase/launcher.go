package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/domain"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/ports"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/scanner"
)

const defaultOutputCap = 5000

var (
	ErrUnknownRegion   = errors.New("unknown region")
	ErrInvalidDayRange = errors.New("day range must be non-negative")
)

var summaryLineExprs = []*regexp.Regexp{
	regexp.MustCompile(`신규\s*[:：]?\s*(\d+)`),
	regexp.MustCompile(`(?i)\b(\d+)\s+new\b`),
}

// LaunchRequest describes one extraction run.
type LaunchRequest struct {
	Region      string
	DayRange    int
	DryRun      bool
	MaxArticles int
}

// RunResult is the outcome of a finished extraction run.
type RunResult struct {
	RunLogID      string
	Status        domain.RunStatus
	ArticlesCount int
	ExitCode      int
	Message       string
}

// LauncherDeps wires the launcher's collaborators.
type LauncherDeps struct {
	Registry   *scanner.Registry
	Runner     ports.ProcessRunner
	Logs       ports.RunLogStore
	Regions    []string
	OutputCap  int
	MaxRuntime time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

// Launcher spawns per-region extraction processes and records every
// attempt in the run log.
type Launcher struct {
	registry   *scanner.Registry
	runner     ports.ProcessRunner
	logs       ports.RunLogStore
	regions    map[string]struct{}
	outputCap  int
	maxRuntime time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewLauncher constructs the launcher.
func NewLauncher(deps LauncherDeps) *Launcher {
	l := &Launcher{
		registry:   deps.Registry,
		runner:     deps.Runner,
		logs:       deps.Logs,
		regions:    make(map[string]struct{}, len(deps.Regions)),
		outputCap:  deps.OutputCap,
		maxRuntime: deps.MaxRuntime,
		logger:     deps.Logger,
		now:        deps.Now,
	}
	for _, r := range deps.Regions {
		l.regions[r] = struct{}{}
	}
	if l.outputCap <= 0 {
		l.outputCap = defaultOutputCap
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Launch runs the extraction for one region and waits for it to exit.
// Errors are returned only when no run log could be opened; every process
// failure is reported through the returned RunResult instead.
func (l *Launcher) Launch(ctx context.Context, req LaunchRequest) (RunResult, error) {
	id, routine, err := l.open(ctx, req)
	if err != nil {
		return RunResult{}, err
	}
	return l.execute(ctx, id, req, routine), nil
}

// Start opens the run log and executes the extraction in the background.
// The returned id can be polled through the run log store.
func (l *Launcher) Start(ctx context.Context, req LaunchRequest) (string, error) {
	id, routine, err := l.open(ctx, req)
	if err != nil {
		return "", err
	}
	go l.execute(context.WithoutCancel(ctx), id, req, routine)
	return id, nil
}

func (l *Launcher) open(ctx context.Context, req LaunchRequest) (string, scanner.Routine, error) {
	if _, ok := l.regions[req.Region]; !ok {
		return "", scanner.Routine{}, fmt.Errorf("%w: %q", ErrUnknownRegion, req.Region)
	}
	if req.DayRange < 0 {
		return "", scanner.Routine{}, fmt.Errorf("%w: %d", ErrInvalidDayRange, req.DayRange)
	}
	if l.registry == nil {
		return "", scanner.Routine{}, fmt.Errorf("scanner registry is not configured")
	}

	routine, err := l.registry.Resolve(req.Region)
	if err != nil {
		return "", scanner.Routine{}, fmt.Errorf("%w: %v", ErrUnknownRegion, err)
	}

	id, err := l.logs.CreateRunLog(ctx, domain.RunLog{
		Region:    req.Region,
		Status:    domain.RunRunning,
		StartedAt: l.now(),
		Metadata:  l.metadata(req, routine, nil, ""),
	})
	if err != nil {
		return "", scanner.Routine{}, fmt.Errorf("create run log: %w", err)
	}
	return id, routine, nil
}

func (l *Launcher) execute(ctx context.Context, id string, req LaunchRequest, routine scanner.Routine) (result RunResult) {
	log := l.logger.With("run_log_id", id, "region", req.Region, "routine", routine.Strategy)
	log.Info("extraction started", "days", req.DayRange, "dry_run", req.DryRun)

	completion := domain.RunCompletion{Status: domain.RunFailed}
	exitCode := -1

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("extraction panicked", "panic", rec)
			completion = domain.RunCompletion{
				Status:     domain.RunFailed,
				LogMessage: fmt.Sprintf("launcher panic: %v", rec),
				Metadata:   l.metadata(req, routine, nil, ""),
			}
		}
		completion.EndedAt = l.now()
		completion = completion.Normalize()

		if err := l.logs.FinishRunLog(context.WithoutCancel(ctx), id, completion); err != nil {
			log.Error("finalize run log", "error", err)
		}
		result = RunResult{
			RunLogID:      id,
			Status:        completion.Status,
			ArticlesCount: completion.ArticlesCount,
			ExitCode:      exitCode,
			Message:       completion.LogMessage,
		}
		log.Info("extraction finished", "status", result.Status, "articles", result.ArticlesCount, "exit_code", exitCode)
	}()

	runCtx := ctx
	if l.maxRuntime > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, l.maxRuntime)
		defer cancel()
	}

	proc, runErr := l.runner.Run(runCtx, routine.Command, buildArgs(routine, req), buildEnv(req))
	output := combineOutput(proc.Stdout, proc.Stderr, l.outputCap)

	if runErr != nil {
		completion.LogMessage = fmt.Sprintf("process failed: %v", runErr)
		completion.Metadata = l.metadata(req, routine, nil, output)
		return
	}

	exitCode = proc.ExitCode
	completion.Metadata = l.metadata(req, routine, &exitCode, output)
	if exitCode != 0 {
		completion.LogMessage = fmt.Sprintf("process exited with code %d", exitCode)
		return
	}

	count, ok := ParseArticleCount(proc.Stdout)
	if !ok {
		log.Debug("no summary line in extraction output, counting zero articles")
	}
	completion.Status = domain.RunSuccess
	completion.ArticlesCount = count
	completion.LogMessage = fmt.Sprintf("completed: %d new articles", count)
	return
}

func (l *Launcher) metadata(req LaunchRequest, routine scanner.Routine, exitCode *int, output string) domain.RunMetadata {
	return domain.RunMetadata{
		DryRun:      req.DryRun,
		DayRange:    req.DayRange,
		MaxArticles: req.MaxArticles,
		Routine:     routine.Strategy,
		ExitCode:    exitCode,
		Output:      output,
	}
}

func buildArgs(routine scanner.Routine, req LaunchRequest) []string {
	args := append([]string{}, routine.Args...)
	args = append(args, "--days", strconv.Itoa(req.DayRange))
	if req.DryRun {
		args = append(args, "--dry-run")
	}
	if req.MaxArticles > 0 {
		args = append(args, "--max-articles", strconv.Itoa(req.MaxArticles))
	}
	return args
}

func buildEnv(req LaunchRequest) []string {
	env := []string{"SCRAPER_REGION=" + req.Region, "PYTHONIOENCODING=utf-8"}
	if req.DryRun {
		env = append(env, "SCRAPER_DRY_RUN=1")
	}
	return env
}

// ParseArticleCount scans the output bottom-up for the terminal summary
// line ("신규 N" or "N new") and returns N.
func ParseArticleCount(stdout string) (int, bool) {
	lines := strings.Split(stdout, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		for _, expr := range summaryLineExprs {
			m := expr.FindStringSubmatch(lines[i])
			if m == nil {
				continue
			}
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			return n, true
		}
	}
	return 0, false
}

// combineOutput appends stderr to stdout and keeps the last limit runes.
func combineOutput(stdout, stderr string, limit int) string {
	combined := stdout
	if strings.TrimSpace(stderr) != "" {
		if combined != "" && !strings.HasSuffix(combined, "\n") {
			combined += "\n"
		}
		combined += "[stderr]\n" + stderr
	}
	runes := []rune(combined)
	if limit > 0 && len(runes) > limit {
		return string(runes[len(runes)-limit:])
	}
	return combined
}
