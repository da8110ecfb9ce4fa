package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/domain"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/ports"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/scanner"
)

func universalRegistry() *scanner.Registry {
	reg := scanner.NewRegistry()
	reg.Register(scanner.UniversalScript{
		Path:        "/scrapers/universal_scraper.py",
		Interpreter: "python3",
		Exists:      func(string) bool { return true },
	})
	return reg
}

func newTestLauncher(runner ports.ProcessRunner, logs *memRunLogs) *Launcher {
	return NewLauncher(LauncherDeps{
		Registry: universalRegistry(),
		Runner:   runner,
		Logs:     logs,
		Regions:  []string{"naju", "mokpo"},
	})
}

func TestLaunchZeroNewArticlesIsSuccess(t *testing.T) {
	t.Parallel()

	logs := newMemRunLogs()
	runner := runnerFunc(func(context.Context, string, []string, []string) (ports.ProcessResult, error) {
		return ports.ProcessResult{ExitCode: 0, Stdout: "수집 완료, 새 기사 없음\n"}, nil
	})

	res, err := newTestLauncher(runner, logs).Launch(context.Background(), LaunchRequest{Region: "naju", DayRange: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.RunSuccess, res.Status)
	assert.Equal(t, 0, res.ArticlesCount)

	stored, err := logs.GetRunLog(context.Background(), res.RunLogID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunSuccess, stored.Status)
	assert.Equal(t, 0, stored.ArticlesCount)
	assert.NotNil(t, stored.EndedAt)
}

func TestLaunchParsesSummaryLine(t *testing.T) {
	t.Parallel()

	logs := newMemRunLogs()
	var gotCmd string
	var gotArgs []string
	runner := runnerFunc(func(_ context.Context, cmd string, args, _ []string) (ports.ProcessResult, error) {
		gotCmd, gotArgs = cmd, args
		return ports.ProcessResult{Stdout: "page 1\n[완료] 신규 3건, 중복 5건\n"}, nil
	})

	res, err := newTestLauncher(runner, logs).Launch(context.Background(), LaunchRequest{
		Region: "mokpo", DayRange: 2, DryRun: true, MaxArticles: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RunSuccess, res.Status)
	assert.Equal(t, 3, res.ArticlesCount)
	assert.Equal(t, "python3", gotCmd)
	assert.Equal(t, []string{
		"/scrapers/universal_scraper.py", "--region", "mokpo",
		"--days", "2", "--dry-run", "--max-articles", "1",
	}, gotArgs)

	stored, _ := logs.GetRunLog(context.Background(), res.RunLogID)
	assert.True(t, stored.Metadata.DryRun)
	assert.Equal(t, 2, stored.Metadata.DayRange)
	assert.Equal(t, "universal", stored.Metadata.Routine)
}

func TestLaunchNonZeroExitFails(t *testing.T) {
	t.Parallel()

	logs := newMemRunLogs()
	runner := runnerFunc(func(context.Context, string, []string, []string) (ports.ProcessResult, error) {
		return ports.ProcessResult{ExitCode: 2, Stdout: "신규 4\n", Stderr: "Traceback: boom\n"}, nil
	})

	res, err := newTestLauncher(runner, logs).Launch(context.Background(), LaunchRequest{Region: "naju"})
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, res.Status)
	assert.Equal(t, 0, res.ArticlesCount)
	assert.Equal(t, 2, res.ExitCode)

	stored, _ := logs.GetRunLog(context.Background(), res.RunLogID)
	assert.Contains(t, stored.Metadata.Output, "[stderr]\nTraceback: boom")
}

func TestLaunchSpawnFailureStillFinalizes(t *testing.T) {
	t.Parallel()

	logs := newMemRunLogs()
	runner := runnerFunc(func(context.Context, string, []string, []string) (ports.ProcessResult, error) {
		return ports.ProcessResult{ExitCode: -1}, errors.New("exec: \"python3\": executable file not found")
	})

	res, err := newTestLauncher(runner, logs).Launch(context.Background(), LaunchRequest{Region: "naju"})
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, res.Status)
	assert.Contains(t, res.Message, "executable file not found")
	assert.Equal(t, 1, logs.finishes[res.RunLogID])
}

func TestLaunchRunnerPanicStillFinalizes(t *testing.T) {
	t.Parallel()

	logs := newMemRunLogs()
	runner := runnerFunc(func(context.Context, string, []string, []string) (ports.ProcessResult, error) {
		panic("runner exploded")
	})

	res, err := newTestLauncher(runner, logs).Launch(context.Background(), LaunchRequest{Region: "naju"})
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, res.Status)

	stored, _ := logs.GetRunLog(context.Background(), res.RunLogID)
	assert.Equal(t, domain.RunFailed, stored.Status)
}

func TestLaunchPreconditions(t *testing.T) {
	t.Parallel()

	logs := newMemRunLogs()
	runner := runnerFunc(func(context.Context, string, []string, []string) (ports.ProcessResult, error) {
		t.Fatal("runner must not be called")
		return ports.ProcessResult{}, nil
	})
	l := newTestLauncher(runner, logs)

	_, err := l.Launch(context.Background(), LaunchRequest{Region: "seoul"})
	assert.ErrorIs(t, err, ErrUnknownRegion)

	_, err = l.Launch(context.Background(), LaunchRequest{Region: "naju", DayRange: -1})
	assert.ErrorIs(t, err, ErrInvalidDayRange)

	assert.Equal(t, 0, logs.count())
}

func TestLaunchAppliesMaxRuntime(t *testing.T) {
	t.Parallel()

	logs := newMemRunLogs()
	runner := runnerFunc(func(ctx context.Context, _ string, _, _ []string) (ports.ProcessResult, error) {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		<-ctx.Done()
		return ports.ProcessResult{ExitCode: -1}, ctx.Err()
	})
	l := NewLauncher(LauncherDeps{
		Registry:   universalRegistry(),
		Runner:     runner,
		Logs:       logs,
		Regions:    []string{"naju"},
		MaxRuntime: 20 * time.Millisecond,
	})

	res, err := l.Launch(context.Background(), LaunchRequest{Region: "naju"})
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, res.Status)
	assert.Contains(t, res.Message, "deadline exceeded")
}

func TestStartRunsInBackground(t *testing.T) {
	t.Parallel()

	logs := newMemRunLogs()
	release := make(chan struct{})
	runner := runnerFunc(func(context.Context, string, []string, []string) (ports.ProcessResult, error) {
		<-release
		return ports.ProcessResult{Stdout: "12 new, 0 duplicate"}, nil
	})

	id, err := newTestLauncher(runner, logs).Start(context.Background(), LaunchRequest{Region: "naju", DayRange: 1})
	require.NoError(t, err)

	stored, err := logs.GetRunLog(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.RunRunning, stored.Status)

	close(release)
	require.Eventually(t, func() bool {
		stored, _ := logs.GetRunLog(context.Background(), id)
		return stored.Status == domain.RunSuccess && stored.ArticlesCount == 12
	}, time.Second, 5*time.Millisecond)
}

func TestParseArticleCount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		out    string
		want   int
		wantOK bool
	}{
		{"korean summary", "로그\n완료: 신규 7건, 중복 2건\n", 7, true},
		{"korean with colon", "신규: 11", 11, true},
		{"english summary", "Done. 4 new, 9 duplicate", 4, true},
		{"last line wins", "신규 1\n신규 2\n", 2, true},
		{"no summary", "nothing here", 0, false},
		{"empty", "", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseArticleCount(tc.out)
		assert.Equal(t, tc.want, got, tc.name)
		assert.Equal(t, tc.wantOK, ok, tc.name)
	}
}

func TestCombineOutputKeepsTail(t *testing.T) {
	t.Parallel()

	out := combineOutput(strings.Repeat("가", 10), "에러", 5)
	assert.Equal(t, 5, len([]rune(out)))
	assert.True(t, strings.HasSuffix(out, "\n에러"))

	assert.Equal(t, "ok", combineOutput("ok", "  ", 100))
}
