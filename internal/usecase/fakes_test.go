package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/domain"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/ports"
)

type memRunLogs struct {
	mu       sync.Mutex
	seq      int
	logs     map[string]domain.RunLog
	finishes map[string]int
}

func newMemRunLogs() *memRunLogs {
	return &memRunLogs{logs: map[string]domain.RunLog{}, finishes: map[string]int{}}
}

func (m *memRunLogs) CreateRunLog(_ context.Context, log domain.RunLog) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	log.ID = fmt.Sprintf("run-%d", m.seq)
	m.logs[log.ID] = log
	return log.ID, nil
}

func (m *memRunLogs) FinishRunLog(_ context.Context, id string, c domain.RunCompletion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log, ok := m.logs[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.finishes[id]++
	if log.Status != domain.RunRunning {
		return nil
	}
	ended := c.EndedAt
	log.Status = c.Status
	log.EndedAt = &ended
	log.ArticlesCount = c.ArticlesCount
	log.LogMessage = c.LogMessage
	log.Metadata = c.Metadata
	m.logs[id] = log
	return nil
}

func (m *memRunLogs) GetRunLog(_ context.Context, id string) (domain.RunLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log, ok := m.logs[id]
	if !ok {
		return domain.RunLog{}, domain.ErrNotFound
	}
	return log, nil
}

func (m *memRunLogs) ListRunLogs(_ context.Context, f domain.RunLogFilter) ([]domain.RunLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RunLog
	for _, log := range m.logs {
		if f.Region != "" && log.Region != f.Region {
			continue
		}
		out = append(out, log)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRunLogs) ResetStaleRunLogs(_ context.Context, olderThan time.Time, message string) (int64, error) {
	return 0, nil
}

func (m *memRunLogs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs)
}

type launcherFunc func(ctx context.Context, req LaunchRequest) (RunResult, error)

func (f launcherFunc) Launch(ctx context.Context, req LaunchRequest) (RunResult, error) {
	return f(ctx, req)
}

type runnerFunc func(ctx context.Context, cmd string, args, env []string) (ports.ProcessResult, error)

func (f runnerFunc) Run(ctx context.Context, cmd string, args, env []string) (ports.ProcessResult, error) {
	return f(ctx, cmd, args, env)
}

// scriptedGenerator replays responses in order and records every request.
type scriptedGenerator struct {
	mu        sync.Mutex
	responses []generation
	requests  []domain.GenerationRequest
}

type generation struct {
	text string
	err  error
}

func (g *scriptedGenerator) Generate(_ context.Context, req domain.GenerationRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if len(g.responses) == 0 {
		return "", fmt.Errorf("no scripted response")
	}
	next := g.responses[0]
	if len(g.responses) > 1 {
		g.responses = g.responses[1:]
	}
	return next.text, next.err
}

type memArticles struct {
	mu       sync.Mutex
	articles map[string]domain.Article
	order    []string
	outcomes []domain.ArticleOutcome
	filters  []domain.ArticleFilter
	listErr  error
}

func newMemArticles(articles ...domain.Article) *memArticles {
	m := &memArticles{articles: map[string]domain.Article{}}
	for _, a := range articles {
		m.articles[a.ID] = a
		m.order = append(m.order, a.ID)
	}
	return m
}

func (m *memArticles) GetArticle(_ context.Context, id string) (domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[id]
	if !ok {
		return domain.Article{}, domain.ErrNotFound
	}
	return a, nil
}

func (m *memArticles) ListArticles(_ context.Context, f domain.ArticleFilter) ([]domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters = append(m.filters, f)
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.Article
	for _, id := range m.order {
		a := m.articles[id]
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, a.Status) {
			continue
		}
		if f.AIProcessed != nil && a.AIProcessed != *f.AIProcessed {
			continue
		}
		if len(f.Sources) > 0 && !containsString(f.Sources, a.Source) {
			continue
		}
		out = append(out, a)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (m *memArticles) ApplyOutcome(_ context.Context, o domain.ArticleOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[o.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if a.AIProcessed || (o.ExpectStatus != "" && a.Status != o.ExpectStatus) {
		return domain.ErrStaleWrite
	}
	m.outcomes = append(m.outcomes, o)
	a.Status = o.Status
	a.AIProcessed = o.AIProcessed
	a.ReviewNote = o.ReviewNote
	if o.Content != nil {
		a.Content = *o.Content
	}
	if o.PublishedAt != nil {
		a.PublishedAt = *o.PublishedAt
	}
	m.articles[o.ID] = a
	return nil
}

func (m *memArticles) IncrementViews(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.ViewCount++
	m.articles[id] = a
	return nil
}

func (m *memArticles) get(id string) domain.Article {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.articles[id]
}

func containsStatus(list []domain.ArticleStatus, s domain.ArticleStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type memSettings struct {
	mu     sync.Mutex
	values map[string][]byte
	getErr error
}

func newMemSettings() *memSettings {
	return &memSettings{values: map[string][]byte{}}
}

func (m *memSettings) GetSetting(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (m *memSettings) PutSetting(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

type memSweeps struct {
	mu      sync.Mutex
	records []domain.SweepRecord
}

func (m *memSweeps) AppendSweep(_ context.Context, r domain.SweepRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

func (m *memSweeps) ListSweeps(_ context.Context, limit int) ([]domain.SweepRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]domain.SweepRecord(nil), m.records...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeDriver struct {
	mu     sync.Mutex
	specs  []string
	job    func(time.Time)
	arms   int
	disarm int
}

func (d *fakeDriver) Arm(specs []string, job func(time.Time)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.specs = nil
	d.specs = append(d.specs, specs...)
	d.job = job
	d.arms++
	return nil
}

func (d *fakeDriver) Disarm() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.specs = nil
	d.job = nil
	d.disarm++
}

func (d *fakeDriver) Entries() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.specs)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) PublishDigest(ctx context.Context, digest string) error {
	args := m.Called(ctx, digest)
	return args.Error(0)
}

type staticBoosts struct {
	boosts []domain.Boost
	err    error
}

func (s staticBoosts) ActiveBoosts(_ context.Context, _ time.Time) ([]domain.Boost, error) {
	return s.boosts, s.err
}

type memBehavior struct {
	mu       sync.Mutex
	behavior map[string]domain.ViewerBehavior
	err      error
	recorded []string
}

func (m *memBehavior) Behavior(_ context.Context, viewerID string) (domain.ViewerBehavior, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.ViewerBehavior{}, m.err
	}
	return m.behavior[viewerID], nil
}

func (m *memBehavior) RecordView(_ context.Context, viewerID, region, category string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded = append(m.recorded, viewerID+"|"+region+"|"+category)
	return nil
}
