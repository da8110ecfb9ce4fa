package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/domain"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/ports"
)

const defaultArticleLimit = 100

var articleColumns = []string{"id", "title", "content", "source", "category", "status", "ai_processed", "published_at", "view_count", "review_note"}

// ArticleRepository reads articles and writes pipeline outcomes.
type ArticleRepository struct {
	db *sql.DB
}

var _ ports.ArticleStore = (*ArticleRepository)(nil)

func NewArticleRepository(db *sql.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// GetArticle loads one article by id.
func (r *ArticleRepository) GetArticle(ctx context.Context, id string) (domain.Article, error) {
	query, args, err := psql.Select(articleColumns...).From("articles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Article{}, fmt.Errorf("build get article: %w", err)
	}

	article, err := scanArticle(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Article{}, fmt.Errorf("article %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Article{}, fmt.Errorf("get article %s: %w", id, err)
	}
	return article, nil
}

// ListArticles returns articles newest first.
func (r *ArticleRepository) ListArticles(ctx context.Context, filter domain.ArticleFilter) ([]domain.Article, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultArticleLimit
	}

	builder := psql.Select(articleColumns...).From("articles")
	if len(filter.Sources) > 0 {
		builder = builder.Where("source = ANY(?)", pq.StringArray(filter.Sources))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		builder = builder.Where("status = ANY(?)", pq.StringArray(statuses))
	}
	if filter.AIProcessed != nil {
		builder = builder.Where(sq.Eq{"ai_processed": *filter.AIProcessed})
	}
	if !filter.Since.IsZero() {
		builder = builder.Where(sq.GtOrEq{"published_at": filter.Since})
	}
	builder = builder.OrderBy("published_at DESC NULLS LAST", "id").Limit(uint64(limit))
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list articles: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return articles, nil
}

// ApplyOutcome writes the terminal pipeline result. Content and
// published_at are only written when the outcome carries them. The update is
// guarded on ai_processed = false and the expected status, so a stale
// outcome never overwrites one that already landed.
func (r *ArticleRepository) ApplyOutcome(ctx context.Context, outcome domain.ArticleOutcome) error {
	builder := psql.Update("articles").
		Set("status", outcome.Status).
		Set("ai_processed", outcome.AIProcessed).
		Set("review_note", outcome.ReviewNote).
		Set("updated_at", sq.Expr("NOW()"))
	if outcome.Content != nil {
		builder = builder.Set("content", *outcome.Content)
	}
	if outcome.PublishedAt != nil {
		builder = builder.Set("published_at", *outcome.PublishedAt)
	}
	builder = builder.Where(sq.Eq{"id": outcome.ID}).Where(sq.Eq{"ai_processed": false})
	if outcome.ExpectStatus != "" {
		builder = builder.Where(sq.Eq{"status": outcome.ExpectStatus})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build apply outcome: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("apply outcome %s: %w", outcome.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply outcome %s: %w", outcome.ID, err)
	}
	if n > 0 {
		return nil
	}

	if _, err := r.GetArticle(ctx, outcome.ID); err != nil {
		return err
	}
	return fmt.Errorf("apply outcome %s: %w", outcome.ID, domain.ErrStaleWrite)
}

// IncrementViews bumps view_count by one.
func (r *ArticleRepository) IncrementViews(ctx context.Context, id string) error {
	query, args, err := psql.Update("articles").
		Set("view_count", sq.Expr("view_count + 1")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build increment views: %w", err)
	}
	return r.execOne(ctx, id, query, args)
}

func (r *ArticleRepository) execOne(ctx context.Context, id, query string, args []any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update article %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update article %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("article %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanArticle(row rowScanner) (domain.Article, error) {
	var (
		a         domain.Article
		status    string
		published sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Title, &a.Content, &a.Source, &a.Category, &status, &a.AIProcessed, &published, &a.ViewCount, &a.ReviewNote)
	if err != nil {
		return domain.Article{}, err
	}
	a.Status = domain.ArticleStatus(status)
	if published.Valid {
		a.PublishedAt = published.Time
	}
	return a, nil
}
