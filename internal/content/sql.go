package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cfmlabs/freshness-monitor/internal/freshness"
	"github.com/cfmlabs/freshness-monitor/internal/models"
	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver
)

var orderColumns = map[freshness.OrderField]string{
	freshness.OrderModified: "c.modified_at",
	freshness.OrderDate:     "c.published_at",
	freshness.OrderTitle:    "c.title",
	freshness.OrderAuthor:   "c.author_id",
	freshness.OrderID:       "c.id",
}

var itemColumns = []string{
	"c.id AS id",
	"c.content_type AS content_type",
	"c.status AS status",
	"c.title AS title",
	"c.author_id AS author_id",
	"c.published_at AS published_at",
	"c.modified_at AS modified_at",
	"r.reviewed_at AS reviewed_at",
}

type itemRow struct {
	ID          int64         `db:"id"`
	Type        string        `db:"content_type"`
	Status      string        `db:"status"`
	Title       string        `db:"title"`
	AuthorID    int64         `db:"author_id"`
	PublishedAt int64         `db:"published_at"`
	ModifiedAt  int64         `db:"modified_at"`
	ReviewedAt  sql.NullInt64 `db:"reviewed_at"`
}

func (r itemRow) toModel() models.ContentItem {
	item := models.ContentItem{
		ID:          r.ID,
		Type:        r.Type,
		Status:      r.Status,
		Title:       r.Title,
		AuthorID:    r.AuthorID,
		PublishedAt: time.Unix(r.PublishedAt, 0).UTC(),
		ModifiedAt:  time.Unix(r.ModifiedAt, 0).UTC(),
	}
	if r.ReviewedAt.Valid {
		at := time.Unix(r.ReviewedAt.Int64, 0).UTC()
		item.ReviewedAt = &at
	}
	return item
}

// SQLStore keeps content in a SQL database. Timestamps are unix seconds.
type SQLStore struct {
	db      *sqlx.DB
	backend Backend
	sb      sq.StatementBuilderType
}

var _ Store = (*SQLStore)(nil)

// OpenSQL connects to an already migrated database
func OpenSQL(ctx context.Context, backend Backend, dsn string) (*SQLStore, error) {
	driverName, err := driverFor(backend)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", backend, err)
	}
	if backend == BackendSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", backend, err)
	}

	return NewSQLStore(db, backend), nil
}

// NewSQLStore wraps an open connection
func NewSQLStore(db *sqlx.DB, backend Backend) *SQLStore {
	var placeholder sq.PlaceholderFormat = sq.Question
	if backend == BackendPostgres {
		placeholder = sq.Dollar
	}
	return &SQLStore{
		db:      db,
		backend: backend,
		sb:      sq.StatementBuilder.PlaceholderFormat(placeholder),
	}
}

func (s *SQLStore) from(columns ...string) sq.SelectBuilder {
	return s.sb.Select(columns...).
		From("content_items c").
		LeftJoin("content_reviews r ON r.content_id = c.id")
}

func applyFilter(b sq.SelectBuilder, f freshness.Filter) sq.SelectBuilder {
	if f.Status != "" {
		b = b.Where(sq.Eq{"c.status": f.Status})
	}
	if len(f.Types) > 0 {
		b = b.Where(sq.Eq{"c.content_type": f.Types})
	}
	if len(f.ExcludeIDs) > 0 {
		b = b.Where(sq.NotEq{"c.id": f.ExcludeIDs})
	}
	if f.IncludeIDs != nil {
		if len(f.IncludeIDs) == 0 {
			b = b.Where("1 = 0")
		} else {
			b = b.Where(sq.Eq{"c.id": f.IncludeIDs})
		}
	}
	if f.AuthorID != 0 {
		b = b.Where(sq.Eq{"c.author_id": f.AuthorID})
	}
	if f.StaleBefore != nil {
		cutoff := f.StaleBefore.Unix()
		b = b.Where(dateBefore(f.DateMode, cutoff))
		b = b.Where(sq.Or{sq.Eq{"r.reviewed_at": nil}, sq.LtOrEq{"r.reviewed_at": cutoff}})
	}
	return b
}

// dateBefore mirrors freshness.SelectDate: oldest is stale when either date is
func dateBefore(mode models.DateMode, cutoff int64) sq.Sqlizer {
	switch freshness.NormalizeDateMode(mode) {
	case models.DatePublished:
		return sq.LtOrEq{"c.published_at": cutoff}
	case models.DateOldest:
		return sq.Or{sq.LtOrEq{"c.published_at": cutoff}, sq.LtOrEq{"c.modified_at": cutoff}}
	default:
		return sq.LtOrEq{"c.modified_at": cutoff}
	}
}

func (s *SQLStore) Count(ctx context.Context, f freshness.Filter) (int, error) {
	query, args, err := applyFilter(s.from("COUNT(*)"), f).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var n int
	if err := s.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count content: %w", err)
	}
	return n, nil
}

func (s *SQLStore) IDs(ctx context.Context, f freshness.Filter) ([]int64, error) {
	query, args, err := applyFilter(s.from("c.id"), f).OrderBy("c.id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build id query: %w", err)
	}
	ids := []int64{}
	if err := s.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list content ids: %w", err)
	}
	return ids, nil
}

func (s *SQLStore) Find(ctx context.Context, f freshness.Filter, p freshness.Page) ([]models.ContentItem, error) {
	column, ok := orderColumns[p.OrderBy]
	if !ok {
		column = orderColumns[freshness.OrderModified]
	}
	dir := "ASC"
	if p.Desc {
		dir = "DESC"
	}

	b := applyFilter(s.from(itemColumns...), f).OrderBy(column + " " + dir)
	if column != "c.id" {
		b = b.OrderBy("c.id " + dir)
	}
	if p.Limit > 0 {
		b = b.Limit(uint64(p.Limit)).Offset(uint64(p.Offset))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build content query: %w", err)
	}
	var rows []itemRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query content: %w", err)
	}

	items := make([]models.ContentItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.toModel())
	}
	return items, nil
}

func (s *SQLStore) Get(ctx context.Context, id int64) (*models.ContentItem, error) {
	query, args, err := s.from(itemColumns...).Where(sq.Eq{"c.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build content query: %w", err)
	}
	var row itemRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, freshness.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load content %d: %w", id, err)
	}
	item := row.toModel()
	return &item, nil
}

func (s *SQLStore) Authors(ctx context.Context, ids []int64) (map[int64]models.Author, error) {
	out := make(map[int64]models.Author)
	unique := uniqueIDs(ids)
	if len(unique) == 0 {
		return out, nil
	}

	query, args, err := s.sb.Select("id", "display_name", "email", "can_edit").
		From("content_authors").
		Where(sq.Eq{"id": unique}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build author query: %w", err)
	}
	var authors []models.Author
	if err := s.db.SelectContext(ctx, &authors, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load authors: %w", err)
	}
	for _, a := range authors {
		out[a.ID] = a
	}
	return out, nil
}

// upsert appends the backend's conflict clause to an insert
func (s *SQLStore) upsert(b sq.InsertBuilder, key string, columns ...string) sq.InsertBuilder {
	if s.backend == BackendMySQL {
		clause := "ON DUPLICATE KEY UPDATE "
		for i, c := range columns {
			if i > 0 {
				clause += ", "
			}
			clause += fmt.Sprintf("%s = VALUES(%s)", c, c)
		}
		return b.Suffix(clause)
	}
	clause := fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET ", key)
	for i, c := range columns {
		if i > 0 {
			clause += ", "
		}
		clause += fmt.Sprintf("%s = EXCLUDED.%s", c, c)
	}
	return b.Suffix(clause)
}

func (s *SQLStore) exec(ctx context.Context, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build statement: %w", err)
	}
	return s.db.ExecContext(ctx, query, args...)
}

func (s *SQLStore) SetReviewed(ctx context.Context, id int64, at time.Time) error {
	b := s.sb.Insert("content_reviews").
		Columns("content_id", "reviewed_at").
		Values(id, at.Unix())
	if _, err := s.exec(ctx, s.upsert(b, "content_id", "reviewed_at")); err != nil {
		return fmt.Errorf("failed to write review for %d: %w", id, err)
	}
	return nil
}

func (s *SQLStore) Upsert(ctx context.Context, item models.ContentItem) error {
	if err := validate(item); err != nil {
		return err
	}
	b := s.sb.Insert("content_items").
		Columns("id", "content_type", "status", "title", "author_id", "published_at", "modified_at").
		Values(item.ID, item.Type, item.Status, item.Title, item.AuthorID, item.PublishedAt.Unix(), item.ModifiedAt.Unix())
	b = s.upsert(b, "id", "content_type", "status", "title", "author_id", "published_at", "modified_at")
	if _, err := s.exec(ctx, b); err != nil {
		return fmt.Errorf("failed to upsert content %d: %w", item.ID, err)
	}
	return nil
}

func (s *SQLStore) UpsertAuthor(ctx context.Context, author models.Author) error {
	b := s.sb.Insert("content_authors").
		Columns("id", "display_name", "email", "can_edit").
		Values(author.ID, author.DisplayName, author.Email, author.CanEdit)
	b = s.upsert(b, "id", "display_name", "email", "can_edit")
	if _, err := s.exec(ctx, b); err != nil {
		return fmt.Errorf("failed to upsert author %d: %w", author.ID, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := s.sb.Delete("content_items").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete content %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return freshness.ErrNotFound
	}

	query, args, err = s.sb.Delete("content_reviews").Where(sq.Eq{"content_id": id}).ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete review for %d: %w", id, err)
	}

	return tx.Commit()
}

func (s *SQLStore) SetStatus(ctx context.Context, id int64, status string) error {
	res, err := s.exec(ctx, s.sb.Update("content_items").Set("status", status).Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("failed to update status of %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
