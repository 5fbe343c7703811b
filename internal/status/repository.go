package status

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nekogravitycat/reservation-backend/internal/db"
)

type Repository interface {
	// GetOrCreate returns the status called name, inserting it when missing.
	// Concurrent callers always observe the same row.
	GetOrCreate(ctx context.Context, name, description string) (*Status, error)
	GetByID(ctx context.Context, id string) (*Status, error)
	GetByName(ctx context.Context, name string) (*Status, error)
	List(ctx context.Context, filter Filter) ([]*Status, int, error)
	Create(ctx context.Context, s *Status) error
	Update(ctx context.Context, s *Status) error
	Delete(ctx context.Context, id string) error
}

type pgxRepository struct {
	conn db.DBTX
}

func NewPgxRepository(conn db.DBTX) Repository {
	return &pgxRepository{conn: conn}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var statusColumns = []string{"id", "name", "description", "is_active", "is_deleted", "created_at", "updated_at"}

func scanStatus(row pgx.Row, extra ...any) (*Status, error) {
	var s Status
	dest := append([]any{&s.ID, &s.Name, &s.Description, &s.IsActive, &s.IsDeleted, &s.CreatedAt, &s.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *pgxRepository) GetOrCreate(ctx context.Context, name, description string) (*Status, error) {
	// DO UPDATE (not DO NOTHING) so RETURNING yields the existing row too.
	query, args, err := psql.Insert("public.statuses").
		Columns("name", "description").
		Values(name, description).
		Suffix("ON CONFLICT (name) DO UPDATE SET is_deleted = false, is_active = true RETURNING " + strings.Join(statusColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get or create status query failed: %w", err)
	}

	s, err := scanStatus(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("get or create status %q failed: %w", name, err)
	}
	return s, nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Status, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

func (r *pgxRepository) GetByName(ctx context.Context, name string) (*Status, error) {
	return r.getOne(ctx, squirrel.Eq{"name": name})
}

func (r *pgxRepository) getOne(ctx context.Context, where squirrel.Eq) (*Status, error) {
	query, args, err := psql.Select(statusColumns...).
		From("public.statuses").
		Where(where).
		Where(squirrel.Eq{"is_deleted": false}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get status query failed: %w", err)
	}

	s, err := scanStatus(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get status failed: %w", err)
	}
	return s, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Status, int, error) {
	query := psql.Select(append(statusColumns, "count(*) OVER() AS total_count")...).
		From("public.statuses").
		Where(squirrel.Eq{"is_deleted": false})

	if filter.Name != "" {
		query = query.Where(squirrel.ILike{"name": "%" + filter.Name + "%"})
	}

	orderDir := "ASC"
	if filter.SortOrder == "DESC" {
		orderDir = "DESC"
	}
	query = query.OrderBy("name " + orderDir)

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	query = query.Limit(uint64(filter.PageSize)).Offset(uint64((filter.Page - 1) * filter.PageSize))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list statuses query failed: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list statuses failed: %w", err)
	}
	defer rows.Close()

	var (
		statuses []*Status
		total    int
	)
	for rows.Next() {
		s, err := scanStatus(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan status failed: %w", err)
		}
		statuses = append(statuses, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate statuses failed: %w", err)
	}
	return statuses, total, nil
}

func (r *pgxRepository) Create(ctx context.Context, s *Status) error {
	query, args, err := psql.Insert("public.statuses").
		Columns("name", "description").
		Values(s.Name, s.Description).
		Suffix("RETURNING id, is_active, is_deleted, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create status query failed: %w", err)
	}

	err = r.conn.QueryRow(ctx, query, args...).Scan(&s.ID, &s.IsActive, &s.IsDeleted, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrNameTaken
		}
		return fmt.Errorf("create status failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) Update(ctx context.Context, s *Status) error {
	query, args, err := psql.Update("public.statuses").
		Set("name", s.Name).
		Set("description", s.Description).
		Set("is_active", s.IsActive).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": s.ID, "is_deleted": false}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update status query failed: %w", err)
	}

	if err := r.conn.QueryRow(ctx, query, args...).Scan(&s.UpdatedAt); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return ErrNotFound
		case isUniqueViolation(err):
			return ErrNameTaken
		}
		return fmt.Errorf("update status failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) Delete(ctx context.Context, id string) error {
	query, args, err := psql.Update("public.statuses").
		Set("is_deleted", true).
		Set("is_active", false).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id, "is_deleted": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete status query failed: %w", err)
	}

	ct, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete status failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
