package reservation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/reservation-backend/internal/db"
)

// ErrCodeTaken is returned by Create when the code collides with an existing row.
var ErrCodeTaken = errors.New("reservation code already exists")

type Repository interface {
	// WithTx runs fn with a repository bound to a single transaction.
	// Calling WithTx on a transaction-bound repository reuses the transaction.
	WithTx(ctx context.Context, fn func(repo Repository) error) error
	// Savepoint runs fn in a nested transaction so a failed statement can be retried
	// without aborting the enclosing one.
	Savepoint(ctx context.Context, fn func(repo Repository) error) error
	// LockResources takes a transaction-scoped advisory lock per resource ID, in sorted order.
	LockResources(ctx context.Context, resourceIDs []string) error

	Create(ctx context.Context, r *Reservation) error
	// GetByID returns the reservation with its detail and active resource links.
	GetByID(ctx context.Context, id string, includeDeleted bool) (*Reservation, error)
	// GetForUpdate is GetByID with a row lock on the reservation; use inside WithTx.
	GetForUpdate(ctx context.Context, id string) (*Reservation, error)
	GetByCode(ctx context.Context, code string) (*Reservation, error)
	List(ctx context.Context, filter Filter) ([]*Reservation, int, error)
	Update(ctx context.Context, r *Reservation) error
	SoftDelete(ctx context.Context, id string) error
	CodeExists(ctx context.Context, code string) (bool, error)

	CreateDetail(ctx context.Context, d *Detail) error
	// ListDetails returns the active detail of each reservation, keyed by reservation ID.
	ListDetails(ctx context.Context, reservationIDs []string) (map[string]Detail, error)
	UpdateDetail(ctx context.Context, d *Detail) error
	SoftDeleteDetail(ctx context.Context, reservationID string) error

	CreateLink(ctx context.Context, l *ResourceLink) error
	ListLinks(ctx context.Context, reservationIDs []string) (map[string][]ResourceLink, error)
	SoftDeleteLinks(ctx context.Context, reservationID string) error

	// FindConflicts returns active reservations holding any of the resources on a date that
	// overlaps [start, end] inclusively. excludeID skips the reservation being updated.
	FindConflicts(ctx context.Context, resourceIDs []string, start, end time.Time, excludeID string) ([]*Reservation, error)
	HasOverlap(ctx context.Context, resourceID string, start, end time.Time, excludeID string) (bool, error)
	// ListElapsed returns reservations in one of statusNames whose end date is before asOf.
	ListElapsed(ctx context.Context, asOf time.Time, statusNames []string) ([]*Reservation, error)

	Stats(ctx context.Context, f StatsFilter) (*Stats, error)
	CountPerDay(ctx context.Context, f StatsFilter) ([]DayCount, error)
	CountBySource(ctx context.Context, f StatsFilter) ([]SourceCount, error)
	SearchClients(ctx context.Context, name string, limit int) ([]Client, error)
}

type pgxRepository struct {
	conn db.DBTX
	pool db.TxBeginner // nil when bound to a transaction
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{conn: pool, pool: pool}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var reservationColumns = []string{
	"r.id", "r.user_id", "r.organization_id", "r.status_id", "s.name",
	"r.total_amount", "r.code", "r.start_date", "r.end_date", "r.source",
	"r.is_active", "r.is_deleted", "r.created_at", "r.updated_at",
}

func selectReservations(extra ...string) squirrel.SelectBuilder {
	return psql.Select(append(slices.Clone(reservationColumns), extra...)...).
		From("public.reservations r").
		Join("public.statuses s ON s.id = r.status_id")
}

func scanReservation(row pgx.Row, extra ...any) (*Reservation, error) {
	var r Reservation
	dest := append([]any{
		&r.ID, &r.UserID, &r.OrganizationID, &r.StatusID, &r.StatusName,
		&r.TotalAmount, &r.Code, &r.StartDate, &r.EndDate, &r.Source,
		&r.IsActive, &r.IsDeleted, &r.CreatedAt, &r.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *pgxRepository) WithTx(ctx context.Context, fn func(repo Repository) error) error {
	if r.pool == nil {
		return fn(r)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&pgxRepository{conn: tx})
	})
}

func (r *pgxRepository) Savepoint(ctx context.Context, fn func(repo Repository) error) error {
	b, ok := r.conn.(db.TxBeginner)
	if !ok {
		return fn(r)
	}
	// Begin on a pgx.Tx issues SAVEPOINT; on the pool it starts a plain transaction.
	return db.WithTx(ctx, b, func(tx pgx.Tx) error {
		return fn(&pgxRepository{conn: tx})
	})
}

func (r *pgxRepository) LockResources(ctx context.Context, resourceIDs []string) error {
	ids := slices.Clone(resourceIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	for _, id := range ids {
		if _, err := r.conn.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", id); err != nil {
			return fmt.Errorf("lock resource %s failed: %w", id, err)
		}
	}
	return nil
}

func (r *pgxRepository) Create(ctx context.Context, res *Reservation) error {
	query, args, err := psql.Insert("public.reservations").
		Columns("user_id", "organization_id", "status_id", "total_amount", "code", "start_date", "end_date", "source", "is_active").
		Values(res.UserID, res.OrganizationID, res.StatusID, res.TotalAmount, res.Code, res.StartDate, res.EndDate, res.Source, res.IsActive).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create reservation query failed: %w", err)
	}

	if err := r.conn.QueryRow(ctx, query, args...).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrCodeTaken
		}
		return fmt.Errorf("create reservation failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string, includeDeleted bool) (*Reservation, error) {
	q := selectReservations().Where(squirrel.Eq{"r.id": id})
	if !includeDeleted {
		q = q.Where(squirrel.Eq{"r.is_deleted": false})
	}
	return r.getOne(ctx, q, includeDeleted)
}

func (r *pgxRepository) GetForUpdate(ctx context.Context, id string) (*Reservation, error) {
	q := selectReservations().
		Where(squirrel.Eq{"r.id": id, "r.is_deleted": false}).
		Suffix("FOR UPDATE OF r")
	return r.getOne(ctx, q, false)
}

func (r *pgxRepository) GetByCode(ctx context.Context, code string) (*Reservation, error) {
	q := selectReservations().Where(squirrel.Eq{"r.code": code, "r.is_deleted": false})
	return r.getOne(ctx, q, false)
}

func (r *pgxRepository) getOne(ctx context.Context, q squirrel.SelectBuilder, includeDeleted bool) (*Reservation, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get reservation query failed: %w", err)
	}

	res, err := scanReservation(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get reservation failed: %w", err)
	}

	if res.Detail, err = r.getDetail(ctx, res.ID, includeDeleted); err != nil {
		return nil, err
	}
	links, err := r.listLinks(ctx, []string{res.ID}, includeDeleted && res.IsDeleted)
	if err != nil {
		return nil, err
	}
	res.Resources = links[res.ID]
	return res, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Reservation, int, error) {
	query := selectReservations("count(*) OVER() AS total_count").
		Where(squirrel.Eq{"r.is_deleted": false})

	if filter.UserID != "" {
		query = query.Where(squirrel.Eq{"r.user_id": filter.UserID})
	}
	if filter.OrganizationID != "" {
		query = query.Where(squirrel.Eq{"r.organization_id": filter.OrganizationID})
	}
	if filter.StatusName != "" {
		query = query.Where(squirrel.Eq{"s.name": filter.StatusName})
	}
	if filter.Source != "" {
		query = query.Where(squirrel.Eq{"r.source": filter.Source})
	}
	if filter.Code != "" {
		query = query.Where(squirrel.Eq{"r.code": filter.Code})
	}
	if filter.ResourceID != "" {
		query = query.Where(squirrel.Expr(
			"EXISTS (SELECT 1 FROM public.reservation_resources rr WHERE rr.reservation_id = r.id AND rr.is_deleted = false AND rr.resource_id = ?)",
			filter.ResourceID,
		))
	}
	// Date range filtering (intersection logic)
	if filter.From != nil {
		query = query.Where(squirrel.GtOrEq{"r.end_date": *filter.From})
	}
	if filter.To != nil {
		query = query.Where(squirrel.LtOrEq{"r.start_date": *filter.To})
	}

	orderBy := "r.start_date"
	if filter.SortBy != "" {
		orderBy = "r." + filter.SortBy
	}
	orderDir := "DESC"
	if filter.SortOrder == "ASC" {
		orderDir = "ASC"
	}
	query = query.OrderBy(orderBy+" "+orderDir, "r.id")

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	query = query.Limit(uint64(filter.PageSize)).Offset(uint64((filter.Page - 1) * filter.PageSize))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list reservations query failed: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reservations failed: %w", err)
	}
	defer rows.Close()

	var (
		list  []*Reservation
		total int
	)
	for rows.Next() {
		res, err := scanReservation(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan reservation failed: %w", err)
		}
		list = append(list, res)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate reservations failed: %w", err)
	}
	return list, total, nil
}

func (r *pgxRepository) Update(ctx context.Context, res *Reservation) error {
	query, args, err := psql.Update("public.reservations").
		Set("status_id", res.StatusID).
		Set("total_amount", res.TotalAmount).
		Set("start_date", res.StartDate).
		Set("end_date", res.EndDate).
		Set("is_active", res.IsActive).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": res.ID, "is_deleted": false}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update reservation query failed: %w", err)
	}

	if err := r.conn.QueryRow(ctx, query, args...).Scan(&res.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update reservation failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) SoftDelete(ctx context.Context, id string) error {
	return r.softDelete(ctx, "public.reservations", squirrel.Eq{"id": id}, true)
}

func (r *pgxRepository) SoftDeleteDetail(ctx context.Context, reservationID string) error {
	return r.softDelete(ctx, "public.details", squirrel.Eq{"reservation_id": reservationID}, false)
}

func (r *pgxRepository) SoftDeleteLinks(ctx context.Context, reservationID string) error {
	return r.softDelete(ctx, "public.reservation_resources", squirrel.Eq{"reservation_id": reservationID}, false)
}

// softDelete flags matching rows. When mustExist is set a miss is reported as ErrNotFound.
func (r *pgxRepository) softDelete(ctx context.Context, table string, where squirrel.Eq, mustExist bool) error {
	query, args, err := psql.Update(table).
		Set("is_deleted", true).
		Set("is_active", false).
		Set("updated_at", squirrel.Expr("now()")).
		Where(where).
		Where(squirrel.Eq{"is_deleted": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build soft delete query for %s failed: %w", table, err)
	}

	ct, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("soft delete from %s failed: %w", table, err)
	}
	if mustExist && ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgxRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	// Deleted rows count: codes are never reused.
	sql, args, err := psql.Select("1").
		From("public.reservations").
		Where(squirrel.Eq{"code": code}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build code exists query failed: %w", err)
	}

	var exists bool
	if err := r.conn.QueryRow(ctx, "SELECT EXISTS ("+sql+")", args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check code exists failed: %w", err)
	}
	return exists, nil
}

var detailColumns = []string{
	"id", "reservation_id", "name", "email", "phone", "adults", "children", "infants", "pets",
	"note", "original_price", "discount", "currency", "is_active", "is_deleted", "created_at", "updated_at",
}

func (r *pgxRepository) getDetail(ctx context.Context, reservationID string, includeDeleted bool) (*Detail, error) {
	q := psql.Select(detailColumns...).
		From("public.details").
		Where(squirrel.Eq{"reservation_id": reservationID})
	if !includeDeleted {
		q = q.Where(squirrel.Eq{"is_deleted": false})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get detail query failed: %w", err)
	}

	var d Detail
	if err := scanDetail(r.conn.QueryRow(ctx, query, args...), &d); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get detail failed: %w", err)
	}
	return &d, nil
}

func scanDetail(row pgx.Row, d *Detail) error {
	return row.Scan(
		&d.ID, &d.ReservationID, &d.Name, &d.Email, &d.Phone, &d.Adults, &d.Children, &d.Infants, &d.Pets,
		&d.Note, &d.OriginalPrice, &d.Discount, &d.Currency, &d.IsActive, &d.IsDeleted, &d.CreatedAt, &d.UpdatedAt,
	)
}

func (r *pgxRepository) ListDetails(ctx context.Context, reservationIDs []string) (map[string]Detail, error) {
	out := make(map[string]Detail, len(reservationIDs))
	if len(reservationIDs) == 0 {
		return out, nil
	}

	query, args, err := psql.Select(detailColumns...).
		From("public.details").
		Where(squirrel.Eq{"reservation_id": reservationIDs, "is_deleted": false}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list details query failed: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list details failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d Detail
		if err := scanDetail(rows, &d); err != nil {
			return nil, fmt.Errorf("scan detail failed: %w", err)
		}
		out[d.ReservationID] = d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate details failed: %w", err)
	}
	return out, nil
}

func (r *pgxRepository) CreateDetail(ctx context.Context, d *Detail) error {
	query, args, err := psql.Insert("public.details").
		Columns("reservation_id", "name", "email", "phone", "adults", "children", "infants", "pets",
			"note", "original_price", "discount", "currency").
		Values(d.ReservationID, d.Name, d.Email, d.Phone, d.Adults, d.Children, d.Infants, d.Pets,
			d.Note, d.OriginalPrice, d.Discount, d.Currency).
		Suffix("RETURNING id, is_active, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create detail query failed: %w", err)
	}

	if err := r.conn.QueryRow(ctx, query, args...).Scan(&d.ID, &d.IsActive, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return fmt.Errorf("create detail failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) UpdateDetail(ctx context.Context, d *Detail) error {
	query, args, err := psql.Update("public.details").
		Set("name", d.Name).
		Set("email", d.Email).
		Set("phone", d.Phone).
		Set("adults", d.Adults).
		Set("children", d.Children).
		Set("infants", d.Infants).
		Set("pets", d.Pets).
		Set("note", d.Note).
		Set("original_price", d.OriginalPrice).
		Set("discount", d.Discount).
		Set("currency", d.Currency).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"reservation_id": d.ReservationID, "is_deleted": false}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update detail query failed: %w", err)
	}

	if err := r.conn.QueryRow(ctx, query, args...).Scan(&d.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update detail failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) CreateLink(ctx context.Context, l *ResourceLink) error {
	query, args, err := psql.Insert("public.reservation_resources").
		Columns("reservation_id", "resource_id", "price", "quantity").
		Values(l.ReservationID, l.ResourceID, l.Price, l.Quantity).
		Suffix("RETURNING id, is_active, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create resource link query failed: %w", err)
	}

	if err := r.conn.QueryRow(ctx, query, args...).Scan(&l.ID, &l.IsActive, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return fmt.Errorf("create resource link failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) ListLinks(ctx context.Context, reservationIDs []string) (map[string][]ResourceLink, error) {
	return r.listLinks(ctx, reservationIDs, false)
}

func (r *pgxRepository) listLinks(ctx context.Context, reservationIDs []string, includeDeleted bool) (map[string][]ResourceLink, error) {
	out := make(map[string][]ResourceLink, len(reservationIDs))
	if len(reservationIDs) == 0 {
		return out, nil
	}

	q := psql.Select("id", "reservation_id", "resource_id", "price", "quantity", "is_active", "is_deleted", "created_at", "updated_at").
		From("public.reservation_resources").
		Where(squirrel.Eq{"reservation_id": reservationIDs}).
		OrderBy("created_at", "id")
	if !includeDeleted {
		q = q.Where(squirrel.Eq{"is_deleted": false})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list resource links query failed: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list resource links failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l ResourceLink
		if err := rows.Scan(&l.ID, &l.ReservationID, &l.ResourceID, &l.Price, &l.Quantity,
			&l.IsActive, &l.IsDeleted, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan resource link failed: %w", err)
		}
		out[l.ReservationID] = append(out[l.ReservationID], l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resource links failed: %w", err)
	}
	return out, nil
}

// conflictQuery selects active reservations holding resourceIDs on dates overlapping [start, end].
func conflictQuery(base squirrel.SelectBuilder, resourceIDs []string, start, end time.Time, excludeID string) squirrel.SelectBuilder {
	q := base.
		Join("public.reservation_resources rr ON rr.reservation_id = r.id").
		Where(squirrel.Eq{"rr.resource_id": resourceIDs}).
		Where(squirrel.Eq{"rr.is_deleted": false, "r.is_deleted": false, "r.is_active": true}).
		Where(squirrel.LtOrEq{"r.start_date": end}).
		Where(squirrel.GtOrEq{"r.end_date": start})
	if excludeID != "" {
		q = q.Where(squirrel.NotEq{"r.id": excludeID})
	}
	return q
}

func (r *pgxRepository) FindConflicts(ctx context.Context, resourceIDs []string, start, end time.Time, excludeID string) ([]*Reservation, error) {
	if len(resourceIDs) == 0 {
		return nil, nil
	}

	q := conflictQuery(selectReservations().Distinct(), resourceIDs, start, end, excludeID).
		OrderBy("r.start_date")
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find conflicts query failed: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("find conflicts failed: %w", err)
	}
	defer rows.Close()

	var list []*Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conflicting reservation failed: %w", err)
		}
		list = append(list, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conflicts failed: %w", err)
	}
	return list, nil
}

func (r *pgxRepository) HasOverlap(ctx context.Context, resourceID string, start, end time.Time, excludeID string) (bool, error) {
	sub := conflictQuery(psql.Select("1").From("public.reservations r"), []string{resourceID}, start, end, excludeID)
	sql, args, err := sub.ToSql()
	if err != nil {
		return false, fmt.Errorf("build check overlap query failed: %w", err)
	}

	var exists bool
	if err := r.conn.QueryRow(ctx, "SELECT EXISTS ("+sql+")", args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check overlap failed: %w", err)
	}
	return exists, nil
}

func (r *pgxRepository) ListElapsed(ctx context.Context, asOf time.Time, statusNames []string) ([]*Reservation, error) {
	sql, args, err := selectReservations().
		Where(squirrel.Eq{"r.is_deleted": false, "s.name": statusNames}).
		Where(squirrel.Lt{"r.end_date": asOf}).
		OrderBy("r.end_date").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list elapsed query failed: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list elapsed reservations failed: %w", err)
	}
	defer rows.Close()

	var list []*Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan elapsed reservation failed: %w", err)
		}
		list = append(list, res)
	}
	return list, rows.Err()
}

func statsWhere(q squirrel.SelectBuilder, f StatsFilter) squirrel.SelectBuilder {
	q = q.Where(squirrel.Eq{"r.is_deleted": false})
	if f.OrganizationID != "" {
		q = q.Where(squirrel.Eq{"r.organization_id": f.OrganizationID})
	}
	if f.From != nil {
		q = q.Where(squirrel.GtOrEq{"r.start_date": *f.From})
	}
	if f.To != nil {
		q = q.Where(squirrel.LtOrEq{"r.start_date": *f.To})
	}
	return q
}

func (r *pgxRepository) Stats(ctx context.Context, f StatsFilter) (*Stats, error) {
	q := psql.Select("s.name", "count(*)", "COALESCE(sum(r.total_amount), 0)").
		From("public.reservations r").
		Join("public.statuses s ON s.id = r.status_id").
		GroupBy("s.name")
	sql, args, err := statsWhere(q, f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build stats query failed: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("stats query failed: %w", err)
	}
	defer rows.Close()

	stats := &Stats{ByStatus: map[string]int{}, Revenue: decimal.Zero}
	for rows.Next() {
		var (
			name   string
			count  int
			amount decimal.Decimal
		)
		if err := rows.Scan(&name, &count, &amount); err != nil {
			return nil, fmt.Errorf("scan stats failed: %w", err)
		}
		stats.add(name, count, amount)
	}
	return stats, rows.Err()
}

func (r *pgxRepository) CountPerDay(ctx context.Context, f StatsFilter) ([]DayCount, error) {
	q := psql.Select("r.start_date AS day", "count(*)").
		From("public.reservations r").
		GroupBy("day").
		OrderBy("day")
	sql, args, err := statsWhere(q, f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count per day query failed: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("count per day failed: %w", err)
	}
	defer rows.Close()

	var out []DayCount
	for rows.Next() {
		var dc DayCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, fmt.Errorf("scan day count failed: %w", err)
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

func (r *pgxRepository) CountBySource(ctx context.Context, f StatsFilter) ([]SourceCount, error) {
	q := psql.Select("r.source", "count(*) AS n").
		From("public.reservations r").
		GroupBy("r.source").
		OrderBy("n DESC", "r.source")
	sql, args, err := statsWhere(q, f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count by source query failed: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("count by source failed: %w", err)
	}
	defer rows.Close()

	var out []SourceCount
	for rows.Next() {
		var sc SourceCount
		if err := rows.Scan(&sc.Source, &sc.Count); err != nil {
			return nil, fmt.Errorf("scan source count failed: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (r *pgxRepository) SearchClients(ctx context.Context, name string, limit int) ([]Client, error) {
	sql, args, err := psql.Select("d.name", "d.email", "max(d.phone)", "count(*)", "max(r.start_date)").
		From("public.details d").
		Join("public.reservations r ON r.id = d.reservation_id").
		Where(squirrel.Eq{"d.is_deleted": false, "r.is_deleted": false}).
		Where(squirrel.ILike{"d.name": "%" + name + "%"}).
		GroupBy("d.name", "d.email").
		OrderBy("max(r.start_date) DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search clients query failed: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("search clients failed: %w", err)
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.Name, &c.Email, &c.Phone, &c.Reservations, &c.LastStay); err != nil {
			return nil, fmt.Errorf("scan client failed: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
