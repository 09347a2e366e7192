package audit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// Repository menyediakan akses baca ke tabel audit_logs.
type Repository interface {
	TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository membuat repository audit berbasis PostgreSQL.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	query := `SELECT occurred_at, actor_id, action, entity, entity_id, COALESCE(meta::text, '')
FROM audit_logs
WHERE 1=1`
	args := []any{}

	if !filters.From.IsZero() {
		args = append(args, filters.From)
		query += ` AND occurred_at >= $` + strconv.Itoa(len(args))
	}
	if !filters.To.IsZero() {
		args = append(args, filters.To)
		query += ` AND occurred_at <= $` + strconv.Itoa(len(args))
	}
	if filters.ActorID != 0 {
		args = append(args, filters.ActorID)
		query += ` AND actor_id = $` + strconv.Itoa(len(args))
	}
	if filters.Entity != "" {
		args = append(args, filters.Entity)
		query += ` AND entity = $` + strconv.Itoa(len(args))
	}
	if filters.Action != "" {
		args = append(args, filters.Action)
		query += ` AND action = $` + strconv.Itoa(len(args))
	}

	args = append(args, limit)
	query += ` ORDER BY occurred_at DESC LIMIT $` + strconv.Itoa(len(args))
	args = append(args, offset)
	query += ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []TimelineRow{}
	for rows.Next() {
		var row TimelineRow
		if err := rows.Scan(&row.At, &row.ActorID, &row.Action, &row.Entity, &row.EntityID, &row.Meta); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// Service mengoordinasikan pengambilan data audit.
type Service struct {
	repo Repository
}

// NewService membuat service audit timeline baru.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline mengambil data audit dengan paging.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	// Ambil satu baris lebih untuk mendeteksi halaman berikutnya.
	rows, err := s.repo.TimelineWindow(ctx, filters, offset, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}

	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export mengambil seluruh baris pada rentang filter tanpa paging.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	if filters.From.IsZero() {
		filters.From = time.Now().UTC().Add(-7 * 24 * time.Hour)
	}
	return s.repo.TimelineWindow(ctx, filters, 0, 10000)
}
