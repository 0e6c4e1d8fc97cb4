package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/frahmantamala/ward-census/internal/auditlog"
	"github.com/jmoiron/sqlx"
)

type LogRepository struct {
	db *sqlx.DB
}

func NewLogRepository(db *sqlx.DB) *LogRepository {
	return &LogRepository{db: db}
}

func (r *LogRepository) Insert(ctx context.Context, e *auditlog.Entry) error {
	details := e.Details
	if len(details) == 0 {
		details = []byte("{}")
	}
	query := `INSERT INTO system_logs (level, type, user_id, username, message, details, ip_address, user_agent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`
	row := r.db.QueryRowxContext(ctx, query,
		e.Level, e.Type, e.UserID, e.Username, e.Message, details, e.IPAddress, e.UserAgent, e.CreatedAt)
	if err := row.Scan(&e.ID); err != nil {
		return fmt.Errorf("insert system log: %w", err)
	}
	return nil
}

func (r *LogRepository) List(ctx context.Context, f auditlog.Filter) ([]auditlog.Entry, error) {
	where, args := buildWhere(f)
	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`SELECT id, level, type, user_id, username, message, details, ip_address, user_agent, created_at
FROM system_logs%s
ORDER BY created_at DESC
LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	var entries []auditlog.Entry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list system logs: %w", err)
	}
	return entries, nil
}

func (r *LogRepository) Count(ctx context.Context, f auditlog.Filter) (int64, error) {
	where, args := buildWhere(f)
	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM system_logs"+where, args...); err != nil {
		return 0, fmt.Errorf("count system logs: %w", err)
	}
	return total, nil
}

func (r *LogRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM system_logs WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete system logs: %w", err)
	}
	return res.RowsAffected()
}

func buildWhere(f auditlog.Filter) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(cond, len(args)))
	}

	if f.Level != "" {
		add("level = $%d", f.Level)
	}
	if f.Type != "" {
		add("type = $%d", f.Type)
	}
	if f.UserID != nil {
		add("user_id = $%d", *f.UserID)
	}
	if f.Since != nil {
		add("created_at >= $%d", *f.Since)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
