package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/cmsadmin/internal/model"
)

const exceptionColumns = `id, code, url, url_referer, events, resolved, created_at, updated_at`

// PostgresExceptionRepo はPostgreSQLを使用した例外レコードリポジトリ。
type PostgresExceptionRepo struct {
	db *sql.DB
}

// NewPostgresExceptionRepo はPostgresExceptionRepoを生成する。
func NewPostgresExceptionRepo(db *sql.DB) *PostgresExceptionRepo {
	return &PostgresExceptionRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanException(s rowScanner, rec *model.ExceptionRecord) error {
	return s.Scan(&rec.ID, &rec.Code, &rec.URL, &rec.URLReferer, &rec.Events, &rec.Resolved, &rec.CreatedAt, &rec.UpdatedAt)
}

// List は更新日時の降順で例外レコードを返す。limitが0以下の場合は全件を返す。
func (r *PostgresExceptionRepo) List(ctx context.Context, offset, limit int) ([]model.ExceptionRecord, error) {
	query := `SELECT ` + exceptionColumns + ` FROM exceptions ORDER BY updated_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list exceptions: %w", err)
	}
	defer rows.Close()

	var records []model.ExceptionRecord
	for rows.Next() {
		var rec model.ExceptionRecord
		if err := scanException(rows, &rec); err != nil {
			return nil, fmt.Errorf("failed to scan exception: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate exceptions: %w", err)
	}
	return records, nil
}

// Count は総件数と未解決件数を返す。
func (r *PostgresExceptionRepo) Count(ctx context.Context) (int, int, error) {
	var total, unresolved int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*), count(*) FILTER (WHERE NOT resolved) FROM exceptions`,
	).Scan(&total, &unresolved)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count exceptions: %w", err)
	}
	return total, unresolved, nil
}

// FindByID は指定IDのレコードを取得する。見つからない場合はnilを返す。
func (r *PostgresExceptionRepo) FindByID(ctx context.Context, id int64) (*model.ExceptionRecord, error) {
	rec := &model.ExceptionRecord{}
	err := scanException(r.db.QueryRowContext(ctx,
		`SELECT `+exceptionColumns+` FROM exceptions WHERE id = $1`, id,
	), rec)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find exception: %w", err)
	}
	return rec, nil
}

// MarkAllAsResolved は未解決のレコードを全て解決済みにし、更新件数を返す。
func (r *PostgresExceptionRepo) MarkAllAsResolved(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE exceptions SET resolved = TRUE, updated_at = now() WHERE resolved = FALSE`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve exceptions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// ToggleResolved は解決状態を単一のUPDATEで反転し、更新後のレコードを返す。
func (r *PostgresExceptionRepo) ToggleResolved(ctx context.Context, id int64) (*model.ExceptionRecord, error) {
	rec := &model.ExceptionRecord{}
	err := scanException(r.db.QueryRowContext(ctx,
		`UPDATE exceptions SET resolved = NOT resolved, updated_at = now()
		 WHERE id = $1
		 RETURNING `+exceptionColumns,
		id,
	), rec)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to toggle exception: %w", err)
	}
	return rec, nil
}

// Record は(code, url)単位でレコードをUPSERTする。
func (r *PostgresExceptionRepo) Record(ctx context.Context, code int, url, referer string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO exceptions (code, url, url_referer, events, resolved, created_at, updated_at)
		 VALUES ($1, $2, $3, 1, FALSE, now(), now())
		 ON CONFLICT (code, url) DO UPDATE SET
			events = exceptions.events + 1,
			url_referer = EXCLUDED.url_referer,
			resolved = FALSE,
			updated_at = now()`,
		code, url, referer,
	)
	if err != nil {
		return fmt.Errorf("failed to record exception: %w", err)
	}
	return nil
}

// DeleteResolvedBefore は指定日時より前に更新された解決済みレコードを削除する。
func (r *PostgresExceptionRepo) DeleteResolvedBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM exceptions WHERE resolved = TRUE AND updated_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete resolved exceptions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ ExceptionRepository = (*PostgresExceptionRepo)(nil)
