package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/cmsadmin/internal/model"
)

// PostgresRoleRepo はPostgreSQLを使用したロールリポジトリ。
type PostgresRoleRepo struct {
	db *sql.DB
}

// NewPostgresRoleRepo はPostgresRoleRepoを生成する。
func NewPostgresRoleRepo(db *sql.DB) *PostgresRoleRepo {
	return &PostgresRoleRepo{db: db}
}

// List は全ロールを名前順で返す。
func (r *PostgresRoleRepo) List(ctx context.Context) ([]model.Role, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, role, version, created_at, updated_at FROM roles ORDER BY role`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []model.Role
	for rows.Next() {
		var role model.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Version, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}
	return roles, nil
}

// FindByID は指定IDのロールを取得する。見つからない場合はnilを返す。
func (r *PostgresRoleRepo) FindByID(ctx context.Context, id int64) (*model.Role, error) {
	role := &model.Role{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, role, version, created_at, updated_at FROM roles WHERE id = $1`,
		id,
	).Scan(&role.ID, &role.Name, &role.Version, &role.CreatedAt, &role.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find role: %w", err)
	}
	return role, nil
}

// Create はロールを作成する。名前が重複する場合はErrDuplicateを返す。
func (r *PostgresRoleRepo) Create(ctx context.Context, role *model.Role) error {
	now := time.Now()
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO roles (role, version, created_at, updated_at)
		 VALUES ($1, 1, $2, $2)
		 RETURNING id, version`,
		role.Name, now,
	).Scan(&role.ID, &role.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create role: %w", err)
	}
	role.CreatedAt = now
	role.UpdatedAt = now
	return nil
}

// Update はrole.Versionが一致する場合のみ更新し、Versionを進める。
func (r *PostgresRoleRepo) Update(ctx context.Context, role *model.Role) error {
	now := time.Now()
	err := r.db.QueryRowContext(ctx,
		`UPDATE roles SET role = $2, version = version + 1, updated_at = $4
		 WHERE id = $1 AND version = $3
		 RETURNING version`,
		role.ID, role.Name, role.Version, now,
	).Scan(&role.Version)
	if err == sql.ErrNoRows {
		return ErrVersionConflict
	}
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update role: %w", err)
	}
	role.UpdatedAt = now
	return nil
}

// Delete は指定IDのロールを削除する。存在しない場合もエラーにしない。
// group_rolesの関連はCASCADE削除される。
func (r *PostgresRoleRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	return nil
}

// compile-time interface check
var _ RoleRepository = (*PostgresRoleRepo)(nil)
