package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/cmsadmin/internal/model"
)

// PostgresGroupRepo はPostgreSQLを使用したグループリポジトリ。
type PostgresGroupRepo struct {
	db *sql.DB
}

// NewPostgresGroupRepo はPostgresGroupRepoを生成する。
func NewPostgresGroupRepo(db *sql.DB) *PostgresGroupRepo {
	return &PostgresGroupRepo{db: db}
}

// FindByName は名前でグループをロール付きで取得する。見つからない場合はnilを返す。
func (r *PostgresGroupRepo) FindByName(ctx context.Context, name string) (*model.Group, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT g.id, g.name, r.id, r.role
		 FROM groups g
		 LEFT JOIN group_roles gr ON gr.group_id = g.id
		 LEFT JOIN roles r ON r.id = gr.role_id
		 WHERE g.name = $1
		 ORDER BY g.id, r.id`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find group: %w", err)
	}
	defer rows.Close()

	groups, err := scanGroupRoleRows(rows)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, nil
	}
	return &groups[0], nil
}

// compile-time interface check
var _ GroupRepository = (*PostgresGroupRepo)(nil)
