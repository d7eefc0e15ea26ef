package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/cmsadmin/internal/model"
)

const userColumns = `id, username, email, password_hash, enabled, password_changed, admin_locale, google_id, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByGoogleID はGoogleアカウントのsubでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE google_id = $1`, googleID)
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (r *PostgresUserRepo) findOne(ctx context.Context, query string, arg string) (*model.User, error) {
	user := &model.User{}
	var googleID sql.NullString
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.Enabled, &user.PasswordChanged, &user.AdminLocale, &googleID,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	user.GoogleID = googleID.String

	groups, err := r.loadGroups(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Groups = groups

	return user, nil
}

// loadGroups はユーザーの所属グループをロール付きで読み込む。
func (r *PostgresUserRepo) loadGroups(ctx context.Context, userID string) ([]model.Group, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT g.id, g.name, r.id, r.role
		 FROM user_groups ug
		 JOIN groups g ON g.id = ug.group_id
		 LEFT JOIN group_roles gr ON gr.group_id = g.id
		 LEFT JOIN roles r ON r.id = gr.role_id
		 WHERE ug.user_id = $1
		 ORDER BY g.id, r.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load user groups: %w", err)
	}
	defer rows.Close()

	return scanGroupRoleRows(rows)
}

// scanGroupRoleRows は (group_id, group_name, role_id, role) の行をグループ単位にまとめる。
// 行はgroup_id順に並んでいることを前提とする。
func scanGroupRoleRows(rows *sql.Rows) ([]model.Group, error) {
	var groups []model.Group
	for rows.Next() {
		var (
			groupID   int64
			groupName string
			roleID    sql.NullInt64
			roleName  sql.NullString
		)
		if err := rows.Scan(&groupID, &groupName, &roleID, &roleName); err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		if len(groups) == 0 || groups[len(groups)-1].ID != groupID {
			groups = append(groups, model.Group{ID: groupID, Name: groupName})
		}
		if roleID.Valid {
			last := &groups[len(groups)-1]
			last.Roles = append(last.Roles, model.Role{ID: roleID.Int64, Name: roleName.String})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate group rows: %w", err)
	}
	return groups, nil
}

// Save はユーザーを作成または更新し、グループ所属を同一トランザクションで置き換える。
func (r *PostgresUserRepo) Save(ctx context.Context, user *model.User) error {
	now := time.Now()
	if user.ID == "" {
		user.ID = uuid.New().String()
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	googleID := sql.NullString{String: user.GoogleID, Valid: user.GoogleID != ""}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			enabled = EXCLUDED.enabled,
			password_changed = EXCLUDED.password_changed,
			admin_locale = EXCLUDED.admin_locale,
			google_id = EXCLUDED.google_id,
			updated_at = EXCLUDED.updated_at`,
		user.ID, user.Username, user.Email, user.PasswordHash,
		user.Enabled, user.PasswordChanged, user.AdminLocale, googleID,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to save user %s: %w", user.Email, ErrDuplicate)
		}
		return fmt.Errorf("failed to save user: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_groups WHERE user_id = $1`, user.ID); err != nil {
		return fmt.Errorf("failed to clear user groups: %w", err)
	}
	for _, g := range user.Groups {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_groups (user_id, group_id) VALUES ($1, $2)`,
			user.ID, g.ID,
		); err != nil {
			return fmt.Errorf("failed to insert user group: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdatePassword はパスワードハッシュを更新し、password_changedをtrueにする。
func (r *PostgresUserRepo) UpdatePassword(ctx context.Context, id string, hash []byte) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, password_changed = TRUE, updated_at = now() WHERE id = $1`,
		id, hash,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
