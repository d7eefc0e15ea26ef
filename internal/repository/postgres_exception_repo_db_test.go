package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/cmsadmin/internal/database"
)

// setupLiveDB はTEST_DATABASE_URLのPostgreSQLをマイグレーション済みのクリーンな状態にする。
// 未設定または接続できない場合はスキップする。
func setupLiveDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	if err := db.Ping(); err != nil {
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}

	_, err = db.Exec(`
		DROP TABLE IF EXISTS sessions CASCADE;
		DROP TABLE IF EXISTS exceptions CASCADE;
		DROP TABLE IF EXISTS user_groups CASCADE;
		DROP TABLE IF EXISTS group_roles CASCADE;
		DROP TABLE IF EXISTS roles CASCADE;
		DROP TABLE IF EXISTS groups CASCADE;
		DROP TABLE IF EXISTS users CASCADE;
		DROP TABLE IF EXISTS schema_migrations CASCADE;
	`)
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(dbURL))

	return db
}

func recordedID(t *testing.T, repo *PostgresExceptionRepo, code int, url string) int64 {
	t.Helper()
	records, err := repo.List(context.Background(), 0, 100)
	require.NoError(t, err)
	for _, rec := range records {
		if rec.Code == code && rec.URL == url {
			return rec.ID
		}
	}
	t.Fatalf("record %d %s not found", code, url)
	return 0
}

func TestPostgresExceptionRepo_Live_ToggleTwiceRestoresState(t *testing.T) {
	db := setupLiveDB(t)
	repo := NewPostgresExceptionRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Record(ctx, 404, "/admin/missing", ""))
	id := recordedID(t, repo, 404, "/admin/missing")

	before, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, before)
	require.False(t, before.Resolved)

	toggled, err := repo.ToggleResolved(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, toggled)
	assert.True(t, toggled.Resolved)

	restored, err := repo.ToggleResolved(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, before.Resolved, restored.Resolved)

	stored, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before.Resolved, stored.Resolved)
	assert.Equal(t, before.Events, stored.Events)
}

func TestPostgresExceptionRepo_Live_ResolveAllLeavesNoUnresolved(t *testing.T) {
	db := setupLiveDB(t)
	repo := NewPostgresExceptionRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Record(ctx, 404, "/admin/a", ""))
	require.NoError(t, repo.Record(ctx, 404, "/admin/b", "/admin/"))
	require.NoError(t, repo.Record(ctx, 500, "/admin/c", ""))
	_, err := repo.ToggleResolved(ctx, recordedID(t, repo, 500, "/admin/c"))
	require.NoError(t, err)

	total, unresolved, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Equal(t, 2, unresolved)

	_, err = repo.MarkAllAsResolved(ctx)
	require.NoError(t, err)

	total, unresolved, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 0, unresolved)

	records, err := repo.List(ctx, 0, 100)
	require.NoError(t, err)
	for _, rec := range records {
		assert.True(t, rec.Resolved, "record %d should be resolved", rec.ID)
	}
}
