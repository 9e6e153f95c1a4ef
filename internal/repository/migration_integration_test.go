//go:build integration

package repository

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recipebook/recipebook/internal/testutil"
	"github.com/recipebook/recipebook/migrations"
)

func TestIntegrationMigration_Schema(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	want := map[string][]string{
		"users":              {"id", "email", "name", "password_hash", "is_active", "is_staff", "is_superuser"},
		"tags":               {"id", "name", "user_id"},
		"ingredients":        {"id", "name", "user_id"},
		"recipes":            {"id", "user_id", "title", "time_minutes", "price", "link", "image", "created_at", "updated_at"},
		"recipe_tags":        {"recipe_id", "tag_id"},
		"recipe_ingredients": {"recipe_id", "ingredient_id"},
		"auth_tokens":        {"id", "user_id", "token_hash"},
		"schema_migrations":  {"filename", "applied_at"},
	}

	for table, cols := range want {
		t.Run(table, func(t *testing.T) {
			have, err := columnsOf(ctx, pool, table)
			if err != nil {
				t.Fatalf("columnsOf: %v", err)
			}
			if len(have) == 0 {
				t.Fatalf("table %q missing after migrations", table)
			}
			for _, c := range cols {
				if !have[c] {
					t.Errorf("%s.%s missing", table, c)
				}
			}
		})
	}
}

func TestIntegrationMigration_RecipeConstraints(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	var userID int64
	if err := pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash) VALUES ($1, '!') RETURNING id`,
		testutil.UniqueEmail("constraints"),
	).Scan(&userID); err != nil {
		t.Fatalf("insert user: %v", err)
	}

	_, err := pool.Exec(ctx, `
		INSERT INTO recipes (user_id, title, time_minutes, price)
		VALUES ($1, 'Negative', -1, 1.00)
	`, userID)
	if err == nil {
		t.Error("expected check violation for negative time_minutes")
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO recipes (user_id, title, time_minutes, price)
		VALUES ($1, 'Too expensive', 1, 1000.00)
	`, userID)
	if err == nil {
		t.Error("expected overflow for price outside NUMERIC(5, 2)")
	}

	var recipeID, tagID int64
	if err := pool.QueryRow(ctx, `
		INSERT INTO recipes (user_id, title, time_minutes, price)
		VALUES ($1, 'Ok', 1, 1.00) RETURNING id
	`, userID).Scan(&recipeID); err != nil {
		t.Fatalf("insert recipe: %v", err)
	}
	if err := pool.QueryRow(ctx,
		`INSERT INTO tags (name, user_id) VALUES ('t', $1) RETURNING id`, userID,
	).Scan(&tagID); err != nil {
		t.Fatalf("insert tag: %v", err)
	}

	if _, err := pool.Exec(ctx, `INSERT INTO recipe_tags (recipe_id, tag_id) VALUES ($1, $2)`, recipeID, tagID); err != nil {
		t.Fatalf("insert join row: %v", err)
	}
	if _, err := pool.Exec(ctx, `INSERT INTO recipe_tags (recipe_id, tag_id) VALUES ($1, $2)`, recipeID, tagID); err == nil {
		t.Error("expected primary key violation for duplicate join row")
	}

	if _, err := pool.Exec(ctx, `DELETE FROM tags WHERE id = $1`, tagID); err != nil {
		t.Fatalf("delete tag: %v", err)
	}
	var joinRows int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM recipe_tags WHERE recipe_id = $1`, recipeID).Scan(&joinRows); err != nil {
		t.Fatal(err)
	}
	if joinRows != 0 {
		t.Errorf("join rows after tag delete = %d, want 0", joinRows)
	}
}

func TestIntegrationMigration_RollbackAll(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	files, err := migrations.UpFiles()
	if err != nil {
		t.Fatal(err)
	}

	for i := len(files) - 1; i >= 0; i-- {
		sql, err := migrations.FS.ReadFile(migrations.DownFile(files[i]))
		if err != nil {
			t.Fatalf("read down migration: %v", err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			t.Fatalf("apply %s: %v", migrations.DownFile(files[i]), err)
		}
	}

	for _, table := range []string{"users", "recipes", "recipe_tags", "auth_tokens"} {
		exists, err := tableExists(ctx, pool, table)
		if err != nil {
			t.Fatal(err)
		}
		if exists {
			t.Errorf("Table %q should not exist after rollback", table)
		}
	}

	if err := testutil.ResetSchema(ctx, pool); err != nil {
		t.Fatalf("re-apply migrations: %v", err)
	}
}

func TestIntegrationMigration_Idempotency(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := migrations.Run(ctx, pool, logger); err != nil {
		t.Fatalf("second run: %v", err)
	}

	files, _ := migrations.UpFiles()
	var recorded int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&recorded); err != nil {
		t.Fatal(err)
	}
	if recorded != len(files) {
		t.Errorf("schema_migrations rows = %d, want %d", recorded, len(files))
	}
}

func tableExists(ctx context.Context, pool *pgxpool.Pool, table string) (bool, error) {
	cols, err := columnsOf(ctx, pool, table)
	return len(cols) > 0, err
}

// columnsOf returns the column set of a public table, empty if it does not exist.
func columnsOf(ctx context.Context, pool *pgxpool.Pool, table string) (map[string]bool, error) {
	rows, err := pool.Query(ctx,
		`SELECT column_name FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1`,
		table)
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}

	cols := make(map[string]bool, len(names))
	for _, n := range names {
		cols[n] = true
	}
	return cols, nil
}

func newMigrationTestEnv(t *testing.T) (context.Context, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	unlock, err := testutil.AcquireDBLock(ctx, pool)
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetSchema(ctx, pool); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return ctx, pool
}
