package store

import (
	"context"
	"errors"
	"io/fs"
	"path"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)

	names := map[string]bool{}
	for _, entry := range entries {
		names[entry.Name()] = true
	}
	require.NotEmpty(t, names)

	for name := range names {
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			assert.True(t, names[strings.TrimSuffix(name, ".up.sql")+".down.sql"], "missing down for %s", name)
		case strings.HasSuffix(name, ".down.sql"):
			assert.True(t, names[strings.TrimSuffix(name, ".down.sql")+".up.sql"], "missing up for %s", name)
		default:
			t.Errorf("unexpected file in migrations: %s", name)
		}
	}
}

func TestUpMigrationsSorted(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_tasks.up.sql":   {Data: []byte("SELECT 2")},
		"m/0001_init.up.sql":    {Data: []byte("SELECT 1")},
		"m/0001_init.down.sql":  {Data: []byte("SELECT 0")},
		"m/0002_tasks.down.sql": {Data: []byte("SELECT 0")},
	}
	files, err := upMigrations(fsys, "m")
	require.NoError(t, err)
	assert.Equal(t, []string{"m/0001_init.up.sql", "m/0002_tasks.up.sql"}, files)
}

func TestApplyMigrationsSkipsRecordedVersions(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	fsys := fstest.MapFS{
		"m/0001_init.up.sql":   {Data: []byte("CREATE TABLE a (id INT)")},
		"m/0002_more.up.sql":   {Data: []byte("CREATE TABLE b (id INT)")},
		"m/0002_more.down.sql": {Data: []byte("DROP TABLE b")},
	}

	mockPool.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mockPool.ExpectQuery("SELECT EXISTS").
		WithArgs("0001_init.up.sql").
		WillReturnRows(mockPool.NewRows([]string{"exists"}).AddRow(true))
	mockPool.ExpectQuery("SELECT EXISTS").
		WithArgs("0002_more.up.sql").
		WillReturnRows(mockPool.NewRows([]string{"exists"}).AddRow(false))
	mockPool.ExpectBegin()
	mockPool.ExpectExec(`CREATE TABLE b \(id INT\)`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mockPool.ExpectExec("INSERT INTO schema_migrations").
		WithArgs(path.Base("m/0002_more.up.sql")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectCommit()

	require.NoError(t, applyMigrations(context.Background(), mockPool, fsys, "m"))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestApplyMigrationsRollsBackOnFailure(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	fsys := fstest.MapFS{
		"m/0001_init.up.sql": {Data: []byte("CREATE TABLE a (id INT)")},
	}

	mockPool.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mockPool.ExpectQuery("SELECT EXISTS").
		WithArgs("0001_init.up.sql").
		WillReturnRows(mockPool.NewRows([]string{"exists"}).AddRow(false))
	mockPool.ExpectBegin()
	mockPool.ExpectExec(`CREATE TABLE a`).
		WillReturnError(errors.New("syntax error"))
	mockPool.ExpectRollback()

	err = applyMigrations(context.Background(), mockPool, fsys, "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0001_init.up.sql")
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
