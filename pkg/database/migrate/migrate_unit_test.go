package migrate

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	migrateTestFileCount    = 4
	migrateTestSuccess      = "success"
	migrateTestFactoryError = "factory error"
)

// mockMigrator implements the migrator interface for testing.
type mockMigrator struct {
	upErr      error
	downErr    error
	stepsErr   error
	versionVal uint
	dirty      bool
	versionErr error
}

func (m *mockMigrator) Up() error         { return m.upErr }
func (m *mockMigrator) Down() error       { return m.downErr }
func (m *mockMigrator) Steps(_ int) error { return m.stepsErr }
func (m *mockMigrator) Version() (version uint, dirty bool, err error) {
	return m.versionVal, m.dirty, m.versionErr
}

func withMigrator(t *testing.T, m migrator, err error) {
	t.Helper()
	orig := migratorFactory
	t.Cleanup(func() { migratorFactory = orig })
	migratorFactory = func(_ *sql.DB) (migrator, error) {
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	assert.Len(t, entries, migrateTestFileCount)

	expected := []string{
		"000001_sessions.up.sql",
		"000001_sessions.down.sql",
		"000002_track_events.up.sql",
		"000002_track_events.down.sql",
	}
	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name()] = true
	}
	for _, name := range expected {
		assert.True(t, names[name], "expected migration file %s to exist", name)
	}
}

func TestMigration001_Sessions(t *testing.T) {
	up, err := migrations.ReadFile("migrations/000001_sessions.up.sql")
	require.NoError(t, err)
	for _, col := range []string{"id", "created_at", "last_active_at", "expires_at", "state"} {
		assert.Contains(t, string(up), col)
	}
	assert.Contains(t, string(up), "JSONB")
	assert.Contains(t, string(up), "idx_sessions_expires_at")

	down, err := migrations.ReadFile("migrations/000001_sessions.down.sql")
	require.NoError(t, err)
	assert.Contains(t, string(down), "DROP TABLE IF EXISTS sessions")
}

func TestMigration002_TrackEvents(t *testing.T) {
	up, err := migrations.ReadFile("migrations/000002_track_events.up.sql")
	require.NoError(t, err)
	sqlText := string(up)
	for _, col := range []string{"resource", "behavior", "recorded_at"} {
		assert.Contains(t, sqlText, col)
	}
	assert.NotContains(t, sqlText, "UNIQUE", "repeated (resource, behavior) pairs must be legal")
	assert.Contains(t, sqlText, "idx_track_events_resource_behavior")

	down, err := migrations.ReadFile("migrations/000002_track_events.down.sql")
	require.NoError(t, err)
	assert.Contains(t, string(down), "DROP TABLE IF EXISTS track_events")
}

func TestRun(t *testing.T) {
	t.Run(migrateTestSuccess, func(t *testing.T) {
		withMigrator(t, &mockMigrator{versionVal: 2}, nil)
		assert.NoError(t, Run(nil))
	})

	t.Run("no change is not an error", func(t *testing.T) {
		withMigrator(t, &mockMigrator{upErr: migrate.ErrNoChange, versionVal: 2}, nil)
		assert.NoError(t, Run(nil))
	})

	t.Run("up error", func(t *testing.T) {
		withMigrator(t, &mockMigrator{upErr: errors.New("up failed")}, nil)
		err := Run(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "running migrations")
	})

	t.Run(migrateTestFactoryError, func(t *testing.T) {
		withMigrator(t, nil, errors.New("factory failed"))
		err := Run(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "factory failed")
	})

	t.Run("version error", func(t *testing.T) {
		withMigrator(t, &mockMigrator{versionErr: errors.New("version failed")}, nil)
		err := Run(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "getting migration version")
	})

	t.Run("nil version is not an error", func(t *testing.T) {
		withMigrator(t, &mockMigrator{versionErr: migrate.ErrNilVersion}, nil)
		assert.NoError(t, Run(nil))
	})

	t.Run("dirty state logs warning", func(t *testing.T) {
		withMigrator(t, &mockMigrator{versionVal: 2, dirty: true}, nil)
		assert.NoError(t, Run(nil))
	})
}

func TestVersion(t *testing.T) {
	t.Run(migrateTestSuccess, func(t *testing.T) {
		withMigrator(t, &mockMigrator{versionVal: 2}, nil)
		version, dirty, err := Version(nil)
		require.NoError(t, err)
		assert.Equal(t, uint(2), version)
		assert.False(t, dirty)
	})

	t.Run(migrateTestFactoryError, func(t *testing.T) {
		withMigrator(t, nil, errors.New("factory failed"))
		_, _, err := Version(nil)
		assert.Error(t, err)
	})
}

func TestDown(t *testing.T) {
	t.Run(migrateTestSuccess, func(t *testing.T) {
		withMigrator(t, &mockMigrator{}, nil)
		assert.NoError(t, Down(nil))
	})

	t.Run("no change is not an error", func(t *testing.T) {
		withMigrator(t, &mockMigrator{downErr: migrate.ErrNoChange}, nil)
		assert.NoError(t, Down(nil))
	})

	t.Run("down error", func(t *testing.T) {
		withMigrator(t, &mockMigrator{downErr: errors.New("down failed")}, nil)
		err := Down(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rolling back migrations")
	})
}

func TestSteps(t *testing.T) {
	t.Run(migrateTestSuccess, func(t *testing.T) {
		withMigrator(t, &mockMigrator{}, nil)
		assert.NoError(t, Steps(nil, 1))
	})

	t.Run("steps error", func(t *testing.T) {
		withMigrator(t, &mockMigrator{stepsErr: errors.New("steps failed")}, nil)
		err := Steps(nil, 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stepping migrations")
	})

	t.Run(migrateTestFactoryError, func(t *testing.T) {
		withMigrator(t, nil, errors.New("factory failed"))
		assert.Error(t, Steps(nil, -1))
	})
}
