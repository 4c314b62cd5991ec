package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/posync/internal/pos"
)

// openAtVersion creates a database with only the first n migrations applied.
func openAtVersion(t *testing.T, path string, n int) {
	t.Helper()

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	for _, m := range migrations[:n] {
		require.NoError(t, applyMigration(db, m))
	}
}

func TestMigrations_VersionsAreSequential(t *testing.T) {
	for i, m := range migrations {
		assert.Equal(t, i+1, m.version, "migration %q", m.name)
	}
}

func TestMigrations_UpgradeFromEveryVersion(t *testing.T) {
	for n := 0; n < len(migrations); n++ {
		t.Run(migrations[n].name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "test.db")
			openAtVersion(t, path, n)

			s, err := Open(path)
			require.NoError(t, err)
			defer s.Close()

			version, err := s.SchemaVersion(context.Background())
			require.NoError(t, err)
			assert.Equal(t, currentSchemaVersion, version)
		})
	}
}

func TestMigrations_UpgradePreservesRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	openAtVersion(t, path, 4)

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO price_sheets (date, prices, updated_at)
		VALUES ('2024-01-01', '{"corns":"10","maize":"20","flour":"30"}', '2024-01-01T00:00:00Z')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO sales
		(ref, date, timestamp, customer_name, item, rate, kilos, total, transaction_type)
		VALUES ('old-1', '2024-01-01', '2024-01-01T10:00:00Z', 'Ravi', 'corns', '10', '5', '50', 'sold')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO pending_syncs (payload_kind, payload, enqueued_at)
		VALUES ('prices', '{"date":"2024-01-01","prices":{"corns":"10"}}', '2024-01-01T00:00:00Z')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	sheet, err := s.GetPriceSheet(ctx, "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "30", sheet.Price(pos.ItemFlour).String())

	sales, err := s.ListSales(ctx)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "old-1", sales[0].Ref)

	entries, err := s.ListPendingSyncs(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Zero(t, entries[0].Attempts)
	assert.Empty(t, entries[0].LastError)
}

func TestMigrations_StepsAreRerunnable(t *testing.T) {
	s := createTestStore(t)

	// Re-running every step against a current schema must not fail.
	for _, m := range migrations {
		require.NoError(t, applyMigration(s.db, m), "migration %q", m.name)
	}

	columns := getTableColumns(t, s.db, "pending_syncs")
	assert.Contains(t, columns, "attempts")
	assert.Contains(t, columns, "last_error")
}
