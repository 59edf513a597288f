package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/nestegg/backend/src/institutions"
	"github.com/username/nestegg/backend/src/models"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(db))
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, Migrate(db))
}

func TestMigrate_AddsMissingColumns(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE import_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		institution_key TEXT,
		file_name TEXT NOT NULL,
		account_id TEXT NOT NULL,
		rows_total INTEGER NOT NULL DEFAULT 0,
		rows_submitted INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	_, err = NewHistoryStore(db).Record(context.Background(), models.HistoryEntry{
		SessionID: "s", FileName: "f.csv", AccountID: "a", RowsFailed: 2,
	})
	require.NoError(t, err)
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]string{"Symbol", " Quantity ", "Market Value"})
	b := Fingerprint([]string{"symbol", "quantity", "MARKET VALUE"})
	c := Fingerprint([]string{"Quantity", "Symbol", "Market Value"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestMappingStore(t *testing.T) {
	ctx := context.Background()
	store := NewMappingStore(newTestDB(t))
	fp := Fingerprint([]string{"Sym", "Qty"})

	_, ok, err := store.Get(ctx, fp)
	require.NoError(t, err)
	assert.False(t, ok)

	first := models.SavedMapping{
		Fingerprint:    fp,
		InstitutionKey: "schwab",
		Mapping:        institutions.ColumnMapping{institutions.FieldSymbol: "Sym", institutions.FieldQuantity: "Qty"},
	}
	require.NoError(t, store.Save(ctx, first))

	got, ok, err := store.Get(ctx, fp)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "schwab", got.InstitutionKey)
	assert.Equal(t, first.Mapping, got.Mapping)
	assert.False(t, got.UpdatedAt.IsZero())

	second := models.SavedMapping{
		Fingerprint: fp,
		Mapping:     institutions.ColumnMapping{institutions.FieldSymbol: "Qty"},
		UpdatedAt:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, store.Save(ctx, second))

	got, ok, err = store.Get(ctx, fp)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, got.InstitutionKey)
	assert.Equal(t, second.Mapping, got.Mapping)
}

func TestHistoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore(newTestDB(t))

	entries, err := store.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"jan.csv", "feb.csv", "mar.csv"} {
		_, err := store.Record(ctx, models.HistoryEntry{
			SessionID:      name,
			InstitutionKey: "fidelity",
			FileName:       name,
			AccountID:      "acct-1",
			RowsTotal:      10,
			RowsSubmitted:  9,
			RowsFailed:     1,
			CreatedAt:      base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	entries, err = store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "mar.csv", entries[0].FileName)
	assert.Equal(t, "feb.csv", entries[1].FileName)
	assert.Equal(t, "fidelity", entries[0].InstitutionKey)
	assert.Equal(t, 9, entries[0].RowsSubmitted)
	assert.True(t, base.Add(2*time.Hour).Equal(entries[0].CreatedAt))
}
