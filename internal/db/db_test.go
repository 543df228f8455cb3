package db

import (
	"database/sql"
	"math/big"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/ChainHound/internal/logger"
	"github.com/goran-ethernal/ChainHound/pkg/config"
	"github.com/russross/meddler"
	"github.com/stretchr/testify/require"
)

const testMigration = `
-- +migrate Down
DROP TABLE IF EXISTS /*dbprefix*/records;

-- +migrate Up
CREATE TABLE /*dbprefix*/records (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	address TEXT NOT NULL,
	hash    TEXT NOT NULL,
	amount  TEXT
);
`

type record struct {
	ID      int64          `meddler:"id,pk"`
	Address common.Address `meddler:"address,address"`
	Hash    common.Hash    `meddler:"hash,hash"`
	Amount  *big.Int       `meddler:"amount,bigint"`
}

func setupTestDB(t *testing.T, journal string) *sql.DB {
	t.Helper()

	cfg := config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.sqlite"), JournalMode: journal}
	cfg.ApplyDefaults()

	database, err := NewSQLiteDBFromConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	return database
}

func TestNewSQLiteDBFromConfig(t *testing.T) {
	t.Parallel()

	for _, journal := range []string{"WAL", "DELETE"} {
		t.Run(journal, func(t *testing.T) {
			t.Parallel()

			database := setupTestDB(t, journal)

			var mode string
			require.NoError(t, database.QueryRow("PRAGMA journal_mode").Scan(&mode))
			require.True(t, strings.EqualFold(journal, mode), "journal mode %s", mode)
		})
	}
}

func TestNewSQLiteDB(t *testing.T) {
	t.Parallel()

	database, err := NewSQLiteDB(filepath.Join(t.TempDir(), "data", "nested", "default.sqlite"))
	require.NoError(t, err)
	defer database.Close()

	var synchronous, cacheSize int
	require.NoError(t, database.QueryRow("PRAGMA synchronous").Scan(&synchronous))
	require.NoError(t, database.QueryRow("PRAGMA cache_size").Scan(&cacheSize))
	require.Equal(t, 1, synchronous) // NORMAL
	require.Equal(t, 10000, cacheSize)
}

func TestRunMigrations_Prefix(t *testing.T) {
	t.Parallel()

	database := setupTestDB(t, "WAL")
	log := logger.NewNopLogger()

	for _, prefix := range []string{"usdc_", "dai_"} {
		require.NoError(t, RunMigrations(log, database, []Migration{
			{ID: "001_records.sql", SQL: testMigration, Prefix: prefix},
		}))
	}

	// applying again is a no-op
	require.NoError(t, RunMigrations(log, database, []Migration{
		{ID: "001_records.sql", SQL: testMigration, Prefix: "usdc_"},
	}))

	for _, table := range []string{"usdc_records", "dai_records"} {
		var name string
		err := database.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err)
		require.Equal(t, table, name)
	}
}

func TestRunMigrations_MissingSeparator(t *testing.T) {
	t.Parallel()

	database := setupTestDB(t, "WAL")

	err := RunMigrations(logger.NewNopLogger(), database, []Migration{
		{ID: "001_broken.sql", SQL: "CREATE TABLE broken (id INTEGER);"},
	})
	require.ErrorContains(t, err, "missing '-- +migrate Up' separator")
}

func TestMeddlers_RoundTrip(t *testing.T) {
	t.Parallel()

	database := setupTestDB(t, "WAL")
	require.NoError(t, RunMigrations(logger.NewNopLogger(), database, []Migration{
		{ID: "001_records.sql", SQL: testMigration},
	}))

	amount, ok := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	require.True(t, ok)

	in := &record{
		Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		Hash:    common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"),
		Amount:  amount,
	}
	require.NoError(t, meddler.Insert(database, "records", in))

	out := new(record)
	require.NoError(t, meddler.Load(database, "records", out, in.ID))
	require.Equal(t, in.Address, out.Address)
	require.Equal(t, in.Hash, out.Hash)
	require.Zero(t, in.Amount.Cmp(out.Amount))

	empty := &record{Address: in.Address, Hash: in.Hash}
	require.NoError(t, meddler.Insert(database, "records", empty))

	loaded := new(record)
	require.NoError(t, meddler.Load(database, "records", loaded, empty.ID))
	require.Nil(t, loaded.Amount)
}
