package database

import (
	"path/filepath"
	"testing"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestPostgresDSNDefaults(t *testing.T) {
	dsn, err := postgresDSN(Config{User: "kvcache", Name: "cache"})
	require.NoError(t, err)

	parsed, err := pgconn.ParseConfig(dsn)
	require.NoError(t, err)
	require.Equal(t, "localhost", parsed.Host)
	require.Equal(t, uint16(5432), parsed.Port)
	require.Equal(t, "kvcache", parsed.User)
	require.Equal(t, "cache", parsed.Database)
	require.Nil(t, parsed.TLSConfig)
	require.Equal(t, "kvcache", parsed.RuntimeParams["application_name"])
}

func TestPostgresDSNEscapesCredentials(t *testing.T) {
	dsn, err := postgresDSN(Config{
		User:     "ops",
		Password: "p@ss word/1",
		Name:     "cache",
		Host:     "db.example.com",
		Port:     6543,
		Options:  map[string]string{"search_path": "kv"},
	})
	require.NoError(t, err)

	parsed, err := pgconn.ParseConfig(dsn)
	require.NoError(t, err)
	require.Equal(t, "db.example.com", parsed.Host)
	require.Equal(t, uint16(6543), parsed.Port)
	require.Equal(t, "p@ss word/1", parsed.Password)
	require.Equal(t, "kv", parsed.RuntimeParams["search_path"])
}

func TestPostgresDSNRequiresUserAndName(t *testing.T) {
	_, err := postgresDSN(Config{})
	require.Error(t, err)
}

func TestMySQLDSNDefaults(t *testing.T) {
	dsn, err := mysqlDSN(Config{User: "kvcache", Password: "secret", Name: "cache"})
	require.NoError(t, err)

	parsed, err := driver.ParseDSN(dsn)
	require.NoError(t, err)
	require.Equal(t, "kvcache", parsed.User)
	require.Equal(t, "secret", parsed.Passwd)
	require.Equal(t, "tcp", parsed.Net)
	require.Equal(t, "127.0.0.1:3306", parsed.Addr)
	require.Equal(t, "cache", parsed.DBName)
	require.True(t, parsed.ParseTime)
	require.Equal(t, time.UTC, parsed.Loc)
	require.Equal(t, "utf8mb4_unicode_ci", parsed.Collation)
}

func TestMySQLDSNOptions(t *testing.T) {
	dsn, err := mysqlDSN(Config{
		User:    "ops",
		Name:    "cache",
		Host:    "db.example.com",
		Port:    3307,
		Options: map[string]string{"autocommit": "true"},
	})
	require.NoError(t, err)

	parsed, err := driver.ParseDSN(dsn)
	require.NoError(t, err)
	require.Equal(t, "db.example.com:3307", parsed.Addr)
	require.Equal(t, "true", parsed.Params["autocommit"])
}

func TestMySQLDSNRequiresUserAndName(t *testing.T) {
	_, err := mysqlDSN(Config{Host: "localhost"})
	require.Error(t, err)
}

func TestExplicitDSNWins(t *testing.T) {
	for _, build := range []func(Config) (string, error){postgresDSN, mysqlDSN, sqliteDSN} {
		dsn, err := build(Config{DSN: "custom"})
		require.NoError(t, err)
		require.Equal(t, "custom", dsn)
	}
}

func TestSQLiteDSN(t *testing.T) {
	dsn, err := sqliteDSN(Config{Path: " :memory: "})
	require.NoError(t, err)
	require.Equal(t, sqliteMemoryDSN, dsn)

	path := filepath.Join(t.TempDir(), "a", "b", "kv.sqlite")
	dsn, err = sqliteDSN(Config{Path: path})
	require.NoError(t, err)
	require.Contains(t, dsn, "_journal_mode=WAL")
	require.DirExists(t, filepath.Dir(path))
}
