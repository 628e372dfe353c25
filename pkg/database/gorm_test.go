package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectorFor(t *testing.T) {
	d, isSQLite := dialectorFor("sqlite://file::memory:?cache=shared")
	assert.True(t, isSQLite)
	assert.Equal(t, "sqlite", d.Name())

	d, isSQLite = dialectorFor("host=localhost user=app dbname=casedraft sslmode=disable")
	assert.False(t, isSQLite)
	assert.Equal(t, "postgres", d.Name())
}

func TestNewGormDBFromDSN_SQLite(t *testing.T) {
	db, err := NewGormDBFromDSN("sqlite://file:gormtest?mode=memory&cache=shared", false)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	require.NoError(t, sqlDB.Close())
}
