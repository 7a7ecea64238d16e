package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	q := `UPDATE events SET name=?, venue=? WHERE id=?`
	assert.Equal(t, q, Rebind(DriverSQLite, q))
	assert.Equal(t, `UPDATE events SET name=$1, venue=$2 WHERE id=$3`, Rebind(DriverPostgres, q))
	assert.Equal(t, `SELECT 1`, Rebind(DriverPostgres, `SELECT 1`))
}

func TestOpenSQLiteCreatesWorkspace(t *testing.T) {
	dir := t.TempDir()
	conn, err := Open(Config{Workspace: dir})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Ping())
	assert.FileExists(t, filepath.Join(dir, ".eventline", "eventline.db"))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	assert.Error(t, err)
	_, err = Open(Config{Driver: DriverPostgres})
	assert.Error(t, err)
}
