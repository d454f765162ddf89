package database

import (
	"os"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_b.up.sql":   {Data: []byte("SELECT 2;")},
		"m/0001_a.up.sql":   {Data: []byte("SELECT 1;")},
		"m/0001_a.down.sql": {Data: []byte("SELECT 0;")},
		"m/README.md":       {Data: []byte("notes")},
	}

	names, err := ListMigrations(fsys, "m")
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_a.up.sql", "0002_b.up.sql"}, names)
}

func TestRepositoryMigrationsPresent(t *testing.T) {
	names, err := ListMigrations(os.DirFS("../../migrations"), ".")
	require.NoError(t, err)
	assert.Contains(t, names, "0001_user_profiles.up.sql")
}
