package db

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"001_payers.sql":       {Data: []byte("CREATE TABLE payer (id BIGSERIAL PRIMARY KEY);")},
		"002_health_plans.sql": {Data: []byte("CREATE TABLE employer_health_plan (id BIGSERIAL PRIMARY KEY);")},
		"003_mappings.sql":     {Data: []byte("CREATE TABLE accumulation_treatment_mapping (id BIGSERIAL PRIMARY KEY);")},
	}

	migrations, err := NewMigrator(nil, fsys).LoadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 3)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "001_payers.sql", migrations[0].Name)
	assert.Equal(t, "CREATE TABLE payer (id BIGSERIAL PRIMARY KEY);", migrations[0].SQL)
	assert.Equal(t, 2, migrations[1].Version)
	assert.Equal(t, 3, migrations[2].Version)
}

func TestLoadMigrations_SortsByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"010_late.sql":  {Data: []byte("SELECT 10;")},
		"002_early.sql": {Data: []byte("SELECT 2;")},
		"005_mid.sql":   {Data: []byte("SELECT 5;")},
	}

	migrations, err := NewMigrator(nil, fsys).LoadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 3)
	assert.Equal(t, []int{2, 5, 10}, []int{migrations[0].Version, migrations[1].Version, migrations[2].Version})
}

func TestLoadMigrations_SkipsNonMigrationFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"001_valid.sql":   {Data: []byte("SELECT 1;")},
		"README.md":       {Data: []byte("docs")},
		"notes.sql":       {Data: []byte("SELECT 0;")},
		"abc_invalid.sql": {Data: []byte("SELECT 0;")},
		"sub/002_x.sql":   {Data: []byte("SELECT 2;")},
	}

	migrations, err := NewMigrator(nil, fsys).LoadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 1)
	assert.Equal(t, "001_valid.sql", migrations[0].Name)
}
