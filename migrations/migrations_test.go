package migrations

import (
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirection(t *testing.T) {
	dir, err := ParseDirection("up")
	require.NoError(t, err)
	assert.Equal(t, DirectionUp, dir)

	dir, err = ParseDirection("down")
	require.NoError(t, err)
	assert.Equal(t, DirectionDown, dir)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	src, err := iofs.New(files, ".")
	require.NoError(t, err)
	defer src.Close()

	version, err := src.First()
	require.NoError(t, err)

	var versions []uint
	for {
		versions = append(versions, version)

		up, _, err := src.ReadUp(version)
		require.NoError(t, err, "missing up migration for %d", version)
		up.Close()
		down, _, err := src.ReadDown(version)
		require.NoError(t, err, "missing down migration for %d", version)
		down.Close()

		next, err := src.Next(version)
		if err != nil {
			require.ErrorIs(t, err, fs.ErrNotExist)
			break
		}
		version = next
	}
	assert.Equal(t, []uint{1, 2, 3}, versions)
}

func TestSchemaCoversEveryTable(t *testing.T) {
	var schema strings.Builder
	for _, name := range []string{"000001_init.up.sql", "000003_sequence_counters.up.sql"} {
		f, err := files.Open(name)
		require.NoError(t, err)
		raw, err := io.ReadAll(f)
		f.Close()
		require.NoError(t, err)
		schema.Write(raw)
	}

	for _, table := range []string{
		"auth_identities", "user_roles", "user_profiles", "applications", "customers",
		"subscriptions", "invoices", "invoice_items", "payment_methods",
		"payment_transactions", "refunds", "access_logs", "sequence_counters",
	} {
		assert.True(t, strings.Contains(schema.String(), "CREATE TABLE IF NOT EXISTS "+table+" ("), table)
	}
}
