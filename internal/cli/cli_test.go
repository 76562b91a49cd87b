package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"restaurant-ordering/internal/database/sqlite"
	"restaurant-ordering/internal/logger"
)

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmdForTest()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"version", "serve", "notify", "migrate"}, names)

	serve, _, err := cmd.Find([]string{"order-service"})
	require.NoError(t, err)
	assert.Equal(t, "serve", serve.Name())
}

func TestVersionCmd(t *testing.T) {
	cmd := NewRootCmdForTest()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "restaurant-ordering dev")
}

func TestMigrateCmd_SeedsSQLite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "orders.db")
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", dbPath)
	t.Setenv("LOG_LEVEL", "error")

	cmd := NewRootCmdForTest()
	cmd.SetArgs([]string{
		"migrate",
		"--config", filepath.Join(dir, "absent.yaml"),
		"--seed", filepath.Join("..", "..", "catalog.yaml"),
	})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	store, err := sqlite.Open(dbPath, logger.New("test", "error", io.Discard))
	require.NoError(t, err)
	defer store.Close()

	branch, err := store.GetBranch(context.Background(), "b-downtown")
	require.NoError(t, err)
	assert.Equal(t, "DT", branch.NumberPrefix())

	rules, err := store.ListTaxRules(context.Background(), "r-slice")
	require.NoError(t, err)
	assert.Len(t, rules, 3)
}

func TestMigrateCmd_BadSeedFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "orders.db"))
	t.Setenv("LOG_LEVEL", "error")

	cmd := NewRootCmdForTest()
	cmd.SetArgs([]string{"migrate", "--config", filepath.Join(dir, "absent.yaml"), "--seed", filepath.Join(dir, "missing.yaml")})
	assert.Error(t, cmd.Execute())
}
