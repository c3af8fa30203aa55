package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalogsearch/internal/config"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfg, err := config.LoadFrom(map[string]string{
		"STORE_BACKEND": config.BackendMemory,
		"SEARCH_ENGINE": config.EngineMemory,
	})
	require.NoError(t, err)

	var out bytes.Buffer
	c := &cli{cfg: cfg, logger: slog.New(slog.NewTextHandler(io.Discard, nil)), out: &out}
	root := newRootCmd(c)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSeed(t *testing.T) {
	out, err := run(t, "seed", "--count", "3")

	require.NoError(t, err)
	assert.Equal(t, "seeded 3 items\n", out)
}

func TestSeed_RejectsNonPositiveCount(t *testing.T) {
	_, err := run(t, "seed", "--count", "0")

	assert.ErrorContains(t, err, "--count must be positive")
}

func TestReindex_EmptyStore(t *testing.T) {
	out, err := run(t, "reindex", "--reset")

	require.NoError(t, err)
	assert.Contains(t, out, "indexed 0 items")
}

func TestMigrate_RequiresPostgres(t *testing.T) {
	_, err := run(t, "migrate")

	assert.ErrorContains(t, err, "STORE_BACKEND=postgres")
}
