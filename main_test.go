package main

import (
	"context"
	"net"
	"path"
	"testing"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vreid/janken/internal/pkg/chain"
	"github.com/vreid/janken/internal/pkg/common"
)

func TestServeReleasesDatabaseWhenStartFails(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)

	t.Cleanup(func() { _ = listener.Close() })

	port := listener.Addr().(*net.TCPAddr).Port //nolint:forcetypeassert
	dataDir := t.TempDir()

	i := do.New()

	do.ProvideNamedValue(i, "port", port)
	do.ProvideNamedValue(i, "data-dir", dataDir)
	do.ProvideNamedValue(i, "log-level", "error")

	do.ProvideNamedValue(i, "backend", chain.BackendBolt)
	do.ProvideNamedValue(i, "asset", "XCP")
	do.ProvideNamedValue(i, "max-expiration", int64(100))
	do.ProvideNamedValue(i, "match-window", int64(20))

	do.ProvideNamedValue(i, "valkey-address", "")
	do.ProvideNamedValue(i, "events-channel", "janken:events")

	err = serve(context.Background(), i, chain.BackendBolt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start echo server")

	db, err := common.OpenDatabase(path.Join(dataDir, "janken.db"))
	require.NoError(t, err)
	require.NoError(t, db.Close())
}
