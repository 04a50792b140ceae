package client_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vreid/janken/internal/pkg/api"
	"github.com/vreid/janken/internal/pkg/chain"
	"github.com/vreid/janken/internal/pkg/client"
	"github.com/vreid/janken/internal/pkg/notify"
	"github.com/vreid/janken/internal/pkg/rps"
)

func newClient(t *testing.T) *client.Client {
	t.Helper()

	log, _ := test.NewNullLogger()

	e := echo.New()
	(&api.APIService{ChainService: chain.New(
		chain.NewMemoryBackend(),
		rps.NewEngine(rps.DefaultConfig(), log),
		&notify.LogPublisher{Log: log},
		log,
	)}).Register(e)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return client.New(srv.URL)
}

func TestClient(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newClient(t)

	for _, account := range []string{"X", "Y"} {
		require.NoError(t, c.Credit(ctx, api.CreditRequest{Account: account, Asset: rps.DefaultAsset, Amount: 500, Event: "genesis"}))
	}

	require.NoError(t, c.NewHeight(ctx, 42))

	commitment := strings.Repeat("01", rps.CommitmentSize)

	for i, source := range []string{"X", "Y"} {
		resp, err := c.SubmitOffer(ctx, api.OfferRequest{
			TxIndex:       int64(i + 1),
			TxHash:        strings.ToLower(source) + "1",
			Height:        42,
			Source:        source,
			PossibleMoves: 5,
			Wager:         200,
			Commitment:    commitment,
			Expiration:    100,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(200), resp.Wager)
	}

	offer, err := c.Offer(ctx, "x1")
	require.NoError(t, err)
	assert.Equal(t, rps.OfferMatched, offer.Status)

	m, err := c.Match(ctx, "x1y1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), m.PossibleMoves)

	m, err = c.SetStatus(ctx, "x1y1", rps.StatusTie, 42)
	require.NoError(t, err)
	assert.Equal(t, rps.StatusTie, m.Status)

	balance, err := c.Balance(ctx, "Y", rps.DefaultAsset)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)

	matches, err := c.Matches(ctx, "X", "concluded: tie")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestClientErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newClient(t)

	_, err := c.Offer(ctx, "missing")
	require.ErrorIs(t, err, client.ErrRequestFailed)
	assert.Contains(t, err.Error(), "404")

	require.NoError(t, c.NewHeight(ctx, 1))
	require.ErrorIs(t, c.NewHeight(ctx, 1), client.ErrRequestFailed)

	_, err = client.New("http://127.0.0.1:1").Match(ctx, "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, client.ErrRequestFailed)
}
