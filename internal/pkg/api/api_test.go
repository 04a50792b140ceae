package api_test

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vreid/janken/internal/pkg/api"
	"github.com/vreid/janken/internal/pkg/chain"
	"github.com/vreid/janken/internal/pkg/notify"
	"github.com/vreid/janken/internal/pkg/rps"
)

var commitment = strings.Repeat("ef", rps.CommitmentSize)

func newServer(t *testing.T) (*echo.Echo, *chain.ChainService) {
	t.Helper()

	log, _ := test.NewNullLogger()

	chainService := chain.New(
		chain.NewMemoryBackend(),
		rps.NewEngine(rps.DefaultConfig(), log),
		&notify.LogPublisher{Log: log},
		log,
	)

	e := echo.New()
	(&api.APIService{ChainService: chainService}).Register(e)

	ctx := context.Background()
	require.NoError(t, chainService.Credit(ctx, "X", rps.DefaultAsset, 1000, "genesis"))
	require.NoError(t, chainService.Credit(ctx, "Y", rps.DefaultAsset, 1000, "genesis"))

	return e, chainService
}

func request(t *testing.T, e *echo.Echo, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader

	if body == nil {
		reader = strings.NewReader("")
	} else {
		data, err := json.Marshal(body)
		require.NoError(t, err)

		reader = strings.NewReader(string(data))
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))

	return v
}

func TestOfferFlow(t *testing.T) {
	t.Parallel()

	e, _ := newServer(t)

	rec := request(t, e, http.MethodPost, "/api/rps/heights", api.HeightRequest{Height: 10})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = request(t, e, http.MethodPost, "/api/rps/offers", api.OfferRequest{
		TxIndex:       1,
		TxHash:        "x1",
		Height:        10,
		Source:        "X",
		PossibleMoves: 3,
		Wager:         5000,
		Commitment:    commitment,
		Expiration:    10,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, api.OfferResponse{OfferID: "x1", Status: "open", Wager: 1000}, decode[api.OfferResponse](t, rec))

	payload, err := rps.EncodePayload(rps.OpenParams{PossibleMoves: 3, Wager: 1000, Commitment: commitment, Expiration: 10})
	require.NoError(t, err)

	rec = request(t, e, http.MethodPost, "/api/rps/offers", api.OfferRequest{
		TxIndex: 2,
		TxHash:  "y1",
		Height:  10,
		Source:  "Y",
		Payload: hex.EncodeToString(payload),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "matched", decode[api.OfferResponse](t, rec).Status)

	rec = request(t, e, http.MethodGet, "/api/rps/matches/x1y1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	m := decode[rps.Match](t, rec)
	assert.Equal(t, rps.StatusPending, m.Status)
	assert.Equal(t, int64(30), m.ExpireHeight)

	rec = request(t, e, http.MethodPost, "/api/rps/matches/x1y1/status", api.StatusRequest{Status: "concluded: first player wins", Height: 10})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, rps.StatusFirstWins, decode[rps.Match](t, rec).Status)

	rec = request(t, e, http.MethodGet, "/api/ledger/balances/X/XCP", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2000), decode[api.BalanceResponse](t, rec).Balance)

	rec = request(t, e, http.MethodGet, "/api/rps/matches?address=Y&status=concluded:+first+player+wins", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]rps.Match](t, rec), 1)

	rec = request(t, e, http.MethodGet, "/api/rps/offers?source=X", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	offers := decode[[]rps.Offer](t, rec)
	require.Len(t, offers, 1)
	assert.Equal(t, rps.OfferMatched, offers[0].Status)
}

func TestUndecodablePayloadIsInvalid(t *testing.T) {
	t.Parallel()

	e, _ := newServer(t)

	request(t, e, http.MethodPost, "/api/rps/heights", api.HeightRequest{Height: 1})

	for i, payload := range []string{"not hex", "abcd"} {
		rec := request(t, e, http.MethodPost, "/api/rps/offers", api.OfferRequest{
			TxIndex: int64(i + 1),
			TxHash:  "p" + payload,
			Height:  1,
			Source:  "X",
			Payload: payload,
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, api.OfferResponse{OfferID: "p" + payload, Status: "invalid: could not unpack"}, decode[api.OfferResponse](t, rec))
	}
}

func TestErrorStatusCodes(t *testing.T) {
	t.Parallel()

	e, _ := newServer(t)

	request(t, e, http.MethodPost, "/api/rps/heights", api.HeightRequest{Height: 5})

	tests := []struct {
		name   string
		method string
		target string
		body   any
		code   int
	}{
		{"stale height", http.MethodPost, "/api/rps/heights", api.HeightRequest{Height: 5}, http.StatusConflict},
		{"wrong height", http.MethodPost, "/api/rps/offers", api.OfferRequest{TxIndex: 1, TxHash: "a", Height: 4, Source: "X"}, http.StatusConflict},
		{"missing source", http.MethodPost, "/api/rps/offers", api.OfferRequest{TxIndex: 1, TxHash: "a", Height: 5}, http.StatusBadRequest},
		{"unknown offer", http.MethodGet, "/api/rps/offers/nope", nil, http.StatusNotFound},
		{"unknown match", http.MethodPost, "/api/rps/matches/nope/status", api.StatusRequest{Status: "concluded: tie", Height: 5}, http.StatusNotFound},
		{"unknown status", http.MethodPost, "/api/rps/matches/nope/status", api.StatusRequest{Status: "won", Height: 5}, http.StatusBadRequest},
		{"expired status", http.MethodPost, "/api/rps/matches/nope/status", api.StatusRequest{Status: "expired", Height: 5}, http.StatusBadRequest},
		{"negative credit", http.MethodPost, "/api/ledger/credits", api.CreditRequest{Account: "X", Asset: "XCP", Amount: -1, Event: "e"}, http.StatusBadRequest},
		{"overflowing credit", http.MethodPost, "/api/ledger/credits", api.CreditRequest{Account: "X", Asset: "XCP", Amount: math.MaxInt64, Event: "e"}, http.StatusBadRequest},
		{"bad query", http.MethodGet, "/api/rps/offers?height=abc", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		rec := request(t, e, tt.method, tt.target, tt.body)
		assert.Equal(t, tt.code, rec.Code, tt.name)
	}
}

func TestExpirationRecords(t *testing.T) {
	t.Parallel()

	e, _ := newServer(t)

	request(t, e, http.MethodPost, "/api/rps/heights", api.HeightRequest{Height: 1})
	request(t, e, http.MethodPost, "/api/rps/offers", api.OfferRequest{
		TxIndex:       1,
		TxHash:        "x1",
		Height:        1,
		Source:        "X",
		PossibleMoves: 3,
		Wager:         10,
		Commitment:    commitment,
		Expiration:    1,
	})
	request(t, e, http.MethodPost, "/api/rps/heights", api.HeightRequest{Height: 3})

	rec := request(t, e, http.MethodGet, "/api/rps/expirations/offers?height=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []rps.OfferExpiration{{Index: 1, Hash: "x1", Source: "X", Height: 3}}, decode[[]rps.OfferExpiration](t, rec))

	rec = request(t, e, http.MethodGet, "/api/rps/expirations/matches", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]rps.MatchExpiration](t, rec))
}
