package api

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/samber/do/v2"
	"github.com/vreid/janken/internal/pkg/chain"
	"github.com/vreid/janken/internal/pkg/common"
	"github.com/vreid/janken/internal/pkg/ledger"
	"github.com/vreid/janken/internal/pkg/notify"
	"github.com/vreid/janken/internal/pkg/rps"
)

type APIService struct {
	ChainService *chain.ChainService
	Hub          *notify.Hub
}

func NewAPIService(i do.Injector) (*APIService, error) {
	chainService := do.MustInvoke[*chain.ChainService](i)
	hub := do.MustInvoke[*notify.Hub](i)

	result := &APIService{
		ChainService: chainService,
		Hub:          hub,
	}

	echoService, err := do.Invoke[*common.EchoService](i)
	if err != nil {
		return nil, fmt.Errorf("failed to create echo service: %w", err)
	}

	echoService.Register(result.Register)

	return result, nil
}

func (s *APIService) Register(e *echo.Echo) {
	apiGroup := e.Group("/api")

	rpsGroup := apiGroup.Group("/rps")

	rpsGroup.POST("/heights", s.PostHeight)
	rpsGroup.POST("/offers", s.PostOffer)
	rpsGroup.GET("/offers", s.GetOffers)
	rpsGroup.GET("/offers/:hash", s.GetOffer)
	rpsGroup.POST("/matches/:id/status", s.PostStatus)
	rpsGroup.GET("/matches", s.GetMatches)
	rpsGroup.GET("/matches/:id", s.GetMatch)
	rpsGroup.GET("/expirations/offers", s.GetOfferExpirations)
	rpsGroup.GET("/expirations/matches", s.GetMatchExpirations)

	if s.Hub != nil {
		rpsGroup.GET("/events", echo.WrapHandler(s.Hub))
	}

	ledgerGroup := apiGroup.Group("/ledger")

	ledgerGroup.GET("/balances/:account/:asset", s.GetBalance)
	ledgerGroup.POST("/credits", s.PostCredit)
}

func httpError(err error) error {
	var status int

	_, halted := rps.IsHalt(err)

	switch {
	case halted, errors.Is(err, chain.ErrHalted):
		status = http.StatusServiceUnavailable
	case errors.Is(err, rps.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, rps.ErrOutOfOrder),
		errors.Is(err, rps.ErrDuplicate),
		errors.Is(err, rps.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, rps.ErrInvalidStatus),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrBalanceOverflow):
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
	}

	return echo.NewHTTPError(status, err.Error())
}

func (s *APIService) PostHeight(c echo.Context) error {
	var req HeightRequest

	err := c.Bind(&req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	err = s.ChainService.NewHeight(c.Request().Context(), req.Height)
	if err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *APIService) PostOffer(c echo.Context) error {
	var req OfferRequest

	err := c.Bind(&req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.TxHash == "" || req.Source == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tx_hash and source are required")
	}

	tx := rps.Tx{
		Index:  req.TxIndex,
		Hash:   req.TxHash,
		Height: req.Height,
		Source: req.Source,
	}

	ctx := c.Request().Context()

	var offer *rps.Offer

	if req.Payload != "" {
		// An undecodable payload is still admitted, as an invalid offer.
		payload, _ := hex.DecodeString(req.Payload)

		offer, err = s.ChainService.AdmitPayload(ctx, tx, payload)
	} else {
		offer, err = s.ChainService.Admit(ctx, tx, rps.OpenParams{
			PossibleMoves: req.PossibleMoves,
			Wager:         req.Wager,
			Commitment:    req.Commitment,
			Expiration:    req.Expiration,
		})
	}

	if err != nil {
		return httpError(err)
	}

	//nolint:wrapcheck
	return c.JSON(http.StatusOK, OfferResponse{
		OfferID: offer.Hash,
		Status:  offer.Describe(),
		Wager:   offer.Wager,
	})
}

func (s *APIService) PostStatus(c echo.Context) error {
	var req StatusRequest

	err := c.Bind(&req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	status, err := rps.ParseMatchStatus(req.Status)
	if err != nil {
		return httpError(err)
	}

	m, err := s.ChainService.SetStatus(c.Request().Context(), c.Param("id"), status, req.Height)
	if err != nil {
		return httpError(err)
	}

	//nolint:wrapcheck
	return c.JSON(http.StatusOK, m)
}

func (s *APIService) PostCredit(c echo.Context) error {
	var req CreditRequest

	err := c.Bind(&req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Account == "" || req.Asset == "" || req.Event == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "account, asset and event are required")
	}

	err = s.ChainService.Credit(c.Request().Context(), req.Account, req.Asset, req.Amount, req.Event)
	if err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusNoContent)
}
