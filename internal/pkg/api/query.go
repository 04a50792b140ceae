package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vreid/janken/internal/pkg/rps"
)

func (s *APIService) GetOffer(c echo.Context) error {
	var offer *rps.Offer

	err := s.ChainService.View(func(reader rps.Reader, _ rps.Balances) error {
		var err error

		offer, err = reader.Offer(c.Param("hash"))

		return err
	})
	if err != nil {
		return httpError(err)
	}

	//nolint:wrapcheck
	return c.JSON(http.StatusOK, offer)
}

func (s *APIService) GetOffers(c echo.Context) error {
	var filter rps.OfferFilter

	err := echo.QueryParamsBinder(c).
		String("source", &filter.Source).
		String("status", &filter.Status).
		Int64("height", &filter.Height).
		BindError()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query")
	}

	var offers []*rps.Offer

	err = s.ChainService.View(func(reader rps.Reader, _ rps.Balances) error {
		var err error

		offers, err = reader.Offers(filter)

		return err
	})
	if err != nil {
		return httpError(err)
	}

	//nolint:wrapcheck
	return c.JSON(http.StatusOK, offers)
}

func (s *APIService) GetMatch(c echo.Context) error {
	var m *rps.Match

	err := s.ChainService.View(func(reader rps.Reader, _ rps.Balances) error {
		var err error

		m, err = reader.Match(c.Param("id"))

		return err
	})
	if err != nil {
		return httpError(err)
	}

	//nolint:wrapcheck
	return c.JSON(http.StatusOK, m)
}

func (s *APIService) GetMatches(c echo.Context) error {
	var filter rps.MatchFilter

	err := echo.QueryParamsBinder(c).
		String("address", &filter.Address).
		String("status", &filter.Status).
		Int64("height", &filter.Height).
		BindError()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query")
	}

	var matches []*rps.Match

	err = s.ChainService.View(func(reader rps.Reader, _ rps.Balances) error {
		var err error

		matches, err = reader.Matches(filter)

		return err
	})
	if err != nil {
		return httpError(err)
	}

	//nolint:wrapcheck
	return c.JSON(http.StatusOK, matches)
}

func (s *APIService) GetOfferExpirations(c echo.Context) error {
	var height int64

	err := echo.QueryParamsBinder(c).Int64("height", &height).BindError()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query")
	}

	var records []rps.OfferExpiration

	err = s.ChainService.View(func(reader rps.Reader, _ rps.Balances) error {
		var err error

		records, err = reader.OfferExpirations(height)

		return err
	})
	if err != nil {
		return httpError(err)
	}

	//nolint:wrapcheck
	return c.JSON(http.StatusOK, records)
}

func (s *APIService) GetMatchExpirations(c echo.Context) error {
	var height int64

	err := echo.QueryParamsBinder(c).Int64("height", &height).BindError()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query")
	}

	var records []rps.MatchExpiration

	err = s.ChainService.View(func(reader rps.Reader, _ rps.Balances) error {
		var err error

		records, err = reader.MatchExpirations(height)

		return err
	})
	if err != nil {
		return httpError(err)
	}

	//nolint:wrapcheck
	return c.JSON(http.StatusOK, records)
}

func (s *APIService) GetBalance(c echo.Context) error {
	account, asset := c.Param("account"), c.Param("asset")

	var balance int64

	err := s.ChainService.View(func(_ rps.Reader, balances rps.Balances) error {
		var err error

		balance, err = balances.Balance(account, asset)

		return err
	})
	if err != nil {
		return httpError(err)
	}

	//nolint:wrapcheck
	return c.JSON(http.StatusOK, BalanceResponse{
		Account: account,
		Asset:   asset,
		Balance: balance,
	})
}
