// Package client talks to a running node over its HTTP API.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/go-resty/resty/v2"
	"github.com/vreid/janken/internal/pkg/api"
	"github.com/vreid/janken/internal/pkg/rps"
)

var ErrRequestFailed = errors.New("request failed")

type Client struct {
	r *resty.Client
}

func New(baseURL string) *Client {
	return &Client{
		r: resty.New().SetBaseURL(baseURL),
	}
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	if resp.IsError() {
		return fmt.Errorf("%w: %s %s: %d %s", ErrRequestFailed,
			resp.Request.Method, resp.Request.URL, resp.StatusCode(), resp.String())
	}

	return nil
}

func (c *Client) SubmitOffer(ctx context.Context, req api.OfferRequest) (*api.OfferResponse, error) {
	var result api.OfferResponse

	err := check(c.r.R().SetContext(ctx).SetBody(req).SetResult(&result).Post("/api/rps/offers"))
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Client) NewHeight(ctx context.Context, height int64) error {
	return check(c.r.R().SetContext(ctx).SetBody(api.HeightRequest{Height: height}).Post("/api/rps/heights"))
}

func (c *Client) SetStatus(ctx context.Context, id string, status rps.MatchStatus, height int64) (*rps.Match, error) {
	var result rps.Match

	err := check(c.r.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetBody(api.StatusRequest{Status: status.String(), Height: height}).
		SetResult(&result).
		Post("/api/rps/matches/{id}/status"))
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Client) Credit(ctx context.Context, req api.CreditRequest) error {
	return check(c.r.R().SetContext(ctx).SetBody(req).Post("/api/ledger/credits"))
}

func (c *Client) Offer(ctx context.Context, hash string) (*rps.Offer, error) {
	var result rps.Offer

	err := check(c.r.R().SetContext(ctx).SetPathParam("hash", hash).SetResult(&result).Get("/api/rps/offers/{hash}"))
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Client) Match(ctx context.Context, id string) (*rps.Match, error) {
	var result rps.Match

	err := check(c.r.R().SetContext(ctx).SetPathParam("id", id).SetResult(&result).Get("/api/rps/matches/{id}"))
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Client) Balance(ctx context.Context, account, asset string) (int64, error) {
	var result api.BalanceResponse

	err := check(c.r.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"account": account, "asset": asset}).
		SetResult(&result).
		Get("/api/ledger/balances/{account}/{asset}"))
	if err != nil {
		return 0, err
	}

	return result.Balance, nil
}

func (c *Client) Matches(ctx context.Context, address, status string) ([]*rps.Match, error) {
	var result []*rps.Match

	query := url.Values{}
	if address != "" {
		query.Set("address", address)
	}

	if status != "" {
		query.Set("status", status)
	}

	err := check(c.r.R().SetContext(ctx).SetQueryParamsFromValues(query).SetResult(&result).Get("/api/rps/matches"))
	if err != nil {
		return nil, err
	}

	return result, nil
}
