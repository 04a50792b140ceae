package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/samber/do/v2"
	"github.com/vreid/janken/internal/pkg/api"
	"github.com/vreid/janken/internal/pkg/chain"
	"github.com/vreid/janken/internal/pkg/client"
	"github.com/vreid/janken/internal/pkg/common"
	"github.com/vreid/janken/internal/pkg/notify"
	"github.com/vreid/janken/internal/pkg/rps"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
)

const randomSize = 16

var ErrInvalidMove = errors.New("invalid move")

type JankenService struct {
	EchoService *common.EchoService `do:""`

	ChainService *chain.ChainService `do:""`
	APIService   *api.APIService     `do:""`
	Publisher    notify.Publisher    `do:""`
}

func runServer(ctx context.Context, cmd *cli.Command) error {
	i := do.New()

	do.ProvideNamedValue(i, "port", cmd.Int("port"))
	do.ProvideNamedValue(i, "data-dir", cmd.String("data-dir"))
	do.ProvideNamedValue(i, "log-level", cmd.String("log-level"))

	do.ProvideNamedValue(i, "backend", cmd.String("backend"))
	do.ProvideNamedValue(i, "asset", cmd.String("asset"))
	do.ProvideNamedValue(i, "max-expiration", int64(cmd.Int("max-expiration")))
	do.ProvideNamedValue(i, "match-window", int64(cmd.Int("match-window")))

	do.ProvideNamedValue(i, "valkey-address", cmd.String("valkey-address"))
	do.ProvideNamedValue(i, "events-channel", cmd.String("events-channel"))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, i, cmd.String("backend"))
}

func provide(i do.Injector) {
	do.Provide(i, common.NewLogger)
	do.Provide(i, common.NewDatabaseService)
	do.Provide(i, common.NewEchoService)

	do.Provide(i, notify.NewHubService)
	do.Provide(i, notify.NewPublisher)
	do.Provide(i, chain.NewChainService)
	do.Provide(i, api.NewAPIService)

	do.Provide(i, do.InvokeStruct[JankenService])
}

// serve runs the http server until ctx is done or it fails to start, and
// releases the publisher and database either way.
func serve(ctx context.Context, i do.Injector, backend string) error {
	provide(i)

	jankenService, err := do.Invoke[JankenService](i)
	if err != nil {
		return fmt.Errorf("failed to create janken service: %w", err)
	}

	errs := make(chan error, 1)

	go func() {
		errs <- jankenService.EchoService.Start()
	}()

	select {
	case err = <-errs:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:mnd
	defer cancel()

	err = errors.Join(err, jankenService.EchoService.Shutdown(shutdownCtx))

	if shutdowner, ok := jankenService.Publisher.(interface{ Shutdown() error }); ok {
		err = errors.Join(err, shutdowner.Shutdown())
	}

	if backend == chain.BackendBolt {
		databaseService := do.MustInvoke[*common.DatabaseService](i)
		err = errors.Join(err, databaseService.Shutdown())
	}

	return err
}

func runOffer(ctx context.Context, cmd *cli.Command) error {
	params := rps.OpenParams{
		PossibleMoves: int64(cmd.Int("moves")),
		Wager:         int64(cmd.Int("wager")),
		Commitment:    cmd.String("commitment"),
		Expiration:    int64(cmd.Int("expiration")),
	}

	payload, err := rps.Compose(params, int64(cmd.Int("max-expiration")))
	if err != nil {
		return fmt.Errorf("failed to compose offer: %w", err)
	}

	txHash := cmd.String("tx-hash")
	if txHash == "" {
		txHash = strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	result, err := client.New(cmd.String("server")).SubmitOffer(ctx, api.OfferRequest{
		TxIndex: int64(cmd.Int("tx-index")),
		TxHash:  txHash,
		Height:  int64(cmd.Int("height")),
		Source:  cmd.String("source"),
		Payload: hex.EncodeToString(payload),
	})
	if err != nil {
		return fmt.Errorf("failed to submit offer: %w", err)
	}

	fmt.Printf("%s %s %d\n", result.OfferID, result.Status, result.Wager)

	return nil
}

func runHeight(ctx context.Context, cmd *cli.Command) error {
	err := client.New(cmd.String("server")).NewHeight(ctx, int64(cmd.Int("height")))
	if err != nil {
		return fmt.Errorf("failed to open height: %w", err)
	}

	return nil
}

func runStatus(ctx context.Context, cmd *cli.Command) error {
	status, err := rps.ParseMatchStatus(cmd.String("status"))
	if err != nil {
		return fmt.Errorf("failed to parse status: %w", err)
	}

	m, err := client.New(cmd.String("server")).SetStatus(ctx, cmd.String("match"), status, int64(cmd.Int("height")))
	if err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}

	fmt.Printf("%s %s\n", m.ID, m.Status)

	return nil
}

func runCredit(ctx context.Context, cmd *cli.Command) error {
	err := client.New(cmd.String("server")).Credit(ctx, api.CreditRequest{
		Account: cmd.String("account"),
		Asset:   cmd.String("asset"),
		Amount:  int64(cmd.Int("amount")),
		Event:   cmd.String("event"),
	})
	if err != nil {
		return fmt.Errorf("failed to credit account: %w", err)
	}

	return nil
}

func runBalance(ctx context.Context, cmd *cli.Command) error {
	balance, err := client.New(cmd.String("server")).Balance(ctx, cmd.String("account"), cmd.String("asset"))
	if err != nil {
		return fmt.Errorf("failed to load balance: %w", err)
	}

	fmt.Println(balance)

	return nil
}

func runCommit(_ context.Context, cmd *cli.Command) error {
	move := cmd.Int("move")
	if move < 0 || move > 0xffff {
		return fmt.Errorf("%w: %d does not fit 16 bits", ErrInvalidMove, move)
	}

	random := make([]byte, randomSize)

	if encoded := cmd.String("random"); encoded != "" {
		decoded, err := hex.DecodeString(encoded)
		if err != nil {
			return fmt.Errorf("failed to decode random: %w", err)
		}

		random = decoded
	} else {
		_, err := rand.Read(random)
		if err != nil {
			return fmt.Errorf("failed to generate random: %w", err)
		}
	}

	//nolint:gosec // range checked above
	commitment := rps.Commitment(uint16(move), random)

	fmt.Printf("commitment %s\nrandom %s\n", hex.EncodeToString(commitment[:]), hex.EncodeToString(random))

	return nil
}

func serverFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "server",
		Value:   "http://localhost:3000",
		Sources: cli.EnvVars("JANKEN_SERVER"),
	}
}

//nolint:funlen,maintidx
func main() {
	//nolint:exhaustruct
	cmd := &cli.Command{
		Name: "janken",
		Commands: []*cli.Command{
			{
				Name: "server",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "port",
						Value:   3000, //nolint:mnd
						Sources: cli.EnvVars("JANKEN_PORT"),
					},
					&cli.StringFlag{
						Name:    "data-dir",
						Value:   "./janken/data",
						Sources: cli.EnvVars("JANKEN_DATA_DIR"),
					},
					&cli.StringFlag{
						Name:    "log-level",
						Value:   "info",
						Sources: cli.EnvVars("JANKEN_LOG_LEVEL"),
					},
					&cli.StringFlag{
						Name:    "backend",
						Value:   chain.BackendBolt,
						Sources: cli.EnvVars("JANKEN_BACKEND"),
					},
					&cli.StringFlag{
						Name:    "asset",
						Value:   rps.DefaultAsset,
						Sources: cli.EnvVars("JANKEN_ASSET"),
					},
					&cli.IntFlag{
						Name:    "max-expiration",
						Value:   rps.DefaultMaxExpiration,
						Sources: cli.EnvVars("JANKEN_MAX_EXPIRATION"),
					},
					&cli.IntFlag{
						Name:    "match-window",
						Value:   rps.DefaultMatchWindow,
						Sources: cli.EnvVars("JANKEN_MATCH_WINDOW"),
					},
					&cli.StringFlag{
						Name:    "valkey-address",
						Value:   "",
						Sources: cli.EnvVars("JANKEN_VALKEY_ADDRESS"),
					},
					&cli.StringFlag{
						Name:    "events-channel",
						Value:   "janken:events",
						Sources: cli.EnvVars("JANKEN_EVENTS_CHANNEL"),
					},
				},
				Action: runServer,
			},
			{
				Name: "offer",
				Flags: []cli.Flag{
					serverFlag(),
					&cli.IntFlag{Name: "tx-index", Required: true},
					&cli.StringFlag{Name: "tx-hash"},
					&cli.IntFlag{Name: "height", Required: true},
					&cli.StringFlag{Name: "source", Required: true},
					&cli.IntFlag{Name: "moves", Value: 3}, //nolint:mnd
					&cli.IntFlag{Name: "wager", Required: true},
					&cli.StringFlag{Name: "commitment", Required: true},
					&cli.IntFlag{Name: "expiration", Value: 10}, //nolint:mnd
					&cli.IntFlag{Name: "max-expiration", Value: rps.DefaultMaxExpiration},
				},
				Action: runOffer,
			},
			{
				Name: "height",
				Flags: []cli.Flag{
					serverFlag(),
					&cli.IntFlag{Name: "height", Required: true},
				},
				Action: runHeight,
			},
			{
				Name: "status",
				Flags: []cli.Flag{
					serverFlag(),
					&cli.StringFlag{Name: "match", Required: true},
					&cli.StringFlag{Name: "status", Required: true},
					&cli.IntFlag{Name: "height", Required: true},
				},
				Action: runStatus,
			},
			{
				Name: "credit",
				Flags: []cli.Flag{
					serverFlag(),
					&cli.StringFlag{Name: "account", Required: true},
					&cli.StringFlag{Name: "asset", Value: rps.DefaultAsset},
					&cli.IntFlag{Name: "amount", Required: true},
					&cli.StringFlag{Name: "event", Required: true},
				},
				Action: runCredit,
			},
			{
				Name: "balance",
				Flags: []cli.Flag{
					serverFlag(),
					&cli.StringFlag{Name: "account", Required: true},
					&cli.StringFlag{Name: "asset", Value: rps.DefaultAsset},
				},
				Action: runBalance,
			},
			{
				Name: "commit",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "move", Required: true},
					&cli.StringFlag{Name: "random"},
				},
				Action: runCommit,
			},
		},
		DefaultCommand: "server",
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
