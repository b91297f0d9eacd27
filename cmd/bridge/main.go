// Command bridge runs the long-running relay daemon, or, with the `status`
// subcommand, prints the persisted cursor state without starting the event
// loop.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/parity-relay/bridge/bridgecore"
	"github.com/parity-relay/bridge/bridgeerr"
	"github.com/parity-relay/bridge/chainclient"
	"github.com/parity-relay/bridge/config"
	"github.com/parity-relay/bridge/contracts"
	"github.com/parity-relay/bridge/logsetup"
	"github.com/parity-relay/bridge/logstream"
	"github.com/parity-relay/bridge/metrics"
	"github.com/parity-relay/bridge/orderedstream"
	"github.com/parity-relay/bridge/relay"
	"github.com/parity-relay/bridge/statedb"
	"github.com/parity-relay/bridge/statusapi"
)

var (
	configFlag     = &cli.StringFlag{Name: "config", Required: true, Usage: "path to the bridge TOML config file"}
	databaseFlag   = &cli.StringFlag{Name: "database", Required: true, Usage: "path to the persisted cursor state database"}
	logLevelFlag   = &cli.StringFlag{Name: "log-level", Value: "info", EnvVars: []string{"RUST_LOG"}, Usage: "trace|debug|info|warn|error|crit"}
	logFileFlag    = &cli.StringFlag{Name: "log-file", Usage: "optional file to additionally log to, rotated via lumberjack"}
	statusAddrFlag = &cli.StringFlag{Name: "status-addr", Value: "127.0.0.1:8546", Usage: "bind address for /healthz, /metrics, /status"}
)

func main() {
	app := &cli.App{
		Name:   "bridge",
		Usage:  "relays deposits and withdrawals between two chains via threshold-signed messages",
		Flags:  []cli.Flag{configFlag, databaseFlag, logLevelFlag, logFileFlag, statusAddrFlag},
		Action: runDaemon,
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "print the persisted cursor state and exit",
				Flags:  []cli.Flag{databaseFlag},
				Action: runStatus,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		printErr(err)
		os.Exit(1)
	}
}

func printErr(err error) {
	msg := bridgeerr.Chain(err)
	if isTTY() {
		color.Red(msg)
		return
	}
	fmt.Println(msg)
}

func isTTY() bool {
	fi, err := os.Stdout.Stat()
	return err == nil && (fi.Mode()&os.ModeCharDevice) != 0
}

func runStatus(c *cli.Context) error {
	db, err := statedb.Open(c.String("database"))
	if err != nil {
		return err
	}
	defer db.Close()

	state := db.Read()
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"field", "value"})
	table.Append([]string{"main_contract_address", state.MainContractAddress.Hex()})
	table.Append([]string{"side_contract_address", state.SideContractAddress.Hex()})
	table.Append([]string{"main_deployed_at_block", fmt.Sprint(state.MainDeployedAtBlock)})
	table.Append([]string{"side_deployed_at_block", fmt.Sprint(state.SideDeployedAtBlock)})
	table.Append([]string{"last_main_to_side_sign_at_block", fmt.Sprint(state.LastMainToSideSignAtBlock)})
	table.Append([]string{"last_side_to_main_sign_at_block", fmt.Sprint(state.LastSideToMainSignAtBlock)})
	table.Append([]string{"last_side_to_main_signatures_at_block", fmt.Sprint(state.LastSideToMainSignaturesAtBlock)})
	table.Render()
	return nil
}

// loadJWTSecret reads a hex-encoded JWT secret file, or returns nil if
// path is empty -- JWT auth on the chain RPC endpoint is optional.
func loadJWTSecret(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, bridgeerr.New(bridgeerr.MissingFile, fmt.Sprintf("reading jwt secret %s", path), err)
	}
	secret, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(string(raw)), "0x"))
	if err != nil {
		return nil, bridgeerr.New(bridgeerr.Config, fmt.Sprintf("decoding hex jwt secret %s", path), err)
	}
	return secret, nil
}

func runDaemon(c *cli.Context) error {
	if _, err := maxprocs.Set(maxprocs.Logger(log.Debug)); err != nil {
		return bridgeerr.New(bridgeerr.Config, "setting GOMAXPROCS from cgroup quota", err)
	}

	if err := logsetup.Setup(logsetup.Options{Level: c.String("log-level"), LogFile: c.String("log-file")}); err != nil {
		return err
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	db, err := statedb.Open(c.String("database"))
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("bridge: received shutdown signal")
		cancel()
	}()

	homeJWT, err := loadJWTSecret(cfg.Home.JWTSecretPath)
	if err != nil {
		return err
	}
	foreignJWT, err := loadJWTSecret(cfg.Foreign.JWTSecretPath)
	if err != nil {
		return err
	}

	m := metrics.New()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		return bridgeerr.New(bridgeerr.Config, "registering prometheus collectors", err)
	}

	mainClient, err := chainclient.Dial(ctx, chainclient.Config{
		HTTP:                cfg.Home.HTTP,
		JWTSecret:           homeJWT,
		RequestTimeout:      cfg.Home.RequestTimeout.Duration(),
		MaxParallelRequests: cfg.Home.MaxParallelOrDefault(),
		Metrics:             m,
		ChainName:           "main",
	})
	if err != nil {
		return err
	}
	defer mainClient.Close()

	sideClient, err := chainclient.Dial(ctx, chainclient.Config{
		HTTP:                cfg.Foreign.HTTP,
		JWTSecret:           foreignJWT,
		RequestTimeout:      cfg.Foreign.RequestTimeout.Duration(),
		MaxParallelRequests: cfg.Foreign.MaxParallelOrDefault(),
		Metrics:             m,
		ChainName:           "side",
	})
	if err != nil {
		return err
	}
	defer sideClient.Close()

	state := db.Read()
	mainBound := contracts.NewMain(mainClient, state.MainContractAddress, cfg.Home.Account, cfg.Home.Sign.Gas, cfg.Home.Sign.GasPrice)
	sideBound := contracts.NewSide(sideClient, state.SideContractAddress, cfg.Foreign.Account, cfg.Foreign.Sign.Gas, cfg.Foreign.Sign.GasPrice)

	status := statusapi.New(c.String("status-addr"), reg, db)
	go func() {
		if err := status.ListenAndServe(); err != nil {
			log.Warn("bridge: status server stopped", "err", err)
		}
	}()
	defer status.Shutdown()

	authority := cfg.Home.Account
	requiredSignatures := cfg.Authorities.RequiredSignatures

	bridge := bridgecore.New(db, m, bridgecore.Streams{
		MainToSideSign: logstream.New(mainClient, logstream.Options{
			Address:       state.MainContractAddress,
			Topic:         contracts.DepositTopic,
			Confirmations: cfg.Home.RequiredConfirmations,
			PollInterval:  cfg.Home.PollInterval.Duration(),
			After:         state.LastMainToSideSignAtBlock,
			Name:          "main/Deposit",
		}),
		MainToSideSignFn: func(l types.Log) orderedstream.Job[relay.MainToSideSignResult] {
			return relay.NewMainToSideSign(ctx, l, authority, sideBound)
		},
		SideToMainSign: logstream.New(sideClient, logstream.Options{
			Address:       state.SideContractAddress,
			Topic:         contracts.WithdrawTopic,
			Confirmations: cfg.Foreign.RequiredConfirmations,
			PollInterval:  cfg.Foreign.PollInterval.Duration(),
			After:         state.LastSideToMainSignAtBlock,
			Name:          "side/Withdraw",
		}),
		SideToMainSignFn: func(l types.Log) orderedstream.Job[common.Hash] {
			return relay.NewSideToMainSign(ctx, l, sideBound)
		},
		SideToMainSignatures: logstream.New(sideClient, logstream.Options{
			Address:       state.SideContractAddress,
			Topic:         contracts.CollectedSignaturesTopic,
			Confirmations: cfg.Foreign.RequiredConfirmations,
			PollInterval:  cfg.Foreign.PollInterval.Duration(),
			After:         state.LastSideToMainSignaturesAtBlock,
			Name:          "side/CollectedSignatures",
		}),
		SideToMainSignaturesFn: func(l types.Log) orderedstream.Job[*types.Receipt] {
			return relay.NewSideToMainSignatures(ctx, l, authority, requiredSignatures, cfg.Foreign.PollInterval.Duration(), mainBound, sideBound, mainClient)
		},
	})

	log.Info("bridge: starting relay engine",
		"main_contract", state.MainContractAddress.Hex(),
		"side_contract", state.SideContractAddress.Hex(),
		"authority", authority.Hex(),
	)
	return bridge.Run(ctx)
}
