// Command deploy is the one-shot counterpart to cmd/bridge: it deploys the
// Main and Side bridge contracts and writes the initial state database an
// authority's bridge daemon needs to start relaying.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/log"

	"github.com/parity-relay/bridge/bridgeerr"
	"github.com/parity-relay/bridge/chainclient"
	"github.com/parity-relay/bridge/config"
	"github.com/parity-relay/bridge/contracts"
	"github.com/parity-relay/bridge/deploylib"
	"github.com/parity-relay/bridge/logsetup"
	"github.com/parity-relay/bridge/statedb"
)

func main() {
	app := &cli.App{
		Name:  "deploy",
		Usage: "deploys the Main and Side bridge contracts and writes the initial state database",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Required: true, Usage: "path to the bridge TOML config file"},
			&cli.StringFlag{Name: "database", Required: true, Usage: "path to write the new state database to"},
			&cli.StringFlag{Name: "main-bytecode", Required: true, Usage: "path to the compiled Main contract init code (hex)"},
			&cli.StringFlag{Name: "side-bytecode", Required: true, Usage: "path to the compiled Side contract init code (hex)"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		printErr(err)
		os.Exit(1)
	}
}

func printErr(err error) {
	msg := bridgeerr.Chain(err)
	if fi, statErr := os.Stdout.Stat(); statErr == nil && (fi.Mode()&os.ModeCharDevice) != 0 {
		color.Red(msg)
		return
	}
	fmt.Println(msg)
}

func run(c *cli.Context) error {
	if err := logsetup.Setup(logsetup.Options{Level: "info"}); err != nil {
		return err
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	mainBytecode, err := readHexBytecode(c.String("main-bytecode"))
	if err != nil {
		return err
	}
	sideBytecode, err := readHexBytecode(c.String("side-bytecode"))
	if err != nil {
		return err
	}

	ctx := context.Background()

	log.Info("deploy: connecting to home chain", "http", cfg.Home.HTTP)
	mainClient, err := chainclient.Dial(ctx, chainclient.Config{
		HTTP:                cfg.Home.HTTP,
		RequestTimeout:      cfg.Home.RequestTimeout.Duration(),
		MaxParallelRequests: cfg.Home.MaxParallelOrDefault(),
	})
	if err != nil {
		return err
	}
	defer mainClient.Close()

	log.Info("deploy: connecting to foreign chain", "http", cfg.Foreign.HTTP)
	sideClient, err := chainclient.Dial(ctx, chainclient.Config{
		HTTP:                cfg.Foreign.HTTP,
		RequestTimeout:      cfg.Foreign.RequestTimeout.Duration(),
		MaxParallelRequests: cfg.Foreign.MaxParallelOrDefault(),
	})
	if err != nil {
		return err
	}
	defer sideClient.Close()

	constructorArgs := []interface{}{new(big.Int).SetUint64(cfg.Authorities.RequiredSignatures), cfg.Authorities.Accounts}

	log.Info("deploy: deploying Main contract")
	mainDeployed, err := deploylib.Deploy(ctx, mainClient, contracts.MainABI(), mainBytecode, constructorArgs,
		cfg.Home.Account, cfg.Home.Sign.Gas, cfg.Home.Sign.GasPrice, cfg.Home.PollInterval.Duration())
	if err != nil {
		return err
	}
	log.Info("deploy: Main contract deployed", "address", mainDeployed.Address.Hex(), "block", mainDeployed.Receipt.BlockNumber)
	if err := mainDeployed.DumpInfo(fmt.Sprintf("deployment-main-%s.json", mainDeployed.Address.Hex())); err != nil {
		return err
	}

	log.Info("deploy: deploying Side contract")
	sideDeployed, err := deploylib.Deploy(ctx, sideClient, contracts.SideABI(), sideBytecode, constructorArgs,
		cfg.Foreign.Account, cfg.Foreign.Sign.Gas, cfg.Foreign.Sign.GasPrice, cfg.Foreign.PollInterval.Duration())
	if err != nil {
		return err
	}
	log.Info("deploy: Side contract deployed", "address", sideDeployed.Address.Hex(), "block", sideDeployed.Receipt.BlockNumber)
	if err := sideDeployed.DumpInfo(fmt.Sprintf("deployment-side-%s.json", sideDeployed.Address.Hex())); err != nil {
		return err
	}

	state := deploylib.InitialState(mainDeployed, sideDeployed)
	if _, err := statedb.Create(c.String("database"), state); err != nil {
		return err
	}

	log.Info("deploy: wrote initial state database", "path", c.String("database"))
	return nil
}

// readHexBytecode reads a hex-encoded (optionally "0x"-prefixed) contract
// init-code file, produced by whatever Solidity toolchain compiled it --
// compiling the contract source itself is out of scope here.
func readHexBytecode(path string) (deploylib.Bytecode, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, bridgeerr.New(bridgeerr.MissingFile, fmt.Sprintf("reading bytecode file %s", path), err)
	}
	text := strings.TrimSpace(string(raw))
	text = strings.TrimPrefix(text, "0x")
	decoded, err := hex.DecodeString(text)
	if err != nil {
		return nil, bridgeerr.New(bridgeerr.Config, fmt.Sprintf("decoding hex bytecode %s", path), err)
	}
	return deploylib.Bytecode(decoded), nil
}
