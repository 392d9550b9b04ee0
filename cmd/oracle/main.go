// Command oracle is the side-car process that fetches, aggregates, and
// submits prices to the confidential-chain aggregator contracts, and
// serves the control-plane HTTP surface alongside it.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ojo-network/rofl-price-oracle/chain"
	"github.com/ojo-network/rofl-price-oracle/config"
	"github.com/ojo-network/rofl-price-oracle/oracle"
	"github.com/ojo-network/rofl-price-oracle/signing"
	v1 "github.com/ojo-network/rofl-price-oracle/router/v1"
)

const (
	logLevelJSON = "json"
	logLevelText = "text"

	flagLogLevel   = "log-level"
	flagLogFormat  = "log-format"
	flagListenAddr = "listen-addr"
	flagRPCURL     = "rpc-url"

	defaultListenAddr = ":7171"
)

var rootCmd = &cobra.Command{
	Use:   "oracle [config-file]",
	Args:  cobra.ExactArgs(1),
	Short: "oracle is a ROFL-hosted off-chain price oracle for confidential EVM chains",
	Long: `A trusted-execution-environment side-car process that samples
cryptocurrency spot prices from multiple independent sources, aggregates
them into a single trusted price per trading pair, and submits the
result to on-chain aggregator contracts through the companion signing
daemon.`,
	RunE: oracleCmdHandler,
}

func init() {
	rootCmd.PersistentFlags().String(flagLogLevel, zerolog.InfoLevel.String(), "logging level")
	rootCmd.PersistentFlags().String(flagLogFormat, logLevelText, "logging format; must be either json or text")
	rootCmd.Flags().String(flagListenAddr, defaultListenAddr, "control-plane HTTP listen address")
	rootCmd.Flags().String(flagRPCURL, "", "EVM JSON-RPC endpoint for the confidential chain")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func oracleCmdHandler(cmd *cobra.Command, args []string) error {
	logger, err := buildLogger(cmd)
	if err != nil {
		return err
	}

	cfg, err := config.ParseConfig(args[0])
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rpcURL, err := cmd.Flags().GetString(flagRPCURL)
	if err != nil {
		return err
	}
	listenAddr, err := cmd.Flags().GetString(flagListenAddr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	g, ctx := errgroup.WithContext(ctx)
	trapSignal(cancel, logger)

	signingClient := signing.NewClient(cfg.SigningSocket)

	appID, err := signingClient.AppID(ctx)
	if err != nil {
		return fmt.Errorf("fetch app id from signing daemon: %w", err)
	}

	if rpcURL == "" {
		return fmt.Errorf("--%s is required", flagRPCURL)
	}
	directory := common.HexToAddress(cfg.FeedDirectory)
	chainClient, err := chain.NewEVMClient(rpcURL, signingClient, directory)
	if err != nil {
		return fmt.Errorf("build chain client: %w", err)
	}

	o := oracle.New(logger, cfg, chainClient)

	g.Go(func() error {
		return startOracle(ctx, logger, o, appID)
	})
	g.Go(func() error {
		return startControlPlane(ctx, logger, listenAddr, o)
	})

	return g.Wait()
}

func buildLogger(cmd *cobra.Command) (zerolog.Logger, error) {
	logLvlStr, err := cmd.Flags().GetString(flagLogLevel)
	if err != nil {
		return zerolog.Logger{}, err
	}
	logLvl, err := zerolog.ParseLevel(logLvlStr)
	if err != nil {
		return zerolog.Logger{}, err
	}

	logFormatStr, err := cmd.Flags().GetString(flagLogFormat)
	if err != nil {
		return zerolog.Logger{}, err
	}

	var logWriter io.Writer
	switch strings.ToLower(logFormatStr) {
	case logLevelJSON:
		logWriter = os.Stderr
	case logLevelText:
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.StampMilli}
	default:
		return zerolog.Logger{}, fmt.Errorf("invalid logging format: %s", logFormatStr)
	}

	zerolog.TimeFieldFormat = time.StampMilli
	return zerolog.New(logWriter).Level(logLvl).With().Timestamp().Logger(), nil
}

// trapSignal listens for SIGINT/SIGTERM and cancels ctx so every
// goroutine in the errgroup unwinds cleanly.
func trapSignal(cancel context.CancelFunc, logger zerolog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("caught signal; shutting down...")
		cancel()
	}()
}

func startOracle(ctx context.Context, logger zerolog.Logger, o *oracle.Oracle, appID []byte) error {
	errCh := make(chan error, 1)

	go func() {
		logger.Info().Msg("starting oracle...")
		errCh <- o.Start(ctx, appID)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down oracle...")
		o.Stop()
		return nil
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("oracle exited with error")
		}
		return err
	}
}

func startControlPlane(ctx context.Context, logger zerolog.Logger, listenAddr string, o *oracle.Oracle) error {
	router := v1.New(o, logger)

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("listen_addr", listenAddr).Msg("starting control-plane server...")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		logger.Info().Msg("shutting down control-plane server...")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to gracefully shut down control-plane server")
			return err
		}
		return nil
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("control-plane server failed")
		}
		return err
	}
}
