// Package main provides the CLI entry point for meshagent, a reference
// binary demonstrating how to assemble the mesh protocol SDK packages
// (internal/mesh*) into a runnable agent process. It is intentionally thin:
// every internal/mesh* package is independently usable by embedding it
// directly, without going through this binary or its configuration format.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yafatek/mxp-agents-runtime/internal/meshconfig"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "meshagent:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "meshagent",
		Short:        "Run and inspect a mesh-protocol agent",
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildServeCmd(), buildValidateConfigCmd())
	return rootCmd
}

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		grpcAddr   string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Boot the agent and start its gRPC mesh transport",
		Long: `Loads the meshagent YAML configuration, wires the model adapter, memory
journal, policy engine, and audit emitters it names, transitions the agent's
lifecycle to ready, and serves the mesh protocol over gRPC.

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, grpcAddr, metricsAddr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "meshagent.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&grpcAddr, "grpc-addr", ":7443", "Address the gRPC mesh transport listens on")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Address the Prometheus metrics endpoint listens on")

	return cmd
}

func runServe(ctx context.Context, configPath, grpcAddr, metricsAddr string) error {
	cfg, err := meshconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}

	if err := rt.boot(ctx); err != nil {
		return fmt.Errorf("boot agent lifecycle: %w", err)
	}

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 2)
	go func() { errs <- rt.serveGRPC(signalCtx, grpcAddr) }()
	go func() { errs <- rt.serveMetrics(signalCtx, metricsAddr) }()

	select {
	case <-signalCtx.Done():
		rt.logger.Info(ctx, "shutdown signal received")
	case err := <-errs:
		if err != nil {
			rt.logger.Error(ctx, "transport failed", "error", err)
		}
	}

	rt.shutdown(context.Background())
	return nil
}

func buildValidateConfigCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate-config",
		Short: "Parse and validate a meshagent configuration file without starting the agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := meshconfig.Load(configPath)
			if err != nil {
				return err
			}
			fmt.Printf("config OK: agent=%s adapter=%s/%s policy_mode=%s\n",
				cfg.Agent.Name, cfg.Adapter.Provider, cfg.Adapter.Model, cfg.Policy.Mode)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "meshagent.yaml", "Path to YAML configuration file")
	return cmd
}
