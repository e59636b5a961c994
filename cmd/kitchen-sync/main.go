package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"kitchen-sync/internal/common/config"
	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/microservices/board"
	"kitchen-sync/internal/microservices/board/rules"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	cfgPath   string
	tableFlag string
	portFlag  int
)

var rootCmd = &cobra.Command{
	Use:           "kitchen-sync",
	Short:         "Kitchen order board kept in sync with the restaurant backend",
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the kitchen board (HTTP, WebSocket, metrics)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if portFlag > 0 {
			cfg.Server.Port = portFlag
		}
		return board.Serve(cmd.Context(), cfg)
	},
}

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Fetch the active orders once and print the board as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		b, err := board.Snapshot(cmd.Context(), cfg, tableFlag)
		if err != nil {
			return err
		}
		return printJSON(cmd, b)
	},
}

var advanceCmd = &cobra.Command{
	Use:   "advance <order-id> <start_preparing|mark_ready|mark_delivered>",
	Short: "Apply one status action and wait for the backend to confirm it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("order id %q: %w", args[0], err)
		}
		action, err := rules.ParseAction(args[1])
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		order, err := board.AdvanceOnce(cmd.Context(), cfg, id, action)
		if err != nil {
			return err
		}
		return printJSON(cmd, order)
	},
}

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Subscribe to status notifications and log them",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return board.Subscribe(cmd.Context(), cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "kitchen-sync %s\n", rootCmd.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config (default: config.yaml)")
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "HTTP port, overrides server.port")
	boardCmd.Flags().StringVar(&tableFlag, "mesa", "", "only show orders of this table")

	rootCmd.AddCommand(serveCmd, boardCmd, advanceCmd, notifyCmd, versionCmd)
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgPath)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.New("bootstrap").Error("fatal", err, nil)
		cancel()
		os.Exit(1)
	}
}
