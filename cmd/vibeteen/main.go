// Command vibeteen runs the mural server and a small terminal client for it.
//
//	vibeteen serve                  start the server
//	vibeteen signup / login / logout / whoami
//	vibeteen act cared --for "Vó Rita"
//	vibeteen stats
//	vibeteen watch --zoom-in 2      live text rendering of the mural
//	vibeteen spiral -n 9            spiral coordinates, offline
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vibeteen/vibe-teen/internal/config"
	"github.com/vibeteen/vibe-teen/internal/server"
	"github.com/vibeteen/vibe-teen/internal/spiral"
)

var (
	// Global flags
	configPath   string
	serverURL    string
	identityPath string

	// spiral flags
	spiralCount    int
	spiralCellSize int
)

var rootCmd = &cobra.Command{
	Use:   "vibeteen",
	Short: "Vibe Teen mural: server and terminal client",
	Long: `Vibe Teen is a shared mural of small acts of kindness.

Members register what they did (prayed, cared, shared) and every screen
showing the mural picks it up live. Cards are laid out on a square spiral
around the center card.

Client commands remember who you are in ~/.vibeteen/identity.json.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mural server",
	Long: `Start the HTTP server, the /live websocket and the feed poller.

Configuration comes from --config (or VIBETEEN_CONFIG), then from the
environment: PORT, DB_PATH, JWT_SECRET, ADMIN_EMAILS, GEMINI_API_KEY,
INSPIRATION_FEED_URL, GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET, LOG_LEVEL.`,
	RunE: runServe,
}

var spiralCmd = &cobra.Command{
	Use:   "spiral",
	Short: "Print spiral coordinates",
	RunE:  runSpiral,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the server configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with the defaults",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (or set "+config.EnvConfigPath+")")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "server URL for client commands (default: the one you signed in to)")
	rootCmd.PersistentFlags().StringVar(&identityPath, "identity", "", "identity file (default ~/.vibeteen/identity.json)")

	spiralCmd.Flags().IntVarP(&spiralCount, "count", "n", 9, "number of cells")
	spiralCmd.Flags().IntVar(&spiralCellSize, "cell-size", 1, "distance between cells")

	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(spiralCmd)
	rootCmd.AddCommand(configCmd)
	addMemberCommands(rootCmd)
	addMuralCommands(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required to serve (try: export JWT_SECRET=$(openssl rand -hex 32))")
	}
	logger := cfg.Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, logger, server.Options{})
	if err != nil {
		return err
	}
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func runSpiral(cmd *cobra.Command, args []string) error {
	if spiralCount < 0 {
		return fmt.Errorf("--count must be >= 0, got %d", spiralCount)
	}
	if spiralCellSize <= 0 {
		return fmt.Errorf("--cell-size must be positive, got %d", spiralCellSize)
	}
	out := cmd.OutOrStdout()
	for _, c := range spiral.Coords(spiralCount, spiralCellSize) {
		fmt.Fprintf(out, "%d\t%d\t%d\n", c.Index, c.X, c.Y)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := "vibeteen.yaml"
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.Default().Save(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}
