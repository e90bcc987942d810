package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin API server",
	Long: `Start the HTTP API used by external front ends.

The API exposes the student registry, the attendance ledger and the
cascade removal operation behind admin-credential login with bearer
tokens. It renders nothing; presentation is the client's job.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	// The status endpoint reports trained=false when no artifact exists
	// yet, so a missing model is not fatal here.
	if err := a.loadModel(); err != nil {
		a.logger.Warn("no trained model loaded; recognition endpoints report untrained")
	}

	host := mustGetString(cmd, "host")
	if host == "" {
		host = a.cfg.Web.Host
	}
	port := mustGetInt(cmd, "port")
	if port == 0 {
		port = a.cfg.Web.Port
	}

	server := web.NewServer(
		a.registry, a.ledger, a.credentials, a.pipeline, a.model,
		host, port, a.cfg.Web.JWTSecret, a.logger,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
