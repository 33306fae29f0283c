package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yumyai/hadesign/logger"
	"github.com/yumyai/hadesign/pkg/db"
	"github.com/yumyai/hadesign/pkg/handler"
	"github.com/yumyai/hadesign/pkg/middle"
	"github.com/yumyai/hadesign/pkg/pipeline"
	"github.com/yumyai/hadesign/pkg/store"
)

var (
	serveAddr      string
	serveAccessLog string
	serveLineage   string
	serveInput     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the results ledger as a read-only JSON API",
	Long: `Serve the results ledger as a read-only JSON API.

With --lineage the lineage is run in the background and its units can be
followed at /api/v1/units while the server is up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ledger, err := db.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer ledger.Close()

		fs, err := store.NewFileStore(cfg.WorkDir)
		if err != nil {
			return err
		}
		tracker := pipeline.NewUnitTracker()

		dbctx := &handler.DBContext{Results: ledger, Store: fs, Units: tracker}

		access := logger.L()
		if serveAccessLog != "" {
			access = middle.CreateMiddlewareLogger(logger.ParseLevel(serveAccessLog))
		}
		srv := &http.Server{
			Addr: serveAddr,
			Handler: middle.Chain(handler.NewRouter(dbctx),
				middle.RequestIDMiddleware(access),
				middle.LoggingMiddleware(access),
			),
			ReadHeaderTimeout: 10 * time.Second,
		}

		if serveLineage != "" {
			go func() {
				if _, err := runLineageUnits(ctx, cfg, ledger, tracker, serveLineage, serveInput, nil); err != nil {
					logger.Error("Background run failed", zap.String("lineage", serveLineage), zap.Error(err))
				}
			}()
		}

		logger.Info("Server starting", zap.String("addr", serveAddr))
		return listenUntilDone(ctx, srv)
	},
}

// shutdownTimeout bounds how long in-flight requests may finish.
var shutdownTimeout = 5 * time.Second

// listenUntilDone serves until ctx is cancelled, then shuts srv down
// gracefully.
func listenUntilDone(ctx context.Context, srv *http.Server) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	return serveUntilDone(ctx, srv, ln)
}

func serveUntilDone(ctx context.Context, srv *http.Server, ln net.Listener) error {
	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutdownErr <- srv.Shutdown(shutdown)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-shutdownErr; err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&serveAccessLog, "access-log", "", "separate access log level (debug|info|warn|error)")
	serveCmd.Flags().StringVarP(&serveLineage, "lineage", "l", "", "also run this lineage in the background")
	serveCmd.Flags().StringVarP(&serveInput, "input", "i", "", "input FASTA of the background run")
}
