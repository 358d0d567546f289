package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lorenzotomasdiez/chatbot-clinic/internal/clinic"
	"github.com/lorenzotomasdiez/chatbot-clinic/internal/output"
	"github.com/lorenzotomasdiez/chatbot-clinic/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the clinic JSON API and the statistics page",
		RunE:  runServe,
	}
	cmd.Flags().String("listen", "", "Address to listen on (overrides CLINIC_LISTEN)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, true, clinic.WithLogger(func(format string, args ...any) {
		log.Printf("[clinic] "+format, args...)
	}))
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.seed(ctx); err != nil {
		return err
	}

	addr := a.cfg.Listen
	if l, _ := cmd.Flags().GetString("listen"); l != "" {
		addr = l
	}

	outDir, err := output.CreateOutputDir(a.cfg.OutputDir, "serve")
	if err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	writer := output.NewWriter(outDir)

	srv := server.New(a.session, a.presets, server.Options{
		RequestLog: true,
		OnRound: func(v clinic.RoundView) {
			writer.Logf("round %s: %d replies, %d of %d failed", v.ID, len(v.Replies), len(v.Failed), v.Total)
		},
	})

	errc := make(chan error, 1)
	go func() { errc <- srv.Listen(addr) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Printf("[server] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := a.session.Save(shutdownCtx); err != nil {
		log.Printf("[server] saving state: %v", err)
	}
	return writer.WriteLog()
}
