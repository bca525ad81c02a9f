package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/satindergrewal/cueline/internal/api"
	"github.com/satindergrewal/cueline/internal/capture"
	"github.com/satindergrewal/cueline/internal/config"
	"github.com/satindergrewal/cueline/internal/monitor"
	"github.com/satindergrewal/cueline/internal/session"
	"github.com/satindergrewal/cueline/internal/song"
)

var serveFlags struct {
	port    int
	dataDir string
	capture string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the teleprompter server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if cmd.Flags().Changed("port") {
			cfg.Port = serveFlags.port
		}
		if cmd.Flags().Changed("data-dir") {
			cfg.DataDir = serveFlags.dataDir
		}
		if cmd.Flags().Changed("capture") {
			cfg.Capture = serveFlags.capture
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		return runServe(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().IntVar(&serveFlags.port, "port", 8080, "HTTP listen port")
	serveCmd.Flags().StringVar(&serveFlags.dataDir, "data-dir", "./data", "song database directory")
	serveCmd.Flags().StringVar(&serveFlags.capture, "capture", "webrtc", "capture backend: portaudio, webrtc or none")
}

func runServe(parent context.Context, cfg config.Config) error {
	log := newLogger(cfg)
	log.Info("cueline starting up", "version", version, "capture", cfg.Capture, "port", cfg.Port)

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	songs, err := song.Open(song.Options{Dir: cfg.DataDir, Logger: log})
	if err != nil {
		return fmt.Errorf("open songs: %w", err)
	}
	defer songs.Close()

	var (
		device  capture.Device
		browser *capture.WebRTC
	)
	switch cfg.Capture {
	case "portaudio":
		device = capture.NewPortAudio(cfg.SampleRate)
	case "webrtc":
		browser = capture.NewWebRTC(log)
		defer browser.Close()
		device = browser
	default:
		log.Warn("audio capture disabled, arming will fail")
		device = capture.None{}
	}

	mon := monitor.New(device, log)
	sess := session.New(mon, session.Options{
		ViewportHeight: cfg.ViewportHeight,
		LineHeight:     cfg.LineHeight,
	}, log)
	loop := session.NewLoop(sess, cfg.TickInterval())

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(ctx)
	}()

	srv := api.NewServer(api.Options{
		Loop:    loop,
		Songs:   songs,
		Browser: browser,
		Defaults: song.Song{
			SpeedPxPerSecond: cfg.SpeedPxPerSecond,
			FontSizePx:       cfg.FontSizePx,
			ThresholdDB:      cfg.ThresholdDB,
		},
		EventRate: cfg.EventRate,
		Logger:    log,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			cancel()
			<-loopDone
			return fmt.Errorf("http server: %w", err)
		}
	}

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	cancel()
	<-loopDone
	log.Info("stopped")
	return nil
}
