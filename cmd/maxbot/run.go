package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"example.com/maxbot/internal/metrics"
	"example.com/maxbot/internal/session"
	"example.com/maxbot/pkg/maxclient"
)

func runCmd() *cobra.Command {
	var (
		cfgPath string
		debug   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to MAX and stay online",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			if debug {
				cfg.Debug = true
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", defaultConfigPath, "Path to the yaml config")
	cmd.Flags().BoolVar(&debug, "debug", false, "Verbose logging")

	return cmd
}

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func openStore(cfg SessionConfig) (session.Store, func(), error) {
	switch cfg.Driver {
	case "sqlite":
		st, err := session.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	default:
		return session.NewFileStore(cfg.Path), func() {}, nil
	}
}

func run(ctx context.Context, cfg Config) error {
	log := newLogger(cfg.Debug)

	store, closeStore, err := openStore(cfg.Session)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.Metrics.Addr != "" {
		metrics.Init(nil)
	}

	client := maxclient.New(maxclient.Options{
		Endpoint: cfg.Endpoint,
		Store:    store,
	}, log)

	client.OnReady = func(me maxclient.User) {
		log.Info().Int64("id", me.ID).Str("name", me.DisplayName()).Msg("session ready")
	}
	client.OnNewMessage = func(chatID int64, msg maxclient.Message) {
		log.Info().
			Int64("chat", chatID).
			Int64("sender", msg.Sender).
			Str("text", msg.Text).
			Msg("message")
	}
	client.OnMessageSent = func(chatID int64, msg maxclient.Message) {
		log.Debug().Int64("chat", chatID).Str("id", msg.ID).Msg("message delivered")
	}
	client.OnContactsUpdate = func(users []maxclient.User) {
		log.Debug().Int("count", len(users)).Msg("contacts updated")
	}
	client.OnChatsUpdate = func(chats []maxclient.Chat) {
		log.Debug().Int("count", len(chats)).Msg("chats updated")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := client.Start(gctx, cfg.Phone, promptCode); err != nil {
			return err
		}
		log.Info().Msg("running, press ctrl+c to stop")
		return client.Run(gctx)
	})

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}

		g.Go(func() error {
			log.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics server listening")
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return srv.Shutdown(shutCtx)
		})
	}

	err = g.Wait()
	client.Disconnect()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
