package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/flowbridge/flowbridge/internal/callbacks"
	"github.com/flowbridge/flowbridge/internal/config"
	"github.com/flowbridge/flowbridge/internal/db"
	"github.com/flowbridge/flowbridge/internal/events"
	"github.com/flowbridge/flowbridge/internal/handlers"
	"github.com/flowbridge/flowbridge/internal/logger"
	"github.com/flowbridge/flowbridge/internal/rocketchat"
	"github.com/flowbridge/flowbridge/internal/router"
	"github.com/flowbridge/flowbridge/internal/server"
	"github.com/flowbridge/flowbridge/internal/webhook"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideQueries,
			provideCallbackService,
			provideHTTPClient,
			provideRocketChatClient,
			provideDispatcher,
			provideFlowsClient,
			provideFilter,
			provideRouter,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideEventsHandler),
			provideServerHandler(provideMessageHandler),
			provideServerHandler(provideSettingsHandler),
			provideServerHandler(handlers.NewSecretHandler),
			provideServer,
		),
		fx.Invoke(
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if err := db.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideQueries(conn *pgxpool.Pool) *db.Queries { return db.New(conn) }

func provideCallbackService(log *slog.Logger, queries *db.Queries) *callbacks.Service {
	return callbacks.NewService(log, queries)
}

func provideHTTPClient(cfg config.Config) *http.Client {
	return &http.Client{Timeout: cfg.Bridge.RequestTimeoutDuration()}
}

func provideRocketChatClient(log *slog.Logger, client *http.Client, cfg config.Config) *rocketchat.Client {
	return rocketchat.NewClient(log, client, cfg.RocketChat.BaseURL, cfg.RocketChat.UserID, cfg.RocketChat.AuthToken)
}

func provideDispatcher(log *slog.Logger, client *http.Client, cfg config.Config) *webhook.Dispatcher {
	return webhook.NewDispatcher(log, client, cfg.Bridge.Debug)
}

func provideFlowsClient(log *slog.Logger, dispatcher *webhook.Dispatcher, cfg config.Config) *webhook.FlowsClient {
	return webhook.NewFlowsClient(log, dispatcher, cfg.Bridge.FlowsBaseURL, cfg.Bridge.FlowsOrgToken)
}

func provideFilter(cfg config.Config) *events.Filter {
	return events.NewFilter(cfg.Bridge.CloseRoomFlow, cfg.Bridge.TransferRoomFlow)
}

func provideRouter(log *slog.Logger, gateway *rocketchat.Client, callbackService *callbacks.Service, dispatcher *webhook.Dispatcher, flows *webhook.FlowsClient, cfg config.Config) *router.Router {
	return router.New(log, gateway, callbackService, dispatcher, flows, router.Options{
		Secret:           cfg.Bridge.Secret,
		RoomFieldName:    cfg.Bridge.RoomFieldName,
		CloseRoomFlow:    cfg.Bridge.CloseRoomFlow,
		TransferRoomFlow: cfg.Bridge.TransferRoomFlow,
	})
}

func provideEventsHandler(log *slog.Logger, filter *events.Filter, r *router.Router, cfg config.Config) *handlers.EventsHandler {
	return handlers.NewEventsHandler(log, filter, r, cfg.Bridge.Debug)
}

func provideMessageHandler(log *slog.Logger, r *router.Router) *handlers.MessageHandler {
	return handlers.NewMessageHandler(log, r)
}

func provideSettingsHandler(log *slog.Logger, svc *callbacks.Service) *handlers.SettingsHandler {
	return handlers.NewSettingsHandler(log, svc)
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Bridge.Secret, params.ServerHandlers)
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
