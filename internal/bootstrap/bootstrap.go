package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"nodeuser-server-go/internal/domain/auth"
	"nodeuser-server-go/internal/domain/eventbus"
	userstore "nodeuser-server-go/internal/domain/user/store"
	platformconfig "nodeuser-server-go/internal/platform/config"
	platformerrors "nodeuser-server-go/internal/platform/errors"
	platformlogging "nodeuser-server-go/internal/platform/logging"
	platformmail "nodeuser-server-go/internal/platform/mail"
	platformstorage "nodeuser-server-go/internal/platform/storage"
	httptransport "nodeuser-server-go/internal/transport/http"
	"nodeuser-server-go/internal/transport/http/userapi"
)

const shutdownTimeout = 5 * time.Second

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID      string
	Title   string
	Kind    platformerrors.Kind
	Execute stepFn
}

type appState struct {
	config      *platformconfig.Config
	configPath  string
	logger      *platformlogging.Logger
	db          *gorm.DB
	store       userstore.Store
	mailer      platformmail.Sender
	bus         *eventbus.Bus
	authManager *auth.Manager
	router      *httptransport.Router
}

// Run starts the whole service lifecycle: configuration, dependencies, HTTP
// serving and graceful shutdown.
func Run(ctx context.Context) error {
	state := &appState{}

	if err := executeInitSteps(ctx, initGraph(), state); err != nil {
		return err
	}

	logger := state.logger
	defer func() {
		if closeErr := state.authManager.Close(); closeErr != nil {
			logger.Error("failed to close auth manager: %v", closeErr)
		}
		if state.db != nil {
			if closeErr := platformstorage.Close(state.db); closeErr != nil {
				logger.Error("failed to close database: %v", closeErr)
			}
		}
		state.bus.WaitAsync()
		_ = logger.Close()
	}()

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", state.config.Server.IP, state.config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: state.router.Engine,
	}

	group, groupCtx := errgroup.WithContext(signalCtx)
	group.Go(func() error {
		logger.Info("http server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return platformerrors.Wrap(platformerrors.KindTransport, "http.serve", "server stopped", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down http server")
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	for _, step := range steps {
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}
			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
	}
	return nil
}

func initGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:      "logging:init",
			Title:   "Initialise logging",
			Kind:    platformerrors.KindPlatform,
			Execute: initLoggingStep,
		},
		{
			ID:      "storage:init",
			Title:   "Initialise user store",
			Kind:    platformerrors.KindStorage,
			Execute: initStoreStep,
		},
		{
			ID:      "mail:init",
			Title:   "Initialise mail sender",
			Kind:    platformerrors.KindMail,
			Execute: initMailStep,
		},
		{
			ID:      "auth:init",
			Title:   "Initialise auth manager",
			Kind:    platformerrors.KindDomain,
			Execute: initAuthStep,
		},
		{
			ID:      "http:init",
			Title:   "Initialise http transport",
			Kind:    platformerrors.KindTransport,
			Execute: initTransportStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	result, err := platformconfig.NewLoader().Load()
	if err != nil {
		return err
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return err
	}
	state.logger = logger
	if state.configPath != "" {
		logger.Info("configuration loaded from %s", state.configPath)
	} else {
		logger.Info("no config file found, using defaults and environment")
	}
	return nil
}

func initStoreStep(_ context.Context, state *appState) error {
	cfg := state.config.Store
	storeCfg := userstore.Config{Driver: cfg.Driver}
	deps := userstore.Dependencies{}

	switch cfg.Driver {
	case userstore.DriverSQLite:
		db, err := platformstorage.Open(cfg.SQLite.DSN)
		if err != nil {
			return err
		}
		state.db = db
		deps.SQLiteDB = db
	case userstore.DriverRedis:
		storeCfg.Redis = &userstore.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}
	}

	store, err := userstore.New(storeCfg, deps)
	if err != nil {
		return err
	}
	state.store = store
	state.logger.Info("user store ready (driver: %s)", cfg.Driver)
	return nil
}

func initMailStep(_ context.Context, state *appState) error {
	if !state.config.Mail.Enabled {
		state.mailer = platformmail.NewLogSender(state.logger)
		return nil
	}
	sender, err := platformmail.NewSMTPSender(platformmail.Config{
		Host:     state.config.Mail.Host,
		Port:     state.config.Mail.Port,
		Username: state.config.Mail.Username,
		Password: state.config.Mail.Password,
		From:     state.config.Mail.From,
	})
	if err != nil {
		return err
	}
	state.mailer = sender
	return nil
}

func initAuthStep(_ context.Context, state *appState) error {
	bus := eventbus.New()
	if err := subscribeEventLog(bus, state.logger); err != nil {
		return err
	}
	state.bus = bus

	manager, err := auth.NewManager(auth.Options{
		Store:    state.store,
		Logger:   state.logger,
		Hasher:   auth.NewBcryptHasher(state.config.Auth.BcryptCost),
		Mail:     state.mailer,
		Bus:      bus,
		ResetURL: state.config.Auth.ResetURL,
	})
	if err != nil {
		return err
	}
	state.authManager = manager
	return nil
}

func initTransportStep(ctx context.Context, state *appState) error {
	router, err := httptransport.Build(httptransport.Options{
		Config: state.config,
		Logger: state.logger,
	})
	if err != nil {
		return err
	}

	service, err := userapi.NewService(state.authManager, state.logger)
	if err != nil {
		return err
	}
	if err := service.Register(ctx, router.API); err != nil {
		return err
	}

	state.router = router
	return nil
}

// subscribeEventLog mirrors user lifecycle events into the log.
func subscribeEventLog(bus *eventbus.Bus, logger *platformlogging.Logger) error {
	topics := []string{
		eventbus.TopicUserRegistered,
		eventbus.TopicUserLogin,
		eventbus.TopicUserLogout,
		eventbus.TopicUserReset,
		eventbus.TopicUserDeleted,
	}
	for _, topic := range topics {
		topic := topic
		err := bus.SubscribeAsync(topic, func(event eventbus.Event) {
			logger.Debug("event %s: user=%s ip=%s browser=%s", topic, event.Username, event.IP, event.Browser)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
