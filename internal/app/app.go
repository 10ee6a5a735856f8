package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm"
	aqmevents "github.com/aquamarinepk/aqm/events"
	"github.com/aquamarinepk/aqm/middleware"

	"github.com/comandaclub/comanda/internal/catalog"
	"github.com/comandaclub/comanda/internal/kitchen"
	"github.com/comandaclub/comanda/internal/mongo"
	"github.com/comandaclub/comanda/internal/order"
	"github.com/comandaclub/comanda/pkg"
	"github.com/comandaclub/comanda/pkg/event"
)

const (
	AppName    = "comanda"
	AppVersion = "0.1.0"
)

// App wires the order intake, kitchen display and catalog surfaces into a
// single service sharing one MongoDB connection and one NATS connection.
type App struct {
	config   *aqm.Config
	logger   aqm.Logger
	micro    *aqm.Micro
	baseRepo *mongo.BaseRepo
}

// New creates the service application.
func New(config *aqm.Config, logger aqm.Logger) (*App, error) {
	return &App{
		config: config,
		logger: logger,
	}, nil
}

// Initialize sets up all dependencies and components.
func (a *App) Initialize(ctx context.Context) error {
	a.baseRepo = mongo.NewBaseRepo(a.config, a.logger)
	if err := a.baseRepo.Start(ctx); err != nil {
		return fmt.Errorf("cannot start base repository: %w", err)
	}

	db := a.baseRepo.GetDatabase()
	if db == nil {
		return errors.New("repository database is nil")
	}

	natsURL, _ := a.config.GetString("nats.url")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	// Ticket events go through JetStream when enabled so the display cache
	// can rebuild from replay after a restart. Order intake stays on core
	// NATS either way.
	var ticketStream *pkg.NATSStream
	var ticketPublisher aqmevents.Publisher

	streamEnabled, _ := a.config.GetString("nats.stream.enabled")
	if streamEnabled == "true" {
		streamCfg := pkg.NATSStreamConfig{
			URL:          natsURL,
			StreamName:   "KITCHEN_EVENTS",
			Subject:      event.KitchenTicketsStream,
			ConsumerName: "comanda-kitchen",
			MaxAge:       24 * time.Hour,
			MaxMsgs:      0,
		}
		var err error
		ticketStream, err = pkg.NewNATSStream(streamCfg)
		if err != nil {
			return err
		}
		a.logger.Info("NATS stream initialized for persistent ticket events")
		ticketPublisher = ticketStream
	}

	publisher, err := pkg.NewNATSPublisher(natsURL)
	if err != nil {
		return err
	}
	if ticketPublisher == nil {
		ticketPublisher = publisher
	}

	orderSubscription, err := pkg.NewNATSSubscriber(natsURL)
	if err != nil {
		return err
	}

	ticketSubscription, err := pkg.NewNATSSubscriber(natsURL)
	if err != nil {
		return err
	}

	menuItemRepo := mongo.NewMenuItemRepo(db)
	orderRepo := mongo.NewOrderRepo(db)
	ticketRepo := mongo.NewTicketRepo(db)

	var streamForCache aqmevents.StreamConsumer
	if ticketStream != nil {
		streamForCache = ticketStream
	}
	ticketCache := kitchen.NewTicketStateCache(streamForCache, ticketRepo, a.logger)

	language, _ := a.config.GetString("catalog.language")
	if language == "" {
		language = "en"
	}

	orderLocks := pkg.NewKeyedMutex()
	ticketLocks := pkg.NewKeyedMutex()

	orderHandler := order.NewHandler(order.HandlerDeps{
		Repo:       orderRepo,
		Validator:  order.NewValidator(menuItemRepo, language),
		Aggregator: order.NewAggregator(order.FeesFromConfig(a.config)),
		Publisher:  publisher,
		Locks:      orderLocks,
	}, a.config, a.logger)

	kitchenHandler := kitchen.NewHandler(kitchen.HandlerDeps{
		Repo:      ticketRepo,
		Cache:     ticketCache,
		Publisher: ticketPublisher,
		Notifier:  publisher,
		Locks:     ticketLocks,
	}, a.config, a.logger)

	catalogHandler := catalog.NewHandler(menuItemRepo, a.config, a.logger)

	orderFanout := kitchen.NewOrderSubscriber(orderSubscription, ticketRepo, ticketCache, ticketPublisher, a.logger)
	orderReconciler := order.NewKitchenTicketSubscriber(ticketSubscription, orderRepo, ticketRepo, publisher, orderLocks, a.logger)

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      a.logger,
		DisableCORS: true,
	})
	stack = append(stack, middleware.InternalOnly())

	lifecycles := []interface{}{
		aqm.LifecycleHooks{OnStop: a.baseRepo.Stop},
	}

	bootstrapLifecycle := aqm.LifecycleHooks{
		OnStart: func(ctx context.Context) error {
			if err := menuItemRepo.EnsureIndexes(ctx); err != nil {
				return err
			}
			if err := orderRepo.EnsureIndexes(ctx); err != nil {
				return err
			}
			if err := ticketRepo.EnsureIndexes(ctx); err != nil {
				return err
			}

			if err := catalog.ApplyDemoSeeds(ctx, a.config, a.baseRepo.GetDatabase, a.logger); err != nil {
				a.logger.Errorf("Demo seeding failed (non-fatal): %v", err)
			}

			if err := ticketCache.Warm(ctx); err != nil {
				a.logger.Info("failed to warm ticket cache", "error", err)
			}
			return nil
		},
	}
	lifecycles = append(lifecycles, bootstrapLifecycle, orderFanout, orderReconciler)

	if ticketStream != nil {
		streamLifecycle := aqm.LifecycleHooks{
			OnStop: func(context.Context) error { return ticketStream.Close() },
		}
		lifecycles = append(lifecycles, streamLifecycle)
	}
	for _, sub := range []*pkg.NATSSubscriber{orderSubscription, ticketSubscription} {
		sub := sub
		lifecycles = append(lifecycles, aqm.LifecycleHooks{
			OnStop: func(context.Context) error { return sub.Close() },
		})
	}
	lifecycles = append(lifecycles, aqm.LifecycleHooks{
		OnStop: func(context.Context) error { return publisher.Close() },
	})

	options := []aqm.Option{
		aqm.WithConfig(a.config),
		aqm.WithLogger(a.logger),
		aqm.WithHTTPMiddleware(stack...),
		aqm.WithHTTPServerModules("web.port", orderHandler, kitchenHandler, catalogHandler),
		aqm.WithLifecycle(lifecycles...),
		aqm.WithHealthChecks(AppName),
	}

	a.micro = aqm.NewMicro(options...)
	return nil
}

// Run starts the application.
func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("Starting %s(%s)", AppName, AppVersion)
	if err := a.micro.Run(ctx); err != nil {
		return err
	}
	a.logger.Infof("%s(%s) stopped", AppName, AppVersion)
	return nil
}
