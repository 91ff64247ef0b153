// Package server wires the stores, services, controllers and transports into
// a runnable application.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/invictusops/invictus/app/controllers"
	"github.com/invictusops/invictus/app/routes"
	"github.com/invictusops/invictus/app/services"
	"github.com/invictusops/invictus/config"
	"github.com/invictusops/invictus/database/seeders"
	"github.com/invictusops/invictus/internal/kernel"
	"github.com/invictusops/invictus/internal/live"
	"github.com/invictusops/invictus/internal/views"
	"github.com/invictusops/invictus/pkg/auth"
	"github.com/invictusops/invictus/pkg/cache"
	"github.com/invictusops/invictus/pkg/docstore"
	"github.com/invictusops/invictus/pkg/event"
	"github.com/invictusops/invictus/pkg/grpc"
	"github.com/invictusops/invictus/pkg/logger"
	"github.com/invictusops/invictus/pkg/middleware"
	"github.com/invictusops/invictus/pkg/notification"
	"github.com/invictusops/invictus/pkg/router"
	"github.com/invictusops/invictus/pkg/schedule"
	"github.com/invictusops/invictus/pkg/session"
	"github.com/invictusops/invictus/pkg/storage"
	"github.com/invictusops/invictus/pkg/workerpool"
	"github.com/invictusops/invictus/pkg/ws"

	// registers the documents table for the sql driver
	_ "github.com/invictusops/invictus/database/migrations"
)

// Deps are the external resources the application runs on.
type Deps struct {
	Store docstore.Store
	Cache cache.Store
	Disk  storage.Disk
	// Hasher defaults to bcrypt at the default cost.
	Hasher auth.Hasher
	// Now defaults to time.Now.
	Now func() time.Time
}

// App is the assembled application.
type App struct {
	deps    Deps
	Engine  *views.Engine
	Live    *live.Cache
	Hub     *ws.Hub
	Limiter *middleware.Limiter
	Kernel  *kernel.HTTPKernel
	Jobs    *schedule.Scheduler
	Hooks   *workerpool.Pool

	Users     *services.UserService
	Auth      *services.AuthService
	Inventory *services.InventoryService
}

// New builds every service and controller on top of deps. Nothing is started.
func New(deps Deps) (*App, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Hasher == nil {
		deps.Hasher = auth.Bcrypt{}
	}

	engine := views.NewEngine(deps.Now, config.TimeZone())
	cacheView := live.New(deps.Store, event.NewBus(), engine)

	users := services.NewUserService(deps.Store, deps.Hasher)
	mail := services.NewNotificationService(deps.Store)
	authSvc := services.NewAuthService(users, mail, engine)
	inventory := services.NewInventoryService(deps.Store, deps.Now)
	hooks := workerpool.New("webhook", 2, 64)
	dispatcher := notification.NewDispatcher(mail, config.NotifyWebhookURL()).WithPool(hooks)
	tasks := services.NewTaskService(deps.Store, users, dispatcher, deps.Now)
	requests := services.NewOrderRequestService(deps.Store, deps.Now)
	daily := services.NewDailyOrderService(deps.Store, engine)
	customers := services.NewCustomerService(deps.Store, deps.Now)

	gql, err := controllers.GraphQL(cacheView)
	if err != nil {
		return nil, fmt.Errorf("server: graphql schema: %w", err)
	}

	hub := ws.NewHub()
	limiter := middleware.NewLimiter(300, time.Minute)
	sessions := session.NewManager(deps.Cache, session.DefaultOptions()).WithResolver(auth.SessionResolver)

	handlers := routes.Handlers{
		Auth:      authSvc,
		Session:   controllers.NewSessionController(authSvc, users),
		Views:     controllers.NewViewController(cacheView),
		Inventory: controllers.NewInventoryController(inventory, deps.Disk),
		Tasks:     controllers.NewTaskController(tasks, users),
		Orders:    controllers.NewOrderController(requests, daily, customers, users),
		Live:      controllers.NewLiveController(cacheView, mail),
		Hub:       hub,
		GraphQL:   gql,
	}

	k := kernel.NewHTTPKernel(kernel.Options{
		Sessions: sessions,
		Limiter:  limiter,
		CORS:     middleware.DefaultCORSOptions(),
		Ready:    cacheView.Ready,
	}, func(r *router.Router) { routes.RegisterAPI(r, handlers) })

	jobs := schedule.New(config.TimeZone())
	if at := config.ArchiveAt(); at != "" {
		partition := config.ArchivePartition()
		jobs.Daily().At(at).Name("inventory-archive").WithoutOverlapping().Run(func(ctx context.Context) error {
			path, _, err := inventory.Archive(ctx, deps.Disk, partition)
			if err == nil {
				logger.Component("schedule").Info("inventory archived", "path", path)
			}
			return err
		})
	}
	jobs.Every(time.Minute).Name("rate-limit-sweep").Run(func(context.Context) error {
		limiter.Sweep()
		return nil
	})

	return &App{
		deps:      deps,
		Engine:    engine,
		Live:      cacheView,
		Hub:       hub,
		Limiter:   limiter,
		Kernel:    k,
		Jobs:      jobs,
		Hooks:     hooks,
		Users:     users,
		Auth:      authSvc,
		Inventory: inventory,
	}, nil
}

// Run starts the live cache and pushes every change to websocket clients,
// then serves HTTP on addr and gRPC health on grpcPort until ctx is done.
func (a *App) Run(ctx context.Context, addr, grpcPort string) error {
	log := logger.Component("server")

	if err := a.Live.Start(ctx); err != nil {
		return err
	}
	defer a.Live.Stop()

	stopWatch := a.Live.Watch(func(ch live.Change) { a.Hub.Broadcast(ch) })
	defer stopWatch()
	defer a.Hub.Close()

	jobsCtx, stopJobs := context.WithCancel(ctx)
	jobsDone := make(chan struct{})
	go func() {
		a.Jobs.Start(jobsCtx)
		close(jobsDone)
	}()
	defer func() {
		stopJobs()
		<-jobsDone
	}()

	health := grpc.New(a.Live.Ready)
	go func() {
		if err := health.Serve(ctx, grpcPort); err != nil {
			log.Error("grpc stopped", "error", err)
		}
	}()
	defer health.Stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Kernel.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	// SSE streams never finish on their own; Shutdown gives up at the deadline.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", "error", err)
		_ = srv.Close()
	}
	return nil
}

// Close flushes queued webhooks and releases the resources in deps.
func (a *App) Close() {
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Hooks.Shutdown(closeCtx); err != nil {
		logger.Warn("webhook queue not drained", "error", err)
	}
	if err := a.deps.Store.Close(closeCtx); err != nil {
		logger.Warn("store close", "error", err)
	}
	if err := a.deps.Cache.Close(); err != nil {
		logger.Warn("cache close", "error", err)
	}
}

// Open connects the store, cache and disk selected by configuration.
func Open(ctx context.Context) (Deps, error) {
	store, err := docstore.Open(ctx)
	if err != nil {
		return Deps{}, err
	}
	c, err := cache.Connect(ctx)
	if err != nil {
		_ = store.Close(context.Background())
		return Deps{}, err
	}
	disk, err := storage.Open(ctx)
	if err != nil {
		_ = store.Close(context.Background())
		_ = c.Close()
		return Deps{}, err
	}
	return Deps{Store: store, Cache: c, Disk: disk}, nil
}

// Start loads configuration, seeds an empty store and serves until SIGINT or
// SIGTERM.
func Start() error {
	if err := config.Load(); err != nil {
		return err
	}
	if uri := config.LogMongoURI(); uri != "" {
		if err := logger.EnableMongo(uri, config.MongoDatabase()); err != nil {
			logger.Warn("mongo log sink disabled", "error", err)
		}
	}
	defer logger.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := Open(ctx)
	if err != nil {
		return err
	}
	app, err := New(deps)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := seeders.RunAll(ctx, seeders.Env{
		Store:    deps.Store,
		Hasher:   app.deps.Hasher,
		Password: config.SeedPassword(),
	}); err != nil {
		return err
	}

	return app.Run(ctx, ":"+config.AppPort(), config.GRPCPort())
}
