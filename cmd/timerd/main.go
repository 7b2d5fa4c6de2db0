// Command timerd runs the timer service: it consumes ScheduleTimer commands
// from the command stream, persists timers in MongoDB, polls for due timers
// and publishes DueTimeReached events.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
	"goa.design/clue/health"
	"goa.design/clue/log"

	pulsebus "github.com/suddenlyGiovanni/event-service-agent-kata-sub001/features/bus/pulse"
	clientspulse "github.com/suddenlyGiovanni/event-service-agent-kata-sub001/features/bus/pulse/clients/pulse"
	mongostore "github.com/suddenlyGiovanni/event-service-agent-kata-sub001/features/timer/mongo"
	clientsmongo "github.com/suddenlyGiovanni/event-service-agent-kata-sub001/features/timer/mongo/clients/mongo"
	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/bus"
	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/config"
	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/scheduler"
	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/telemetry"
)

func main() {
	var (
		configF = flag.String("config", "", "Path to the YAML configuration file")
		dbgF    = flag.Bool("debug", false, "Enable debug logs")
	)
	flag.Parse()

	// Setup logger.
	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))

	cfg, err := config.Load(*configF)
	if err != nil {
		log.Fatal(ctx, err)
	}
	if *dbgF || cfg.Debug {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}
	log.Print(ctx, log.KV{K: "msg", V: "starting timer service"},
		log.KV{K: "poll_interval", V: cfg.PollInterval.Std().String()},
		log.KV{K: "health_addr", V: cfg.HealthAddr},
	)

	logger := telemetry.NewClueLogger()
	metrics := telemetry.NewClueMetrics()
	tracer := telemetry.NewClueTracer()

	// Connect Redis and MongoDB.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal(ctx, fmt.Errorf("connect redis at %s: %w", cfg.Redis.Addr, err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Errorf(ctx, err, "close redis")
		}
	}()

	connectCtx, cancelConnect := context.WithTimeout(ctx, 10*time.Second)
	mongoClient, err := mongodriver.Connect(connectCtx, mongooptions.Client().ApplyURI(cfg.Mongo.URI))
	cancelConnect()
	if err != nil {
		log.Fatal(ctx, fmt.Errorf("connect mongo at %s: %w", cfg.Mongo.URI, err))
	}
	defer func() {
		disconnectCtx, cancelDisconnect := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelDisconnect()
		if err := mongoClient.Disconnect(disconnectCtx); err != nil {
			log.Errorf(ctx, err, "disconnect mongo")
		}
	}()

	// Construct the ports.
	timerClient, err := clientsmongo.New(clientsmongo.Options{
		Client:   mongoClient,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal(ctx, fmt.Errorf("build mongo timer client: %w", err))
	}
	store, err := mongostore.NewStore(timerClient)
	if err != nil {
		log.Fatal(ctx, fmt.Errorf("build timer store: %w", err))
	}

	pulseClient, err := clientspulse.New(clientspulse.Options{
		Redis:        rdb,
		StreamMaxLen: cfg.Redis.Stream.MaxLen,
	})
	if err != nil {
		log.Fatal(ctx, fmt.Errorf("build pulse client: %w", err))
	}
	eventBus, err := pulsebus.New(pulsebus.Options{
		Client:       pulseClient,
		SinkName:     cfg.Redis.Stream.SinkName,
		PublishRate:  cfg.Redis.Stream.PublishRate,
		PublishBurst: cfg.Redis.Stream.PublishBurst,
		Logger:       logger,
	})
	if err != nil {
		log.Fatal(ctx, fmt.Errorf("build pulse bus: %w", err))
	}

	svc := scheduler.New(store, eventBus,
		scheduler.WithLogger(logger),
		scheduler.WithMetrics(metrics),
		scheduler.WithTracer(tracer),
	)

	// Channel used by the signal handler and the goroutines below to notify
	// the main goroutine when to stop.
	errc := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup

	// Health and liveness endpoints.
	healthSrv := &http.Server{
		Addr:              cfg.HealthAddr,
		Handler:           healthHandler(timerClient, rdb),
		ReadHeaderTimeout: 5 * time.Second,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf(ctx, "health endpoints listening on %s", cfg.HealthAddr)
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("health listener: %w", err)
		}
	}()

	// Polling worker.
	worker := scheduler.NewWorker(svc, cfg.PollInterval.Std())
	if err := worker.Start(ctx); err != nil {
		log.Fatal(ctx, fmt.Errorf("start poll worker: %w", err))
	}

	// Command subscription.
	wg.Add(1)
	go func() {
		defer wg.Done()
		handler := svc.CommandHandler(cfg.RetryConfig())
		if err := eventBus.Subscribe(ctx, []bus.Topic{bus.TopicTimerCommands}, handler); err != nil {
			errc <- fmt.Errorf("command subscription: %w", err)
		}
	}()

	// Wait for signal or fatal error.
	log.Printf(ctx, "exiting (%v)", <-errc)

	// Stop accepting new work, then drain in reverse dependency order: the
	// subscription and worker first, the health listener last.
	cancel()
	if err := worker.Stop(); err != nil {
		log.Errorf(ctx, err, "poll worker")
	}
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		log.Errorf(ctx, err, "shutdown health listener")
	}
	wg.Wait()
	log.Printf(ctx, "exited")
}

// healthHandler serves readiness on /healthz (Mongo and Redis must both
// answer) and liveness on /livez.
func healthHandler(mongoPinger health.Pinger, rdb *redis.Client) http.Handler {
	checker := health.NewChecker(mongoPinger, redisPinger{client: rdb})
	mux := http.NewServeMux()
	mux.Handle("/healthz", health.Handler(checker))
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// redisPinger adapts the Redis client to clue's health.Pinger.
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Name() string { return "redis" }

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
