package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/salon-live-queue/internal/config"
	"github.com/iliyamo/salon-live-queue/internal/database"
	"github.com/iliyamo/salon-live-queue/internal/handler"
	"github.com/iliyamo/salon-live-queue/internal/middleware"
	"github.com/iliyamo/salon-live-queue/internal/queue"
	"github.com/iliyamo/salon-live-queue/internal/realtime"
	"github.com/iliyamo/salon-live-queue/internal/repository"
	"github.com/iliyamo/salon-live-queue/internal/router"
)

func main() {
	// A missing .env is fine; the environment may already be populated.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env loaded: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	store := repository.NewStore(db)

	// Redis backs rate limiting, the snapshot cache and, optionally, the
	// event fan-out.
	var rdb *redis.Client
	if c, err := config.NewRedisClient(config.LoadRedisConfig()); err != nil {
		if cfg.EventFanout == "redis" {
			log.Fatalf("redis required for EVENT_FANOUT=redis: %v", err)
		}
		log.Printf("redis unavailable, rate limiting and caching disabled: %v", err)
	} else {
		rdb = c
		defer rdb.Close()
	}

	opts := realtime.Options{
		TickInterval:   cfg.TickInterval,
		InboxSize:      cfg.RoomInboxSize,
		StoreTimeout:   cfg.StoreTimeout,
		ReloadInterval: cfg.ReloadInterval,
		IdleTimeout:    cfg.IdleTimeout,
		Location:       cfg.Location,
	}
	if cfg.NotifySeatAdvanced {
		seats := queue.NewSeatPublisher(cfg.AMQPURL, cfg.SeatAdvancedQueue)
		defer seats.Close()
		opts.Notifier = seats
		if cfg.EventFanout == "redis" {
			// Every instance watching a shop sees the same advance.
			opts.Notifier = realtime.NewDedupNotifier(rdb, cfg.EventChannelPrefix+":advanced", 0, seats)
		}
	}
	rooms := realtime.NewManager(store, realtime.NewHub(), opts)

	var events realtime.Publisher = realtime.NewLocalFanout(rooms)
	if cfg.EventFanout == "redis" {
		fan := realtime.NewRedisFanout(rdb, cfg.EventChannelPrefix, rooms)
		go func() {
			if err := fan.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("event-fanout: stopped: %v", err)
			}
		}()
		events = fan
	}

	consumerDone := make(chan struct{})
	if cfg.ConsumeEvents {
		consumer := queue.NewConsumer(cfg.AMQPURL, cfg.BookingEventsQueue, events)
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("booking-consumer: stopped: %v", err)
			}
		}()
	} else {
		close(consumerDone)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())

	h := handler.NewQueueHandler(rooms, events, store, store, cfg.Location, cfg.SubscriberBuffer)
	router.RegisterRoutes(e)
	router.RegisterQueue(e, h, cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		middleware.NewResponseCache(config.LoadCacheConfig(), rdb),
	)

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s, fanout=%s, tz=%s)", addr, cfg.Env, cfg.EventFanout, cfg.Location)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	rooms.Close()
	<-consumerDone
}
