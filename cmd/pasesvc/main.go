package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"

	config "github.com/avvvet/pases-service/configs"
	mongodb "github.com/avvvet/pases-service/internal/db"
	natscli "github.com/avvvet/pases-service/internal/nats"
	"github.com/avvvet/pases-service/internal/pasesvc/broker"
	svcconfig "github.com/avvvet/pases-service/internal/pasesvc/config"
	"github.com/avvvet/pases-service/internal/pasesvc/db"
	handlers "github.com/avvvet/pases-service/internal/pasesvc/handlers"
	"github.com/avvvet/pases-service/internal/pasesvc/service"
	"github.com/avvvet/pases-service/internal/pasesvc/store"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "pases"

func init() {
	config.Setup(SERVICE_NAME)
	config.CreateUniqueInstance(SERVICE_NAME)
}

func main() {
	cfg, err := svcconfig.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	backend, err := newBackend(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.Backend, err)
	}
	defer backend.Close()

	// create the schema before serving; requests retry it if this fails
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := backend.Ensure(ctx); err != nil {
		log.Errorf("unable to prepare %s store: %v", cfg.Backend, err)
	}
	cancel()

	// optional announcements over NATS
	var notifier service.Notifier
	if cfg.NatsURL != "" {
		n, err := natscli.Connect(cfg.NatsURL, cfg.NatsToken, SERVICE_NAME+"-"+config.GetInstanceId())
		if err != nil {
			log.Fatalf("Error: unable to connect to NATS server %v", err)
		}
		defer n.Conn.Close()
		log.Printf("NATS connection established successfully %s", n.Url)
		notifier = broker.NewBroker(n.Conn, config.GetInstanceId())
	}

	passService := service.NewPassService(backend, notifier)

	// Setup router
	r := chi.NewRouter()
	c := config.CORS(cfg.CORSOrigins)

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(passService)
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s with %s backend", SERVICE_NAME, server.Addr, cfg.Backend)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel = context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}

func newBackend(ctx context.Context, cfg svcconfig.Config) (store.Backend, error) {
	switch cfg.Backend {
	case svcconfig.BackendPostgres:
		dbpool, err := db.Connect(ctx, cfg.DBUrl)
		if err != nil {
			return nil, err
		}
		log.Printf("pg connection established successfully")
		return store.NewPgStore(dbpool), nil
	case svcconfig.BackendMongo:
		mdb, err := mongodb.ConnectToDB(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		log.Printf("mongodb connection established successfully")
		return store.NewMongoStore(mdb), nil
	case svcconfig.BackendXlsx:
		return store.NewXlsxStore(cfg.XlsxPath())
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
