package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/intermernet/bowlpickem/internal/api"
	"github.com/intermernet/bowlpickem/internal/config"
	"github.com/intermernet/bowlpickem/internal/database"
	"github.com/intermernet/bowlpickem/internal/email"
	"github.com/intermernet/bowlpickem/internal/events"
	"github.com/intermernet/bowlpickem/internal/metrics"
	"github.com/intermernet/bowlpickem/internal/realtime"
)

const serviceName = "bowlpickem-server"

// main is the entry point for the Bowl Pick'em backend server.
func main() {
	// --- 1. Load Configuration ---
	// A .env file is a development convenience; production sets real
	// environment variables.
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment variables from the system.")
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load application configuration: %v", err)
	}
	config.Logging(cfg)

	// --- 2. Ensure Required Directories Exist ---
	if err := os.MkdirAll(filepath.Dir(cfg.DbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory for %s: %v", cfg.DbPath, err)
	}

	// --- 3. Initialize Database Service ---
	dbService, err := database.NewService(cfg.DbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database service: %v", err)
	}
	defer dbService.Close()

	ctx := context.Background()
	if err := dbService.InitMainDB(ctx); err != nil {
		log.Fatalf("Failed to initialize database schema: %v", err)
	}
	log.WithField("path", cfg.DbPath).Info("Database schema verified.")

	// --- 4. Supporting Services ---
	broker := realtime.NewBroker()
	m := metrics.New()

	var mailer email.Sender = email.LogSender{Logger: log.StandardLogger()}
	if cfg.SmtpHost != "" {
		mailer = email.NewEmailService(email.SMTPServerConfig{
			Host:     cfg.SmtpHost,
			Port:     cfg.SmtpPort,
			Username: cfg.SmtpUser,
			Password: cfg.SmtpPass,
			Sender:   cfg.SmtpSender,
		})
	} else {
		log.Warn("SMTP_HOST is not set, emails will be logged instead of sent.")
	}

	var publisher events.Publisher = events.Noop{}
	var natsConn *nats.Conn
	if cfg.NatsURL != "" {
		natsConn, err = events.Connect(cfg.NatsURL, cfg.NatsToken, serviceName)
		if err != nil {
			log.Fatalf("Unable to connect to NATS server: %v", err)
		}
		defer natsConn.Close()
		publisher = events.NewNATSPublisher(natsConn)
		log.WithField("url", natsConn.ConnectedUrl()).Info("NATS connection established.")
	}

	// --- 5. Set Up API Server and Routes ---
	serverAPI := api.NewServer(cfg, dbService, broker, mailer, publisher, m)

	var resultsSub *nats.Subscription
	if natsConn != nil {
		resultsSub, err = events.SubscribeResults(natsConn, serverAPI.HandleResultRecorded)
		if err != nil {
			log.Fatalf("Unable to subscribe to result events: %v", err)
		}
	}

	router := chi.NewRouter()
	serverAPI.RegisterRoutes(router)

	// --- 6. Start the HTTP Server ---
	// No WriteTimeout: the notification stream is long-lived and the REST
	// routes carry their own timeout middleware.
	server := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s running on %s", serviceName, cfg.ServerAddr)

	// Wait for an interrupt signal to gracefully shut down the server.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	if resultsSub != nil {
		resultsSub.Unsubscribe()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("%s shutdown failed: %+v", serviceName, err)
		return
	}
	log.Infof("%s gracefully stopped", serviceName)
}
