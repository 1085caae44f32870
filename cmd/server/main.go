package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"signet/internal/auth"
	"signet/internal/config"
	"signet/internal/email/noop"
	"signet/internal/email/ses"
	"signet/internal/handler"
	"signet/internal/pdfengine"
	"signet/internal/port"
	"signet/internal/repository/postgres"
	"signet/internal/router"
	"signet/internal/service"
	"signet/internal/sigpayload"
	s3storage "signet/internal/storage/s3"
)

const shutdownTimeout = 15 * time.Second

// @title Signet API
// @version 1.0
// @description Document signing workflow: upload a PDF, place fields, collect signatures in order, and download the signed copy.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Ignoring .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	docRepo := postgres.NewDocumentRepo(db)
	reqRepo := postgres.NewSignRequestRepo(db)
	auditRepo := postgres.NewAuditRepo(db)
	statsRepo := postgres.NewStatsRepo(db)
	locker := postgres.NewDocumentLocker(db)

	// Initialize storage
	s3Client, err := s3storage.NewS3Client(&cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	notifier, err := newNotifier(cfg.Email)
	if err != nil {
		return fmt.Errorf("failed to initialize notifier: %w", err)
	}

	// Signature fonts: bundled directory first, then the remote template when configured
	sources := []sigpayload.FontSource{sigpayload.DirSource{Dir: cfg.Signing.FontsDir}}
	names := []string{"dir"}
	if cfg.Signing.RemoteFontURL != "" {
		sources = append(sources, sigpayload.NewRemoteSource(cfg.Signing.RemoteFontURL, cfg.Signing.RemoteFontTimeout))
		names = append(names, "remote")
	}
	renderer := pdfengine.New(sigpayload.NewFontResolver(sources, names))

	// Initialize services
	opts := service.SigningOptions{
		Bucket:        cfg.S3.Bucket,
		LinkTTL:       cfg.Signing.LinkTTL,
		PresignExpiry: cfg.S3.PresignExpiry,
		MaxFileSize:   cfg.Signing.MaxFileSizeMB << 20,
	}
	signingSvc := service.NewSignRequestService(docRepo, reqRepo, auditRepo, locker, renderer, s3Client, opts)
	envelopeSvc := service.NewEnvelopeService(docRepo, reqRepo, auditRepo, locker, renderer, s3Client, notifier, signingSvc, opts)

	// Initialize handlers
	docH := handler.NewDocumentHandler(envelopeSvc, cfg.Email.FrontendURL)
	signH := handler.NewSignHandler(signingSvc, envelopeSvc)
	statsH := handler.NewStatsHandler(service.NewStatsService(statsRepo))
	healthH := handler.NewHealthHandler(db)

	// Setup router
	r := router.Setup(auth.NewVerifier(cfg.JWT), cfg.CORS.AllowedOrigins, docH, signH, statsH, healthH)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		log.Printf("Received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Println("Server stopped")
	return nil
}

func newNotifier(cfg config.EmailConfig) (port.Notifier, error) {
	switch cfg.Provider {
	case "ses":
		return ses.NewSESNotifier(cfg.Region, cfg.FromAddress, cfg.FromName, cfg.FrontendURL)
	case "", "noop":
		return noop.NewNoopNotifier(cfg.FrontendURL), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}
