package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/university-library/internal/application"
	"github.com/example/university-library/internal/assistant"
	"github.com/example/university-library/internal/config"
	"github.com/example/university-library/internal/events"
	httptransport "github.com/example/university-library/internal/http"
	"github.com/example/university-library/internal/ledger"
	"github.com/example/university-library/internal/logging"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the library HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := storage.close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.migrate(context.Background()); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	idGenerator := uuid.NewString
	tokenGenerator := func() string { return randomHex(32) }
	now := time.Now

	bus := events.NewBus()
	bus.Subscribe(events.LogHandler(logger))

	bookRepo := newBookRepositoryAdapter(storage.repos.books)
	memberRepo := newMemberRepositoryAdapter(storage.repos.members)
	credentialStore := newCredentialStoreAdapter(storage.repos.members)
	sessionRepo := newSessionRepositoryAdapter(storage.repos.sessions)
	lendingBooks := newLendingBookStoreAdapter(storage.repos.books)
	lendingMembers := newLendingMemberStoreAdapter(storage.repos.members)
	loanStore := newLoanStoreAdapter(storage.repos.loans)
	reservationStore := newReservationStoreAdapter(storage.repos.reservations)

	lendingLedger := ledger.New(ledger.DefaultPolicy(), idGenerator, newCardNumber)

	hasher := func(password string) (string, error) {
		return application.CreatePasswordHash(password, application.DefaultArgon2idParams)
	}

	authService := application.NewAuthServiceWithLogger(credentialStore, sessionRepo, application.VerifyPassword, tokenGenerator, now, cfg.SessionTTL, logger)
	catalogService := application.NewCatalogServiceWithLogger(bookRepo, idGenerator, now, logger)
	memberService := application.NewMemberServiceWithLogger(memberRepo, hasher, idGenerator, now, logger)
	lendingService := application.NewLendingServiceWithLogger(lendingBooks, lendingMembers, loanStore, reservationStore, lendingLedger, bus, now, logger)

	generator := assistant.NewClient(assistant.Config{
		APIKey:  cfg.AssistantAPIKey,
		BaseURL: cfg.AssistantBaseURL,
		Model:   cfg.AssistantModel,
	})
	assistantService := application.NewAssistantServiceWithLogger(bookRepo, loanStore, generator, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:      httptransport.NewAuthHandler(authService, logger),
		Books:     httptransport.NewBookHandler(catalogService, logger),
		Members:   httptransport.NewMemberHandler(memberService, lendingService, logger),
		Lending:   httptransport.NewLendingHandler(lendingService, logger),
		Assistant: httptransport.NewAssistantHandler(assistantService, logger),
	})

	protected := httptransport.RequireSession(authService, logger)(router)
	handler := httptransport.RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicRoute(r) {
			router.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	}))

	go runExpirySweeper(ctx, lendingService, cfg.SweepInterval, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("library API listening", "addr", server.Addr, "driver", cfg.StorageDriver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// isPublicRoute reports whether the request may bypass session validation.
// Only login is public; the logout route authenticates via its own token.
func isPublicRoute(r *http.Request) bool {
	if r.Method == http.MethodPost && strings.EqualFold(r.URL.Path, "/sessions") {
		return true
	}
	if r.Method == http.MethodDelete && strings.EqualFold(r.URL.Path, "/sessions/current") {
		return true
	}
	return false
}

// runExpirySweeper periodically releases reservations whose hold window has
// lapsed so the next borrower sees the book as available again.
func runExpirySweeper(ctx context.Context, lending *application.LendingService, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := lending.ExpireReservations(ctx)
			if err != nil {
				logger.Error("reservation expiry sweep failed", "error", err)
				continue
			}
			if expired > 0 {
				logger.Info("expired reservations released", "count", expired)
			}
		}
	}
}

// newCardNumber generates a library card number in the institution's
// BBUC-NNNNNNNN format.
func newCardNumber() string {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("BBUC-%08d", time.Now().UnixNano()%100000000)
	}
	n := binary.BigEndian.Uint32(buf) % 100000000
	return fmt.Sprintf("BBUC-%08d", n)
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
