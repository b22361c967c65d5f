package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/awakery/payments-engine/internal"
	"github.com/awakery/payments-engine/internal/core/events"
	"github.com/awakery/payments-engine/internal/disbursement"
	dispostgres "github.com/awakery/payments-engine/internal/disbursement/postgres"
	"github.com/awakery/payments-engine/internal/order"
	orderpostgres "github.com/awakery/payments-engine/internal/order/postgres"
	"github.com/awakery/payments-engine/internal/transport"
	"github.com/awakery/payments-engine/internal/transport/rest"
	"github.com/awakery/payments-engine/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server that receives gateway notifications and operator requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	GormDB *gorm.DB
	Router *chi.Mux
	Logger *slog.Logger

	WebhookHandler      *order.WebhookHandler
	OrderHandler        *order.Handler
	DisbursementHandler *disbursement.Handler
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	rest.RegisterAllRoutes(
		deps.Router,
		deps.DB.DB,
		deps.Config.Security,
		deps.WebhookHandler,
		deps.OrderHandler,
		deps.DisbursementHandler,
		deps.Logger,
	)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Observability.Logging.Format, config.Observability.Logging.Level)
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm over db connection: %w", err)
	}

	eventBus := events.NewEventBus(lg)
	baseHandler := transport.NewBaseHandler(lg)

	tolerance, err := decimal.NewFromString(config.Gateway.AmountTolerance)
	if err != nil {
		tolerance = order.DefaultAmountTolerance
	}

	orderRepo := orderpostgres.NewOrderRepository(gormDB)
	orderService := order.NewService(orderRepo, config.Gateway.Name, tolerance, eventBus, lg)
	webhookHandler := order.NewWebhookHandler(baseHandler, orderService, config.Gateway.Passphrase, config.Gateway.HandlerTimeout, lg)
	orderHandler := order.NewHandler(baseHandler, orderService, lg)

	scheduleStore := dispostgres.NewScheduleRepository(gormDB)
	invoiceStore := dispostgres.NewInvoiceRepository(gormDB)
	registry := buildAdapterRegistry(config.Disbursement, lg)
	worker := disbursement.NewWorker(scheduleStore, invoiceStore, registry, eventBus, config.Disbursement.MaxRetries, config.Disbursement.AdapterTimeout, lg)
	disbursementHandler := disbursement.NewHandler(baseHandler, worker, lg)

	return &Dependencies{
		Config:              config,
		Logger:              lg,
		DB:                  db,
		GormDB:              gormDB,
		Router:              chi.NewRouter(),
		WebhookHandler:      webhookHandler,
		OrderHandler:        orderHandler,
		DisbursementHandler: disbursementHandler,
	}, nil
}

func buildAdapterRegistry(cfg internal.DisbursementConfig, lg *slog.Logger) *disbursement.Registry {
	registry := disbursement.NewRegistry()
	registry.Register(disbursement.MethodManual, disbursement.NewManualAdapter())
	for method, baseURL := range cfg.ProcessorURLs {
		registry.Register(method, disbursement.NewHTTPAdapter(method, baseURL, cfg.APIKey, lg))
	}
	return registry
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
