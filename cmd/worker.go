package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/awakery/payments-engine/internal/core/events"
	"github.com/awakery/payments-engine/internal/disbursement"
	dispostgres "github.com/awakery/payments-engine/internal/disbursement/postgres"
	"github.com/awakery/payments-engine/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run batch workers",
	Long:  `Run batch workers invoked by an external scheduler.`,
}

// Disbursement worker command: one run per invocation, the scheduler
// owns the cadence.
var disburseCmd = &cobra.Command{
	Use:   "disburse",
	Short: "Process every due disbursement for a tenant",
	Long:  `Scan the disbursement schedule for entries due today or earlier and submit each one to its configured payment adapter. Prints a run summary as JSON.`,
	Run: func(cmd *cobra.Command, args []string) {
		runDisbursements()
	},
}

var (
	disburseTenantID string
)

func runDisbursements() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if disburseTenantID == "" {
		fmt.Fprintln(os.Stderr, "--tenant is required")
		os.Exit(1)
	}

	logger.Init(config.Observability.Logging.Format, config.Observability.Logging.Level)
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open gorm over db connection: %v\n", err)
		os.Exit(1)
	}

	scheduleStore := dispostgres.NewScheduleRepository(gormDB)
	invoiceStore := dispostgres.NewInvoiceRepository(gormDB)
	registry := buildAdapterRegistry(config.Disbursement, lg)
	eventBus := events.NewEventBus(lg)

	worker := disbursement.NewWorker(scheduleStore, invoiceStore, registry, eventBus, config.Disbursement.MaxRetries, config.Disbursement.AdapterTimeout, lg)

	lg.Info("starting disbursement run", "tenant_id", disburseTenantID)

	summary := worker.Run(context.Background(), disburseTenantID)

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal run summary: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if summary.Failed > 0 {
		os.Exit(1)
	}
}

func init() {
	disburseCmd.Flags().StringVar(&disburseTenantID, "tenant", "", "Tenant to process disbursements for")

	workerCmd.AddCommand(disburseCmd)

	rootCmd.AddCommand(workerCmd)
}
