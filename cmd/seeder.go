package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/awakery/payments-engine/internal/order"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlxDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlxDB.Close()
		db := sqlxDB.DB

		tenantID := "tenant-demo"

		if clearData {
			for _, table := range []string{"payment_transactions", "disbursement_schedules", "invoices", "orders"} {
				if _, err := db.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
					log.Fatalf("failed to clear table %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		orderTotals := []string{"1250.00", "499.90", "87.50"}
		for _, total := range orderTotals {
			ref := order.NewOrderReference()
			if _, err := db.Exec(
				"INSERT INTO orders (order_reference, total, payment_status, created_at, updated_at) VALUES ($1, $2, 'pending', now(), now())",
				ref, total,
			); err != nil {
				log.Fatalf("failed to insert order %s: %v", ref, err)
			}
			fmt.Println("Seeded pending order:", ref)
		}

		today := time.Now().UTC().Format("2006-01-02")
		invoices := []struct {
			Reference string
			Amount    string
			Method    string
		}{
			{"INV-2024-0001", "325.00", "eft"},
			{"INV-2024-0002", "980.75", "eft"},
			{"INV-2024-0003", "150.00", "manual"},
		}

		for _, inv := range invoices {
			var exists int
			if err := db.QueryRow("SELECT 1 FROM invoices WHERE reference = $1", inv.Reference).Scan(&exists); err == nil {
				fmt.Println("invoice already exists:", inv.Reference)
				continue
			}

			if _, err := db.Exec(
				"INSERT INTO invoices (tenant_id, reference, amount, payment_status, status, created_at, updated_at) VALUES ($1, $2, $3, 'unpaid', 'pending', now(), now())",
				tenantID, inv.Reference, inv.Amount,
			); err != nil {
				log.Fatalf("failed to insert invoice %s: %v", inv.Reference, err)
			}

			if _, err := db.Exec(
				"INSERT INTO disbursement_schedules (tenant_id, invoice_reference, scheduled_date, amount, status, payment_method, retry_count, created_at, updated_at) VALUES ($1, $2, $3, $4, 'scheduled', $5, 0, now(), now())",
				tenantID, inv.Reference, today, inv.Amount, inv.Method,
			); err != nil {
				log.Fatalf("failed to insert schedule entry for %s: %v", inv.Reference, err)
			}

			fmt.Println("Seeded invoice with due schedule entry:", inv.Reference)
		}

		fmt.Println("Seed data ready for tenant:", tenantID)
	},
}
