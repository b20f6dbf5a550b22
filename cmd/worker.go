package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/norruva/dpp-service/internal/anchoring"
	"github.com/norruva/dpp-service/internal/audit"
	auditpg "github.com/norruva/dpp-service/internal/audit/postgres"
	"github.com/norruva/dpp-service/internal/core/events"
	"github.com/norruva/dpp-service/internal/oracle"
	productpg "github.com/norruva/dpp-service/internal/product/postgres"
	"github.com/norruva/dpp-service/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start worker pools",
	Long:  `Start and manage background worker pools.`,
}

// anchorWorkerCmd runs the anchoring pool standalone, without the HTTP
// server, for deployments that split API and background processing.
var anchorWorkerCmd = &cobra.Command{
	Use:   "anchoring",
	Short: "Start anchoring worker pool",
	Long:  `Start the anchoring worker pool that issues credentials and anchors passports on chain`,
	Run: func(cmd *cobra.Command, args []string) {
		startAnchoringWorker()
	},
}

func init() {
	workerCmd.AddCommand(anchorWorkerCmd)
}

func startAnchoringWorker() {
	cfg, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(os.Getenv("APP_ENV"))
	log := logger.Default()

	sqlxDB, err := initDB(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init db: %v\n", err)
		os.Exit(1)
	}
	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlxDB.DB}), &gorm.Config{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init gorm: %v\n", err)
		os.Exit(1)
	}

	productRepo := productpg.NewProductRepository(gormDB)
	auditService := audit.NewService(auditpg.NewAuditRepository(gormDB), log)
	eventBus := events.NewEventBus(log)
	oracleClient := oracle.NewClient(cfg.Oracle, log)

	processor := anchoring.NewProcessor(cfg.Anchoring, productRepo, oracleClient, auditService, eventBus, log)

	// The queue is in-memory, so approvals made while no worker was running
	// are only reachable through the minting flag on the row.
	if err := processor.Recover(); err != nil {
		log.Error("anchoring recovery sweep failed", "error", err)
	}

	log.Info("anchoring worker running, waiting for signals")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	log.Info("received signal, shutting down", "signal", sig.String())
	processor.Shutdown()
	if err := sqlxDB.Close(); err != nil {
		log.Error("database close error", "error", err)
	}
}
