package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/JxWayne890/complyflow-financial/internal/config"
	"github.com/JxWayne890/complyflow-financial/internal/database"
	"github.com/JxWayne890/complyflow-financial/internal/domain"
	"github.com/JxWayne890/complyflow-financial/internal/migration"
	"github.com/JxWayne890/complyflow-financial/internal/repository"
	"github.com/JxWayne890/complyflow-financial/internal/service"
	"gorm.io/gorm"
)

func main() {
	configPath := flag.String("config", config.Path(), "config file path")
	verify := flag.Bool("verify", false, "check version numbering and current-version pointers after migrating")
	verbose := flag.Bool("verbose", false, "verbose SQL logging")
	flag.Parse()

	config.LoadDotEnv()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *verbose {
		cfg.Database.LogLevel = "info"
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get underlying DB: %v", err)
	}
	defer sqlDB.Close()

	start := time.Now()
	if err := migration.Run(db); err != nil {
		log.Printf("[migrate] FAILED: %v", err)
		os.Exit(1)
	}
	log.Printf("[migrate] Schema up to date (%s) in %v", cfg.Database.Driver, time.Since(start))

	if *verify {
		if bad := runVerify(db); bad > 0 {
			os.Exit(2)
		}
	}
}

// runVerify reports every request whose versions have gaps or whose
// current pointer is not the latest version
func runVerify(db *gorm.DB) int {
	ctx := context.Background()
	var ids []string
	if err := db.Model(&domain.ContentRequest{}).Order("created_at").Pluck("id", &ids).Error; err != nil {
		log.Fatalf("[verify] list requests: %v", err)
	}

	versions := service.NewVersionService(service.Deps{Store: repository.NewStore(db)})
	bad := 0
	for _, id := range ids {
		report, err := versions.CheckConsistency(ctx, id)
		if err != nil {
			log.Printf("[verify] %s: %v", id, err)
			bad++
			continue
		}
		if !report.Consistent || !report.Gapless {
			log.Printf("[verify] %s: current=v%d latest=v%d count=%d gapless=%t",
				id, report.CurrentNumber, report.LatestNumber, report.Count, report.Gapless)
			bad++
		}
	}
	log.Printf("[verify] %d requests checked, %d inconsistent", len(ids), bad)
	return bad
}
