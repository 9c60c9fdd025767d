package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"training-management-api/config"
	"training-management-api/models"
	"training-management-api/services"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config.InitDB()

	var (
		entityTypesRaw string
		mode           string
	)

	flag.StringVar(&entityTypesRaw, "types", "", "comma separated entity types to sync (default: all registered)")
	flag.StringVar(&mode, "mode", models.SyncModeIncremental, "sync mode: full or incremental")
	flag.Parse()

	entityTypes := parseEntityTypes(entityTypesRaw)
	if len(entityTypes) == 0 {
		entityTypes = services.RegisteredEntityTypes()
	}

	orchestrator := services.NewSyncOrchestrator(nil, nil, nil)

	failed := false
	for _, entityType := range entityTypes {
		run, err := orchestrator.RunSync(context.Background(), &services.SyncInput{
			EntityType:    entityType,
			Mode:          mode,
			TriggerSource: models.SyncTriggerManual,
		})
		if err != nil {
			if errors.Is(err, services.ErrSyncAlreadyRunning) {
				fmt.Printf("%s: skipped, a sync is already running\n", entityType)
				continue
			}
			log.Printf("%s: sync failed: %v", entityType, err)
			failed = true
			if run == nil {
				continue
			}
		}

		fmt.Printf("%s: run %d %s (mode %s)\n", entityType, run.ID, run.Status, run.Mode)
		fmt.Printf("  pages: %d, fetched: %d, created: %d, updated: %d, failed: %d\n",
			run.PagesProcessed,
			run.FetchedCount,
			run.CreatedCount,
			run.UpdatedCount,
			run.FailedCount,
		)
		if run.FailedCount > 0 {
			failed = true
		}
	}

	if failed {
		os.Exit(2)
	}
}

func parseEntityTypes(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var types []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			types = append(types, part)
		}
	}
	return types
}
