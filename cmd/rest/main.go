package main

import (
	"context"
	"log"

	"github.com/fatih/color"

	"ai-docreview-be/internal/bootstrap"
	"ai-docreview-be/internal/config"
	"ai-docreview-be/internal/server"
	"ai-docreview-be/internal/tracer"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	color.Cyan("AI Document Review Engine")
	color.White("  backend: %s | ttl: %dm | ceiling: %d", cfg.Session.Backend, cfg.Session.TTLMinutes, cfg.Session.MaxConcurrentAnalyses)

	// 2. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)

	// 3. Start Background Services
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go container.SessionService.RunSweeper(sweepCtx)

	if container.IndexerService != nil {
		go func() {
			log.Println("Background: Starting Indexer Service...")
			if err := container.IndexerService.Consume(context.Background()); err != nil {
				log.Printf("Background Indexer Error: %v", err)
			}
		}()
	}

	// 4. Initialize Server
	srv := server.New(cfg, container)

	// 5. Run Server
	log.Fatal(srv.Run())
}
