package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ipopulse/internal/config"
	"ipopulse/internal/fetcher"
	"ipopulse/internal/pipeline"
	"ipopulse/internal/recorder"
	"ipopulse/internal/scheduler"
	"ipopulse/internal/summary"

	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] ipopulse starting...")

	once := flag.Bool("once", false, "run one ingestion cycle and exit")
	flag.Parse()

	// Local .env is optional; real deployments set env vars directly.
	if err := godotenv.Load(); err == nil {
		log.Println("[INFO] loaded .env")
	}

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	market := fetcher.NewPolygonFetcher(cfg.Market.BaseURL, cfg.Market.APIKey)
	filings := fetcher.NewFilingSearchFetcher(cfg.Filings.BaseURL, cfg.Filings.APIKey, cfg.Filings.FormType)
	log.Printf("[INFO] data sources: %s, %s", filings.Name(), market.Name())

	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	pipe := &pipeline.Pipeline{
		Filings:    filings,
		References: market,
		Snapshots:  market,
		Recorder:   rec,
		Paths: pipeline.Paths{
			Rolling:  cfg.Paths.RollingCSV,
			Merged:   cfg.Paths.MergedCSV,
			Upcoming: cfg.Paths.UpcomingCSV,
			Recent:   cfg.Paths.RecentCSV,
		},
		Pace:         time.Duration(cfg.Pipeline.PaceMS) * time.Millisecond,
		RecentCutoff: time.Duration(cfg.Pipeline.RecentCutoffDays) * 24 * time.Hour,
	}

	var gen *summary.Generator
	if cfg.LLM.APIKey != "" {
		gen = &summary.Generator{
			Completer:   summary.NewClient(cfg.LLM.Endpoint, cfg.LLM.APIKey, cfg.LLM.Model),
			Recorder:    rec,
			RollingPath: cfg.Paths.RollingCSV,
			RecentPath:  cfg.Paths.RecentCSV,
			OutDir:      cfg.Paths.SummaryDir,
			TopN:        cfg.LLM.TopN,
			Pace:        time.Second,
		}
	} else {
		log.Println("[INFO] no LLM api key, summary step disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *once {
		if err := pipe.Run(); err != nil {
			log.Fatalf("[FATAL] ingestion run: %v", err)
		}
		if gen != nil {
			if err := gen.Run(ctx); err != nil {
				log.Fatalf("[FATAL] summary step: %v", err)
			}
		}
		return
	}

	sched := scheduler.NewScheduler(ctx, pipe, gen)
	if err := sched.Register(cfg.Pipeline.DailyCron); err != nil {
		log.Fatalf("[FATAL] register cron task: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing daily task now")
		go sched.RunNow()
	}

	log.Println("[INFO] ipopulse is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] ipopulse stopped")
}
