package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"octoadvisor/internal/analysis"
	"octoadvisor/internal/config"
	"octoadvisor/internal/exchange"
	"octoadvisor/internal/history"
	"octoadvisor/internal/model"
	"octoadvisor/internal/notifier"
	"octoadvisor/internal/pipeline"
	"octoadvisor/internal/recorder"
	"octoadvisor/internal/scheduler"
	"octoadvisor/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] OctoAdvisor starting...")

	var (
		cfgPath  = flag.String("config", "", "path to config.yaml (default configs/config.yaml)")
		daemon   = flag.Bool("daemon", false, "keep running and execute on the configured cron schedules")
		skipSync = flag.Bool("skip-sync", false, "skip the candle history update")
	)
	flag.Parse()

	// .env is optional; a missing file is fine
	_ = godotenv.Load()

	path := *cfgPath
	if path == "" {
		path = "configs/config.yaml"
		if v := os.Getenv("CONFIG_PATH"); v != "" {
			path = v
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}
	creds, err := config.LoadCredentials()
	if err != nil {
		log.Fatalf("[FATAL] %v", err)
	}

	// Init exchange client
	kraken, err := exchange.NewKraken(
		cfg.Exchange.BaseURL,
		creds.KrakenAPIKey,
		creds.KrakenAPISecret,
		cfg.Exchange.QuoteCurrency,
		secondsDuration(cfg.Exchange.RateDelaySec),
	)
	if err != nil {
		log.Fatalf("[FATAL] init kraken client: %v", err)
	}
	log.Printf("[INFO] exchange: %s", kraken.Name())

	// Init candle store and updater
	st, err := store.NewStore(filepath.Join(cfg.Storage.DataDir, "ohlcv"))
	if err != nil {
		log.Fatalf("[FATAL] init candle store: %v", err)
	}
	updater := history.NewUpdater(
		kraken, st,
		cfg.History.PageLimit,
		secondsDuration(cfg.History.RetryDelaySec),
		time.Duration(cfg.History.LookbackDays)*24*time.Hour,
	)

	// Init LLM client
	llm := analysis.NewClient(
		cfg.OpenAI.BaseURL,
		creds.OpenAIAPIKey,
		cfg.OpenAI.Model,
		cfg.OpenAI.Temperature,
		cfg.OpenAI.MaxTokens,
		time.Duration(cfg.OpenAI.TimeoutSec)*time.Second,
	)
	log.Printf("[INFO] llm model: %s", cfg.OpenAI.Model)

	// Init Telegram notifier
	tn := notifier.NewTelegram(
		creds.TelegramBotToken,
		creds.TelegramChatID,
		cfg.Telegram.MaxMessageLength,
		secondsDuration(cfg.Telegram.PartPauseSec),
	)

	// Init recorder
	var rec recorder.Recorder
	if cfg.Storage.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Storage.SQLitePath)
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

	minAmount := decimal.NewFromFloat(cfg.Exchange.MinAssetAmount)
	kraken.MinAmount = minAmount
	timeframes := make([]model.Timeframe, 0, len(cfg.Exchange.Timeframes))
	for _, s := range cfg.Exchange.Timeframes {
		tf, err := model.ParseTimeframe(s)
		if err != nil {
			log.Fatalf("[FATAL] %v", err)
		}
		timeframes = append(timeframes, tf)
	}

	p := &pipeline.Pipeline{
		Exchange:   cfg.Exchange.Name,
		Quote:      cfg.Exchange.QuoteCurrency,
		Portfolio:  kraken,
		Updater:    updater,
		Formatter:  analysis.Formatter{MinAmount: minAmount, Quote: cfg.Exchange.QuoteCurrency},
		Analyzer:   llm,
		Sender:     tn,
		Recorder:   rec,
		DataDir:    cfg.Storage.DataDir,
		PromptFile: cfg.PromptFile,
		Pairs:      cfg.Exchange.Pairs,
		Timeframes: timeframes,
		MinAmount:  minAmount,
		SkipSync:   *skipSync,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !*daemon {
		// Cronjob deployment: one pass, then exit
		if err := p.Run(ctx); err != nil {
			log.Printf("[ERROR] %v", err)
			os.Exit(1)
		}
		return
	}

	sched := scheduler.NewScheduler(ctx, p, tn)
	if err := sched.RegisterAll(cfg.Schedule.AdviseCron, cfg.Schedule.SyncCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing advisor pass now")
		go sched.RunAdviseNow()
	}

	log.Println("[INFO] OctoAdvisor is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] OctoAdvisor stopped")
}

func secondsDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
