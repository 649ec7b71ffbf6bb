// Command ohlcv is an interactive console tool for managing the local
// candle files: list, update, download, inspect, export and delete.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"octoadvisor/internal/config"
	"octoadvisor/internal/exchange"
	"octoadvisor/internal/history"
	"octoadvisor/internal/model"
	"octoadvisor/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags)

	cfgPath := flag.String("config", "", "path to config.yaml (default configs/config.yaml)")
	flag.Parse()

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

	// Candle downloads only touch public endpoints, no credentials needed.
	kraken, err := exchange.NewKraken(cfg.Exchange.BaseURL, "", "",
		cfg.Exchange.QuoteCurrency, time.Duration(cfg.Exchange.RateDelaySec*float64(time.Second)))
	if err != nil {
		log.Fatalf("[FATAL] init kraken client: %v", err)
	}
	st, err := store.NewStore(filepath.Join(cfg.Storage.DataDir, "ohlcv"))
	if err != nil {
		log.Fatalf("[FATAL] init candle store: %v", err)
	}
	updater := history.NewUpdater(
		kraken, st,
		cfg.History.PageLimit,
		time.Duration(cfg.History.RetryDelaySec*float64(time.Second)),
		time.Duration(cfg.History.LookbackDays)*24*time.Hour,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tool := &tool{
		exchange: cfg.Exchange.Name,
		store:    st,
		updater:  updater,
		in:       bufio.NewScanner(os.Stdin),
	}
	tool.run(ctx)
}

type tool struct {
	exchange string
	store    *store.Store
	updater  *history.Updater
	in       *bufio.Scanner
}

func (t *tool) run(ctx context.Context) {
	for {
		fmt.Println()
		fmt.Println("=== OHLCV-Verwaltung ===")
		fmt.Println(" 1) Serien auflisten")
		fmt.Println(" 2) Serie aktualisieren")
		fmt.Println(" 3) Alle Serien aktualisieren")
		fmt.Println(" 4) Neue Serie herunterladen")
		fmt.Println(" 5) Letzte Zeilen anzeigen")
		fmt.Println(" 6) Als CSV exportieren")
		fmt.Println(" 7) Serie löschen")
		fmt.Println(" 0) Beenden")

		choice := t.prompt("Auswahl")
		if ctx.Err() != nil {
			return
		}
		switch choice {
		case "1":
			t.list()
		case "2":
			t.updateOne(ctx)
		case "3":
			t.updateAll(ctx)
		case "4":
			t.download(ctx)
		case "5":
			t.tail()
		case "6":
			t.export()
		case "7":
			t.delete()
		case "0", "q", "":
			fmt.Println("Tschüss.")
			return
		default:
			fmt.Println("Unbekannte Auswahl.")
		}
	}
}

func (t *tool) prompt(label string) string {
	fmt.Printf("%s> ", label)
	if !t.in.Scan() {
		return ""
	}
	return strings.TrimSpace(t.in.Text())
}

// pick lists all series and lets the user choose one by number.
func (t *tool) pick() (model.SeriesKey, bool) {
	infos := t.listInfos()
	if len(infos) == 0 {
		return model.SeriesKey{}, false
	}
	choice := t.prompt("Nummer")
	idx, err := strconv.Atoi(choice)
	if err != nil || idx < 1 || idx > len(infos) {
		fmt.Println("Ungültige Nummer.")
		return model.SeriesKey{}, false
	}
	return infos[idx-1].Key, true
}

func (t *tool) listInfos() []store.SeriesInfo {
	infos, err := t.store.List()
	if err != nil {
		fmt.Printf("Fehler: %v\n", err)
		return nil
	}
	if len(infos) == 0 {
		fmt.Println("Keine Serien vorhanden.")
		return nil
	}
	for i, info := range infos {
		first, last := "-", "-"
		if info.Rows > 0 {
			first = time.UnixMilli(info.FirstMS).UTC().Format("2006-01-02 15:04")
			last = time.UnixMilli(info.LastMS).UTC().Format("2006-01-02 15:04")
		}
		fmt.Printf(" %2d) %-24s %6d Zeilen  %s .. %s\n", i+1, info.Key, info.Rows, first, last)
	}
	return infos
}

func (t *tool) list() {
	t.listInfos()
}

func (t *tool) updateOne(ctx context.Context) {
	key, ok := t.pick()
	if !ok {
		return
	}
	t.sync(ctx, key, 0)
}

func (t *tool) updateAll(ctx context.Context) {
	infos, err := t.store.List()
	if err != nil {
		fmt.Printf("Fehler: %v\n", err)
		return
	}
	for _, info := range infos {
		// one failed series must not stop the rest
		t.sync(ctx, info.Key, 0)
		if ctx.Err() != nil {
			return
		}
	}
}

func (t *tool) download(ctx context.Context) {
	pair := strings.ToUpper(t.prompt("Paar (z.B. XXBTZEUR)"))
	if pair == "" {
		return
	}
	tf, err := model.ParseTimeframe(t.prompt("Timeframe (1m 5m 15m 30m 1h 4h 1d 1w)"))
	if err != nil {
		fmt.Printf("Fehler: %v\n", err)
		return
	}
	var startMS int64
	if s := t.prompt("Startdatum YYYY-MM-DD (leer = Standard-Rückblick)"); s != "" {
		start, err := time.Parse("2006-01-02", s)
		if err != nil {
			fmt.Printf("Ungültiges Datum: %v\n", err)
			return
		}
		startMS = start.UnixMilli()
	}
	t.sync(ctx, model.SeriesKey{Exchange: t.exchange, Pair: pair, Timeframe: tf}, startMS)
}

func (t *tool) sync(ctx context.Context, key model.SeriesKey, startMS int64) {
	fmt.Printf("Aktualisiere %s ...\n", key)
	res, err := t.updater.Sync(ctx, key, startMS)
	if err != nil {
		fmt.Printf("Fehler bei %s: %v\n", key, err)
		return
	}
	fmt.Printf("Fertig: %d -> %d Zeilen (%d geladen, %d Seiten)\n",
		res.RowsBefore, res.RowsAfter, res.RowsFetched, res.Pages)
}

func (t *tool) tail() {
	key, ok := t.pick()
	if !ok {
		return
	}
	candles, err := t.store.Load(key)
	if err != nil {
		fmt.Printf("Fehler: %v\n", err)
		return
	}
	start := len(candles) - 10
	if start < 0 {
		start = 0
	}
	fmt.Println("Zeit                  Open        High        Low         Close       Volumen")
	for _, c := range candles[start:] {
		fmt.Printf("%s  %-10.4f  %-10.4f  %-10.4f  %-10.4f  %.4f\n",
			c.Time().Format("2006-01-02 15:04"), c.Open, c.High, c.Low, c.Close, c.Volume)
	}
}

func (t *tool) export() {
	key, ok := t.pick()
	if !ok {
		return
	}
	path, err := t.store.ExportCSV(key)
	if err != nil {
		fmt.Printf("Fehler: %v\n", err)
		return
	}
	fmt.Printf("Exportiert nach %s\n", path)
}

func (t *tool) delete() {
	key, ok := t.pick()
	if !ok {
		return
	}
	if t.prompt(fmt.Sprintf("%s wirklich löschen? (j/n)", key)) != "j" {
		fmt.Println("Abgebrochen.")
		return
	}
	if err := t.store.Delete(key); err != nil {
		fmt.Printf("Fehler: %v\n", err)
		return
	}
	fmt.Println("Gelöscht.")
}
