// Package pipeline runs the advisor workflow: fetch the portfolio, update
// local candle history, analyze with the LLM and deliver via Telegram.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"octoadvisor/internal/analysis"
	"octoadvisor/internal/exchange"
	"octoadvisor/internal/history"
	"octoadvisor/internal/model"
	"octoadvisor/internal/recorder"
)

// Analyzer produces a text completion for a formatted portfolio.
type Analyzer interface {
	Analyze(ctx context.Context, promptTemplate, formattedPortfolio string) (string, error)
}

// Sender delivers one (possibly chunked) message.
type Sender interface {
	Send(text string) error
}

// Pipeline wires all collaborators of one advisor run.
type Pipeline struct {
	Exchange  string
	Quote     string
	Portfolio exchange.PortfolioSource
	Updater   *history.Updater
	Formatter analysis.Formatter
	Analyzer  Analyzer
	Sender    Sender
	Recorder  recorder.Recorder

	DataDir    string
	PromptFile string
	Pairs      []string // synced on every run, in addition to held assets
	Timeframes []model.Timeframe
	MinAmount  decimal.Decimal
	SkipSync   bool
}

// Run executes one full advisor pass. A portfolio-fetch or analysis failure
// aborts the run; a delivery failure is recorded but does not.
func (p *Pipeline) Run(ctx context.Context) error {
	runID := uuid.NewString()
	stamp := time.Now().Format("20060102_150405")
	log.Printf("[INFO] advisor run %s starting", runID)

	promptTemplate, err := os.ReadFile(p.PromptFile)
	if err != nil {
		return fmt.Errorf("read prompt file: %w", err)
	}
	if err := p.ensureDirs(); err != nil {
		return err
	}

	portfolio, err := p.Portfolio.FetchPortfolio(ctx)
	if err != nil {
		p.recordRun(&recorder.RunRecord{RunID: runID, ErrorMsg: err.Error()})
		return fmt.Errorf("fetch portfolio: %w", err)
	}
	log.Printf("[INFO] portfolio fetched: %d balances, equity %s %s",
		len(portfolio.Balances), portfolio.TradeBalance.Equity.StringFixed(2), p.Quote)

	portfolioPath := filepath.Join(p.DataDir, "portfolio", p.Exchange,
		fmt.Sprintf("portfolio_%s.json", stamp))
	if err := savePortfolio(portfolioPath, portfolio); err != nil {
		p.recordRun(&recorder.RunRecord{RunID: runID, ErrorMsg: err.Error()})
		return err
	}
	log.Printf("[INFO] portfolio saved to %s", portfolioPath)

	if !p.SkipSync {
		p.syncCandles(ctx, runID, p.syncPairs(portfolio))
	}

	formatted := p.Formatter.Format(portfolio)
	result, err := p.Analyzer.Analyze(ctx, string(promptTemplate), formatted)
	if err != nil {
		p.recordRun(&recorder.RunRecord{
			RunID:         runID,
			TotalValueEUR: portfolio.TradeBalance.Equity.InexactFloat64(),
			AssetCount:    len(portfolio.HeldAssets(p.MinAmount)),
			ErrorMsg:      err.Error(),
		})
		return fmt.Errorf("analyze portfolio: %w", err)
	}

	analysisPath := filepath.Join(p.DataDir, "llm", fmt.Sprintf("analysis_%s.txt", stamp))
	if err := analysis.SaveAnalysis(analysisPath, result); err != nil {
		log.Printf("[ERROR] %v", err)
	} else {
		log.Printf("[INFO] analysis saved to %s", analysisPath)
	}

	delivered := true
	if err := p.Sender.Send(result); err != nil {
		log.Printf("[ERROR] deliver analysis: %v", err)
		delivered = false
	} else {
		log.Println("[INFO] analysis delivered via Telegram")
	}

	p.recordRun(&recorder.RunRecord{
		RunID:         runID,
		TotalValueEUR: portfolio.TradeBalance.Equity.InexactFloat64(),
		AssetCount:    len(portfolio.HeldAssets(p.MinAmount)),
		AnalysisChars: len(result),
		Delivered:     delivered,
	})
	log.Printf("[INFO] advisor run %s finished", runID)
	return nil
}

// SyncAll updates every configured pair without touching the portfolio or
// the LLM. Used by the daemon's sync schedule and the console tool.
func (p *Pipeline) SyncAll(ctx context.Context) {
	p.syncCandles(ctx, "", p.Pairs)
}

// syncCandles walks pair x timeframe; a failure on one series is logged and
// skipped so the remaining series still update.
func (p *Pipeline) syncCandles(ctx context.Context, runID string, pairs []string) {
	for _, pair := range pairs {
		for _, tf := range p.Timeframes {
			key := model.SeriesKey{Exchange: p.Exchange, Pair: pair, Timeframe: tf}
			started := time.Now()
			res, err := p.Updater.Sync(ctx, key, 0)
			if err != nil {
				log.Printf("[ERROR] sync %s: %v", key, err)
				continue
			}
			log.Printf("[INFO] synced %s: %d -> %d rows (%d fetched)",
				key, res.RowsBefore, res.RowsAfter, res.RowsFetched)
			if err := p.Recorder.RecordSync(&recorder.SyncRecord{
				RunID:      runID,
				Pair:       pair,
				Timeframe:  string(tf),
				RowsBefore: res.RowsBefore,
				RowsAdded:  res.RowsAfter - res.RowsBefore,
				RowsAfter:  res.RowsAfter,
				Duration:   time.Since(started),
			}); err != nil {
				log.Printf("[ERROR] record sync %s: %v", key, err)
			}
		}
	}
}

// syncPairs merges the configured pairs with pairs derived from held assets.
func (p *Pipeline) syncPairs(portfolio *model.Portfolio) []string {
	seen := make(map[string]bool)
	var pairs []string
	add := func(pair string) {
		if pair != "" && !seen[pair] {
			seen[pair] = true
			pairs = append(pairs, pair)
		}
	}
	for _, pair := range p.Pairs {
		add(pair)
	}
	for _, asset := range portfolio.HeldAssets(p.MinAmount) {
		add(asset + p.Quote)
	}
	sort.Strings(pairs)
	return pairs
}

func (p *Pipeline) ensureDirs() error {
	for _, dir := range []string{
		filepath.Join(p.DataDir, "portfolio", p.Exchange),
		filepath.Join(p.DataDir, "llm"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return nil
}

func (p *Pipeline) recordRun(rec *recorder.RunRecord) {
	if err := p.Recorder.RecordRun(rec); err != nil {
		log.Printf("[ERROR] record run: %v", err)
	}
}

func savePortfolio(path string, portfolio *model.Portfolio) error {
	data, err := json.MarshalIndent(portfolio, "", "  ")
	if err != nil {
		return fmt.Errorf("encode portfolio: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save portfolio: %w", err)
	}
	return nil
}
