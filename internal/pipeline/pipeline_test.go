package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"octoadvisor/internal/analysis"
	"octoadvisor/internal/exchange"
	"octoadvisor/internal/history"
	"octoadvisor/internal/model"
	"octoadvisor/internal/recorder"
	"octoadvisor/internal/store"
)

type fakeAnalyzer struct {
	gotTemplate  string
	gotPortfolio string
	result       string
	err          error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, template, formatted string) (string, error) {
	f.gotTemplate = template
	f.gotPortfolio = formatted
	return f.result, f.err
}

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) Send(text string) error {
	f.sent = append(f.sent, text)
	return f.err
}

type captureRecorder struct {
	runs  []recorder.RunRecord
	syncs []recorder.SyncRecord
}

func (c *captureRecorder) RecordRun(r *recorder.RunRecord) error   { c.runs = append(c.runs, *r); return nil }
func (c *captureRecorder) RecordSync(r *recorder.SyncRecord) error { c.syncs = append(c.syncs, *r); return nil }
func (c *captureRecorder) Close() error                            { return nil }

func testPortfolio() *model.Portfolio {
	return &model.Portfolio{
		Timestamp: time.Now().UTC(),
		Exchange:  "kraken",
		Balances: map[string]decimal.Decimal{
			"XXBT": decimal.RequireFromString("0.5"),
			"ZEUR": decimal.RequireFromString("100"),
		},
		TradeBalance: model.TradeBalance{
			Equity:     decimal.RequireFromString("20100"),
			FreeMargin: decimal.RequireFromString("100"),
		},
	}
}

func newTestPipeline(t *testing.T, src *exchange.MockSource) (*Pipeline, *fakeAnalyzer, *fakeSender, *captureRecorder) {
	t.Helper()
	dataDir := t.TempDir()
	st, err := store.NewStore(filepath.Join(dataDir, "ohlcv"))
	require.NoError(t, err)

	promptFile := filepath.Join(dataDir, "prompt.txt")
	require.NoError(t, os.WriteFile(promptFile, []byte("Analysiere:\n{portfolio_data}"), 0o644))

	an := &fakeAnalyzer{result: "Sieht solide aus."}
	sender := &fakeSender{}
	rec := &captureRecorder{}

	updater := history.NewUpdater(src, st, 720, time.Millisecond, time.Hour)
	p := &Pipeline{
		Exchange:   "kraken",
		Quote:      "ZEUR",
		Portfolio:  src,
		Updater:    updater,
		Formatter:  analysis.Formatter{MinAmount: decimal.RequireFromString("0.0001"), Quote: "ZEUR"},
		Analyzer:   an,
		Sender:     sender,
		Recorder:   rec,
		DataDir:    dataDir,
		PromptFile: promptFile,
		Pairs:      []string{"XETHZEUR"},
		Timeframes: []model.Timeframe{model.TF1h},
		MinAmount:  decimal.RequireFromString("0.0001"),
	}
	return p, an, sender, rec
}

func TestRun_FullWorkflow(t *testing.T) {
	src := &exchange.MockSource{
		Portfolio: testPortfolio(),
		Pages: [][]model.Candle{
			{{Timestamp: time.Now().Add(-time.Hour).UnixMilli(), Open: 1, High: 2, Low: 1, Close: 2, Volume: 5}},
		},
	}
	p, an, sender, rec := newTestPipeline(t, src)

	require.NoError(t, p.Run(context.Background()))

	// portfolio snapshot persisted
	matches, err := filepath.Glob(filepath.Join(p.DataDir, "portfolio", "kraken", "portfolio_*.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	// analysis persisted and delivered
	matches, err = filepath.Glob(filepath.Join(p.DataDir, "llm", "analysis_*.txt"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	content, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, "Sieht solide aus.", string(content))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Sieht solide aus.", sender.sent[0])

	// analyzer got the template and the formatted portfolio
	assert.Contains(t, an.gotTemplate, "{portfolio_data}")
	assert.Contains(t, an.gotPortfolio, "Asset: XXBT")

	// run recorded as delivered
	require.Len(t, rec.runs, 1)
	assert.True(t, rec.runs[0].Delivered)
	assert.Equal(t, 1, rec.runs[0].AssetCount)
	assert.Equal(t, 20100.0, rec.runs[0].TotalValueEUR)

	// both the configured and the held-asset pair were synced
	require.Len(t, rec.syncs, 2)
	pairs := []string{rec.syncs[0].Pair, rec.syncs[1].Pair}
	assert.ElementsMatch(t, []string{"XETHZEUR", "XXBTZEUR"}, pairs)
}

func TestRun_PortfolioFailureAbortsAndIsRecorded(t *testing.T) {
	src := &exchange.MockSource{Err: errors.New("kraken down")}
	p, _, sender, rec := newTestPipeline(t, src)

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kraken down")

	assert.Empty(t, sender.sent)
	require.Len(t, rec.runs, 1)
	assert.False(t, rec.runs[0].Delivered)
	assert.Contains(t, rec.runs[0].ErrorMsg, "kraken down")
}

func TestRun_DeliveryFailureDoesNotAbort(t *testing.T) {
	src := &exchange.MockSource{Portfolio: testPortfolio()}
	p, _, sender, rec := newTestPipeline(t, src)
	p.SkipSync = true
	sender.err = errors.New("telegram unreachable")

	require.NoError(t, p.Run(context.Background()))

	require.Len(t, rec.runs, 1)
	assert.False(t, rec.runs[0].Delivered)
	assert.Empty(t, rec.runs[0].ErrorMsg)
}

func TestRun_AnalysisFailureAborts(t *testing.T) {
	src := &exchange.MockSource{Portfolio: testPortfolio()}
	p, an, sender, rec := newTestPipeline(t, src)
	p.SkipSync = true
	an.err = analysis.ErrNoChoices

	err := p.Run(context.Background())
	require.ErrorIs(t, err, analysis.ErrNoChoices)
	assert.Empty(t, sender.sent)
	require.Len(t, rec.runs, 1)
	assert.Contains(t, rec.runs[0].ErrorMsg, "no choices")
}

func TestRun_MissingPromptFileFails(t *testing.T) {
	src := &exchange.MockSource{Portfolio: testPortfolio()}
	p, _, _, _ := newTestPipeline(t, src)
	p.PromptFile = filepath.Join(p.DataDir, "nope.txt")

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt")
}
