package recorder

import "time"

// RunRecord captures one advisor pipeline run.
type RunRecord struct {
	RunID         string
	TotalValueEUR float64
	AssetCount    int
	AnalysisChars int
	Delivered     bool
	ErrorMsg      string
}

// SyncRecord captures one candle series sync.
type SyncRecord struct {
	RunID      string
	Pair       string
	Timeframe  string
	RowsBefore int
	RowsAdded  int
	RowsAfter  int
	Duration   time.Duration
}

// Recorder persists run history for later inspection.
type Recorder interface {
	RecordRun(rec *RunRecord) error
	RecordSync(rec *SyncRecord) error
	Close() error
}
