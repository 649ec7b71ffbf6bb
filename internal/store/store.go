// Package store persists candle series as one columnar JSON file per
// (exchange, pair, timeframe), with an optional CSV mirror for external tools.
package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"octoadvisor/internal/model"
)

// Store reads and writes candle series below a base directory.
type Store struct {
	Dir string
}

// NewStore creates the base directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{Dir: dir}, nil
}

// columnarSeries is the on-disk layout: one array per column, row i spread
// across all arrays.
type columnarSeries struct {
	Timestamp []int64   `json:"timestamp"`
	Open      []float64 `json:"open"`
	High      []float64 `json:"high"`
	Low       []float64 `json:"low"`
	Close     []float64 `json:"close"`
	Volume    []float64 `json:"volume"`
}

func (s *Store) path(key model.SeriesKey) string {
	pair := strings.ReplaceAll(key.Pair, "/", "_")
	name := fmt.Sprintf("%s_%s_%s.json", key.Exchange, pair, key.Timeframe)
	return filepath.Join(s.Dir, name)
}

// Load reads a series from disk. A missing file yields an empty series.
func (s *Store) Load(key model.SeriesKey) ([]model.Candle, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read series %s: %w", key, err)
	}
	var cols columnarSeries
	if err := json.Unmarshal(data, &cols); err != nil {
		return nil, fmt.Errorf("parse series %s: %w", key, err)
	}
	n := len(cols.Timestamp)
	if len(cols.Open) != n || len(cols.High) != n || len(cols.Low) != n ||
		len(cols.Close) != n || len(cols.Volume) != n {
		return nil, fmt.Errorf("series %s: column lengths differ", key)
	}
	candles := make([]model.Candle, n)
	for i := 0; i < n; i++ {
		candles[i] = model.Candle{
			Timestamp: cols.Timestamp[i],
			Open:      cols.Open[i],
			High:      cols.High[i],
			Low:       cols.Low[i],
			Close:     cols.Close[i],
			Volume:    cols.Volume[i],
		}
	}
	return candles, nil
}

// Save rewrites the series file in full.
func (s *Store) Save(key model.SeriesKey, candles []model.Candle) error {
	cols := columnarSeries{
		Timestamp: make([]int64, len(candles)),
		Open:      make([]float64, len(candles)),
		High:      make([]float64, len(candles)),
		Low:       make([]float64, len(candles)),
		Close:     make([]float64, len(candles)),
		Volume:    make([]float64, len(candles)),
	}
	for i, c := range candles {
		cols.Timestamp[i] = c.Timestamp
		cols.Open[i] = c.Open
		cols.High[i] = c.High
		cols.Low[i] = c.Low
		cols.Close[i] = c.Close
		cols.Volume[i] = c.Volume
	}
	data, err := json.Marshal(cols)
	if err != nil {
		return fmt.Errorf("encode series %s: %w", key, err)
	}
	if err := os.WriteFile(s.path(key), data, 0o644); err != nil {
		return fmt.Errorf("write series %s: %w", key, err)
	}
	return nil
}

// Delete removes a series file. Deleting a missing series is not an error.
func (s *Store) Delete(key model.SeriesKey) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete series %s: %w", key, err)
	}
	return nil
}

// SeriesInfo describes one stored series for listings.
type SeriesInfo struct {
	Key     model.SeriesKey
	Rows    int
	FirstMS int64
	LastMS  int64
}

// List scans the store directory and summarizes every series found.
func (s *Store) List() ([]SeriesInfo, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("list store dir: %w", err)
	}
	var infos []SeriesInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		key, ok := parseFilename(e.Name())
		if !ok {
			continue
		}
		candles, err := s.Load(key)
		if err != nil {
			return nil, err
		}
		info := SeriesInfo{Key: key, Rows: len(candles)}
		if len(candles) > 0 {
			info.FirstMS = candles[0].Timestamp
			info.LastMS = candles[len(candles)-1].Timestamp
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func parseFilename(name string) (model.SeriesKey, bool) {
	base := strings.TrimSuffix(name, ".json")
	parts := strings.Split(base, "_")
	if len(parts) < 3 {
		return model.SeriesKey{}, false
	}
	tf, err := model.ParseTimeframe(parts[len(parts)-1])
	if err != nil {
		return model.SeriesKey{}, false
	}
	return model.SeriesKey{
		Exchange:  parts[0],
		Pair:      strings.Join(parts[1:len(parts)-1], "_"),
		Timeframe: tf,
	}, true
}

// ExportCSV mirrors a series to a comma-separated file with a header row,
// columns [timestamp, open, high, low, close, volume]. It returns the path
// written.
func (s *Store) ExportCSV(key model.SeriesKey) (string, error) {
	candles, err := s.Load(key)
	if err != nil {
		return "", err
	}
	path := strings.TrimSuffix(s.path(key), ".json") + ".csv"
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create csv %s: %w", key, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "open", "high", "low", "close", "volume"}); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, c := range candles {
		row := []string{
			strconv.FormatInt(c.Timestamp, 10),
			formatFloat(c.Open),
			formatFloat(c.High),
			formatFloat(c.Low),
			formatFloat(c.Close),
			formatFloat(c.Volume),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv %s: %w", key, err)
	}
	return path, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
