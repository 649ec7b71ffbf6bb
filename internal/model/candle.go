package model

import (
	"fmt"
	"time"
)

// Candle is a single OHLCV bar. Timestamp is the bucket open time in Unix
// milliseconds and is unique within one (exchange, pair, timeframe) series.
type Candle struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Time returns the bucket open time.
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.Timestamp).UTC()
}

// SeriesKey identifies one locally stored candle series.
type SeriesKey struct {
	Exchange  string
	Pair      string
	Timeframe Timeframe
}

func (k SeriesKey) String() string {
	return fmt.Sprintf("%s %s %s", k.Exchange, k.Pair, k.Timeframe)
}
