package history

import (
	"sort"

	"octoadvisor/internal/model"
)

// Merge combines an existing series with freshly fetched rows. On duplicate
// timestamps the fetched value wins (later pages override earlier ones and
// the stored row). The result is sorted ascending with strictly increasing
// timestamps.
func Merge(existing, fetched []model.Candle) []model.Candle {
	byTime := make(map[int64]model.Candle, len(existing)+len(fetched))
	for _, c := range existing {
		byTime[c.Timestamp] = c
	}
	for _, c := range fetched {
		byTime[c.Timestamp] = c
	}
	merged := make([]model.Candle, 0, len(byTime))
	for _, c := range byTime {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Timestamp < merged[j].Timestamp })
	return merged
}
