package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"octoadvisor/internal/model"
)

func bar(ts int64, close float64) model.Candle {
	return model.Candle{
		Timestamp: ts,
		Open:      close - 1,
		High:      close + 2,
		Low:       close - 2,
		Close:     close,
		Volume:    100,
	}
}

func TestMerge_NonOverlappingPagesEqualSortedConcat(t *testing.T) {
	page1 := []model.Candle{bar(1000, 10), bar(2000, 11)}
	page2 := []model.Candle{bar(3000, 12), bar(4000, 13)}

	// pages arrive out of order
	merged := Merge(nil, append(append([]model.Candle{}, page2...), page1...))

	require.Len(t, merged, 4)
	want := []int64{1000, 2000, 3000, 4000}
	for i, c := range merged {
		assert.Equal(t, want[i], c.Timestamp)
	}
}

func TestMerge_WithItselfIsUnchanged(t *testing.T) {
	series := []model.Candle{bar(1000, 10), bar(2000, 11), bar(3000, 12)}

	merged := Merge(series, series)

	assert.Equal(t, series, merged)
}

func TestMerge_NewValueWinsOnOverlap(t *testing.T) {
	old := []model.Candle{bar(1000, 10), bar(2000, 11)}
	// same bucket refetched with a corrected close
	fetched := []model.Candle{bar(2000, 99), bar(3000, 12)}

	merged := Merge(old, fetched)

	require.Len(t, merged, 3)
	assert.Equal(t, 99.0, merged[1].Close)
}

func TestMerge_TimestampsStrictlyIncreasing(t *testing.T) {
	old := []model.Candle{bar(3000, 1), bar(1000, 2), bar(2000, 3)}
	fetched := []model.Candle{bar(2000, 4), bar(500, 5)}

	merged := Merge(old, fetched)

	for i := 1; i < len(merged); i++ {
		assert.Greater(t, merged[i].Timestamp, merged[i-1].Timestamp)
	}
}

func TestMerge_BothEmpty(t *testing.T) {
	assert.Empty(t, Merge(nil, nil))
}
