package notifier

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_ShortMessageIsSingleChunk(t *testing.T) {
	msg := "kurz und gut"
	parts := Split(msg, 4000)
	require.Len(t, parts, 1)
	assert.Equal(t, msg, parts[0])
}

func TestSplit_ExactLimitIsSingleChunk(t *testing.T) {
	msg := strings.Repeat("a", 100)
	parts := Split(msg, 100)
	require.Len(t, parts, 1)
	assert.Equal(t, msg, parts[0])
}

func TestSplit_PrefersLastNewlineBeforeLimit(t *testing.T) {
	msg := "erste Zeile\nzweite Zeile\ndritte Zeile"
	parts := Split(msg, 20)

	require.Len(t, parts, 3)
	assert.Equal(t, "erste Zeile", parts[0])
	assert.Equal(t, "zweite Zeile", parts[1])
	assert.Equal(t, "dritte Zeile", parts[2])
}

func TestSplit_HardCutWithoutNewline(t *testing.T) {
	msg := strings.Repeat("x", 250)
	parts := Split(msg, 100)

	require.Len(t, parts, 3)
	assert.Equal(t, 100, len(parts[0]))
	assert.Equal(t, 100, len(parts[1]))
	assert.Equal(t, 50, len(parts[2]))
}

func TestSplit_EveryChunkWithinLimit(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("Zeile mit etwas Inhalt, die Länge variiert je nach Index\n")
	}
	for _, limit := range []int{50, 100, 4000} {
		for _, part := range Split(b.String(), limit) {
			assert.LessOrEqual(t, len(part), limit)
		}
	}
}

func TestSplit_ChunksReconstructOriginal(t *testing.T) {
	msg := "Absatz eins.\nAbsatz zwei ist etwas länger.\n\nAbsatz drei.\nNoch eine Zeile."
	parts := Split(msg, 25)

	// joining with the trimmed separators restored must recover the text
	rebuilt := parts[0]
	rest := msg[len(parts[0]):]
	for _, part := range parts[1:] {
		trimmed := strings.TrimLeft(rest, " \t\r\n")
		strip := rest[:len(rest)-len(trimmed)]
		require.True(t, strings.HasPrefix(trimmed, part), "chunk %q out of sequence", part)
		rebuilt += strip + part
		rest = trimmed[len(part):]
	}
	assert.Empty(t, rest)
	assert.Equal(t, msg, rebuilt)
}

func TestSplit_HardCutRespectsRuneBoundaries(t *testing.T) {
	msg := strings.Repeat("ä", 100) // 2 bytes per rune
	parts := Split(msg, 33)

	var rebuilt strings.Builder
	for _, part := range parts {
		assert.LessOrEqual(t, len(part), 33)
		assert.True(t, utf8.ValidString(part), "chunk cut inside a rune")
		rebuilt.WriteString(part)
	}
	// no whitespace involved, so plain concatenation must be lossless
	assert.Equal(t, msg, rebuilt.String())
}
