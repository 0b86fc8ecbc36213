package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) []string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("w%d", i)
	}
	return w
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Hard hats required on site", CleanText("  Hard\x00hats\n\nrequired \t on   site \n"))
	assert.Equal(t, "", CleanText(" \n\t "))
}

func TestChunkText_Empty(t *testing.T) {
	assert.Empty(t, ChunkText("", 10, 2))
	assert.Empty(t, ChunkText("   \n", 10, 2))
}

func TestChunkText_ShortInputIsOneChunk(t *testing.T) {
	text := strings.Join(words(7), " ")
	chunks := ChunkText(text, 10, 3)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])

	exact := strings.Join(words(10), " ")
	assert.Len(t, ChunkText(exact, 10, 3), 1)
}

func TestChunkText_CountAndReconstruction(t *testing.T) {
	cases := []struct{ w, c, o int }{
		{11, 10, 3},
		{25, 10, 3},
		{100, 8, 0},
		{101, 8, 7},
		{2000, 800, 120},
		{57, 5, 1},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("W%d_C%d_O%d", tc.w, tc.c, tc.o), func(t *testing.T) {
			src := words(tc.w)
			chunks := ChunkText(strings.Join(src, " "), tc.c, tc.o)

			step := tc.c - tc.o
			want := (tc.w - tc.o + step - 1) / step
			assert.Len(t, chunks, want)

			var rebuilt []string
			for i, ch := range chunks {
				f := strings.Fields(ch)
				require.NotEmpty(t, f)
				assert.LessOrEqual(t, len(f), tc.c)
				if i == 0 {
					rebuilt = append(rebuilt, f...)
					continue
				}
				rebuilt = append(rebuilt, f[tc.o:]...)
			}
			assert.Equal(t, src, rebuilt)
		})
	}
}

func TestChunkText_OverlapNotBelowSizeStillTerminates(t *testing.T) {
	chunks := ChunkText(strings.Join(words(6), " "), 3, 5)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "w3 w4 w5", chunks[len(chunks)-1])
	assert.Len(t, chunks, 4)
}

func TestChunkText_Defaults(t *testing.T) {
	chunks := ChunkText(strings.Join(words(900), " "), 0, -1)
	require.Len(t, chunks, 2)
	assert.Len(t, strings.Fields(chunks[0]), DefaultChunkSize)
	assert.True(t, strings.HasPrefix(chunks[1], fmt.Sprintf("w%d ", DefaultChunkSize-DefaultChunkOverlap)))
}
