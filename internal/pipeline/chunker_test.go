package pipeline

import (
	"strings"
	"testing"
	"unicode/utf8"

	"zhiwen-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChunker(t *testing.T, size, overlap int) *Chunker {
	t.Helper()
	c, err := NewChunker(config.ChunkingConfig{ChunkSize: size, ChunkOverlap: overlap})
	require.NoError(t, err)
	return c
}

func TestNewChunkerValidation(t *testing.T) {
	_, err := NewChunker(config.ChunkingConfig{ChunkSize: 0, ChunkOverlap: 0})
	assert.Error(t, err)

	_, err = NewChunker(config.ChunkingConfig{ChunkSize: 100, ChunkOverlap: 100})
	assert.Error(t, err)

	_, err = NewChunker(config.ChunkingConfig{ChunkSize: 100, ChunkOverlap: 150})
	assert.Error(t, err)
}

func TestSplitShortText(t *testing.T) {
	c := newTestChunker(t, 100, 10)
	text := "A short paragraph that fits in one chunk."

	chunks := c.Split(text, text)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
	require.NotNil(t, chunks[0].StartLine)
	require.NotNil(t, chunks[0].EndLine)
	assert.Equal(t, 1, *chunks[0].StartLine)
	assert.Equal(t, 1, *chunks[0].EndLine)
	assert.Equal(t, text, chunks[0].OriginalText)
}

func TestSplitEmptyText(t *testing.T) {
	c := newTestChunker(t, 100, 10)
	assert.Empty(t, c.Split("", ""))
	assert.Empty(t, c.Split("   \n\n  ", "   \n\n  "))
}

func TestSplitThreeParagraphsWithOverlap(t *testing.T) {
	para1 := "Alpha beta gamma delta epsilon zeta eta theta."
	para2 := "Iota kappa lambda mu nu xi omicron pi rho sigma."
	para3 := "Tau upsilon phi chi psi omega alef bet gimel dalet."
	original := para1 + "\n\n" + para2 + "\n\n" + para3

	c := newTestChunker(t, 50, 10)
	chunks := c.Split(original, original)

	require.GreaterOrEqual(t, len(chunks), 3)
	for i, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch.Text), 60, "chunk %d 超出 chunkSize+chunkOverlap", i)
		require.NotNil(t, ch.StartLine, "chunk %d 缺少起始行号", i)
		require.NotNil(t, ch.EndLine, "chunk %d 缺少结束行号", i)
		assert.LessOrEqual(t, *ch.StartLine, *ch.EndLine)
	}

	// 首个分块恰好是第一段，落在第 1 行
	assert.Equal(t, para1, chunks[0].Text)
	assert.Equal(t, 1, *chunks[0].StartLine)
	assert.Equal(t, 1, *chunks[0].EndLine)
	assert.Equal(t, para1, chunks[0].OriginalText)

	// 第二个分块以前一分块的尾部开头（重叠），行区间因此从第 1 行跨到第 3 行
	assert.True(t, strings.HasPrefix(chunks[1].Text, "theta."), "chunk 1 应以重叠尾部开头: %q", chunks[1].Text)
	assert.True(t, strings.HasSuffix(chunks[1].Text, para2))
	assert.Equal(t, 1, *chunks[1].StartLine)
	assert.Equal(t, 3, *chunks[1].EndLine)

	// 全部内容都被覆盖
	joined := strings.Join(chunkTexts(chunks), " ")
	for _, word := range strings.Fields(original) {
		assert.Contains(t, joined, word)
	}
	assert.Contains(t, chunks[len(chunks)-1].Text, "dalet.")
}

func TestSplitHardSplitsOversizedWord(t *testing.T) {
	word := strings.Repeat("x", 120)
	c := newTestChunker(t, 50, 0)

	chunks := c.Split(word, word)
	require.Len(t, chunks, 3)
	assert.Equal(t, 50, utf8.RuneCountInString(chunks[0].Text))
	assert.Equal(t, 50, utf8.RuneCountInString(chunks[1].Text))
	assert.Equal(t, 20, utf8.RuneCountInString(chunks[2].Text))
}

func TestSplitLineMappingFailureDegradesSilently(t *testing.T) {
	c := newTestChunker(t, 100, 10)
	// 归一化文本与原文完全无关，探针匹配失败
	chunks := c.Split("completely different text", "nothing in common here")
	require.Len(t, chunks, 1)
	assert.Nil(t, chunks[0].StartLine)
	assert.Nil(t, chunks[0].EndLine)
	assert.Empty(t, chunks[0].OriginalText)
}

func TestSplitMapsThroughNormalization(t *testing.T) {
	// 原文带多余空白，归一化后空白被折叠；行号映射必须穿透这种差异
	original := "First   line with    extra spaces.\nSecond line here.\n\nThird paragraph   text."
	normalized := Normalize(original)

	c := newTestChunker(t, 200, 10)
	chunks := c.Split(normalized, original)
	require.NotEmpty(t, chunks)
	require.NotNil(t, chunks[0].StartLine)
	assert.Equal(t, 1, *chunks[0].StartLine)
	assert.Equal(t, "First   line with    extra spaces.", strings.Split(chunks[0].OriginalText, "\n")[0])
}

func chunkTexts(chunks []TextChunk) []string {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	return texts
}
