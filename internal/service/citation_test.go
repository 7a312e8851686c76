package service

import (
	"strings"
	"testing"

	"zhiwen-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChunks() []model.RetrievedChunk {
	return []model.RetrievedChunk{
		{DocumentID: "doc-a", DocumentTitle: "甲文档", Content: "normalized a", OriginalText: "original   a", StartLine: 1, EndLine: 2},
		{DocumentID: "doc-b", DocumentTitle: "乙文档", Content: "normalized b", OriginalText: "original   b", StartLine: 10, EndLine: 12},
		{DocumentID: "doc-c", DocumentTitle: "丙文档", Content: "normalized c", OriginalText: "", StartLine: 0, EndLine: 0},
	}
}

func TestCitationBuilderBuild(t *testing.T) {
	b := newCitationBuilder("", "")
	citations := b.build("conv-1", testChunks())

	require.Len(t, citations, 3)
	for i, c := range citations {
		assert.Equal(t, i+1, c.Index)
		assert.Contains(t, c.ID, "conv-1-")
	}
	// 引用文本用归一化前原文，缺失时回落到分块内容
	assert.Equal(t, "original   a", citations[0].Text)
	assert.Equal(t, "normalized c", citations[2].Text)
	assert.Equal(t, 1, citations[0].StartLine)
	assert.Equal(t, 2, citations[0].EndLine)

	// ID 在同一回答内唯一
	ids := map[string]bool{}
	for _, c := range citations {
		assert.False(t, ids[c.ID])
		ids[c.ID] = true
	}
}

func TestCitationRepairRewritesMarkers(t *testing.T) {
	b := newCitationBuilder("", "")
	candidates := b.build("conv-1", testChunks())

	answer := "第一点见 [citation:0]。第二点见 [citation:2]。"
	repaired, used := b.repair(answer, candidates)

	assert.Equal(t, "第一点见 [1]。第二点见 [3]。", repaired)
	require.Len(t, used, 2)
	assert.Equal(t, 1, used[0].Index)
	assert.Equal(t, 3, used[1].Index)
	assert.Equal(t, "doc-a", used[0].DocumentID)
	assert.Equal(t, "doc-c", used[1].DocumentID)
}

func TestCitationRepairStripsOutOfRangeMarkers(t *testing.T) {
	b := newCitationBuilder("", "")
	candidates := b.build("conv-1", testChunks())

	answer := "合法 [citation:1]，越界 [citation:9]。"
	repaired, used := b.repair(answer, candidates)

	assert.Equal(t, "合法 [2]，越界 。", repaired)
	require.Len(t, used, 1)
	assert.Equal(t, 2, used[0].Index)
}

func TestCitationRepairStripsMalformedMarkers(t *testing.T) {
	b := newCitationBuilder("", "")
	candidates := b.build("conv-1", testChunks())

	repaired, used := b.repair("结论 [citation:0]，残缺标记 [citation:abc] 和 [citation:]。", candidates)

	assert.Equal(t, "结论 [1]，残缺标记  和 。", repaired)
	require.Len(t, used, 1)
}

func TestCitationRepairOnlyReturnsReferenced(t *testing.T) {
	b := newCitationBuilder("", "")
	candidates := b.build("conv-1", testChunks())

	// 回答只引用了第二条资料，未引用的候选不应出现在结果里
	repaired, used := b.repair("答案来自 [citation:1]。", candidates)

	assert.Equal(t, "答案来自 [2]。", repaired)
	require.Len(t, used, 1)
	assert.Equal(t, "doc-b", used[0].DocumentID)
}

func TestCitationRepairDuplicateMarkers(t *testing.T) {
	b := newCitationBuilder("", "")
	candidates := b.build("conv-1", testChunks())

	repaired, used := b.repair("[citation:0] 与 [citation:0] 重复引用。", candidates)

	assert.Equal(t, "[1] 与 [1] 重复引用。", repaired)
	require.Len(t, used, 1)
}

func TestCitationRepairLeavesPlainTextAlone(t *testing.T) {
	b := newCitationBuilder("", "")
	candidates := b.build("conv-1", testChunks())

	answer := "没有引用标记的普通回答，[方括号] 不受影响。"
	repaired, used := b.repair(answer, candidates)

	assert.Equal(t, answer, repaired)
	assert.Empty(t, used)
}

func TestCitationBuilderCustomMarkers(t *testing.T) {
	b := newCitationBuilder("<ref>", "</ref>")
	candidates := b.build("conv-1", testChunks())

	assert.Equal(t, "<ref>0</ref>", b.marker(0))
	repaired, used := b.repair("见 <ref>0</ref>。", candidates)
	assert.Equal(t, "见 [1]。", repaired)
	require.Len(t, used, 1)
}

func TestCitationMarkerMatchesRepairPattern(t *testing.T) {
	b := newCitationBuilder("", "")
	candidates := b.build("conv-1", testChunks())
	// 提示词中生成的标记必须能被修复逻辑识别
	for i := range candidates {
		repaired, _ := b.repair("x "+b.marker(i)+" y", candidates)
		assert.False(t, strings.Contains(repaired, b.refStart), "标记 %d 未被改写: %q", i, repaired)
	}
}
