package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTOCFilterDetectsChapterList(t *testing.T) {
	f := NewTOCFilter()
	text := "Chapter One 1\nChapter Two 15\nChapter Three 42"

	score := f.Score(text)
	assert.True(t, f.IsNoise(text))
	assert.Contains(t, score.MatchedRules, "word_number_groups")
	assert.GreaterOrEqual(t, score.Confidence, 0.5)
}

func TestTOCFilterKeepsProse(t *testing.T) {
	f := NewTOCFilter()
	tests := []struct {
		name string
		text string
	}{
		{
			name: "普通英文段落",
			text: "The ingestion pipeline extracts text from uploaded files and splits it into overlapping chunks before embedding.",
		},
		{
			name: "含少量数字的段落",
			text: "In 2024 the team processed documents daily, averaging 12 uploads per hour during peak time.",
		},
		{
			name: "普通中文段落",
			text: "系统在收到上传请求后，会先将文件存入对象存储，然后异步触发文本提取与向量化流程。",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := f.Score(tt.text)
			assert.False(t, f.IsNoise(tt.text), "误判为噪声: rules=%v", score.MatchedRules)
		})
	}
}

func TestTOCFilterRules(t *testing.T) {
	f := NewTOCFilter()
	tests := []struct {
		name         string
		text         string
		expectedRule string
	}{
		{
			name:         "目录标题行",
			text:         "Table of Contents\nsome text below",
			expectedRule: "heading_line",
		},
		{
			name:         "中文目录标题",
			text:         "目录\n第一章 绪论",
			expectedRule: "heading_line",
		},
		{
			name:         "点引线页码",
			text:         "Introduction .......... 1\nBackground .......... 7",
			expectedRule: "dot_leader",
		},
		{
			name:         "序号行加页码",
			text:         "1. Introduction 1\n2. Methods 15\n3. Results 42",
			expectedRule: "numbered_lines",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := f.Score(tt.text)
			assert.Contains(t, score.MatchedRules, tt.expectedRule)
			assert.True(t, score.IsNoise(defaultTOCThreshold))
		})
	}
}
