package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "驼峰边界补空格",
			input:    "theQuick brownFox",
			expected: "the Quick brown Fox",
		},
		{
			name:     "标点后补空格",
			input:    "first,second.third",
			expected: "first, second. third",
		},
		{
			name:     "标点前去空格",
			input:    "hello , world !",
			expected: "hello, world!",
		},
		{
			name:     "方括号间距",
			input:    "see[note]here",
			expected: "see [note] here",
		},
		{
			name:     "连字符两侧补空格",
			input:    "state-machine",
			expected: "state - machine",
		},
		{
			name:     "行内空白折叠",
			input:    "a  \t b",
			expected: "a b",
		},
		{
			name:     "连续空行归并",
			input:    "para one\n\n\n\n\npara two",
			expected: "para one\n\npara two",
		},
		{
			name:     "行尾空白去除",
			input:    "line one   \n   line two",
			expected: "line one\nline two",
		},
		{
			name:     "空字符串原样返回",
			input:    "",
			expected: "",
		},
		{
			name:     "规范文本保持不变",
			input:    "A plain sentence.\n\nAnother paragraph.",
			expected: "A plain sentence.\n\nAnother paragraph.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeIsIdempotentOnOutput(t *testing.T) {
	input := "messyText,with[brackets]and-hyphens   everywhere.\n\n\n\nEnd."
	once := Normalize(input)
	assert.Equal(t, once, Normalize(once))
}
