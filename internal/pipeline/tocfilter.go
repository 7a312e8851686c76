package pipeline

import (
	"regexp"
	"strings"
	"unicode"
)

// TOCFilter 识别目录页、索引页一类的噪声分块。
// 全部启发式集中在一张规则表里，每条规则独立命名、独立打分；
// 任一规则得分达到阈值即判定为噪声，便于逐条调试与回归。
type TOCFilter struct {
	threshold float64
	rules     []tocRule
}

type tocRule struct {
	name   string
	weight float64
	match  func(text string, lines []string) bool
}

// TOCScore 是对单个分块的评估结果。
type TOCScore struct {
	Confidence   float64
	MatchedRules []string
}

// IsNoise 表示该分块是否应当从检索结果中过滤掉。
func (s TOCScore) IsNoise(threshold float64) bool {
	return s.Confidence >= threshold
}

const defaultTOCThreshold = 0.5

var (
	reWordNumber   = regexp.MustCompile(`[\p{L}]+[ \t]+\d+\b`)
	reNumberedLine = regexp.MustCompile(`^\s*\d+[.、]?\s+\S.*\s\d+\s*$`)
	reDotLeader    = regexp.MustCompile(`\.{4,}\s*\d+`)
)

var tocHeadings = []string{
	"table of contents", "contents", "toc", "目录", "目 录", "章节目录",
}

// NewTOCFilter 创建使用默认规则表与阈值的过滤器。
func NewTOCFilter() *TOCFilter {
	return &TOCFilter{
		threshold: defaultTOCThreshold,
		rules: []tocRule{
			{
				// 含独立成行的目录标题
				name:   "heading_line",
				weight: 1.0,
				match: func(_ string, lines []string) bool {
					for _, line := range lines {
						normalized := strings.ToLower(strings.TrimSpace(line))
						for _, h := range tocHeadings {
							if normalized == h {
								return true
							}
						}
					}
					return false
				},
			},
			{
				// 点引线后跟页码，如 "第一章........12"
				name:   "dot_leader",
				weight: 0.8,
				match: func(text string, _ []string) bool {
					return reDotLeader.MatchString(text)
				},
			},
			{
				// 多组"词 + 页码"模式
				name:   "word_number_groups",
				weight: 0.7,
				match: func(text string, _ []string) bool {
					return len(reWordNumber.FindAllString(text, -1)) >= 3
				},
			},
			{
				// 高比例的"序号开头、页码结尾"行
				name:   "numbered_lines",
				weight: 0.6,
				match: func(_ string, lines []string) bool {
					matched := 0
					nonEmpty := 0
					for _, line := range lines {
						if strings.TrimSpace(line) == "" {
							continue
						}
						nonEmpty++
						if reNumberedLine.MatchString(line) {
							matched++
						}
					}
					return nonEmpty >= 2 && float64(matched)/float64(nonEmpty) > 0.25
				},
			},
			{
				// 几乎没有空白、夹杂数字的密集文本（扫描件目录的常见形态）
				name:   "dense_digits",
				weight: 0.6,
				match: func(text string, _ []string) bool {
					total := 0
					nonSpace := 0
					hasDigit := false
					for _, r := range text {
						total++
						if !unicode.IsSpace(r) {
							nonSpace++
						}
						if unicode.IsDigit(r) {
							hasDigit = true
						}
					}
					return total > 20 && hasDigit &&
						float64(nonSpace)/float64(total) > 0.95
				},
			},
		},
	}
}

// Score 对分块文本运行全部规则，返回最高单项得分与所有命中规则的名字。
// 取最高分而非求和：规则之间相关性强，求和会放大单一形态的权重。
func (f *TOCFilter) Score(text string) TOCScore {
	lines := strings.Split(text, "\n")
	score := TOCScore{}
	for _, rule := range f.rules {
		if rule.match(text, lines) {
			score.MatchedRules = append(score.MatchedRules, rule.name)
			if rule.weight > score.Confidence {
				score.Confidence = rule.weight
			}
		}
	}
	return score
}

// IsNoise 判定分块是否为目录类噪声。
func (f *TOCFilter) IsNoise(text string) bool {
	return f.Score(text).IsNoise(f.threshold)
}
