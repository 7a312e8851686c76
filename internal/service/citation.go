package service

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"zhiwen-go/internal/model"
)

// 模型在回答中引用资料时使用的内部标记格式，序号从 0 开始，
// 与提示词中资料的编号一一对应。展示前统一改写为 1 起始的 [n]。
const (
	defaultRefStart = "[citation:"
	defaultRefEnd   = "]"
)

// citationBuilder 负责把检索结果变成引用列表，并修复模型回答中的引用标记。
type citationBuilder struct {
	refStart string
	refEnd   string
	pattern  *regexp.Regexp
	leftover *regexp.Regexp // 无编号或格式残缺的标记，展示前整体剔除
}

func newCitationBuilder(refStart, refEnd string) *citationBuilder {
	if refStart == "" {
		refStart = defaultRefStart
	}
	if refEnd == "" {
		refEnd = defaultRefEnd
	}
	pattern := regexp.MustCompile(
		regexp.QuoteMeta(refStart) + `\s*(\d+)\s*` + regexp.QuoteMeta(refEnd))
	leftover := regexp.MustCompile(
		regexp.QuoteMeta(refStart) + `.*?` + regexp.QuoteMeta(refEnd))
	return &citationBuilder{refStart: refStart, refEnd: refEnd, pattern: pattern, leftover: leftover}
}

// marker 返回提示词中第 i 条（0 起始）资料的内部引用标记。
func (b *citationBuilder) marker(i int) string {
	return fmt.Sprintf("%s%d%s", b.refStart, i, b.refEnd)
}

// build 把检索结果转换为候选引用列表。
// 引用 ID 由会话 ID、毫秒时间戳和序号拼成，同一回答内保证唯一。
func (b *citationBuilder) build(conversationID string, chunks []model.RetrievedChunk) []model.Citation {
	now := time.Now().UnixMilli()
	citations := make([]model.Citation, len(chunks))
	for i, chunk := range chunks {
		text := chunk.OriginalText
		if text == "" {
			text = chunk.Content
		}
		citations[i] = model.Citation{
			ID:            fmt.Sprintf("%s-%d-%d", conversationID, now, i),
			Index:         i + 1,
			DocumentID:    chunk.DocumentID,
			DocumentTitle: chunk.DocumentTitle,
			Text:          text,
			StartLine:     chunk.StartLine,
			EndLine:       chunk.EndLine,
		}
	}
	return citations
}

// repair 修复回答中的引用标记并筛选实际被引用的条目：
//   - 合法标记（序号在候选范围内）改写为 1 起始的 [n]；
//   - 序号越界或没有序号的标记整体剔除，不留残迹；
//   - 返回的引用列表只含被引用过的条目，按序号升序排列。
func (b *citationBuilder) repair(answer string, candidates []model.Citation) (string, []model.Citation) {
	referenced := map[int]bool{}

	repaired := b.pattern.ReplaceAllStringFunc(answer, func(match string) string {
		groups := b.pattern.FindStringSubmatch(match)
		k, err := strconv.Atoi(groups[1])
		if err != nil || k < 0 || k >= len(candidates) {
			return ""
		}
		referenced[k] = true
		return fmt.Sprintf("[%d]", k+1)
	})
	repaired = b.leftover.ReplaceAllString(repaired, "")

	var used []model.Citation
	for k := range referenced {
		used = append(used, candidates[k])
	}
	sort.Slice(used, func(i, j int) bool { return used[i].Index < used[j].Index })

	return strings.TrimSpace(repaired), used
}
