package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"zhiwen-go/internal/config"
	"zhiwen-go/pkg/log"
)

// TextChunk 是分块器的输出单元。
// Text 取自归一化文本；OriginalText 是按行号从归一化前原文切出的对应片段，
// 供引用展示使用。行号从 1 开始；映射失败时 StartLine/EndLine 为 nil，
// OriginalText 为空，分块仍然有效。
type TextChunk struct {
	Text         string
	OriginalText string
	StartLine    *int
	EndLine      *int
}

// Chunker 将归一化文本按层级策略切分为带重叠的分块：
// 段落 -> 句子 -> 空白 -> 字符，逐级降级，保证任何单个片段不超过 chunkSize。
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker 创建分块器。chunkOverlap 必须小于 chunkSize。
func NewChunker(cfg config.ChunkingConfig) (*Chunker, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk_size 必须为正数: %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("chunk_overlap 必须小于 chunk_size: overlap=%d, size=%d",
			cfg.ChunkOverlap, cfg.ChunkSize)
	}
	return &Chunker{chunkSize: cfg.ChunkSize, chunkOverlap: cfg.ChunkOverlap}, nil
}

var (
	reParagraphSep = regexp.MustCompile(`\n\s*\n`)
	reSentenceEnd  = regexp.MustCompile(`[^。！？!?.]*[。！？!?.]+|[^。！？!?.]+$`)
)

// Split 对归一化文本分块，并把每个分块映射回 original（归一化前原文）中的行号区间。
// 空白文本返回空切片。
func (c *Chunker) Split(normalized, original string) []TextChunk {
	segments := c.segment(normalized)
	texts := c.assemble(segments)

	mapper := newLineMapper(original)
	chunks := make([]TextChunk, 0, len(texts))
	for i, text := range texts {
		chunk := TextChunk{Text: text}
		startLine, endLine, ok := mapper.locate(text)
		if ok {
			chunk.StartLine = &startLine
			chunk.EndLine = &endLine
			chunk.OriginalText = mapper.sliceLines(startLine, endLine)
		} else {
			log.Warnf("分块 %d 无法映射回原文行号，引用将不携带行区间", i)
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// segment 把文本层级切分为不超过 chunkSize 的片段序列。
func (c *Chunker) segment(text string) []string {
	var segments []string
	for _, para := range reParagraphSep.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if utf8.RuneCountInString(para) <= c.chunkSize {
			segments = append(segments, para)
			continue
		}
		// 段落超长，降级到句子
		for _, sent := range reSentenceEnd.FindAllString(para, -1) {
			sent = strings.TrimSpace(sent)
			if sent == "" {
				continue
			}
			if utf8.RuneCountInString(sent) <= c.chunkSize {
				segments = append(segments, sent)
				continue
			}
			// 句子超长，降级到空白切分
			for _, word := range strings.Fields(sent) {
				if utf8.RuneCountInString(word) <= c.chunkSize {
					segments = append(segments, word)
					continue
				}
				// 单个词仍超长（如无空白的长串），按字符硬切
				runes := []rune(word)
				for len(runes) > c.chunkSize {
					segments = append(segments, string(runes[:c.chunkSize]))
					runes = runes[c.chunkSize:]
				}
				if len(runes) > 0 {
					segments = append(segments, string(runes))
				}
			}
		}
	}
	return segments
}

// assemble 把片段贪心拼装为分块：每个分块的新内容不超过 chunkSize，
// 并携带前一分块末尾 chunkOverlap 个字符作为重叠前缀。
func (c *Chunker) assemble(segments []string) []string {
	var chunks []string
	var cur []rune
	prefixLen := 0 // cur 中属于重叠前缀的字符数，不计入新内容配额

	flush := func() {
		if len(cur) > prefixLen {
			chunks = append(chunks, string(cur))
		}
		cur = nil
		prefixLen = 0
	}

	for _, seg := range segments {
		segRunes := []rune(seg)
		need := len(segRunes)
		if len(cur) > prefixLen {
			need++ // 片段间的连接空格
		}
		if len(cur)-prefixLen+need > c.chunkSize && len(cur) > prefixLen {
			prev := cur
			flush()
			// 重叠前缀连同分隔空格一起占用 chunkOverlap 配额，
			// 保证分块总长不超过 chunkSize + chunkOverlap。
			if c.chunkOverlap > 1 {
				tail := overlapTail(prev, c.chunkOverlap-1)
				if len(tail) > 0 {
					cur = append(cur, tail...)
					cur = append(cur, ' ')
					prefixLen = len(cur)
				}
			}
		}
		if len(cur) > prefixLen {
			cur = append(cur, ' ')
		}
		cur = append(cur, segRunes...)
	}
	flush()
	return chunks
}

// overlapTail 取前一分块末尾的 overlap 个字符，并去掉开头被截断的半个词。
func overlapTail(prev []rune, overlap int) []rune {
	if len(prev) <= overlap {
		return append([]rune(nil), prev...)
	}
	tail := prev[len(prev)-overlap:]
	// 避免重叠以半个词开头
	for i, r := range tail {
		if unicode.IsSpace(r) {
			return append([]rune(nil), tail[i+1:]...)
		}
	}
	return append([]rune(nil), tail...)
}

// lineMapper 通过空白归一化对齐，把分块文本定位回原文中的行号区间。
// 原理：对原文做"连续空白折叠为单个空格"的变换并记录每个输出字符在原文中的
// 字符偏移；对分块文本做同样变换后取前 50 个字符作为探针做子串匹配。
type lineMapper struct {
	origRunes []rune
	norm      string // 空白折叠后的原文
	posMap    []int  // norm 的第 i 个字符在 origRunes 中的偏移
	lines     []string
}

const probeLen = 50

func newLineMapper(original string) *lineMapper {
	origRunes := []rune(original)
	norm, posMap := collapseWhitespace(origRunes)
	return &lineMapper{
		origRunes: origRunes,
		norm:      string(norm),
		posMap:    posMap,
		lines:     strings.Split(original, "\n"),
	}
}

// collapseWhitespace 把连续空白折叠为单个空格并去除首尾空白，
// 同时记录每个输出字符对应的输入偏移。
func collapseWhitespace(runes []rune) ([]rune, []int) {
	var norm []rune
	var posMap []int
	inSpace := false
	for i, r := range runes {
		if unicode.IsSpace(r) {
			if !inSpace && len(norm) > 0 {
				norm = append(norm, ' ')
				posMap = append(posMap, i)
			}
			inSpace = true
			continue
		}
		norm = append(norm, r)
		posMap = append(posMap, i)
		inSpace = false
	}
	if len(norm) > 0 && norm[len(norm)-1] == ' ' {
		norm = norm[:len(norm)-1]
		posMap = posMap[:len(posMap)-1]
	}
	return norm, posMap
}

// locate 返回分块文本在原文中覆盖的 1 起始行号区间。
// 归一化改写过的文本可能在原文中找不到，此时返回 ok=false，调用方静默降级。
func (m *lineMapper) locate(chunkText string) (startLine, endLine int, ok bool) {
	normChunk, _ := collapseWhitespace([]rune(chunkText))
	if len(normChunk) == 0 || len(m.posMap) == 0 {
		return 0, 0, false
	}
	probe := normChunk
	if len(probe) > probeLen {
		probe = probe[:probeLen]
	}
	byteIdx := strings.Index(m.norm, string(probe))
	if byteIdx < 0 {
		return 0, 0, false
	}
	startNorm := utf8.RuneCountInString(m.norm[:byteIdx])

	endNorm := startNorm + len(normChunk) - 1
	if endNorm >= len(m.posMap) {
		endNorm = len(m.posMap) - 1
	}

	startLine = m.lineAt(m.posMap[startNorm])
	endLine = m.lineAt(m.posMap[endNorm])
	if endLine < startLine {
		endLine = startLine
	}
	return startLine, endLine, true
}

// lineAt 返回原文字符偏移所在的 1 起始行号。
func (m *lineMapper) lineAt(offset int) int {
	line := 1
	for i := 0; i < offset && i < len(m.origRunes); i++ {
		if m.origRunes[i] == '\n' {
			line++
		}
	}
	return line
}

// sliceLines 按 1 起始行号区间切出原文片段。
func (m *lineMapper) sliceLines(startLine, endLine int) string {
	if startLine < 1 {
		startLine = 1
	}
	if endLine > len(m.lines) {
		endLine = len(m.lines)
	}
	if startLine > endLine {
		return ""
	}
	return strings.Join(m.lines[startLine-1:endLine], "\n")
}
