// Package pipeline 定义了文档摄取的核心流程：
// 文本归一化、分块与行号映射、目录噪声识别、向量化与状态机推进。
package pipeline

import "regexp"

// 提取文本中常见的粘连与错位模式。规则顺序即应用顺序。
var (
	reCamelBoundary = regexp.MustCompile(`([a-z])([A-Z])`)
	rePunctNoSpace  = regexp.MustCompile(`([,.;:!?])([A-Za-z0-9\p{Han}])`)
	reSpacePunct    = regexp.MustCompile(`[ \t]+([,.;:!?])`)
	reBracketOpen   = regexp.MustCompile(`(\S)\[`)
	reBracketClose  = regexp.MustCompile(`\](\S)`)
	reHyphenJoin    = regexp.MustCompile(`([A-Za-z\p{Han}])-([A-Za-z\p{Han}])`)
	reSpaceRun      = regexp.MustCompile(`[ \t]+`)
	reSpaceAroundNL = regexp.MustCompile(`[ \t]*\n[ \t]*`)
	reBlankLineRun  = regexp.MustCompile(`\n{3,}`)
)

// Normalize 修复提取产物中的常见排版问题。
// 这是一个确定性的纯函数，只在摄取时应用一次；引用展示使用分块保存的
// 归一化前原文，避免同一段文本被改写两次。
// 修复顺序：驼峰边界补空格 -> 标点间距 -> 方括号间距 -> 连字符间距 -> 空白折叠。
func Normalize(text string) string {
	if text == "" {
		return text
	}

	// camelCase/PascalCase 边界插入空格（提取器常见的丢空格问题）
	out := reCamelBoundary.ReplaceAllString(text, "$1 $2")

	// 标点后补空格，标点前去空格
	out = rePunctNoSpace.ReplaceAllString(out, "$1 $2")
	out = reSpacePunct.ReplaceAllString(out, "$1")

	// 方括号与相邻文字之间补空格
	out = reBracketOpen.ReplaceAllString(out, "$1 [")
	out = reBracketClose.ReplaceAllString(out, "] $1")

	// 连接两个词的连字符两侧补空格
	out = reHyphenJoin.ReplaceAllString(out, "$1 - $2")

	// 空白折叠：行内空白归并为单个空格，行首行尾空白去除，连续空行归并为一个
	out = reSpaceRun.ReplaceAllString(out, " ")
	out = reSpaceAroundNL.ReplaceAllString(out, "\n")
	out = reBlankLineRun.ReplaceAllString(out, "\n\n")

	return out
}
