package marketplace

import (
	"regexp"
	"strings"
)

var (
	tokenDelims   = regexp.MustCompile(`[|;\n,，；]+`)
	displayDelims = regexp.MustCompile(`[|;]+[ \t]*`)
	sentenceEnd   = regexp.MustCompile(`([.!?。！？…])\s+`)
)

// Tokenize 把内容单元拆成词句列表：保留顺序，不去重。
func Tokenize(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	parts := tokenDelims.Split(raw, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinLessonTokens 是 lessonMerge 的落盘编码："cat; dog; fox;"。
func JoinLessonTokens(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}
	var b strings.Builder
	for i, t := range tokens {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t)
		b.WriteByte(';')
	}
	return b.String()
}

// SplitChapterValue 按 "|" 拆分 chapterMerge 缓存值，去掉空项。
func SplitChapterValue(value string) []string {
	parts := strings.Split(value, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DisplayText 把合并值转换为预览框文本：连续的 | 或 ; 变为换行，首尾去空白。只用于展示。
func DisplayText(value string) string {
	return strings.TrimSpace(displayDelims.ReplaceAllString(value, "\n"))
}

// PreviewLines 把预览框文本拆成非空行。
func PreviewLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.TrimSpace(strings.TrimRight(p, ";"))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SplitSentences 按句末标点断句，每句一行。用于评审面板的内容展示。
func SplitSentences(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	text = sentenceEnd.ReplaceAllString(text, "$1\n")
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
