package marketplace

import "strings"

// ChapterMerge 按章节 1..6 顺序拼接已选章节的原文（不拆分），以 "|" 连接。
func ChapterMerge(sel RoundSelection, ix ContentIndex) string {
	var parts []string
	for i, chosen := range sel.Chapters {
		if !chosen {
			continue
		}
		if v := ix.Chapter(i + 1); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, "|")
}

// LessonMerge 按课时编号升序拆分各课内容，输出 "tok;" 以空格连接。
func LessonMerge(sel RoundSelection, ix ContentIndex) string {
	var tokens []string
	for _, code := range sel.SortedLessons() {
		tokens = append(tokens, Tokenize(ix.Lesson(code))...)
	}
	return JoinLessonTokens(tokens)
}

// Merge 按布局选择合并算法。
func Merge(layout Layout, sel RoundSelection, ix ContentIndex) string {
	switch layout {
	case LayoutChapterMerge:
		return ChapterMerge(sel, ix)
	case LayoutLessonMerge, LayoutLessonMergeFree:
		return LessonMerge(sel, ix)
	default:
		return ""
	}
}

// removeChapterTokens 从缓存的 "|" 词句中按多重集合语义移除某章节贡献的词句。
func removeChapterTokens(cached, chapterValue string) string {
	drop := make(map[string]int)
	for _, t := range SplitChapterValue(chapterValue) {
		drop[t]++
	}
	var kept []string
	for _, t := range SplitChapterValue(cached) {
		if drop[t] > 0 {
			drop[t]--
			continue
		}
		kept = append(kept, t)
	}
	return strings.Join(kept, "|")
}
