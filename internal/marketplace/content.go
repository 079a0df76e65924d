package marketplace

import (
	"strconv"

	"github.com/yitongOE/LessonData/internal/csvfile"
)

// ContentIndex 是 content.csv 的查找表。查不到的单元一律返回空字符串。
type ContentIndex struct {
	layout   Layout
	chapters map[int]string
	lessons  map[int]map[int]string
}

// EmptyContentIndex 用于 content.csv 不存在的游戏。
func EmptyContentIndex(layout Layout) ContentIndex {
	return ContentIndex{layout: layout}
}

// NewContentIndex 按布局构建索引：chapterMerge 读取 chapter,value，lessonMerge 读取 level,lesson,value。
// 数字列无法解析的行直接跳过。
func NewContentIndex(layout Layout, rows []csvfile.Row) ContentIndex {
	ix := ContentIndex{layout: layout}
	switch layout {
	case LayoutChapterMerge:
		ix.chapters = make(map[int]string)
		for _, row := range rows {
			ch, err := strconv.Atoi(row.Get("chapter"))
			if err != nil {
				continue
			}
			ix.chapters[ch] = row.Get("value")
		}
	case LayoutLessonMerge, LayoutLessonMergeFree:
		ix.lessons = make(map[int]map[int]string)
		for _, row := range rows {
			lv, err := strconv.Atoi(row.Get("level"))
			if err != nil {
				continue
			}
			ls, err := strconv.Atoi(row.Get("lesson"))
			if err != nil {
				continue
			}
			if ix.lessons[lv] == nil {
				ix.lessons[lv] = make(map[int]string)
			}
			ix.lessons[lv][ls] = row.Get("value")
		}
	}
	return ix
}

// ParseContent 直接解析 content.csv 文本。
func ParseContent(layout Layout, data []byte) (ContentIndex, error) {
	t, err := csvfile.Parse(data)
	if err != nil {
		return ContentIndex{}, err
	}
	return NewContentIndex(layout, t.Rows), nil
}

func (ix ContentIndex) Layout() Layout { return ix.layout }

func (ix ContentIndex) Chapter(n int) string {
	return ix.chapters[n]
}

func (ix ContentIndex) Lesson(code LessonCode) string {
	return ix.lessons[code.Level][code.Lesson]
}

// Unit 返回单元对应的原始文本。
func (ix ContentIndex) Unit(u Unit) string {
	if n, ok := u.Chapter(); ok {
		return ix.Chapter(n)
	}
	if code, ok := u.Lesson(); ok {
		return ix.Lesson(code)
	}
	return ""
}

// Len 返回已索引的单元数。
func (ix ContentIndex) Len() int {
	n := len(ix.chapters)
	for _, m := range ix.lessons {
		n += len(m)
	}
	return n
}
