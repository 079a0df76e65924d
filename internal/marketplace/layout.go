// Package marketplace 实现商城游戏的选择合并编辑器：章节/课时内容索引、轮次选择、合并引擎、
// 预览同步与 selected.csv 编解码。除 Repository 外，本包内的函数均为纯函数，数据由调用方显式传入。
package marketplace

import (
	"fmt"
	"strings"
)

// Layout 决定一个游戏如何把内容单元合并为轮次词句。
type Layout int

const (
	LayoutChapterMerge Layout = iota + 1
	LayoutLessonMerge
	LayoutLessonMergeFree
)

// ParseLayout 解析 config.csv 中的 layout 字段；空值按 chapterMerge 处理。
func ParseLayout(raw string) (Layout, error) {
	switch strings.TrimSpace(raw) {
	case "", "chapterMerge":
		return LayoutChapterMerge, nil
	case "lessonMerge":
		return LayoutLessonMerge, nil
	case "lessonMergeFree":
		return LayoutLessonMergeFree, nil
	default:
		return LayoutChapterMerge, fmt.Errorf("%w：%q", ErrUnknownLayout, raw)
	}
}

func (l Layout) String() string {
	switch l {
	case LayoutChapterMerge:
		return "chapterMerge"
	case LayoutLessonMerge:
		return "lessonMerge"
	case LayoutLessonMergeFree:
		return "lessonMergeFree"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// LessonBased 表示该布局按 (level, lesson) 组织内容。
func (l Layout) LessonBased() bool {
	switch l {
	case LayoutLessonMerge, LayoutLessonMergeFree:
		return true
	case LayoutChapterMerge:
		return false
	default:
		return false
	}
}

func (l Layout) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Layout) UnmarshalText(b []byte) error {
	v, err := ParseLayout(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
