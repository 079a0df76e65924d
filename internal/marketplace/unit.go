package marketplace

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	ChapterCount    = 6
	LessonsPerLevel = 30
	LessonGroupSize = 5
)

// Levels 是 lessonMerge 布局下可选的等级。
var Levels = []int{1, 3}

// LessonCode 标识 lessonMerge 布局下的一课，字符串形式为 "{level}-{lesson:02d}"。
type LessonCode struct {
	Level  int
	Lesson int
}

func (c LessonCode) String() string {
	return fmt.Sprintf("%d-%02d", c.Level, c.Lesson)
}

// Valid 判断课时是否落在可编辑范围内（level ∈ {1,3}，lesson ∈ 1..30）。
func (c LessonCode) Valid() bool {
	if c.Lesson < 1 || c.Lesson > LessonsPerLevel {
		return false
	}
	for _, lv := range Levels {
		if lv == c.Level {
			return true
		}
	}
	return false
}

// ParseLessonCode 解析 "1-05" 形式的课时编号；只要求两段都是正整数。
func ParseLessonCode(s string) (LessonCode, bool) {
	level, lesson, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return LessonCode{}, false
	}
	lv, err := strconv.Atoi(strings.TrimSpace(level))
	if err != nil || lv <= 0 {
		return LessonCode{}, false
	}
	ls, err := strconv.Atoi(strings.TrimSpace(lesson))
	if err != nil || ls <= 0 {
		return LessonCode{}, false
	}
	return LessonCode{Level: lv, Lesson: ls}, true
}

// SortLessonCodes 按字符串形式升序排列，level 1 在 level 3 之前，课时号补零后自然有序。
func SortLessonCodes(codes []LessonCode) {
	sort.Slice(codes, func(i, j int) bool {
		return codes[i].String() < codes[j].String()
	})
}

// LessonGroup 是一个等级内连续 5 课的分组，标签形如 "L1-5"。
type LessonGroup struct {
	Start int
	End   int
}

func (g LessonGroup) Label() string {
	return fmt.Sprintf("L%d-%d", g.Start, g.End)
}

func (g LessonGroup) Contains(lesson int) bool {
	return lesson >= g.Start && lesson <= g.End
}

// LessonGroups 返回每个等级固定的 6 个分组。
func LessonGroups() []LessonGroup {
	out := make([]LessonGroup, 0, LessonsPerLevel/LessonGroupSize)
	for start := 1; start <= LessonsPerLevel; start += LessonGroupSize {
		out = append(out, LessonGroup{Start: start, End: start + LessonGroupSize - 1})
	}
	return out
}

// Unit 是一轮可选的内容单元：章节或课时，二者只能取其一。
type Unit struct {
	chapter int
	lesson  LessonCode
}

func ChapterUnit(n int) Unit { return Unit{chapter: n} }

func LessonUnit(code LessonCode) Unit { return Unit{lesson: code} }

func (u Unit) Chapter() (int, bool) { return u.chapter, u.chapter != 0 }

func (u Unit) Lesson() (LessonCode, bool) { return u.lesson, u.chapter == 0 && u.lesson.Level != 0 }

func (u Unit) String() string {
	if u.chapter != 0 {
		return strconv.Itoa(u.chapter)
	}
	return u.lesson.String()
}

// ParseUnit 按布局解析单元编号：chapterMerge 为 "1".."6"，lessonMerge 为课时编号。
func ParseUnit(layout Layout, s string) (Unit, error) {
	s = strings.TrimSpace(s)
	switch layout {
	case LayoutChapterMerge:
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > ChapterCount {
			return Unit{}, fmt.Errorf("%w：章节 %q", ErrInvalidUnit, s)
		}
		return ChapterUnit(n), nil
	case LayoutLessonMerge, LayoutLessonMergeFree:
		code, ok := ParseLessonCode(s)
		if !ok || !code.Valid() {
			return Unit{}, fmt.Errorf("%w：课时 %q", ErrInvalidUnit, s)
		}
		return LessonUnit(code), nil
	default:
		return Unit{}, fmt.Errorf("%w：%s", ErrUnknownLayout, layout)
	}
}
