package marketplace

import "sort"

// RoundSelection 是一轮的选择状态与合并缓存。Cached 为 false 时预览由选择实时计算。
type RoundSelection struct {
	Round    int
	Chapters [ChapterCount]bool
	Lessons  map[LessonCode]struct{}
	Value    string
	Cached   bool
}

// NewRoundSelection 返回空选择、无缓存的一轮。
func NewRoundSelection(round int) RoundSelection {
	return RoundSelection{Round: round, Lessons: make(map[LessonCode]struct{})}
}

func (r RoundSelection) Clone() RoundSelection {
	out := r
	out.Lessons = make(map[LessonCode]struct{}, len(r.Lessons))
	for c := range r.Lessons {
		out.Lessons[c] = struct{}{}
	}
	return out
}

// HasChapter 章节号从 1 开始，越界时返回 false。
func (r RoundSelection) HasChapter(n int) bool {
	if n < 1 || n > ChapterCount {
		return false
	}
	return r.Chapters[n-1]
}

func (r RoundSelection) HasLesson(code LessonCode) bool {
	_, ok := r.Lessons[code]
	return ok
}

// Has 判断单元是否被选中。
func (r RoundSelection) Has(u Unit) bool {
	if n, ok := u.Chapter(); ok {
		return r.HasChapter(n)
	}
	if code, ok := u.Lesson(); ok {
		return r.HasLesson(code)
	}
	return false
}

// ChosenChapters 升序返回已选章节。
func (r RoundSelection) ChosenChapters() []int {
	var out []int
	for i, ok := range r.Chapters {
		if ok {
			out = append(out, i+1)
		}
	}
	return out
}

// SortedLessons 按编号升序返回已选课时。
func (r RoundSelection) SortedLessons() []LessonCode {
	out := make([]LessonCode, 0, len(r.Lessons))
	for c := range r.Lessons {
		out = append(out, c)
	}
	SortLessonCodes(out)
	return out
}

// Empty 表示没有选中任何单元。
func (r RoundSelection) Empty() bool {
	return len(r.ChosenChapters()) == 0 && len(r.Lessons) == 0
}

// flip 翻转单元的选中状态，返回翻转后是否选中。
func (r *RoundSelection) flip(u Unit) bool {
	if n, ok := u.Chapter(); ok {
		r.Chapters[n-1] = !r.Chapters[n-1]
		return r.Chapters[n-1]
	}
	code, _ := u.Lesson()
	if r.Lessons == nil {
		r.Lessons = make(map[LessonCode]struct{})
	}
	if _, ok := r.Lessons[code]; ok {
		delete(r.Lessons, code)
		return false
	}
	r.Lessons[code] = struct{}{}
	return true
}

// Selections 是一个游戏所有轮次的选择状态，按轮次号索引，轮次条目按需创建。
type Selections struct {
	layout Layout
	rounds map[int]RoundSelection
}

func NewSelections(layout Layout) *Selections {
	return &Selections{layout: layout, rounds: make(map[int]RoundSelection)}
}

// SelectionsFrom 以已解码的轮次构建选择集。重复轮次以后者为准。
func SelectionsFrom(layout Layout, rounds []RoundSelection) *Selections {
	s := NewSelections(layout)
	for _, r := range rounds {
		s.rounds[r.Round] = r.Clone()
	}
	return s
}

func (s *Selections) Layout() Layout { return s.layout }

// Round 返回某一轮的副本；不存在时返回空选择，但不会写入。
func (s *Selections) Round(round int) RoundSelection {
	if r, ok := s.rounds[round]; ok {
		return r.Clone()
	}
	return NewRoundSelection(round)
}

// ensure 返回可写的轮次条目，必要时创建。
func (s *Selections) ensure(round int) RoundSelection {
	r, ok := s.rounds[round]
	if !ok {
		r = NewRoundSelection(round)
		s.rounds[round] = r
	}
	return r
}

func (s *Selections) put(r RoundSelection) {
	s.rounds[r.Round] = r
}

// Ensure 补齐 1..rounds 的条目，rounds 超过 MaxRounds 时按上限处理。
func (s *Selections) Ensure(rounds int) {
	rounds = min(rounds, MaxRounds)
	for r := 1; r <= rounds; r++ {
		s.ensure(r)
	}
}

// Rounds 返回 1..rounds 的选择，按轮次升序。
func (s *Selections) Rounds(rounds int) []RoundSelection {
	rounds = min(max(rounds, 0), MaxRounds)
	out := make([]RoundSelection, 0, rounds)
	for r := 1; r <= rounds; r++ {
		out = append(out, s.Round(r))
	}
	return out
}

// All 返回内存中全部轮次（包括超出当前 rounds 的条目），按轮次升序。
func (s *Selections) All() []RoundSelection {
	keys := make([]int, 0, len(s.rounds))
	for k := range s.rounds {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]RoundSelection, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.rounds[k].Clone())
	}
	return out
}

// Clone 深拷贝整个选择集。
func (s *Selections) Clone() *Selections {
	out := NewSelections(s.layout)
	for k, r := range s.rounds {
		out.rounds[k] = r.Clone()
	}
	return out
}

// Toggle 翻转一个单元的选中状态，只改变选择集合本身，不处理缓存。
// 会话中的切换请使用 Synchronizer.Toggle，它会同时维护合并缓存。
func (s *Selections) Toggle(round int, u Unit) (RoundSelection, error) {
	if err := s.checkUnit(round, u); err != nil {
		return RoundSelection{}, err
	}
	r := s.ensure(round).Clone()
	r.flip(u)
	s.put(r)
	return r.Clone(), nil
}

func (s *Selections) checkUnit(round int, u Unit) error {
	if round < 1 {
		return ErrInvalidRound
	}
	switch s.layout {
	case LayoutChapterMerge:
		n, ok := u.Chapter()
		if !ok {
			return ErrUnitMismatch
		}
		if n < 1 || n > ChapterCount {
			return ErrInvalidUnit
		}
	case LayoutLessonMerge, LayoutLessonMergeFree:
		code, ok := u.Lesson()
		if !ok {
			return ErrUnitMismatch
		}
		if !code.Valid() {
			return ErrInvalidUnit
		}
	default:
		return ErrUnknownLayout
	}
	return nil
}
