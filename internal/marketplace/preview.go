package marketplace

import (
	"strings"
	"unicode/utf16"
)

// TextRange 是预览框中的选区，区间左闭右开。Start/End 与浏览器 textarea 的
// selectionStart/selectionEnd 一致，按 UTF-16 码元计数，emoji 等增补平面字符占两个单位。
type TextRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Empty 表示没有有效选区。
func (r TextRange) Empty() bool { return r.Start == r.End }

func (r TextRange) normalize(n int) TextRange {
	if r.Start > r.End {
		r.Start, r.End = r.End, r.Start
	}
	r.Start = clamp(r.Start, 0, n)
	r.End = clamp(r.End, 0, n)
	return r
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// LineAt 返回 offset 所在整行的范围（不含换行符），用于双击选中一行。
func LineAt(text string, offset int) TextRange {
	units := utf16.Encode([]rune(text))
	offset = clamp(offset, 0, len(units))
	start := offset
	for start > 0 && units[start-1] != '\n' {
		start--
	}
	end := offset
	for end < len(units) && units[end] != '\n' {
		end++
	}
	return TextRange{Start: start, End: end}
}

// Synchronizer 维护一个会话中预览文本与选择状态的一致性。
// 它持有调用方传入的选择集并直接修改它；内容索引只读。
type Synchronizer struct {
	layout Layout
	mode   Mode
	index  ContentIndex
	sel    *Selections
}

func NewSynchronizer(layout Layout, mode Mode, index ContentIndex, sel *Selections) *Synchronizer {
	if sel == nil {
		sel = NewSelections(layout)
	}
	return &Synchronizer{layout: layout, mode: mode, index: index, sel: sel}
}

func (s *Synchronizer) Mode() Mode { return s.mode }

func (s *Synchronizer) Selections() *Selections { return s.sel }

// Value 返回一轮的合并值：有缓存用缓存，否则按选择实时计算。
func (s *Synchronizer) Value(round int) string {
	r := s.sel.Round(round)
	if r.Cached {
		return r.Value
	}
	return Merge(s.layout, r, s.index)
}

// Display 返回一轮的预览框文本。
func (s *Synchronizer) Display(round int) string {
	return DisplayText(s.Value(round))
}

// Materialize 为 1..rounds 中尚无缓存的轮次写入合并值，保存前调用。
func (s *Synchronizer) Materialize(rounds int) {
	for round := 1; round <= rounds; round++ {
		r := s.sel.ensure(round)
		if r.Cached {
			continue
		}
		r.Value = Merge(s.layout, r, s.index)
		r.Cached = true
		s.sel.put(r)
	}
}

// Toggle 勾选或取消一个单元并立即刷新缓存。
// 勾选时整体重算；取消时 chapterMerge 从缓存中剔除该章节的词句，lessonMerge 整体重算。
func (s *Synchronizer) Toggle(round int, u Unit) (RoundSelection, error) {
	if s.mode == ModeReadOnly {
		return RoundSelection{}, ErrReadOnly
	}
	if err := s.sel.checkUnit(round, u); err != nil {
		return RoundSelection{}, err
	}
	prev := s.Value(round)
	r := s.sel.ensure(round).Clone()
	checked := r.flip(u)

	switch s.layout {
	case LayoutChapterMerge:
		if checked {
			r.Value = ChapterMerge(r, s.index)
		} else {
			r.Value = removeChapterTokens(prev, s.index.Unit(u))
		}
	case LayoutLessonMerge, LayoutLessonMergeFree:
		r.Value = LessonMerge(r, s.index)
	}
	r.Cached = true
	s.sel.put(r)
	return r.Clone(), nil
}

// DeleteLines 删除选区触及的所有预览行，并以剩余行重建缓存。只在自动模式下可用，不改变选择集合。
func (s *Synchronizer) DeleteLines(round int, sel TextRange) (RoundSelection, error) {
	switch s.mode {
	case ModeReadOnly:
		return RoundSelection{}, ErrReadOnly
	case ModeFreeEdit:
		return RoundSelection{}, ErrNotEditable
	case ModeAuto:
	}
	if round < 1 {
		return RoundSelection{}, ErrInvalidRound
	}
	text := utf16.Encode([]rune(s.Display(round)))
	sel = sel.normalize(len(text))
	if sel.Empty() {
		return s.sel.Round(round), nil
	}

	var kept []string
	ls := 0
	for ls <= len(text) {
		le := ls
		for le < len(text) && text[le] != '\n' {
			le++
		}
		// 行的范围包含其后的换行符。
		touched := sel.Start < le+1 && sel.End > ls
		if !touched {
			if line := strings.TrimSpace(string(utf16.Decode(text[ls:le]))); line != "" {
				kept = append(kept, line)
			}
		}
		ls = le + 1
	}

	r := s.sel.ensure(round).Clone()
	r.Value = s.encodeLines(kept)
	r.Cached = true
	s.sel.put(r)
	return r.Clone(), nil
}

func (s *Synchronizer) encodeLines(lines []string) string {
	switch s.layout {
	case LayoutChapterMerge:
		return strings.Join(lines, "|")
	case LayoutLessonMerge, LayoutLessonMergeFree:
		return JoinLessonTokens(lines)
	default:
		return ""
	}
}

// EditText 用预览框的自由文本改写缓存：逐行去空白、丢弃空行，编码为 "tok;" 空格连接。
// 选择集合保持不变，两者可以不一致。
func (s *Synchronizer) EditText(round int, text string) (RoundSelection, error) {
	switch s.mode {
	case ModeReadOnly:
		return RoundSelection{}, ErrReadOnly
	case ModeAuto:
		return RoundSelection{}, ErrNotEditable
	case ModeFreeEdit:
	}
	if round < 1 {
		return RoundSelection{}, ErrInvalidRound
	}
	r := s.sel.ensure(round).Clone()
	r.Value = JoinLessonTokens(PreviewLines(text))
	r.Cached = true
	s.sel.put(r)
	return r.Clone(), nil
}
