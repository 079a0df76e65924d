package marketplace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func foxIndex(layout Layout) ContentIndex {
	return lessonIndex(layout, map[LessonCode]string{
		{Level: 1, Lesson: 1}: "cat; dog",
		{Level: 1, Lesson: 2}: "fox",
		{Level: 3, Lesson: 7}: "owl|bat",
	})
}

func TestLineAt(t *testing.T) {
	text := "cat\ndog\nfox"
	tests := []struct {
		offset int
		want   TextRange
	}{
		{offset: 0, want: TextRange{0, 3}},
		{offset: 3, want: TextRange{0, 3}},
		{offset: 5, want: TextRange{4, 7}},
		{offset: 10, want: TextRange{8, 11}},
		{offset: 99, want: TextRange{8, 11}},
		{offset: -1, want: TextRange{0, 3}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LineAt(text, tt.offset), "offset=%d", tt.offset)
	}

	// 偏移按 UTF-16 码元计算：基本平面字符占一个单位，emoji 占两个。
	assert.Equal(t, TextRange{3, 5}, LineAt("苹果\n香蕉", 4))
	assert.Equal(t, TextRange{3, 6}, LineAt("🦊\nfox", 4))
	assert.Equal(t, TextRange{0, 2}, LineAt("🦊\nfox", 1))
}

func TestSynchronizer_DeleteLinesUTF16Offsets(t *testing.T) {
	ix := chapterIndex(map[int]string{1: "🦊🦊|cat", 2: "dog"})
	sync := NewSynchronizer(LayoutChapterMerge, ModeAuto, ix, nil)
	_, err := sync.Toggle(1, ChapterUnit(1))
	require.NoError(t, err)
	_, err = sync.Toggle(1, ChapterUnit(2))
	require.NoError(t, err)

	display := sync.Display(1)
	require.Equal(t, "🦊🦊\ncat\ndog", display)

	line := LineAt(display, 10)
	require.Equal(t, TextRange{9, 12}, line)
	r, err := sync.DeleteLines(1, line)
	require.NoError(t, err)
	assert.Equal(t, "🦊🦊|cat", r.Value)
}

func TestSynchronizer_ToggleLessonOnOffRestores(t *testing.T) {
	ix := foxIndex(LayoutLessonMerge)
	sync := NewSynchronizer(LayoutLessonMerge, ModeAuto, ix, NewSelections(LayoutLessonMerge))

	_, err := sync.Toggle(1, LessonUnit(LessonCode{1, 1}))
	require.NoError(t, err)
	before := sync.Value(1)
	assert.Equal(t, "cat; dog;", before)

	r, err := sync.Toggle(1, LessonUnit(LessonCode{1, 2}))
	require.NoError(t, err)
	assert.Equal(t, "cat; dog; fox;", r.Value)
	assert.True(t, r.Cached)

	r, err = sync.Toggle(1, LessonUnit(LessonCode{1, 2}))
	require.NoError(t, err)
	assert.Equal(t, before, r.Value)
	assert.False(t, r.HasLesson(LessonCode{1, 2}))
}

func TestSynchronizer_ToggleChapterUncheckFilters(t *testing.T) {
	ix := chapterIndex(map[int]string{1: "x", 2: "a|b", 3: "y|z"})
	sync := NewSynchronizer(LayoutChapterMerge, ModeAuto, ix, nil)

	for _, ch := range []int{1, 2, 3} {
		_, err := sync.Toggle(1, ChapterUnit(ch))
		require.NoError(t, err)
	}
	require.Equal(t, "x|a|b|y|z", sync.Value(1))

	// 先手动删掉一行，再取消章节 2：缓存里的删除保留，只剔除章节 2 的词句。
	_, err := sync.DeleteLines(1, TextRange{Start: 0, End: 1})
	require.NoError(t, err)
	require.Equal(t, "a|b|y|z", sync.Value(1))

	r, err := sync.Toggle(1, ChapterUnit(2))
	require.NoError(t, err)
	assert.Equal(t, "y|z", r.Value)
	assert.Equal(t, []int{1, 3}, r.ChosenChapters())

	// 再次勾选时整体重算。
	r, err = sync.Toggle(1, ChapterUnit(2))
	require.NoError(t, err)
	assert.Equal(t, "x|a|b|y|z", r.Value)
}

func TestSynchronizer_ToggleErrors(t *testing.T) {
	ro := NewSynchronizer(LayoutLessonMerge, ModeReadOnly, foxIndex(LayoutLessonMerge), nil)
	_, err := ro.Toggle(1, LessonUnit(LessonCode{1, 1}))
	assert.ErrorIs(t, err, ErrReadOnly)

	sync := NewSynchronizer(LayoutLessonMerge, ModeAuto, foxIndex(LayoutLessonMerge), nil)
	_, err = sync.Toggle(1, ChapterUnit(1))
	assert.ErrorIs(t, err, ErrUnitMismatch)
	_, err = sync.Toggle(1, LessonUnit(LessonCode{2, 1}))
	assert.ErrorIs(t, err, ErrInvalidUnit)
	_, err = sync.Toggle(1, LessonUnit(LessonCode{1, 31}))
	assert.ErrorIs(t, err, ErrInvalidUnit)
	_, err = sync.Toggle(0, LessonUnit(LessonCode{1, 1}))
	assert.ErrorIs(t, err, ErrInvalidRound)

	ch := NewSynchronizer(LayoutChapterMerge, ModeAuto, EmptyContentIndex(LayoutChapterMerge), nil)
	_, err = ch.Toggle(1, ChapterUnit(7))
	assert.ErrorIs(t, err, ErrInvalidUnit)
}

func TestSynchronizer_DeleteMiddleLine(t *testing.T) {
	ix := foxIndex(LayoutLessonMerge)
	sync := NewSynchronizer(LayoutLessonMerge, ModeAuto, ix, nil)
	_, err := sync.Toggle(1, LessonUnit(LessonCode{1, 1}))
	require.NoError(t, err)
	_, err = sync.Toggle(1, LessonUnit(LessonCode{1, 2}))
	require.NoError(t, err)

	display := sync.Display(1)
	require.Equal(t, "cat\ndog\nfox", display)

	r, err := sync.DeleteLines(1, LineAt(display, 5))
	require.NoError(t, err)
	assert.Equal(t, "cat; fox;", r.Value)
	assert.Equal(t, []LessonCode{{1, 1}, {1, 2}}, r.SortedLessons())
}

func TestSynchronizer_DeleteLinesSpanningAndEmpty(t *testing.T) {
	ix := foxIndex(LayoutLessonMerge)
	sel := SelectionsFrom(LayoutLessonMerge, []RoundSelection{{
		Round:   1,
		Lessons: map[LessonCode]struct{}{{1, 1}: {}},
		Value:   "cat; dog; fox;",
		Cached:  true,
	}})
	sync := NewSynchronizer(LayoutLessonMerge, ModeAuto, ix, sel)

	// 空选区不删除任何内容。
	r, err := sync.DeleteLines(1, TextRange{Start: 2, End: 2})
	require.NoError(t, err)
	assert.Equal(t, "cat; dog; fox;", r.Value)

	// 选区从第一行末尾跨到第二行开头：两行都被删除。
	r, err = sync.DeleteLines(1, TextRange{Start: 2, End: 5})
	require.NoError(t, err)
	assert.Equal(t, "fox;", r.Value)

	// 反向选区同样有效。
	r, err = sync.DeleteLines(1, TextRange{Start: 3, End: 0})
	require.NoError(t, err)
	assert.Equal(t, "", r.Value)
	assert.True(t, r.Cached)
}

func TestSynchronizer_DeleteLinesModes(t *testing.T) {
	ix := foxIndex(LayoutLessonMergeFree)

	ro := NewSynchronizer(LayoutLessonMerge, ModeReadOnly, ix, nil)
	_, err := ro.DeleteLines(1, TextRange{0, 1})
	assert.ErrorIs(t, err, ErrReadOnly)

	free := NewSynchronizer(LayoutLessonMergeFree, ModeFreeEdit, ix, nil)
	_, err = free.DeleteLines(1, TextRange{0, 1})
	assert.ErrorIs(t, err, ErrNotEditable)
}

func TestSynchronizer_DeleteLinesChapter(t *testing.T) {
	ix := chapterIndex(map[int]string{1: "x", 3: "y|z"})
	sync := NewSynchronizer(LayoutChapterMerge, ModeAuto, ix, nil)
	_, _ = sync.Toggle(2, ChapterUnit(1))
	_, _ = sync.Toggle(2, ChapterUnit(3))

	r, err := sync.DeleteLines(2, LineAt(sync.Display(2), 2))
	require.NoError(t, err)
	assert.Equal(t, "x|z", r.Value)
	assert.Equal(t, []int{1, 3}, r.ChosenChapters())
}

func TestSynchronizer_EditTextKeepsSelection(t *testing.T) {
	ix := foxIndex(LayoutLessonMergeFree)
	sync := NewSynchronizer(LayoutLessonMergeFree, ModeFreeEdit, ix, nil)
	_, err := sync.Toggle(1, LessonUnit(LessonCode{1, 1}))
	require.NoError(t, err)

	r, err := sync.EditText(1, "  lion \n\n tiger;\r\nbear  ")
	require.NoError(t, err)
	assert.Equal(t, "lion; tiger; bear;", r.Value)
	assert.Equal(t, []LessonCode{{1, 1}}, r.SortedLessons())
	assert.Equal(t, "lion\ntiger\nbear", sync.Display(1))

	r, err = sync.EditText(1, "\n \n")
	require.NoError(t, err)
	assert.Equal(t, "", r.Value)
}

func TestSynchronizer_EditTextModes(t *testing.T) {
	ix := foxIndex(LayoutLessonMerge)

	auto := NewSynchronizer(LayoutLessonMerge, ModeAuto, ix, nil)
	_, err := auto.EditText(1, "x")
	assert.ErrorIs(t, err, ErrNotEditable)

	ro := NewSynchronizer(LayoutLessonMergeFree, ModeReadOnly, ix, nil)
	_, err = ro.EditText(1, "x")
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestSynchronizer_ValueUsesCacheThenMerge(t *testing.T) {
	ix := foxIndex(LayoutLessonMerge)
	sel := SelectionsFrom(LayoutLessonMerge, []RoundSelection{
		{Round: 1, Lessons: map[LessonCode]struct{}{{1, 2}: {}}, Value: "stale;", Cached: true},
		{Round: 2, Lessons: map[LessonCode]struct{}{{1, 2}: {}}},
	})
	sync := NewSynchronizer(LayoutLessonMerge, ModeAuto, ix, sel)

	assert.Equal(t, "stale;", sync.Value(1))
	assert.Equal(t, "fox;", sync.Value(2))
	assert.Equal(t, "", sync.Value(3))

	sync.Materialize(3)
	rounds := sync.Selections().Rounds(3)
	require.Len(t, rounds, 3)
	for _, r := range rounds {
		assert.True(t, r.Cached, "round %d", r.Round)
	}
	assert.Equal(t, "stale;", rounds[0].Value)
	assert.Equal(t, "fox;", rounds[1].Value)
	assert.Equal(t, "", rounds[2].Value)
}

func TestModeFor(t *testing.T) {
	assert.Equal(t, ModeReadOnly, ModeFor(LayoutLessonMergeFree, true))
	assert.Equal(t, ModeReadOnly, ModeFor(LayoutChapterMerge, true))
	assert.Equal(t, ModeFreeEdit, ModeFor(LayoutLessonMergeFree, false))
	assert.Equal(t, ModeAuto, ModeFor(LayoutLessonMerge, false))
	assert.Equal(t, ModeAuto, ModeFor(LayoutChapterMerge, false))
}

func TestHandleKey(t *testing.T) {
	tests := []struct {
		name      string
		mode      Mode
		key       Key
		selection bool
		want      KeyAction
	}{
		{name: "readonly copy", mode: ModeReadOnly, key: Key{Name: "c", Ctrl: true}, want: KeyAllow},
		{name: "readonly select all meta", mode: ModeReadOnly, key: Key{Name: "A", Meta: true}, want: KeyAllow},
		{name: "readonly bare modifier", mode: ModeReadOnly, key: Key{Name: "Shift", Shift: true}, want: KeyAllow},
		{name: "readonly delete", mode: ModeReadOnly, key: Key{Name: "Delete"}, selection: true, want: KeySuppress},
		{name: "readonly paste", mode: ModeReadOnly, key: Key{Name: "v", Ctrl: true}, want: KeySuppress},
		{name: "auto typing", mode: ModeAuto, key: Key{Name: "x"}, selection: true, want: KeySuppress},
		{name: "auto delete with selection", mode: ModeAuto, key: Key{Name: "Delete"}, selection: true, want: KeyDeleteLines},
		{name: "auto backspace with selection", mode: ModeAuto, key: Key{Name: "Backspace"}, selection: true, want: KeyDeleteLines},
		{name: "auto backspace without selection", mode: ModeAuto, key: Key{Name: "Backspace"}, want: KeySuppress},
		{name: "auto copy", mode: ModeAuto, key: Key{Name: "c", Meta: true}, want: KeyAllow},
		{name: "auto enter", mode: ModeAuto, key: Key{Name: "Enter"}, want: KeySuppress},
		{name: "free typing", mode: ModeFreeEdit, key: Key{Name: "x"}, want: KeyAllow},
		{name: "free enter", mode: ModeFreeEdit, key: Key{Name: "Enter"}, want: KeyAllow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.mode.HandleKey(tt.key, tt.selection))
		})
	}
}
