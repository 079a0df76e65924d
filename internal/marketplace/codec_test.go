package marketplace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeSelected_ChapterScenario(t *testing.T) {
	ix := chapterIndex(map[int]string{1: "x", 3: "y|z"})
	sync := NewSynchronizer(LayoutChapterMerge, ModeAuto, ix, NewSelections(LayoutChapterMerge))

	_, err := sync.Toggle(1, ChapterUnit(1))
	require.NoError(t, err)
	_, err = sync.Toggle(1, ChapterUnit(3))
	require.NoError(t, err)
	sync.Materialize(2)

	got := string(EncodeSelected(LayoutChapterMerge, sync.Selections().Rounds(2)))
	assert.Equal(t, "round,selected,value\n1,1|3,\"x|y|z\"\n2,,\"\"", got)
}

func TestEncodeSelected_LessonAndQuotes(t *testing.T) {
	r := NewRoundSelection(1)
	r.Lessons[LessonCode{3, 1}] = struct{}{}
	r.Lessons[LessonCode{1, 12}] = struct{}{}
	r.Value = `say "hi"; ok;`
	r.Cached = true

	got := string(EncodeSelected(LayoutLessonMerge, []RoundSelection{r}))
	assert.Equal(t, "round,selected,value\n1,1-12|3-01,\"say \"\"hi\"\"; ok;\"", got)
}

func TestEncodeSelected_NoRounds(t *testing.T) {
	assert.Equal(t, SelectedHeader, string(EncodeSelected(LayoutChapterMerge, nil)))
}

func TestSelectedRoundTrip(t *testing.T) {
	chapter := func() []RoundSelection {
		a := NewRoundSelection(1)
		a.Chapters[0], a.Chapters[2] = true, true
		a.Value, a.Cached = "x|y|z", true
		b := NewRoundSelection(2)
		b.Cached = true
		c := NewRoundSelection(3)
		c.Chapters[5] = true
		c.Value, c.Cached = "free, text with comma", true
		return []RoundSelection{a, b, c}
	}
	lesson := func() []RoundSelection {
		a := NewRoundSelection(1)
		a.Lessons[LessonCode{1, 1}] = struct{}{}
		a.Lessons[LessonCode{3, 30}] = struct{}{}
		a.Value, a.Cached = "cat; dog; fox;", true
		b := NewRoundSelection(2)
		b.Value, b.Cached = `quote "me";`, true
		return []RoundSelection{a, b}
	}

	tests := []struct {
		name   string
		layout Layout
		in     []RoundSelection
	}{
		{name: "chapterMerge", layout: LayoutChapterMerge, in: chapter()},
		{name: "lessonMerge", layout: LayoutLessonMerge, in: lesson()},
		{name: "lessonMergeFree", layout: LayoutLessonMergeFree, in: lesson()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := DecodeSelected(tt.layout, EncodeSelected(tt.layout, tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.in, out)
		})
	}
}

func TestSelectedRoundTrip_ValueByteExact(t *testing.T) {
	r := NewRoundSelection(1)
	r.Chapters[1] = true
	r.Value = "  a|b \r c  "
	r.Cached = true

	got, err := DecodeSelected(LayoutChapterMerge, EncodeSelected(LayoutChapterMerge, []RoundSelection{r}))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, r, got[0])
}

func TestDecodeSelected_SkipsMalformed(t *testing.T) {
	data := []byte("round,selected,value\n" +
		"1,1|7|x|3,\"a|b\"\n" +
		"0,1,\"zero\"\n" +
		"abc,1,\"bad\"\n" +
		"2,,\n")

	out, err := DecodeSelected(LayoutChapterMerge, data)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, 1, out[0].Round)
	assert.Equal(t, []int{1, 3}, out[0].ChosenChapters())
	assert.Equal(t, "a|b", out[0].Value)
	assert.True(t, out[0].Cached)

	assert.Equal(t, 2, out[1].Round)
	assert.True(t, out[1].Empty())
	assert.Equal(t, "", out[1].Value)
}

func TestDecodeSelected_LessonCodesAndDuplicates(t *testing.T) {
	data := []byte("round,selected,value\n1,1-01|bogus|3-5,\"first\"\n1,1-02,\"second\"\n")

	out, err := DecodeSelected(LayoutLessonMerge, data)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []LessonCode{{1, 2}}, out[0].SortedLessons())
	assert.Equal(t, "second", out[0].Value)

	out, err = DecodeSelected(LayoutLessonMerge, []byte("round,selected,value\n1,1-01|3-5,\"v\""))
	require.NoError(t, err)
	assert.Equal(t, []LessonCode{{1, 1}, {3, 5}}, out[0].SortedLessons())
}

func TestDecodeSelected_Empty(t *testing.T) {
	out, err := DecodeSelected(LayoutChapterMerge, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
