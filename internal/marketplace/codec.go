package marketplace

import (
	"strconv"
	"strings"

	"github.com/yitongOE/LessonData/internal/csvfile"
)

// SelectedHeader 是 selected.csv 的表头。
const SelectedHeader = "round,selected,value"

// EncodeSelected 输出 selected.csv：selected 为 "|" 连接的单元编号，value 始终加引号。
func EncodeSelected(layout Layout, rounds []RoundSelection) []byte {
	var b strings.Builder
	b.WriteString(SelectedHeader)
	for _, r := range rounds {
		b.WriteByte('\n')
		b.WriteString(strconv.Itoa(r.Round))
		b.WriteByte(',')
		b.WriteString(selectedIDs(layout, r))
		b.WriteByte(',')
		b.WriteString(csvfile.Quote(r.Value))
	}
	return []byte(b.String())
}

func selectedIDs(layout Layout, r RoundSelection) string {
	var ids []string
	switch layout {
	case LayoutChapterMerge:
		for _, n := range r.ChosenChapters() {
			ids = append(ids, strconv.Itoa(n))
		}
	case LayoutLessonMerge, LayoutLessonMergeFree:
		for _, c := range r.SortedLessons() {
			ids = append(ids, c.String())
		}
	}
	return strings.Join(ids, "|")
}

// DecodeSelected 解析 selected.csv。轮次号非正、单元编号无法识别的条目被跳过；
// 每一条解码出的轮次都带有缓存值，value 保留引号内的原文。
func DecodeSelected(layout Layout, data []byte) ([]RoundSelection, error) {
	t, err := csvfile.Parse(data)
	if err != nil {
		return nil, err
	}
	var out []RoundSelection
	index := make(map[int]int)
	for _, row := range t.Rows {
		round, err := strconv.Atoi(row.Get("round"))
		if err != nil || round < 1 {
			continue
		}
		r := NewRoundSelection(round)
		for _, id := range strings.Split(row.Get("selected"), "|") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			switch layout {
			case LayoutChapterMerge:
				n, err := strconv.Atoi(id)
				if err != nil || n < 1 || n > ChapterCount {
					continue
				}
				r.Chapters[n-1] = true
			case LayoutLessonMerge, LayoutLessonMergeFree:
				code, ok := ParseLessonCode(id)
				if !ok {
					continue
				}
				r.Lessons[code] = struct{}{}
			}
		}
		r.Value = row.Raw("value")
		r.Cached = true
		if i, ok := index[round]; ok {
			out[i] = r
			continue
		}
		index[round] = len(out)
		out = append(out, r)
	}
	return out, nil
}
