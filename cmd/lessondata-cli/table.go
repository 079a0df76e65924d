package main

import (
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// table 按显示宽度对齐各列，中文标题不会把列挤歪。
type table struct {
	header []string
	rows   [][]string
}

func newTable(header ...string) *table {
	return &table{header: header}
}

func (t *table) Append(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) widths() []int {
	w := make([]int, len(t.header))
	measure := func(cells []string) {
		for i, c := range cells {
			if i >= len(w) {
				break
			}
			if n := runewidth.StringWidth(c); n > w[i] {
				w[i] = n
			}
		}
	}
	measure(t.header)
	for _, r := range t.rows {
		measure(r)
	}
	return w
}

func (t *table) Render(out io.Writer) error {
	w := t.widths()
	var b strings.Builder
	line := func(cells []string) {
		b.WriteString("|")
		for i := range w {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			b.WriteString(" ")
			b.WriteString(runewidth.FillRight(cell, w[i]))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}
	sep := func() {
		b.WriteString("+")
		for _, n := range w {
			b.WriteString(strings.Repeat("-", n+2))
			b.WriteString("+")
		}
		b.WriteString("\n")
	}
	sep()
	line(t.header)
	sep()
	for _, r := range t.rows {
		line(r)
	}
	sep()
	_, err := io.WriteString(out, b.String())
	return err
}

// truncate 把多行文本压成一行并按显示宽度截断。
func truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	return runewidth.Truncate(s, width, "…")
}
