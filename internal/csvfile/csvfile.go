// Package csvfile 负责 CSV 资源的解析与序列化，统一引号与空行规则，避免各面板各写一套。
package csvfile

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Row 是按表头索引的一行数据。
type Row map[string]string

// Get 返回去掉首尾空白的字段值，适用于编号、数字等列。
func (r Row) Get(key string) string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r[key])
}

// Raw 返回解析后的原始字段值（仅去掉外层引号），引号内的空白与换行原样保留。
func (r Row) Raw(key string) string {
	if r == nil {
		return ""
	}
	return r[key]
}

type Table struct {
	Header []string
	Rows   []Row
}

// Parse 解析带表头的 CSV 文本。空行会被跳过，缺失的列按空字符串处理。
// 字段值按原样保存，读取时用 Get 去空白或用 Raw 取原值。
func Parse(data []byte) (Table, error) {
	text := normalizeLineEnds(strings.TrimPrefix(string(data), "\ufeff"))

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var t Table
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("解析 CSV 失败: %w", err)
		}
		if isBlankRecord(rec) {
			continue
		}
		if t.Header == nil {
			t.Header = make([]string, len(rec))
			for i, h := range rec {
				t.Header[i] = strings.TrimSpace(h)
			}
			continue
		}
		row := make(Row, len(t.Header))
		for i, h := range t.Header {
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// normalizeLineEnds 把引号外的 \r\n 与单独的 \r 换成 \n，引号内的内容不动。
func normalizeLineEnds(text string) string {
	if !strings.Contains(text, "\r") {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	inQuotes := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case c == '\r' && !inQuotes:
			if i+1 < len(text) && text[i+1] == '\n' {
				continue
			}
			c = '\n'
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isBlankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// KV 是 key,value 结构配置文件中的一项。
type KV struct {
	Key   string
	Value string
}

// ParseKeyValues 解析 key,value 结构的配置 CSV，保留原始顺序；重复 key 以最后一次为准。
func ParseKeyValues(data []byte) ([]KV, error) {
	t, err := Parse(data)
	if err != nil {
		return nil, err
	}
	out := make([]KV, 0, len(t.Rows))
	seen := make(map[string]int, len(t.Rows))
	for _, row := range t.Rows {
		key := row.Get("key")
		if key == "" {
			continue
		}
		if i, ok := seen[key]; ok {
			out[i].Value = row.Get("value")
			continue
		}
		seen[key] = len(out)
		out = append(out, KV{Key: key, Value: row.Get("value")})
	}
	return out, nil
}

// EncodeKeyValues 输出 key,value 配置 CSV。
func EncodeKeyValues(kvs []KV) []byte {
	rows := make([][]string, 0, len(kvs))
	for _, kv := range kvs {
		rows = append(rows, []string{kv.Key, kv.Value})
	}
	return Encode([]string{"key", "value"}, rows)
}

// Encode 按行输出 CSV，行之间以 \n 分隔且末尾不带换行。
func Encode(header []string, rows [][]string) []byte {
	var buf bytes.Buffer
	writeLine(&buf, header)
	for _, row := range rows {
		buf.WriteByte('\n')
		writeLine(&buf, row)
	}
	return buf.Bytes()
}

func writeLine(buf *bytes.Buffer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(Field(f))
	}
}

// Field 仅在需要时加引号（含逗号、引号或换行）。
func Field(s string) string {
	if strings.ContainsAny(s, ",\"\n\r") {
		return Quote(s)
	}
	return s
}

// Quote 无条件加引号，内部引号转义为两个引号。
func Quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
