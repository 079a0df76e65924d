package marketplace

import (
	"sort"
	"strconv"

	"github.com/yitongOE/LessonData/internal/csvfile"
)

// BlockRow 是内容块中某一等级的文本。
type BlockRow struct {
	Level int    `json:"level"`
	Value string `json:"value"`
}

// ContentBlock 是游戏目录下 <key>.csv（level,value）的只读展示。
type ContentBlock struct {
	Key   string     `json:"key"`
	Label string     `json:"label"`
	Rows  []BlockRow `json:"rows"`
}

// ParseContentBlock 解析 level,value 形式的内容文件，按等级排序；等级无法解析的行跳过。
func ParseContentBlock(rule ContentRule, data []byte) (ContentBlock, error) {
	t, err := csvfile.Parse(data)
	if err != nil {
		return ContentBlock{}, err
	}
	b := ContentBlock{Key: rule.Key, Label: rule.Label}
	for _, row := range t.Rows {
		lv, err := strconv.Atoi(row.Get("level"))
		if err != nil {
			continue
		}
		b.Rows = append(b.Rows, BlockRow{Level: lv, Value: row.Get("value")})
	}
	sort.SliceStable(b.Rows, func(i, j int) bool { return b.Rows[i].Level < b.Rows[j].Level })
	return b, nil
}

// SyncLevels 让内容块恰好有 1..levels 行，已有等级的文本保留，缺失的补空。
// levels 超过 MaxLevels 时按上限处理。
func (b ContentBlock) SyncLevels(levels int) ContentBlock {
	levels = min(levels, MaxLevels)
	existing := make(map[int]string, len(b.Rows))
	for _, r := range b.Rows {
		existing[r.Level] = r.Value
	}
	out := ContentBlock{Key: b.Key, Label: b.Label, Rows: make([]BlockRow, 0, max(levels, 0))}
	for lv := 1; lv <= levels; lv++ {
		out.Rows = append(out.Rows, BlockRow{Level: lv, Value: existing[lv]})
	}
	return out
}
