package marketplace

import (
	"github.com/yitongOE/LessonData/internal/csvfile"
)

// ElementRule 是 MarketplaceElementRule.csv 的一行：字段在面板与编辑器中的可见性策略。
type ElementRule struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	InPanel     bool   `json:"in_panel"`
	InEditor    bool   `json:"in_editor"`
	CanReadOnly bool   `json:"can_read_only"`
	IsContent   bool   `json:"is_content"`
}

// RuleTable 保持文件中的行顺序，面板列与编辑字段均按此顺序输出。
type RuleTable []ElementRule

// DefaultRules 在规则文件缺失时使用。
func DefaultRules() RuleTable {
	return RuleTable{
		{Key: "title", Label: "Title", InPanel: true, InEditor: true},
		{Key: "version", Label: "Version", InPanel: true, CanReadOnly: true},
		{Key: "active", Label: "Active", InPanel: true, InEditor: true},
		{Key: "rounds", Label: "Rounds", InPanel: true, InEditor: true},
		{Key: "layout", Label: "Layout", InPanel: true, CanReadOnly: true},
		{Key: "lightning_timer", Label: "Lightning Timer", InEditor: true},
		{Key: "max_wrong", Label: "Max Wrong", InEditor: true},
		{Key: "updatedAt", Label: "Updated At", InPanel: true, CanReadOnly: true},
		{Key: "updatedBy", Label: "Updated By", InPanel: true, CanReadOnly: true},
	}
}

func ParseRules(data []byte) (RuleTable, error) {
	t, err := csvfile.Parse(data)
	if err != nil {
		return nil, err
	}
	out := make(RuleTable, 0, len(t.Rows))
	for _, row := range t.Rows {
		key := row.Get("key")
		if key == "" {
			continue
		}
		label := row.Get("label")
		if label == "" {
			label = key
		}
		out = append(out, ElementRule{
			Key:         key,
			Label:       label,
			InPanel:     row.Get("inPanel") == "true",
			InEditor:    row.Get("inEditor") == "true",
			CanReadOnly: row.Get("canReadOnly") == "true",
			IsContent:   row.Get("isContent") == "true",
		})
	}
	return out, nil
}

// PanelKeys 返回面板表格的列。
func (t RuleTable) PanelKeys() []string {
	var keys []string
	for _, r := range t {
		if r.InPanel {
			keys = append(keys, r.Key)
		}
	}
	return keys
}

// FieldType 是编辑表单控件类型。
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldCheckbox FieldType = "checkbox"
	FieldNumber   FieldType = "number"
	FieldSelect   FieldType = "select"
)

type EditorField struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	ReadOnly bool      `json:"readonly"`
	Options  []string  `json:"options,omitempty"`
}

// EditorFields 返回游戏上存在、且 inEditor 或 canReadOnly 的字段；非 inEditor 的字段只读。
// layout 在编辑会话中始终只读。
func (t RuleTable) EditorFields(g Game) []EditorField {
	var out []EditorField
	for _, r := range t {
		if !g.HasField(r.Key) {
			continue
		}
		if !r.InEditor && !r.CanReadOnly {
			continue
		}
		f := EditorField{Key: r.Key, Label: r.Label, Type: FieldText, ReadOnly: !r.InEditor}
		switch r.Key {
		case "active":
			f.Type = FieldCheckbox
		case "rounds", "levels", "lightning_timer", "max_wrong":
			f.Type = FieldNumber
		case "layout":
			f.Type = FieldSelect
			f.ReadOnly = true
			f.Options = []string{
				LayoutChapterMerge.String(),
				LayoutLessonMerge.String(),
				LayoutLessonMergeFree.String(),
			}
		}
		out = append(out, f)
	}
	return out
}

// ContentRule 是一个需要渲染内容块的字段。
type ContentRule struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// ContentCandidates 返回可能有内容块的字段：编辑会话要求 isContent 且 inEditor，查看会话只要求 isContent。
// 调用方还需确认 <key>.csv 存在。
func (t RuleTable) ContentCandidates(readOnly bool) []ContentRule {
	var out []ContentRule
	for _, r := range t {
		if !r.IsContent {
			continue
		}
		if !readOnly && !r.InEditor {
			continue
		}
		out = append(out, ContentRule{Key: r.Key, Label: r.Label})
	}
	return out
}
