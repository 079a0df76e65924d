package marketplace

import "fmt"

// ViewModel 是编辑/查看弹窗的完整描述，与具体前端框架无关。
type ViewModel struct {
	GameKey  string         `json:"game_key"`
	Title    string         `json:"title"`
	Layout   Layout         `json:"layout"`
	Mode     Mode           `json:"mode"`
	ReadOnly bool           `json:"readonly"`
	Fields   []FieldView    `json:"fields"`
	Rounds   []RoundView    `json:"rounds"`
	Content  []ContentBlock `json:"content,omitempty"`
}

type FieldView struct {
	EditorField
	Value Value `json:"value"`
}

// RoundView 描述一轮的预览框与勾选项。
type RoundView struct {
	Round   int    `json:"round"`
	Value   string `json:"value"`
	Preview string `json:"preview"`
	// Editable 为 true 时预览框可自由输入；LineDelete 为 true 时支持整行删除。
	Editable   bool            `json:"editable"`
	LineDelete bool            `json:"line_delete"`
	Chapters   []ChapterOption `json:"chapters,omitempty"`
	Levels     []LevelView     `json:"levels,omitempty"`
}

type ChapterOption struct {
	Chapter    int    `json:"chapter"`
	Label      string `json:"label"`
	Checked    bool   `json:"checked"`
	Disabled   bool   `json:"disabled"`
	HasContent bool   `json:"has_content"`
}

// LevelView 与 GroupView 的 Highlight 表示其下至少有一课被选中。
type LevelView struct {
	Level     int         `json:"level"`
	Label     string      `json:"label"`
	Highlight bool        `json:"highlight"`
	Groups    []GroupView `json:"groups"`
}

type GroupView struct {
	Label     string         `json:"label"`
	Highlight bool           `json:"highlight"`
	Lessons   []LessonOption `json:"lessons"`
}

type LessonOption struct {
	Code       string `json:"code"`
	Lesson     int    `json:"lesson"`
	Checked    bool   `json:"checked"`
	Disabled   bool   `json:"disabled"`
	HasContent bool   `json:"has_content"`
}

// RenderInput 汇总渲染所需的全部数据。
type RenderInput struct {
	Game       Game
	Mode       Mode
	Index      ContentIndex
	Selections []RoundSelection
	Fields     []EditorField
	Content    []ContentBlock
}

// Render 生成弹窗视图。Selections 应为 1..rounds 的选择。
func Render(in RenderInput) ViewModel {
	vm := ViewModel{
		GameKey:  in.Game.Key,
		Title:    in.Game.Title,
		Layout:   in.Game.Layout,
		Mode:     in.Mode,
		ReadOnly: in.Mode == ModeReadOnly,
		Content:  in.Content,
	}
	for _, f := range in.Fields {
		v, _ := in.Game.Field(f.Key)
		if in.Mode == ModeReadOnly {
			f.ReadOnly = true
		}
		vm.Fields = append(vm.Fields, FieldView{EditorField: f, Value: v})
	}
	for _, sel := range in.Selections {
		vm.Rounds = append(vm.Rounds, RenderRound(in.Game.Layout, sel, in.Index, in.Mode))
	}
	return vm
}

// RenderRound 渲染一轮：预览取缓存或实时合并结果。
func RenderRound(layout Layout, sel RoundSelection, ix ContentIndex, mode Mode) RoundView {
	value := sel.Value
	if !sel.Cached {
		value = Merge(layout, sel, ix)
	}
	rv := RoundView{
		Round:      sel.Round,
		Value:      value,
		Preview:    DisplayText(value),
		Editable:   mode == ModeFreeEdit,
		LineDelete: mode == ModeAuto,
	}
	disabled := mode == ModeReadOnly

	switch layout {
	case LayoutChapterMerge:
		for n := 1; n <= ChapterCount; n++ {
			rv.Chapters = append(rv.Chapters, ChapterOption{
				Chapter:    n,
				Label:      fmt.Sprintf("Chapter %d", n),
				Checked:    sel.HasChapter(n),
				Disabled:   disabled,
				HasContent: ix.Chapter(n) != "",
			})
		}
	case LayoutLessonMerge, LayoutLessonMergeFree:
		for _, level := range Levels {
			lv := LevelView{Level: level, Label: fmt.Sprintf("Level %d", level)}
			for _, g := range LessonGroups() {
				gv := GroupView{Label: g.Label()}
				for lesson := g.Start; lesson <= g.End; lesson++ {
					code := LessonCode{Level: level, Lesson: lesson}
					checked := sel.HasLesson(code)
					gv.Lessons = append(gv.Lessons, LessonOption{
						Code:       code.String(),
						Lesson:     lesson,
						Checked:    checked,
						Disabled:   disabled,
						HasContent: ix.Lesson(code) != "",
					})
					if checked {
						gv.Highlight = true
					}
				}
				if gv.Highlight {
					lv.Highlight = true
				}
				lv.Groups = append(lv.Groups, gv)
			}
			rv.Levels = append(rv.Levels, lv)
		}
	}
	return rv
}
