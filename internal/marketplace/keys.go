package marketplace

import (
	"fmt"
	"strings"
)

// Mode 是预览框的编辑方式。
type Mode int

const (
	// ModeReadOnly 用于查看会话：预览框完全锁定。
	ModeReadOnly Mode = iota + 1
	// ModeAuto 不能输入，但可以选中整行后删除。
	ModeAuto
	// ModeFreeEdit 可自由编辑，仅 lessonMergeFree 布局在编辑会话中使用。
	ModeFreeEdit
)

// ModeFor 由布局与会话是否只读决定预览方式。
func ModeFor(layout Layout, readOnly bool) Mode {
	if readOnly {
		return ModeReadOnly
	}
	switch layout {
	case LayoutLessonMergeFree:
		return ModeFreeEdit
	case LayoutChapterMerge, LayoutLessonMerge:
		return ModeAuto
	default:
		return ModeAuto
	}
}

func (m Mode) String() string {
	switch m {
	case ModeReadOnly:
		return "readonly"
	case ModeAuto:
		return "auto"
	case ModeFreeEdit:
		return "free"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Key 描述一次按键，Name 取浏览器 KeyboardEvent.key 的值。
type Key struct {
	Name  string `json:"key"`
	Ctrl  bool   `json:"ctrl"`
	Meta  bool   `json:"meta"`
	Alt   bool   `json:"alt"`
	Shift bool   `json:"shift"`
}

// KeyAction 是对按键的处理结果。
type KeyAction int

const (
	KeySuppress KeyAction = iota
	KeyAllow
	KeyDeleteLines
)

func (a KeyAction) String() string {
	switch a {
	case KeySuppress:
		return "suppress"
	case KeyAllow:
		return "allow"
	case KeyDeleteLines:
		return "delete-lines"
	default:
		return fmt.Sprintf("KeyAction(%d)", int(a))
	}
}

func (a KeyAction) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (k Key) modifierOnly() bool {
	switch k.Name {
	case "Control", "Meta", "Alt", "Shift", "CapsLock", "OS":
		return true
	}
	return false
}

// copyOrSelectAll 对应 Ctrl/Cmd + C 与 Ctrl/Cmd + A。
func (k Key) copyOrSelectAll() bool {
	if !k.Ctrl && !k.Meta {
		return false
	}
	switch strings.ToLower(k.Name) {
	case "c", "a":
		return true
	}
	return false
}

// HandleKey 决定预览框对按键的反应。hasSelection 表示预览框中存在非空选区。
func (m Mode) HandleKey(k Key, hasSelection bool) KeyAction {
	switch m {
	case ModeFreeEdit:
		return KeyAllow
	case ModeAuto:
		if k.modifierOnly() || k.copyOrSelectAll() {
			return KeyAllow
		}
		if hasSelection && (k.Name == "Delete" || k.Name == "Backspace") {
			return KeyDeleteLines
		}
		return KeySuppress
	case ModeReadOnly:
		if k.modifierOnly() || k.copyOrSelectAll() {
			return KeyAllow
		}
		return KeySuppress
	default:
		return KeySuppress
	}
}
