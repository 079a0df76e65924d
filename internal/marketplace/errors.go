package marketplace

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownLayout = errors.New("未知的 layout")
	ErrInvalidField  = errors.New("字段值不合法")
	ErrTooManyRounds = fmt.Errorf("%w：轮次超过上限", ErrInvalidField)
	ErrUnknownField  = errors.New("未知字段")

	// ErrReadOnly 表示只读（查看）会话拒绝了修改。
	ErrReadOnly = errors.New("只读模式下不可修改")
	// ErrNotEditable 表示当前预览模式不支持该编辑手势。
	ErrNotEditable  = errors.New("当前模式不支持该操作")
	ErrInvalidUnit  = errors.New("无效的内容单元")
	ErrUnitMismatch = errors.New("内容单元与 layout 不匹配")
	ErrInvalidRound = errors.New("无效的轮次")
)
