package marketplace

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

type ValueKind int

const (
	KindString ValueKind = iota
	KindBool
	KindNumber
)

// Value 是 config.csv 中的标量值。解析顺序与控制台一致：true/false → 布尔，数字 → 数值，其余为字符串。
// 原始文本会被保留，写回时不改变数字的书写形式。
type Value struct {
	kind ValueKind
	raw  string
	b    bool
	n    decimal.Decimal
}

func ParseValue(raw string) Value {
	raw = strings.TrimSpace(raw)
	switch raw {
	case "true":
		return Value{kind: KindBool, raw: raw, b: true}
	case "false":
		return Value{kind: KindBool, raw: raw, b: false}
	case "":
		return Value{kind: KindString}
	}
	if d, err := decimal.NewFromString(raw); err == nil {
		return Value{kind: KindNumber, raw: raw, n: d}
	}
	return Value{kind: KindString, raw: raw}
}

func StringValue(s string) Value {
	return Value{kind: KindString, raw: s}
}

func BoolValue(b bool) Value {
	if b {
		return Value{kind: KindBool, raw: "true", b: true}
	}
	return Value{kind: KindBool, raw: "false"}
}

func IntValue(n int) Value {
	d := decimal.NewFromInt(int64(n))
	return Value{kind: KindNumber, raw: d.String(), n: d}
}

func (v Value) Kind() ValueKind { return v.kind }

// String 返回写回 CSV 时使用的文本。
func (v Value) String() string { return v.raw }

func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) Number() (decimal.Decimal, bool) {
	return v.n, v.kind == KindNumber
}

// Int 返回整数部分；非数值返回 false。
func (v Value) Int() (int, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return int(v.n.IntPart()), true
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		return []byte(v.n.String()), nil
	default:
		return json.Marshal(v.raw)
	}
}
