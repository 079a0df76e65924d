package marketplace

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yitongOE/LessonData/internal/csvfile"
)

const (
	DefaultLightningTimer = 90
	DefaultMaxWrong       = 3

	// MaxRounds 是单个游戏允许的轮次上限，MaxLevels 是内容块的等级上限。
	MaxRounds = 100
	MaxLevels = 100

	// UpdatedAtLayout 与旧版控制台 toLocaleString() 的 en-US 输出一致。
	UpdatedAtLayout = "1/2/2006, 3:04:05 PM"
)

// configKeyOrder 是写回 config.csv 时固定字段的顺序，额外字段按读取顺序追加在后面。
var configKeyOrder = []string{
	"version",
	"title",
	"active",
	"rounds",
	"updatedAt",
	"updatedBy",
	"lightning_timer",
	"max_wrong",
	"layout",
}

// Extra 是 config.csv 中固定字段以外的标量项。
type Extra struct {
	Key   string
	Value Value
}

// Game 是 marketplace/<Key>/config.csv 的内存形态，Key 即目录名。
type Game struct {
	Key            string
	Version        string
	Title          string
	Active         bool
	Rounds         int
	Layout         Layout
	UpdatedAt      string
	UpdatedBy      string
	LightningTimer int
	MaxWrong       int
	Extras         []Extra
}

// ParseGame 从 key,value 配置项构造 Game。layout 无法识别时仍返回按 chapterMerge 处理的 Game，
// 同时返回包装了 ErrUnknownLayout 的错误；rounds 超过 MaxRounds 时截断为上限并返回 ErrTooManyRounds。
// 由调用方决定是否仅记录告警。
func ParseGame(key string, kvs []csvfile.KV) (Game, error) {
	g := Game{
		Key:            key,
		Layout:         LayoutChapterMerge,
		LightningTimer: DefaultLightningTimer,
		MaxWrong:       DefaultMaxWrong,
	}
	var layoutErr, roundsErr error
	for _, kv := range kvs {
		switch kv.Key {
		case "version":
			g.Version = kv.Value
		case "title":
			g.Title = kv.Value
		case "active":
			g.Active = kv.Value == "true"
		case "rounds":
			g.Rounds = nonNegativeInt(kv.Value)
			if g.Rounds > MaxRounds {
				roundsErr = fmt.Errorf("%w：%s rounds=%d", ErrTooManyRounds, key, g.Rounds)
				g.Rounds = MaxRounds
			}
		case "updatedAt":
			g.UpdatedAt = kv.Value
		case "updatedBy":
			g.UpdatedBy = kv.Value
		case "lightning_timer":
			g.LightningTimer = positiveIntOr(kv.Value, DefaultLightningTimer)
		case "max_wrong":
			g.MaxWrong = positiveIntOr(kv.Value, DefaultMaxWrong)
		case "layout":
			l, err := ParseLayout(kv.Value)
			if err != nil {
				layoutErr = fmt.Errorf("%w：%s/%q", ErrUnknownLayout, key, kv.Value)
			}
			g.Layout = l
		case "key":
		default:
			g.Extras = append(g.Extras, Extra{Key: kv.Key, Value: ParseValue(kv.Value)})
		}
	}
	return g, errors.Join(layoutErr, roundsErr)
}

// ParseGameConfig 直接解析 config.csv 文本。
func ParseGameConfig(key string, data []byte) (Game, error) {
	kvs, err := csvfile.ParseKeyValues(data)
	if err != nil {
		return Game{}, err
	}
	return ParseGame(key, kvs)
}

func nonNegativeInt(raw string) int {
	v := ParseValue(raw)
	n, ok := v.Int()
	if !ok || n < 0 {
		return 0
	}
	return n
}

func positiveIntOr(raw string, def int) int {
	v := ParseValue(raw)
	n, ok := v.Int()
	if !ok || n <= 0 {
		return def
	}
	return n
}

// Clone 返回深拷贝，编辑会话据此持有独立草稿。
func (g Game) Clone() Game {
	out := g
	if g.Extras != nil {
		out.Extras = append([]Extra(nil), g.Extras...)
	}
	return out
}

// Field 按 key 读取字段，供面板列与编辑表单使用。
func (g Game) Field(key string) (Value, bool) {
	switch key {
	case "key":
		return StringValue(g.Key), true
	case "version":
		return ParseValue(g.Version), true
	case "title":
		return StringValue(g.Title), true
	case "active":
		return BoolValue(g.Active), true
	case "rounds":
		return IntValue(g.Rounds), true
	case "layout":
		return StringValue(g.Layout.String()), true
	case "updatedAt":
		return StringValue(g.UpdatedAt), true
	case "updatedBy":
		return StringValue(g.UpdatedBy), true
	case "lightning_timer":
		return IntValue(g.LightningTimer), true
	case "max_wrong":
		return IntValue(g.MaxWrong), true
	}
	for _, e := range g.Extras {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// HasField 对应控制台里 `key in game` 的判断。
func (g Game) HasField(key string) bool {
	_, ok := g.Field(key)
	return ok
}

// SetField 以文本形式修改字段。rounds 小于 0 时按 0 处理。
func (g *Game) SetField(key string, raw string) error {
	raw = strings.TrimSpace(raw)
	switch key {
	case "key":
		return fmt.Errorf("%w：key 不可修改", ErrInvalidField)
	case "version":
		g.Version = raw
	case "title":
		g.Title = raw
	case "active":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%w：active=%q", ErrInvalidField, raw)
		}
		g.Active = b
	case "rounds":
		v := ParseValue(raw)
		n, ok := v.Int()
		if !ok {
			return fmt.Errorf("%w：rounds=%q", ErrInvalidField, raw)
		}
		if n < 0 {
			n = 0
		}
		if n > MaxRounds {
			return fmt.Errorf("%w：rounds=%d，上限为 %d", ErrTooManyRounds, n, MaxRounds)
		}
		g.Rounds = n
	case "layout":
		l, err := ParseLayout(raw)
		if err != nil {
			return fmt.Errorf("%w：%v", ErrInvalidField, err)
		}
		g.Layout = l
	case "updatedAt":
		g.UpdatedAt = raw
	case "updatedBy":
		g.UpdatedBy = raw
	case "lightning_timer", "max_wrong":
		v := ParseValue(raw)
		n, ok := v.Int()
		if !ok || n <= 0 {
			return fmt.Errorf("%w：%s=%q", ErrInvalidField, key, raw)
		}
		if key == "lightning_timer" {
			g.LightningTimer = n
		} else {
			g.MaxWrong = n
		}
	default:
		for i := range g.Extras {
			if g.Extras[i].Key == key {
				g.Extras[i].Value = ParseValue(raw)
				return nil
			}
		}
		return fmt.Errorf("%w：%s", ErrUnknownField, key)
	}
	return nil
}

// Stamp 记录保存时间与操作人。
func (g *Game) Stamp(now time.Time, actor string) {
	g.UpdatedAt = now.Format(UpdatedAtLayout)
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = "unknown"
	}
	g.UpdatedBy = actor
}

// ConfigCSV 输出 config.csv。
func (g Game) ConfigCSV() []byte {
	kvs := make([]csvfile.KV, 0, len(configKeyOrder)+len(g.Extras))
	for _, key := range configKeyOrder {
		v, _ := g.Field(key)
		kvs = append(kvs, csvfile.KV{Key: key, Value: v.String()})
	}
	for _, e := range g.Extras {
		kvs = append(kvs, csvfile.KV{Key: e.Key, Value: e.Value.String()})
	}
	return csvfile.EncodeKeyValues(kvs)
}
