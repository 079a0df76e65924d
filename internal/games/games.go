// Package games 实现评审面板：games/<Game>/ 下的 config.csv 与按等级划分的 content.csv。
package games

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yitongOE/LessonData/internal/blob"
	"github.com/yitongOE/LessonData/internal/csvfile"
	"github.com/yitongOE/LessonData/internal/marketplace"
)

// LevelText 是某一等级的内容。
type LevelText struct {
	Level int    `json:"level"`
	Value string `json:"value"`
}

type Game struct {
	Key            string      `json:"key"`
	Version        string      `json:"version"`
	Title          string      `json:"title"`
	Active         bool        `json:"active"`
	EduLevel       int         `json:"eduLevel"`
	UpdatedAt      string      `json:"updatedAt"`
	UpdatedBy      string      `json:"updatedBy"`
	LightningTimer int         `json:"lightning_timer"`
	MaxWrong       int         `json:"max_wrong"`
	Content        []LevelText `json:"content"`
}

// ParseConfig 解析 config.csv；计时与容错次数缺省或非法时取默认值。
func ParseConfig(key string, data []byte) (Game, error) {
	kvs, err := csvfile.ParseKeyValues(data)
	if err != nil {
		return Game{}, err
	}
	g := Game{
		Key:            key,
		LightningTimer: marketplace.DefaultLightningTimer,
		MaxWrong:       marketplace.DefaultMaxWrong,
	}
	for _, kv := range kvs {
		v := marketplace.ParseValue(kv.Value)
		switch kv.Key {
		case "version":
			g.Version = kv.Value
		case "title":
			g.Title = kv.Value
		case "active":
			g.Active = kv.Value == "true"
		case "eduLevel", "levels":
			if n, ok := v.Int(); ok && n > 0 {
				g.EduLevel = min(n, marketplace.MaxLevels)
			}
		case "updatedAt":
			g.UpdatedAt = kv.Value
		case "updatedBy":
			g.UpdatedBy = kv.Value
		case "lightning_timer":
			if n, ok := v.Int(); ok && n > 0 {
				g.LightningTimer = n
			}
		case "max_wrong":
			if n, ok := v.Int(); ok && n > 0 {
				g.MaxWrong = n
			}
		}
	}
	return g, nil
}

// ParseContent 解析 level,value 内容，按等级排序。
func ParseContent(data []byte) ([]LevelText, error) {
	t, err := csvfile.Parse(data)
	if err != nil {
		return nil, err
	}
	var out []LevelText
	for _, row := range t.Rows {
		lv, err := strconv.Atoi(row.Get("level"))
		if err != nil {
			continue
		}
		out = append(out, LevelText{Level: lv, Value: row.Get("value")})
	}
	sortLevels(out)
	return out, nil
}

func sortLevels(rows []LevelText) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Level < rows[j].Level })
}

// SyncLevels 让内容恰好覆盖 1..EduLevel，保留已有文本。
func (g *Game) SyncLevels() {
	existing := make(map[int]string, len(g.Content))
	for _, c := range g.Content {
		existing[c.Level] = c.Value
	}
	out := make([]LevelText, 0, max(g.EduLevel, 0))
	for lv := 1; lv <= g.EduLevel; lv++ {
		out = append(out, LevelText{Level: lv, Value: existing[lv]})
	}
	g.Content = out
}

func (g *Game) Stamp(now time.Time, actor string) {
	g.UpdatedAt = now.Format(marketplace.UpdatedAtLayout)
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = "unknown"
	}
	g.UpdatedBy = actor
}

// ConfigCSV 按固定顺序输出 config.csv。
func (g Game) ConfigCSV() []byte {
	return csvfile.EncodeKeyValues([]csvfile.KV{
		{Key: "version", Value: g.Version},
		{Key: "title", Value: g.Title},
		{Key: "active", Value: strconv.FormatBool(g.Active)},
		{Key: "eduLevel", Value: strconv.Itoa(g.EduLevel)},
		{Key: "updatedAt", Value: g.UpdatedAt},
		{Key: "updatedBy", Value: g.UpdatedBy},
		{Key: "lightning_timer", Value: strconv.Itoa(g.LightningTimer)},
		{Key: "max_wrong", Value: strconv.Itoa(g.MaxWrong)},
	})
}

// ContentCSV 按等级升序输出 content.csv。
func (g Game) ContentCSV() []byte {
	rows := append([]LevelText(nil), g.Content...)
	sortLevels(rows)
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{strconv.Itoa(r.Level), strings.TrimSpace(r.Value)})
	}
	return csvfile.Encode([]string{"level", "value"}, out)
}

// DisplayContent 返回用于展示的内容：每句一行。
func (g Game) DisplayContent() []LevelText {
	out := make([]LevelText, 0, len(g.Content))
	for _, c := range g.Content {
		out = append(out, LevelText{Level: c.Level, Value: marketplace.SplitSentences(c.Value)})
	}
	return out
}

// Blobs 是评审面板需要的存储能力。
type Blobs interface {
	Get(ctx context.Context, rel string) ([]byte, error)
	PutAll(ctx context.Context, files map[string][]byte) error
	List(ctx context.Context, pattern string) ([]string, error)
}

type Repository struct {
	blobs Blobs
}

func NewRepository(blobs Blobs) *Repository {
	return &Repository{blobs: blobs}
}

func gamePath(key, file string) string {
	return path.Join("games", key, file)
}

// List 自动发现 games/*/config.csv。
func (r *Repository) List(ctx context.Context) ([]Game, error) {
	matches, err := r.blobs.List(ctx, "games/*/config.csv")
	if err != nil {
		return nil, err
	}
	out := make([]Game, 0, len(matches))
	for _, m := range matches {
		key := path.Base(path.Dir(m))
		g, err := r.Load(ctx, key)
		if err != nil {
			slog.Warn("加载评审游戏失败，已跳过", "game", key, "err", err)
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

// Load 读取配置与内容；content.csv 不存在时内容为空。
func (r *Repository) Load(ctx context.Context, key string) (Game, error) {
	if err := marketplace.ValidateGameKey(key); err != nil {
		return Game{}, err
	}
	data, err := r.blobs.Get(ctx, gamePath(key, "config.csv"))
	if err != nil {
		return Game{}, err
	}
	g, err := ParseConfig(key, data)
	if err != nil {
		return Game{}, fmt.Errorf("解析游戏配置失败 %s: %w", key, err)
	}
	content, err := r.blobs.Get(ctx, gamePath(key, "content.csv"))
	if errors.Is(err, blob.ErrNotFound) {
		return g, nil
	}
	if err != nil {
		return Game{}, err
	}
	g.Content, err = ParseContent(content)
	if err != nil {
		return Game{}, fmt.Errorf("解析游戏内容失败 %s: %w", key, err)
	}
	return g, nil
}

// Save 盖上时间戳与操作人，内容与等级数对齐后整体写回。
func (r *Repository) Save(ctx context.Context, g Game, now time.Time, actor string) (Game, error) {
	if err := marketplace.ValidateGameKey(g.Key); err != nil {
		return Game{}, err
	}
	if g.EduLevel < 0 {
		g.EduLevel = 0
	}
	if g.EduLevel > marketplace.MaxLevels {
		return Game{}, fmt.Errorf("%w：eduLevel=%d，上限为 %d", marketplace.ErrInvalidField, g.EduLevel, marketplace.MaxLevels)
	}
	if g.LightningTimer <= 0 {
		g.LightningTimer = marketplace.DefaultLightningTimer
	}
	if g.MaxWrong <= 0 {
		g.MaxWrong = marketplace.DefaultMaxWrong
	}
	g.SyncLevels()
	g.Stamp(now, actor)
	err := r.blobs.PutAll(ctx, map[string][]byte{
		gamePath(g.Key, "config.csv"):  g.ConfigCSV(),
		gamePath(g.Key, "content.csv"): g.ContentCSV(),
	})
	if err != nil {
		return Game{}, fmt.Errorf("写入 config.csv 与 content.csv 失败: %w", err)
	}
	return g, nil
}
