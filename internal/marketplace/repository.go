package marketplace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"

	"github.com/yitongOE/LessonData/internal/blob"
)

// RulesPath 是元素规则表在存储中的位置。
const RulesPath = "MarketplaceElementRule.csv"

var gameKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Blobs 是仓库需要的存储能力，由 *blob.Store 实现。
type Blobs interface {
	Get(ctx context.Context, rel string) ([]byte, error)
	PutAll(ctx context.Context, files map[string][]byte) error
	Exists(ctx context.Context, rel string) (bool, error)
	List(ctx context.Context, pattern string) ([]string, error)
}

// Repository 读写 marketplace/<Game>/ 下的 CSV 资源。
type Repository struct {
	blobs Blobs
	games []string
}

// NewRepository 创建仓库。games 非空时只使用这份固定的游戏列表，否则按目录自动发现。
func NewRepository(blobs Blobs, games []string) *Repository {
	return &Repository{blobs: blobs, games: append([]string(nil), games...)}
}

// ValidateGameKey 校验游戏目录名。
func ValidateGameKey(key string) error {
	if !gameKeyPattern.MatchString(key) {
		return fmt.Errorf("%w: 游戏 key %q", blob.ErrInvalidPath, key)
	}
	return nil
}

func gamePath(key, file string) string {
	return path.Join("marketplace", key, file)
}

// GameKeys 返回面板要展示的游戏目录名。
func (r *Repository) GameKeys(ctx context.Context) ([]string, error) {
	if len(r.games) > 0 {
		return append([]string(nil), r.games...), nil
	}
	matches, err := r.blobs.List(ctx, "marketplace/*/config.csv")
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		keys = append(keys, path.Base(path.Dir(m)))
	}
	return keys, nil
}

// ListGames 加载全部游戏；config.csv 缺失的游戏被跳过并记录告警。
func (r *Repository) ListGames(ctx context.Context) ([]Game, error) {
	keys, err := r.GameKeys(ctx)
	if err != nil {
		return nil, err
	}
	games := make([]Game, 0, len(keys))
	for _, key := range keys {
		g, err := r.LoadGame(ctx, key)
		if errors.Is(err, blob.ErrNotFound) {
			slog.Warn("游戏配置不存在，已跳过", "game", key)
			continue
		}
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, nil
}

// loadWarning 判断解析错误是否只需告警：未知 layout 与超限的 rounds 都已有兜底值。
func loadWarning(err error) bool {
	return errors.Is(err, ErrUnknownLayout) || errors.Is(err, ErrTooManyRounds)
}

// LoadGame 读取 config.csv。layout 无法识别时按 chapterMerge 加载，rounds 超限时截断，均记录告警。
func (r *Repository) LoadGame(ctx context.Context, key string) (Game, error) {
	if err := ValidateGameKey(key); err != nil {
		return Game{}, err
	}
	data, err := r.blobs.Get(ctx, gamePath(key, "config.csv"))
	if err != nil {
		return Game{}, err
	}
	g, err := ParseGameConfig(key, data)
	if loadWarning(err) {
		slog.Warn("游戏配置存在可容忍的问题，已按默认值加载", "game", key, "err", err)
		return g, nil
	}
	if err != nil {
		return Game{}, fmt.Errorf("解析游戏配置失败 %s: %w", key, err)
	}
	return g, nil
}

// LoadRules 读取元素规则表；文件不存在时使用默认规则。
func (r *Repository) LoadRules(ctx context.Context) (RuleTable, error) {
	data, err := r.blobs.Get(ctx, RulesPath)
	if errors.Is(err, blob.ErrNotFound) {
		return DefaultRules(), nil
	}
	if err != nil {
		return nil, err
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("解析元素规则失败: %w", err)
	}
	return rules, nil
}

// LoadContent 读取 content.csv；文件不存在时返回空索引。
func (r *Repository) LoadContent(ctx context.Context, g Game) (ContentIndex, error) {
	data, err := r.blobs.Get(ctx, gamePath(g.Key, "content.csv"))
	if errors.Is(err, blob.ErrNotFound) {
		return EmptyContentIndex(g.Layout), nil
	}
	if err != nil {
		return ContentIndex{}, err
	}
	ix, err := ParseContent(g.Layout, data)
	if err != nil {
		return ContentIndex{}, fmt.Errorf("解析内容失败 %s: %w", g.Key, err)
	}
	return ix, nil
}

// LoadSelections 读取 selected.csv；文件不存在时返回空。
func (r *Repository) LoadSelections(ctx context.Context, g Game) ([]RoundSelection, error) {
	data, err := r.blobs.Get(ctx, gamePath(g.Key, "selected.csv"))
	if errors.Is(err, blob.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rounds, err := DecodeSelected(g.Layout, data)
	if err != nil {
		return nil, fmt.Errorf("解析选择失败 %s: %w", g.Key, err)
	}
	return rounds, nil
}

// HasResource 判断游戏目录下 <name>.csv 是否存在，不存在不算错误。
func (r *Repository) HasResource(ctx context.Context, gameKey, name string) (bool, error) {
	if err := ValidateGameKey(gameKey); err != nil {
		return false, err
	}
	if !gameKeyPattern.MatchString(name) {
		return false, nil
	}
	return r.blobs.Exists(ctx, gamePath(gameKey, name+".csv"))
}

// LoadContentBlocks 读取规则表中内容字段对应的 <key>.csv。文件不存在的字段不产生内容块；
// 游戏带有数值 levels 字段时，内容块的行数与其对齐。
func (r *Repository) LoadContentBlocks(ctx context.Context, g Game, rules RuleTable, readOnly bool) ([]ContentBlock, error) {
	var blocks []ContentBlock
	for _, c := range rules.ContentCandidates(readOnly) {
		ok, err := r.HasResource(ctx, g.Key, c.Key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		data, err := r.blobs.Get(ctx, gamePath(g.Key, c.Key+".csv"))
		if errors.Is(err, blob.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		b, err := ParseContentBlock(c, data)
		if err != nil {
			return nil, fmt.Errorf("解析内容块失败 %s/%s: %w", g.Key, c.Key, err)
		}
		if v, ok := g.Field("levels"); ok {
			if n, ok := v.Int(); ok {
				b = b.SyncLevels(n)
			}
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// Persist 整体写回 config.csv 与 selected.csv，两个文件要么都更新，要么都保持原样。
func (r *Repository) Persist(ctx context.Context, gameKey string, configCSV, selectedCSV []byte) error {
	if err := ValidateGameKey(gameKey); err != nil {
		return err
	}
	if _, err := ParseGameConfig(gameKey, configCSV); err != nil {
		// 未知 layout 加载时按 chapterMerge 处理，不拦截写入；其余问题拒绝写入。
		if !errors.Is(err, ErrUnknownLayout) || errors.Is(err, ErrTooManyRounds) {
			return fmt.Errorf("config.csv 无效: %w", err)
		}
	}
	err := r.blobs.PutAll(ctx, map[string][]byte{
		gamePath(gameKey, "config.csv"):   configCSV,
		gamePath(gameKey, "selected.csv"): selectedCSV,
	})
	if err != nil {
		return fmt.Errorf("写入 config.csv 与 selected.csv 失败: %w", err)
	}
	return nil
}
