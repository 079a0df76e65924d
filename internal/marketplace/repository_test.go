package marketplace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yitongOE/LessonData/internal/blob"
)

func newTestRepo(t *testing.T, files map[string]string, games ...string) (*Repository, *blob.Store) {
	t.Helper()
	store := blob.New(t.TempDir())
	for rel, content := range files {
		require.NoError(t, store.Put(context.Background(), rel, []byte(content)))
	}
	return NewRepository(store, games), store
}

func TestRepository_ListGamesDiscovers(t *testing.T) {
	repo, _ := newTestRepo(t, map[string]string{
		"marketplace/WordSplash/config.csv": wordSplashConfig,
		"marketplace/BubblePop/config.csv":  "key,value\ntitle,Bubble Pop\nlayout,oddLayout\n",
		"marketplace/Empty/content.csv":     "chapter,value\n",
	})

	games, err := repo.ListGames(context.Background())
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "BubblePop", games[0].Key)
	assert.Equal(t, LayoutChapterMerge, games[0].Layout)
	assert.Equal(t, "WordSplash", games[1].Key)
}

func TestRepository_ListGamesFixedListSkipsMissing(t *testing.T) {
	repo, _ := newTestRepo(t, map[string]string{
		"marketplace/WordSplash/config.csv": wordSplashConfig,
		"marketplace/Other/config.csv":      "key,value\ntitle,Other\n",
	}, "WordSplash", "SentenceScramble")

	games, err := repo.ListGames(context.Background())
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "WordSplash", games[0].Key)
}

func TestRepository_MissingResourcesAreEmpty(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t, map[string]string{
		"marketplace/WordSplash/config.csv": wordSplashConfig,
	})

	g, err := repo.LoadGame(ctx, "WordSplash")
	require.NoError(t, err)

	ix, err := repo.LoadContent(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, 0, ix.Len())
	assert.Equal(t, "", ix.Lesson(LessonCode{1, 1}))

	sel, err := repo.LoadSelections(ctx, g)
	require.NoError(t, err)
	assert.Empty(t, sel)

	rules, err := repo.LoadRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), rules)

	ok, err := repo.HasResource(ctx, "WordSplash", "words")
	require.NoError(t, err)
	assert.False(t, ok)

	blocks, err := repo.LoadContentBlocks(ctx, g, RuleTable{{Key: "words", Label: "Words", InEditor: true, IsContent: true}}, false)
	require.NoError(t, err)
	assert.Empty(t, blocks)

	_, err = repo.LoadGame(ctx, "Nope")
	assert.ErrorIs(t, err, blob.ErrNotFound)
	_, err = repo.LoadGame(ctx, "../etc")
	assert.ErrorIs(t, err, blob.ErrInvalidPath)
}

func TestRepository_LoadContentBlocks(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t, map[string]string{
		"marketplace/WordSplash/config.csv": wordSplashConfig,
		"marketplace/WordSplash/words.csv":  "level,value\n1,cat|dog\n3,owl\n",
		"MarketplaceElementRule.csv":        ruleCSV,
	})

	g, err := repo.LoadGame(ctx, "WordSplash")
	require.NoError(t, err)
	rules, err := repo.LoadRules(ctx)
	require.NoError(t, err)

	blocks, err := repo.LoadContentBlocks(ctx, g, rules, false)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "words", blocks[0].Key)
	// levels=2：等级 3 被裁掉，等级 2 补空。
	assert.Equal(t, []BlockRow{{1, "cat|dog"}, {2, ""}}, blocks[0].Rows)

	blocks, err = repo.LoadContentBlocks(ctx, g, rules, true)
	require.NoError(t, err)
	require.Len(t, blocks, 1, "sentences.csv 不存在，不应产生内容块")
}

func TestRepository_LoadAndPersist(t *testing.T) {
	ctx := context.Background()
	repo, store := newTestRepo(t, map[string]string{
		"marketplace/WordSplash/config.csv":   wordSplashConfig,
		"marketplace/WordSplash/content.csv":  "level,lesson,value\n1,1,cat; dog\n1,2,fox\nx,1,bad\n",
		"marketplace/WordSplash/selected.csv": "round,selected,value\n1,1-01|1-02,\"cat; dog; fox;\"\n",
	})

	g, err := repo.LoadGame(ctx, "WordSplash")
	require.NoError(t, err)
	ix, err := repo.LoadContent(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Len())

	rounds, err := repo.LoadSelections(ctx, g)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Equal(t, "cat; dog; fox;", rounds[0].Value)

	require.NoError(t, repo.Persist(ctx, "WordSplash", []byte("key,value\ntitle,New"), []byte(SelectedHeader)))
	got, err := store.Get(ctx, "marketplace/WordSplash/config.csv")
	require.NoError(t, err)
	assert.Equal(t, "key,value\ntitle,New", string(got))
	got, err = store.Get(ctx, "marketplace/WordSplash/selected.csv")
	require.NoError(t, err)
	assert.Equal(t, SelectedHeader, string(got))

	assert.ErrorIs(t, repo.Persist(ctx, "a/b", nil, nil), blob.ErrInvalidPath)
}

func TestRepository_PersistFailureLeavesBothFiles(t *testing.T) {
	ctx := context.Background()
	repo, store := newTestRepo(t, map[string]string{
		"marketplace/WordSplash/config.csv": wordSplashConfig,
		// selected.csv 位置被目录占用，第二个文件无法写入
		"marketplace/WordSplash/selected.csv/blocked": "x",
	})

	err := repo.Persist(ctx, "WordSplash", []byte("key,value\ntitle,New"), []byte(SelectedHeader))
	require.Error(t, err)

	got, err := store.Get(ctx, "marketplace/WordSplash/config.csv")
	require.NoError(t, err)
	assert.Equal(t, wordSplashConfig, string(got))
}

func TestRepository_PersistRejectsTooManyRounds(t *testing.T) {
	ctx := context.Background()
	repo, store := newTestRepo(t, map[string]string{
		"marketplace/WordSplash/config.csv": wordSplashConfig,
	})

	err := repo.Persist(ctx, "WordSplash", []byte("key,value\nrounds,2000000000"), []byte(SelectedHeader))
	require.ErrorIs(t, err, ErrTooManyRounds)
	assert.ErrorIs(t, err, ErrInvalidField)

	got, err := store.Get(ctx, "marketplace/WordSplash/config.csv")
	require.NoError(t, err)
	assert.Equal(t, wordSplashConfig, string(got))

	// 未知 layout 仍允许写入，加载时按 chapterMerge 处理
	require.NoError(t, repo.Persist(ctx, "WordSplash", []byte("key,value\nlayout,oddLayout"), []byte(SelectedHeader)))
}

func TestRepository_LoadGameClampsRounds(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t, map[string]string{
		"marketplace/Huge/config.csv": "key,value\ntitle,Huge\nrounds,2000000000\nlayout,oddLayout\n",
	})

	g, err := repo.LoadGame(ctx, "Huge")
	require.NoError(t, err)
	assert.Equal(t, MaxRounds, g.Rounds)
	assert.Equal(t, LayoutChapterMerge, g.Layout)
}
