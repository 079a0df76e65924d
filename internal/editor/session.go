// Package editor 实现 marketplace 编辑/查看弹窗背后的会话：加载草稿、编辑、保存或取消。
package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yitongOE/LessonData/internal/marketplace"
)

var (
	// ErrSessionClosed 表示会话已取消或已被新的加载取代，迟到的加载结果被丢弃。
	ErrSessionClosed = errors.New("编辑会话已关闭")
	ErrInvalidState  = errors.New("编辑会话状态不允许该操作")
	ErrFieldReadOnly = errors.New("字段只读")
)

type State int

const (
	StateClosed State = iota
	StateLoading
	StateReady
	StateSaving
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSaving:
		return "saving"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Loader 提供打开会话所需的全部数据。marketplace.Repository 实现了它。
type Loader interface {
	LoadGame(ctx context.Context, key string) (marketplace.Game, error)
	LoadRules(ctx context.Context) (marketplace.RuleTable, error)
	LoadContent(ctx context.Context, g marketplace.Game) (marketplace.ContentIndex, error)
	LoadSelections(ctx context.Context, g marketplace.Game) ([]marketplace.RoundSelection, error)
	LoadContentBlocks(ctx context.Context, g marketplace.Game, rules marketplace.RuleTable, readOnly bool) ([]marketplace.ContentBlock, error)
}

// Persister 整体写回 config.csv 与 selected.csv。
type Persister interface {
	Persist(ctx context.Context, gameKey string, configCSV, selectedCSV []byte) error
}

// Info 是会话的只读概要。
type Info struct {
	ID       string    `json:"id"`
	GameKey  string    `json:"game_key"`
	Owner    string    `json:"owner"`
	ReadOnly bool      `json:"readonly"`
	State    State     `json:"state"`
	LastUsed time.Time `json:"last_used"`
}

// draft 是会话独占的一份游戏副本。
type draft struct {
	game    marketplace.Game
	fields  []marketplace.EditorField
	content []marketplace.ContentBlock
	index   marketplace.ContentIndex
	sync    *marketplace.Synchronizer
}

// Session 对应一个打开的弹窗。所有方法都可并发调用。
type Session struct {
	id       string
	gameKey  string
	owner    string
	readOnly bool

	loader    Loader
	persister Persister
	now       func() time.Time

	mu       sync.Mutex
	state    State
	gen      uint64
	cancel   context.CancelFunc
	draft    *draft
	lastUsed time.Time
}

func NewSession(id, gameKey, owner string, readOnly bool, loader Loader, persister Persister) *Session {
	return &Session{
		id:        id,
		gameKey:   gameKey,
		owner:     owner,
		readOnly:  readOnly,
		loader:    loader,
		persister: persister,
		now:       time.Now,
		lastUsed:  time.Now(),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Owner() string { return s.owner }

func (s *Session) ReadOnly() bool { return s.readOnly }

func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:       s.id,
		GameKey:  s.gameKey,
		Owner:    s.owner,
		ReadOnly: s.readOnly,
		State:    s.state,
		LastUsed: s.lastUsed,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Open 并发加载草稿。加载完成前不会产生任何视图；期间 Cancel 会取消加载并丢弃结果。
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateClosed && s.state != StateCancelled {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.gen++
	gen := s.gen
	lctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateLoading
	s.draft = nil
	s.lastUsed = s.now()
	s.mu.Unlock()

	d, err := s.load(lctx)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.state != StateLoading {
		return ErrSessionClosed
	}
	s.cancel = nil
	if err != nil {
		s.state = StateClosed
		return err
	}
	s.draft = d
	s.state = StateReady
	s.lastUsed = s.now()
	return nil
}

func (s *Session) load(ctx context.Context) (*draft, error) {
	var (
		game  marketplace.Game
		rules marketplace.RuleTable
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		game, err = s.loader.LoadGame(gctx, s.gameKey)
		if err != nil {
			return fmt.Errorf("加载游戏配置失败: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		rules, err = s.loader.LoadRules(gctx)
		if err != nil {
			return fmt.Errorf("加载元素规则失败: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		index   marketplace.ContentIndex
		rounds  []marketplace.RoundSelection
		content []marketplace.ContentBlock
	)
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		index, err = s.loader.LoadContent(gctx, game)
		if err != nil {
			return fmt.Errorf("加载内容失败: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		rounds, err = s.loader.LoadSelections(gctx, game)
		if err != nil {
			return fmt.Errorf("加载选择失败: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		content, err = s.loader.LoadContentBlocks(gctx, game, rules, s.readOnly)
		if err != nil {
			return fmt.Errorf("加载内容块失败: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sel := marketplace.SelectionsFrom(game.Layout, rounds)
	sel.Ensure(game.Rounds)
	mode := marketplace.ModeFor(game.Layout, s.readOnly)
	return &draft{
		game:    game.Clone(),
		fields:  rules.EditorFields(game),
		content: content,
		index:   index,
		sync:    marketplace.NewSynchronizer(game.Layout, mode, index, sel),
	}, nil
}

// ready 在持锁状态下检查会话可编辑。
func (s *Session) ready(write bool) error {
	if s.state != StateReady || s.draft == nil {
		return ErrInvalidState
	}
	if write && s.readOnly {
		return marketplace.ErrReadOnly
	}
	s.lastUsed = s.now()
	return nil
}

func (s *Session) checkRound(round int) error {
	if round < 1 || round > s.draft.game.Rounds {
		return fmt.Errorf("%w：%d", marketplace.ErrInvalidRound, round)
	}
	return nil
}

// View 渲染当前草稿。
func (s *Session) View() (marketplace.ViewModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if (s.state != StateReady && s.state != StateSaving) || s.draft == nil {
		return marketplace.ViewModel{}, ErrInvalidState
	}
	s.lastUsed = s.now()
	return s.render(), nil
}

func (s *Session) render() marketplace.ViewModel {
	d := s.draft
	return marketplace.Render(marketplace.RenderInput{
		Game:       d.game,
		Mode:       d.sync.Mode(),
		Index:      d.index,
		Selections: d.sync.Selections().Rounds(d.game.Rounds),
		Fields:     d.fields,
		Content:    d.content,
	})
}

// SetField 修改一个编辑字段。rounds 变化时可见轮次随之增减，超出范围的轮次保留在内存中但不会写回。
func (s *Session) SetField(key, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(true); err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "layout" {
		return fmt.Errorf("%w：layout", ErrFieldReadOnly)
	}
	found := false
	for _, f := range s.draft.fields {
		if f.Key != key {
			continue
		}
		if f.ReadOnly {
			return fmt.Errorf("%w：%s", ErrFieldReadOnly, key)
		}
		found = true
		break
	}
	if !found {
		return fmt.Errorf("%w：%s", marketplace.ErrUnknownField, key)
	}
	if err := s.draft.game.SetField(key, raw); err != nil {
		return err
	}
	if key == "rounds" {
		s.draft.sync.Selections().Ensure(s.draft.game.Rounds)
	}
	return nil
}

// Toggle 勾选或取消一个单元，unit 为章节号或课时编号。
func (s *Session) Toggle(round int, unit string) (marketplace.RoundView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(true); err != nil {
		return marketplace.RoundView{}, err
	}
	if err := s.checkRound(round); err != nil {
		return marketplace.RoundView{}, err
	}
	u, err := marketplace.ParseUnit(s.draft.game.Layout, unit)
	if err != nil {
		return marketplace.RoundView{}, err
	}
	r, err := s.draft.sync.Toggle(round, u)
	if err != nil {
		return marketplace.RoundView{}, err
	}
	return s.roundView(r), nil
}

func (s *Session) roundView(r marketplace.RoundSelection) marketplace.RoundView {
	d := s.draft
	return marketplace.RenderRound(d.game.Layout, r, d.index, d.sync.Mode())
}

// SelectLine 返回预览框中 offset 所在行的范围（双击整行选中）。
func (s *Session) SelectLine(round, offset int) (marketplace.TextRange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(false); err != nil {
		return marketplace.TextRange{}, err
	}
	if err := s.checkRound(round); err != nil {
		return marketplace.TextRange{}, err
	}
	return marketplace.LineAt(s.draft.sync.Display(round), offset), nil
}

// KeyResult 是一次按键的处理结果；Round 只在删除了行时有值。
type KeyResult struct {
	Action marketplace.KeyAction  `json:"action"`
	Round  *marketplace.RoundView `json:"round,omitempty"`
}

// Key 按当前模式处理预览框按键。自动模式下带选区的 Delete/Backspace 删除选区触及的整行。
// canEdit 为 false 时按只读模式处理，只放行复制、全选等按键。
func (s *Session) Key(round int, k marketplace.Key, sel marketplace.TextRange, canEdit bool) (KeyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(false); err != nil {
		return KeyResult{}, err
	}
	if err := s.checkRound(round); err != nil {
		return KeyResult{}, err
	}
	mode := s.draft.sync.Mode()
	if !canEdit {
		mode = marketplace.ModeReadOnly
	}
	action := mode.HandleKey(k, !sel.Empty())
	if action != marketplace.KeyDeleteLines {
		return KeyResult{Action: action}, nil
	}
	if err := s.ready(true); err != nil {
		return KeyResult{}, err
	}
	r, err := s.draft.sync.DeleteLines(round, sel)
	if err != nil {
		return KeyResult{}, err
	}
	rv := s.roundView(r)
	return KeyResult{Action: action, Round: &rv}, nil
}

// DeleteLines 直接删除选区触及的行。
func (s *Session) DeleteLines(round int, sel marketplace.TextRange) (marketplace.RoundView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(true); err != nil {
		return marketplace.RoundView{}, err
	}
	if err := s.checkRound(round); err != nil {
		return marketplace.RoundView{}, err
	}
	r, err := s.draft.sync.DeleteLines(round, sel)
	if err != nil {
		return marketplace.RoundView{}, err
	}
	return s.roundView(r), nil
}

// EditText 用自由输入的预览文本改写一轮的值，只在 lessonMergeFree 下可用。
func (s *Session) EditText(round int, text string) (marketplace.RoundView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(true); err != nil {
		return marketplace.RoundView{}, err
	}
	if err := s.checkRound(round); err != nil {
		return marketplace.RoundView{}, err
	}
	r, err := s.draft.sync.EditText(round, text)
	if err != nil {
		return marketplace.RoundView{}, err
	}
	return s.roundView(r), nil
}

// Save 记录时间与操作人，编码两份 CSV 并整体写回。
// 成功后会话关闭；失败时回到 Ready，草稿保持原样。
func (s *Session) Save(ctx context.Context, actor string) (marketplace.Game, error) {
	s.mu.Lock()
	if err := s.ready(true); err != nil {
		s.mu.Unlock()
		return marketplace.Game{}, err
	}
	d := s.draft
	game := d.game.Clone()
	game.Stamp(s.now(), actor)
	d.sync.Materialize(game.Rounds)
	configCSV := game.ConfigCSV()
	selectedCSV := marketplace.EncodeSelected(game.Layout, d.sync.Selections().Rounds(game.Rounds))
	s.state = StateSaving
	s.mu.Unlock()

	err := s.persister.Persist(ctx, game.Key, configCSV, selectedCSV)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = s.now()
	if err != nil {
		s.state = StateReady
		return marketplace.Game{}, fmt.Errorf("保存失败: %w", err)
	}
	s.state = StateClosed
	s.draft = nil
	return game, nil
}

// Cancel 丢弃草稿。加载中的会话会取消加载；保存中的会话不可取消。
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateSaving:
		return ErrInvalidState
	case StateLoading:
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		s.gen++
	case StateClosed, StateCancelled, StateReady:
	}
	s.draft = nil
	s.state = StateCancelled
	return nil
}
