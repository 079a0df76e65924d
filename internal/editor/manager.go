package editor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/yitongOE/LessonData/internal/auth"
	"github.com/yitongOE/LessonData/internal/marketplace"
)

const DefaultTTL = 30 * time.Minute

var ErrSessionNotFound = errors.New("编辑会话不存在")

// Manager 按随机 id 持有会话。同一游戏的多个会话互不协调，后保存者覆盖先保存者。
type Manager struct {
	loader    Loader
	persister Persister
	ttl       time.Duration
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(loader Loader, persister Persister, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		loader:    loader,
		persister: persister,
		ttl:       ttl,
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
}

// Create 登记一个尚未加载的会话。
func (m *Manager) Create(gameKey, owner string, readOnly bool) (*Session, error) {
	if err := marketplace.ValidateGameKey(gameKey); err != nil {
		return nil, err
	}
	id, err := auth.NewRandomToken("es_", 16)
	if err != nil {
		return nil, err
	}
	s := NewSession(id, gameKey, owner, readOnly, m.loader, m.persister)
	s.now = m.now
	s.lastUsed = m.now()

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s, nil
}

// Open 创建并加载会话；加载失败时会话被移除。
func (m *Manager) Open(ctx context.Context, gameKey, owner string, readOnly bool) (*Session, error) {
	s, err := m.Create(gameKey, owner, readOnly)
	if err != nil {
		return nil, err
	}
	if err := s.Open(ctx); err != nil {
		m.Remove(s.ID())
		return nil, err
	}
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Cancel 取消并移除会话。
func (m *Manager) Cancel(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	if err := s.Cancel(); err != nil {
		return err
	}
	m.Remove(id)
	return nil
}

// Save 保存会话，成功后移除。
func (m *Manager) Save(ctx context.Context, id, actor string) (marketplace.Game, error) {
	s, err := m.Get(id)
	if err != nil {
		return marketplace.Game{}, err
	}
	g, err := s.Save(ctx, actor)
	if err != nil {
		return marketplace.Game{}, err
	}
	m.Remove(id)
	return g, nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep 取消并移除空闲超过 TTL 的会话，返回移除数量。
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.ttl)
	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		if err := s.Cancel(); err != nil {
			slog.Warn("过期编辑会话正在保存，未取消", "session", s.ID(), "err", err)
		}
	}
	return len(expired)
}

// Run 周期性清理过期会话，ctx 取消时返回。
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(); n > 0 {
				slog.Info("清理过期编辑会话", "count", n)
			}
		}
	}
}
