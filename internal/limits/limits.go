// Package limits 提供单实例的最小护栏：按操作人限制推送连接数。
package limits

import "sync"

// ActorLimits 按操作人（邮箱）计数；max <= 0 表示不限制。
type ActorLimits struct {
	max int

	mu       sync.Mutex
	inflight map[string]int
}

func NewActorLimits(max int) *ActorLimits {
	return &ActorLimits{
		max:      max,
		inflight: make(map[string]int),
	}
}

// Acquire 占用一个名额。成功时返回的 release 只生效一次，可重复调用。
func (l *ActorLimits) Acquire(actor string) (release func(), ok bool) {
	if l == nil {
		return func() {}, true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.max > 0 && l.inflight[actor] >= l.max {
		return nil, false
	}
	l.inflight[actor]++

	var once sync.Once
	return func() {
		once.Do(func() { l.release(actor) })
	}, true
}

func (l *ActorLimits) release(actor string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inflight[actor] > 0 {
		l.inflight[actor]--
	}
	if l.inflight[actor] == 0 {
		delete(l.inflight, actor)
	}
}

// InUse 返回 actor 当前占用的名额。
func (l *ActorLimits) InUse(actor string) int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inflight[actor]
}
