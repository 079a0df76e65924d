package obs

import (
	"expvar"
	"sync/atomic"
)

var (
	savesTotal        int64
	saveErrorsTotal   int64
	restoresTotal     int64
	restoreErrors     int64
	markSafeTotal     int64
	activeEditors     int64
	totalEditorOpens  int64
	activeFeedClients int64

	saveResults = expvar.NewMap("save_results_total")
)

func init() {
	expvar.Publish("saves_total", expvar.Func(func() any {
		return atomic.LoadInt64(&savesTotal)
	}))
	expvar.Publish("save_errors_total", expvar.Func(func() any {
		return atomic.LoadInt64(&saveErrorsTotal)
	}))
	expvar.Publish("restores_total", expvar.Func(func() any {
		return atomic.LoadInt64(&restoresTotal)
	}))
	expvar.Publish("restore_errors_total", expvar.Func(func() any {
		return atomic.LoadInt64(&restoreErrors)
	}))
	expvar.Publish("mark_safe_total", expvar.Func(func() any {
		return atomic.LoadInt64(&markSafeTotal)
	}))
	expvar.Publish("active_editor_sessions", expvar.Func(func() any {
		return atomic.LoadInt64(&activeEditors)
	}))
	expvar.Publish("editor_sessions_opened_total", expvar.Func(func() any {
		return atomic.LoadInt64(&totalEditorOpens)
	}))
	expvar.Publish("active_feed_clients", expvar.Func(func() any {
		return atomic.LoadInt64(&activeFeedClients)
	}))
}

// RecordSave 按面板（marketplace/games/admins）统计保存结果。
func RecordSave(panel string, err error) {
	key := panel + "_ok"
	if err != nil {
		atomic.AddInt64(&saveErrorsTotal, 1)
		key = panel + "_error"
	} else {
		atomic.AddInt64(&savesTotal, 1)
	}
	if v := saveResults.Get(key); v != nil {
		v.(*expvar.Int).Add(1)
		return
	}
	i := new(expvar.Int)
	i.Add(1)
	saveResults.Set(key, i)
}

func RecordRestore(err error) {
	if err != nil {
		atomic.AddInt64(&restoreErrors, 1)
		return
	}
	atomic.AddInt64(&restoresTotal, 1)
}

func RecordMarkSafe() {
	atomic.AddInt64(&markSafeTotal, 1)
}

// SetActiveEditorSessions 在会话增删后上报当前数量。
func SetActiveEditorSessions(n int) {
	atomic.StoreInt64(&activeEditors, int64(n))
}

func RecordEditorOpen() {
	atomic.AddInt64(&totalEditorOpens, 1)
}

// TrackFeedClient 记录一个变更推送连接，返回的函数应在连接结束时调用。
func TrackFeedClient() func() {
	atomic.AddInt64(&activeFeedClients, 1)
	return func() {
		atomic.AddInt64(&activeFeedClients, -1)
	}
}

// Snapshot 返回当前计数，供 CLI 与测试读取。
func Snapshot() map[string]int64 {
	return map[string]int64{
		"saves_total":                  atomic.LoadInt64(&savesTotal),
		"save_errors_total":            atomic.LoadInt64(&saveErrorsTotal),
		"restores_total":               atomic.LoadInt64(&restoresTotal),
		"restore_errors_total":         atomic.LoadInt64(&restoreErrors),
		"mark_safe_total":              atomic.LoadInt64(&markSafeTotal),
		"active_editor_sessions":       atomic.LoadInt64(&activeEditors),
		"editor_sessions_opened_total": atomic.LoadInt64(&totalEditorOpens),
		"active_feed_clients":          atomic.LoadInt64(&activeFeedClients),
	}
}
