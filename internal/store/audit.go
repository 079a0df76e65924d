package store

import (
	"context"
	"fmt"
	"time"
)

const (
	AuditActionSave      = "save"
	AuditActionRestore   = "restore"
	AuditActionMarkSafe  = "mark_safe"
	AuditActionAdminsSet = "admins_set"
	AuditActionLogin     = "login"

	AuditStatusOK     = "ok"
	AuditStatusFailed = "failed"
)

// AuditEventInput 不包含 CSV 内容与凭据，Detail 只放错误摘要。
type AuditEventInput struct {
	RequestID string
	ActorType string
	Actor     string
	Role      string
	Action    string
	Target    string
	Status    string
	Detail    *string
}

type AuditEvent struct {
	ID        int64     `json:"id"`
	Time      time.Time `json:"time"`
	RequestID string    `json:"request_id"`
	ActorType string    `json:"actor_type"`
	Actor     string    `json:"actor"`
	Role      string    `json:"role"`
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	Status    string    `json:"status"`
	Detail    *string   `json:"detail,omitempty"`
}

func (s *Store) InsertAuditEvent(ctx context.Context, in AuditEventInput) error {
	if in.Status == "" {
		in.Status = AuditStatusOK
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO audit_events(time, request_id, actor_type, actor, role, action, target, status, detail)
VALUES(CURRENT_TIMESTAMP, ?, ?, ?, ?, ?, ?, ?, ?)
`, in.RequestID, in.ActorType, in.Actor, in.Role, in.Action, in.Target, in.Status, in.Detail)
	if err != nil {
		return fmt.Errorf("写入 audit_events 失败: %w", err)
	}
	return nil
}

// ListAuditEvents 按时间倒序返回最近 limit 条。
func (s *Store) ListAuditEvents(ctx context.Context, limit int) ([]AuditEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, time, request_id, actor_type, actor, role, action, target, status, detail
FROM audit_events
ORDER BY id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询 audit_events 失败: %w", err)
	}
	defer rows.Close()

	out := []AuditEvent{}
	for rows.Next() {
		var e AuditEvent
		if err := rows.Scan(&e.ID, &e.Time, &e.RequestID, &e.ActorType, &e.Actor, &e.Role, &e.Action, &e.Target, &e.Status, &e.Detail); err != nil {
			return nil, fmt.Errorf("扫描 audit_events 失败: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历 audit_events 失败: %w", err)
	}
	return out, nil
}
