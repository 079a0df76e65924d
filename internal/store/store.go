package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUserDisabled = errors.New("用户已禁用")

type Store struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB) *Store {
	return &Store{
		db:      db,
		dialect: DialectMySQL,
	}
}

func (s *Store) SetDialect(d Dialect) {
	if strings.TrimSpace(string(d)) == "" {
		return
	}
	s.dialect = d
}

func (s *Store) Dialect() Dialect { return s.dialect }

// Ping 供 /healthz 使用。
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("db.Ping: %w", err)
	}
	return nil
}

type User struct {
	ID           int64
	Email        string
	PasswordHash []byte
	Status       int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u User) Active() bool { return u.Status == 1 }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("统计用户失败: %w", err)
	}
	return n, nil
}

func (s *Store) CreateUser(ctx context.Context, email string, passwordHash []byte) (int64, error) {
	email = normalizeEmail(email)
	if email == "" {
		return 0, errors.New("邮箱不能为空")
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO users(email, password_hash, status, created_at, updated_at)
VALUES(?, ?, 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
`, email, passwordHash)
	if err != nil {
		return 0, fmt.Errorf("创建用户失败: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("获取用户 id 失败: %w", err)
	}
	return id, nil
}

// UpsertUser 创建用户；邮箱已存在时重置密码并启用。
func (s *Store) UpsertUser(ctx context.Context, email string, passwordHash []byte) error {
	email = normalizeEmail(email)
	if email == "" {
		return errors.New("邮箱不能为空")
	}
	q := `
INSERT INTO users(email, password_hash, status, created_at, updated_at)
VALUES(?, ?, 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
ON DUPLICATE KEY UPDATE password_hash=VALUES(password_hash), status=1, updated_at=CURRENT_TIMESTAMP
`
	if s.dialect == DialectSQLite {
		q = `
INSERT INTO users(email, password_hash, status, created_at, updated_at)
VALUES(?, ?, 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
ON CONFLICT(email) DO UPDATE SET password_hash=excluded.password_hash, status=1, updated_at=CURRENT_TIMESTAMP
`
	}
	if _, err := s.db.ExecContext(ctx, q, email, passwordHash); err != nil {
		return fmt.Errorf("写入用户失败: %w", err)
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUser(ctx, `WHERE email=?`, normalizeEmail(email))
}

func (s *Store) GetUserByID(ctx context.Context, userID int64) (User, error) {
	return s.getUser(ctx, `WHERE id=?`, userID)
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `
SELECT id, email, password_hash, status, created_at, updated_at
FROM users
`+where, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, sql.ErrNoRows
		}
		return User{}, fmt.Errorf("查询用户失败: %w", err)
	}
	return u, nil
}

func (s *Store) SetPassword(ctx context.Context, userID int64, passwordHash []byte) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=?, updated_at=CURRENT_TIMESTAMP WHERE id=?`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("更新密码失败: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) SetUserStatus(ctx context.Context, userID int64, status int) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET status=?, updated_at=CURRENT_TIMESTAMP WHERE id=?`, status, userID); err != nil {
		return fmt.Errorf("更新用户状态失败: %w", err)
	}
	return nil
}
