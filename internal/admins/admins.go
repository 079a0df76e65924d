// Package admins 管理 AdminData.csv：控制台账号的角色与启用状态，并据此判定登录用户的角色。
package admins

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hay-kot/criterio"

	"github.com/yitongOE/LessonData/internal/auth"
	"github.com/yitongOE/LessonData/internal/blob"
	"github.com/yitongOE/LessonData/internal/csvfile"
)

// Path 是账号表在存储中的位置。
const Path = "AdminData.csv"

var header = []string{"id", "username", "firstname", "lastname", "email", "role", "active"}

// ErrUnauthorized 表示邮箱不在账号表中或账号未启用。
var ErrUnauthorized = errors.New("账号未授权")

type Account struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Active    bool   `json:"active"`
}

func Parse(data []byte) ([]Account, error) {
	t, err := csvfile.Parse(data)
	if err != nil {
		return nil, err
	}
	out := make([]Account, 0, len(t.Rows))
	for _, row := range t.Rows {
		id, _ := strconv.ParseInt(row.Get("id"), 10, 64)
		out = append(out, Account{
			ID:        id,
			Username:  row.Get("username"),
			FirstName: row.Get("firstname"),
			LastName:  row.Get("lastname"),
			Email:     row.Get("email"),
			Role:      row.Get("role"),
			Active:    row.Get("active") == "true",
		})
	}
	return out, nil
}

func Encode(accounts []Account) []byte {
	rows := make([][]string, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, []string{
			strconv.FormatInt(a.ID, 10),
			a.Username,
			a.FirstName,
			a.LastName,
			a.Email,
			a.Role,
			strconv.FormatBool(a.Active),
		})
	}
	return csvfile.Encode(header, rows)
}

// DetermineRole 按邮箱（不区分大小写）查找启用的账号；角色为空时按 QA 处理。
func DetermineRole(accounts []Account, email string) (auth.Role, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrUnauthorized
	}
	for _, a := range accounts {
		if !a.Active || !strings.EqualFold(a.Email, email) {
			continue
		}
		if a.Role == "" {
			return auth.RoleQA, nil
		}
		if r, ok := auth.ParseRole(a.Role); ok {
			return r, nil
		}
		return auth.Role(a.Role), nil
	}
	return "", ErrUnauthorized
}

// Validate 检查待保存的账号表：id 为正且唯一，邮箱必填且唯一，角色只能是 Admin/Editor/QA。
func Validate(accounts []Account) error {
	var errs criterio.FieldErrorsBuilder
	ids := make(map[int64]bool, len(accounts))
	emails := make(map[string]bool, len(accounts))
	for i, a := range accounts {
		field := fmt.Sprintf("admins[%d]", i)
		if a.ID <= 0 {
			errs = errs.Append(field+".id", fmt.Errorf("必须为正整数"))
		} else if ids[a.ID] {
			errs = errs.Append(field+".id", fmt.Errorf("重复的 id %d", a.ID))
		}
		ids[a.ID] = true

		email := strings.ToLower(strings.TrimSpace(a.Email))
		if err := validEmail(email); err != nil {
			errs = errs.Append(field+".email", err)
		} else if emails[email] {
			errs = errs.Append(field+".email", fmt.Errorf("重复的邮箱 %q", a.Email))
		}
		emails[email] = true

		if _, ok := auth.ParseRole(a.Role); !ok {
			errs = errs.Append(field+".role", fmt.Errorf("未知角色 %q", a.Role))
		}
	}
	return errs.ToError()
}

func validEmail(email string) error {
	if email == "" {
		return fmt.Errorf("不能为空")
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " ,") {
		return fmt.Errorf("格式不正确")
	}
	return nil
}

// Blobs 是账号表读写需要的存储能力。
type Blobs interface {
	Get(ctx context.Context, rel string) ([]byte, error)
	Put(ctx context.Context, rel string, data []byte) error
}

type Repository struct {
	blobs Blobs
}

func NewRepository(blobs Blobs) *Repository {
	return &Repository{blobs: blobs}
}

// List 读取账号表；文件不存在时返回空列表。
func (r *Repository) List(ctx context.Context) ([]Account, error) {
	data, err := r.blobs.Get(ctx, Path)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	accounts, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("解析账号表失败: %w", err)
	}
	return accounts, nil
}

// Save 校验后整体写回账号表。
func (r *Repository) Save(ctx context.Context, accounts []Account) error {
	if err := Validate(accounts); err != nil {
		return err
	}
	if err := r.blobs.Put(ctx, Path, Encode(accounts)); err != nil {
		return fmt.Errorf("写入账号表失败: %w", err)
	}
	return nil
}

// RoleFor 读取账号表并判定邮箱对应的角色。
func (r *Repository) RoleFor(ctx context.Context, email string) (auth.Role, error) {
	accounts, err := r.List(ctx)
	if err != nil {
		return "", err
	}
	return DetermineRole(accounts, email)
}
