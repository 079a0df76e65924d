// Package blob 提供 CSV 资源的文件存储：current/ 下为当前版本，safe/ 下为 zstd 压缩的安全版本快照。
package blob

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	currentDir = "current"
	safeDir    = "safe"
)

var (
	ErrNotFound      = errors.New("资源不存在")
	ErrNoSnapshot    = errors.New("安全版本不存在")
	ErrInvalidPath   = errors.New("资源路径非法")
	ErrNotConfigured = errors.New("存储目录未配置")
)

type Store struct {
	baseDir string

	// snapMu 在快照与恢复期间独占整个存储，普通读写共享。
	snapMu sync.RWMutex

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(baseDir string) *Store {
	return &Store{
		baseDir: strings.TrimSpace(baseDir),
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *Store) BaseDir() string {
	return s.baseDir
}

func (s *Store) lockPath(rel string) func() {
	s.mu.Lock()
	l, ok := s.locks[rel]
	if !ok {
		l = &sync.Mutex{}
		s.locks[rel] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Get 读取 current/ 下的资源，不存在时返回 ErrNotFound。
func (s *Store) Get(ctx context.Context, rel string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.resolve(currentDir, rel)
	if err != nil {
		return nil, err
	}
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	unlock := s.lockPath(full)
	defer unlock()

	b, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rel)
	}
	if err != nil {
		return nil, fmt.Errorf("读取资源失败: %w", err)
	}
	return b, nil
}

// Exists 对应控制台的 HEAD 检查：不存在返回 false，不视为错误。
func (s *Store) Exists(ctx context.Context, rel string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	full, err := s.resolve(currentDir, rel)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("检查资源失败: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

// Put 原子写入资源（先写临时文件再 rename）。
func (s *Store) Put(ctx context.Context, rel string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(currentDir, rel)
	if err != nil {
		return err
	}
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	unlock := s.lockPath(full)
	defer unlock()
	return writeFileAtomic(full, data)
}

// Delete 删除资源；资源本就不存在时不报错。
func (s *Store) Delete(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(currentDir, rel)
	if err != nil {
		return err
	}
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	unlock := s.lockPath(full)
	defer unlock()
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("删除资源失败: %w", err)
	}
	return nil
}

// List 按 doublestar 模式列出 current/ 下的文件，返回排序后的相对路径。
func (s *Store) List(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.baseDir == "" {
		return nil, ErrNotConfigured
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, pattern)
	}
	root := filepath.Join(s.baseDir, currentDir)
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	matches, err := doublestar.Glob(os.DirFS(root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("列出资源失败: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// rename 在测试中可替换，用于模拟替换中途失败。
var rename = os.Rename

func writeFileAtomic(full string, data []byte) error {
	tmpPath, err := writeTemp(full, data)
	if err != nil {
		return err
	}
	if err := rename(tmpPath, full); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("落盘资源失败: %w", err)
	}
	return nil
}

// writeTemp 在目标旁边写出临时文件并返回其路径。
func writeTemp(full string, data []byte) (string, error) {
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("创建目录失败: %w", err)
	}
	suffix, err := randomToken(8)
	if err != nil {
		return "", err
	}
	tmpPath := full + "." + suffix + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("创建临时文件失败: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("写入资源失败: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("关闭临时文件失败: %w", err)
	}
	return tmpPath, nil
}

type stagedFile struct {
	full    string
	tmp     string
	backup  string
	swapped bool
}

// PutAll 把多份资源作为一次提交写入：先全部写成临时文件，再逐个替换。
// 替换中途失败时，已替换的文件恢复为原内容，原本不存在的文件被删除。
func (s *Store) PutAll(ctx context.Context, files map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rels := make([]string, 0, len(files))
	for rel := range files {
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	staged := make([]*stagedFile, 0, len(rels))
	for _, rel := range rels {
		full, err := s.resolve(currentDir, rel)
		if err != nil {
			return err
		}
		staged = append(staged, &stagedFile{full: full})
	}

	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	discard := func() {
		for _, f := range staged {
			if f.tmp != "" {
				_ = os.Remove(f.tmp)
			}
		}
	}
	for i, f := range staged {
		info, err := os.Lstat(f.full)
		switch {
		case err == nil && !info.Mode().IsRegular():
			discard()
			return fmt.Errorf("%w: %s 不是普通文件", ErrInvalidPath, rels[i])
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			discard()
			return fmt.Errorf("检查资源失败: %w", err)
		}
		tmp, err := writeTemp(f.full, files[rels[i]])
		if err != nil {
			discard()
			return err
		}
		f.tmp = tmp
	}
	if err := ctx.Err(); err != nil {
		discard()
		return err
	}

	for i, f := range staged {
		if err := f.swap(); err != nil {
			rollbackStaged(staged[:i+1])
			discard()
			return fmt.Errorf("落盘资源失败 %s: %w", rels[i], err)
		}
	}
	for _, f := range staged {
		if f.backup != "" {
			_ = os.Remove(f.backup)
		}
	}
	return nil
}

func (f *stagedFile) swap() error {
	if _, err := os.Lstat(f.full); err == nil {
		f.backup = strings.TrimSuffix(f.tmp, ".tmp") + ".bak.tmp"
		if err := rename(f.full, f.backup); err != nil {
			f.backup = ""
			return err
		}
	}
	if err := rename(f.tmp, f.full); err != nil {
		return err
	}
	f.tmp = ""
	f.swapped = true
	return nil
}

func rollbackStaged(staged []*stagedFile) {
	for i := len(staged) - 1; i >= 0; i-- {
		f := staged[i]
		if f.swapped {
			_ = os.Remove(f.full)
		}
		if f.backup != "" {
			if err := os.Rename(f.backup, f.full); err != nil {
				slog.Error("回滚资源失败", "path", f.full, "err", err)
			}
		}
	}
}

// Resolve 返回 current/ 下资源的绝对路径。
func (s *Store) Resolve(rel string) (string, error) {
	return s.resolve(currentDir, rel)
}

func (s *Store) resolve(area string, relPath string) (string, error) {
	if s.baseDir == "" {
		return "", ErrNotConfigured
	}
	rel, err := CleanPath(relPath)
	if err != nil {
		return "", err
	}
	base := filepath.Clean(filepath.Join(s.baseDir, area))
	full := filepath.Clean(filepath.Join(base, filepath.FromSlash(rel)))
	prefix := base + string(filepath.Separator)
	if full != base && !strings.HasPrefix(full, prefix) {
		return "", ErrInvalidPath
	}
	return full, nil
}

// CleanPath 校验并规范化相对路径（使用 /），拒绝绝对路径、反斜杠与越界的 ..。
func CleanPath(relPath string) (string, error) {
	rel := strings.TrimSpace(relPath)
	if rel == "" {
		return "", fmt.Errorf("%w: 路径为空", ErrInvalidPath)
	}
	if strings.Contains(rel, "\x00") || strings.Contains(rel, "\\") {
		return "", ErrInvalidPath
	}
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(rel)))
	if clean == "." || clean == "/" || strings.HasPrefix(clean, "/") {
		return "", ErrInvalidPath
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidPath
	}
	return clean, nil
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("生成随机数失败: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
