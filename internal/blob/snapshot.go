package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/klauspost/compress/zstd"
)

const snapshotExt = ".zst"

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
	zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
)

// SnapshotResult 汇总一次快照或恢复涉及的文件。
type SnapshotResult struct {
	Target  string
	Files   []string
	Removed []string
}

// MarkSafe 把 target（目录或单个文件）的当前内容记为安全版本，覆盖旧快照。
// 新快照先完整写到旁边的临时位置，成功后才替换旧快照；中途失败时旧快照保持不变。
func (s *Store) MarkSafe(ctx context.Context, target string) (SnapshotResult, error) {
	target, err := CleanPath(target)
	if err != nil {
		return SnapshotResult{}, err
	}
	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	files, err := s.currentFiles(target)
	if err != nil {
		return SnapshotResult{}, err
	}
	if len(files) == 0 {
		return SnapshotResult{}, fmt.Errorf("%w: %s", ErrNotFound, target)
	}
	safeTarget, err := s.resolve(safeDir, target)
	if err != nil {
		return SnapshotResult{}, err
	}

	res := SnapshotResult{Target: target}
	if len(files) == 1 && files[0] == target {
		raw, err := s.readCurrent(ctx, target)
		if err != nil {
			return SnapshotResult{}, err
		}
		if err := writeFileAtomic(safeTarget+snapshotExt, zstdEncoder.EncodeAll(raw, nil)); err != nil {
			return SnapshotResult{}, err
		}
		if err := os.RemoveAll(safeTarget); err != nil {
			slog.Warn("清理旧目录快照失败", "target", target, "err", err)
		}
		res.Files = files
		return res, nil
	}

	suffix, err := randomToken(8)
	if err != nil {
		return SnapshotResult{}, err
	}
	stage := safeTarget + "." + suffix + ".tmp"
	for _, rel := range files {
		raw, err := s.readCurrent(ctx, rel)
		if err == nil {
			dst := filepath.Join(stage, filepath.FromSlash(strings.TrimPrefix(rel, target+"/"))) + snapshotExt
			err = writeFileAtomic(dst, zstdEncoder.EncodeAll(raw, nil))
		}
		if err != nil {
			_ = os.RemoveAll(stage)
			return SnapshotResult{}, err
		}
		res.Files = append(res.Files, rel)
	}
	if err := swapDir(stage, safeTarget); err != nil {
		_ = os.RemoveAll(stage)
		return SnapshotResult{}, fmt.Errorf("替换快照失败: %w", err)
	}
	if err := os.Remove(safeTarget + snapshotExt); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("清理旧文件快照失败", "target", target, "err", err)
	}
	return res, nil
}

func (s *Store) readCurrent(ctx context.Context, rel string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := s.resolve(currentDir, rel)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("读取资源失败: %w", err)
	}
	return raw, nil
}

// swapDir 用 stage 目录替换 dst；dst 原有内容先移到一旁，替换失败时移回。
func swapDir(stage, dst string) error {
	old := ""
	if _, err := os.Lstat(dst); err == nil {
		old = stage + ".old"
		if err := rename(dst, old); err != nil {
			return err
		}
	}
	if err := rename(stage, dst); err != nil {
		if old != "" {
			if rerr := os.Rename(old, dst); rerr != nil {
				slog.Error("回滚快照失败", "path", dst, "err", rerr)
			}
		}
		return err
	}
	if old != "" {
		if err := os.RemoveAll(old); err != nil {
			slog.Warn("清理旧快照失败", "path", old, "err", err)
		}
	}
	return nil
}

// Restore 用安全版本替换 target 下的全部资源；快照中没有的现有文件会被删除。
func (s *Store) Restore(ctx context.Context, target string) (SnapshotResult, error) {
	target, err := CleanPath(target)
	if err != nil {
		return SnapshotResult{}, err
	}
	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	snap, err := s.snapshotFiles(target)
	if err != nil {
		return SnapshotResult{}, err
	}

	// 先全部解压校验，再写回，避免损坏的快照留下半恢复状态。
	contents := make(map[string][]byte, len(snap))
	for _, rel := range snap {
		if err := ctx.Err(); err != nil {
			return SnapshotResult{}, err
		}
		src, err := s.resolve(safeDir, rel+snapshotExt)
		if err != nil {
			return SnapshotResult{}, err
		}
		compressed, err := os.ReadFile(src)
		if err != nil {
			return SnapshotResult{}, fmt.Errorf("读取快照失败: %w", err)
		}
		raw, err := zstdDecoder.DecodeAll(compressed, nil)
		if err != nil {
			return SnapshotResult{}, fmt.Errorf("解压快照失败 %s: %w", rel, err)
		}
		contents[rel] = raw
	}

	current, err := s.currentFiles(target)
	if err != nil {
		return SnapshotResult{}, err
	}

	res := SnapshotResult{Target: target}
	for _, rel := range snap {
		dst, err := s.resolve(currentDir, rel)
		if err != nil {
			return SnapshotResult{}, err
		}
		if err := writeFileAtomic(dst, contents[rel]); err != nil {
			return SnapshotResult{}, err
		}
		res.Files = append(res.Files, rel)
	}
	for _, rel := range current {
		if _, ok := contents[rel]; ok {
			continue
		}
		full, err := s.resolve(currentDir, rel)
		if err != nil {
			return SnapshotResult{}, err
		}
		if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return SnapshotResult{}, fmt.Errorf("删除资源失败: %w", err)
		}
		res.Removed = append(res.Removed, rel)
	}
	return res, nil
}

// HasSnapshot 判断 target 是否有安全版本。
func (s *Store) HasSnapshot(target string) (bool, error) {
	target, err := CleanPath(target)
	if err != nil {
		return false, err
	}
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	files, err := s.snapshotFiles(target)
	if errors.Is(err, ErrNoSnapshot) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(files) > 0, nil
}

// currentFiles 返回 target 在 current/ 下对应的文件（相对 current/ 的路径）。
func (s *Store) currentFiles(target string) ([]string, error) {
	full, err := s.resolve(currentDir, target)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("检查资源失败: %w", err)
	}
	if info.Mode().IsRegular() {
		return []string{target}, nil
	}
	return globUnder(full, target, "**")
}

// snapshotFiles 返回 target 快照中的文件（相对 current/ 的路径，不含 .zst 后缀）。
func (s *Store) snapshotFiles(target string) ([]string, error) {
	dir, err := s.resolve(safeDir, target)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		files, err := globUnder(dir, target, "**/*"+snapshotExt)
		if err != nil {
			return nil, err
		}
		for i := range files {
			files[i] = strings.TrimSuffix(files[i], snapshotExt)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, target)
		}
		return files, nil
	}
	if _, err := os.Stat(dir + snapshotExt); err == nil {
		return []string{target}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, target)
}

func globUnder(dir, prefix, pattern string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("列出资源失败: %w", err)
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if isTempPath(m) {
			continue
		}
		out = append(out, filepath.ToSlash(filepath.Join(prefix, m)))
	}
	sort.Strings(out)
	return out, nil
}

// isTempPath 判断路径是否位于写入中的临时文件或临时目录里。
func isTempPath(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if strings.HasSuffix(seg, ".tmp") || strings.HasSuffix(seg, ".tmp.old") {
			return true
		}
	}
	return false
}
