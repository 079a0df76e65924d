// Package version 提供构建信息，便于 healthz、CLI 与日志输出版本指纹。
package version

import "fmt"

type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// 通过 -ldflags "-X github.com/yitongOE/LessonData/internal/version.Version=..." 注入。
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func Info() BuildInfo {
	return BuildInfo{
		Version: Version,
		Commit:  Commit,
		Date:    Date,
	}
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (%s, %s)", b.Version, b.Commit, b.Date)
}
