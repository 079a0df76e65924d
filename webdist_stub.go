//go:build !embed_web

package lessondata

import "embed"

// WebDistFS 在未内嵌前端时为空，服务端改用 frontend.dist_dir 或内置提示页。
var WebDistFS embed.FS
