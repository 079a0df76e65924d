//go:build embed_web

package lessondata

import "embed"

// WebDistFS 内嵌前端构建产物，构建前需先生成 web/dist：go build -tags embed_web。
//
//go:embed web/dist
var WebDistFS embed.FS
