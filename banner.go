package roomcast

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/gin-gonic/gin"
)

// Version 服务版本号
const Version = "0.1.0"

const banner = `
 roomcast  realtime room broadcast
 open:     %s
 version:  %s
`

// printBanner 打印启动 banner 和路由表
func (e *Engine) printBanner(addr string) {
	out := os.Stdout

	var open string
	switch {
	case strings.HasPrefix(addr, ":"):
		open = "ws://127.0.0.1" + addr
	case strings.Contains(addr, ":"):
		open = "ws://" + addr
	default:
		open = "ws://127.0.0.1:" + addr
	}

	fPrint(out, banner, open, Version)
	fPrint(out, "\n")

	if routes := e.engine.Routes(); len(routes) > 0 {
		printRoutes(out, routes, gin.Mode())
		fPrint(out, "\n")
	}
	fPrint(out, "[roomcast] Go version: %s | OS: %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// methodColor 根据 HTTP 方法返回 ANSI 颜色码
func methodColor(method string) string {
	switch method {
	case "GET":
		return "\033[34m"
	case "HEAD":
		return "\033[35m"
	case "OPTIONS":
		return "\033[37m"
	default:
		return "\033[0m"
	}
}

const resetColor = "\033[0m"

// printRoutes 打印路由表
func printRoutes(out io.Writer, routes gin.RoutesInfo, mode string) {
	maxPathLen := 0
	for _, r := range routes {
		maxPathLen = max(maxPathLen, len(r.Path))
	}
	for _, r := range routes {
		fPrint(out, "[roomcast-%s] %s %-7s %s %-*s --> %s\n",
			mode,
			methodColor(r.Method), r.Method, resetColor,
			maxPathLen, r.Path,
			r.Handler)
	}
}

// silenceGin 静默 Gin 的默认输出，请求日志由 middleware.Logger 记录
func silenceGin() {
	gin.DefaultWriter = io.Discard
	gin.DefaultErrorWriter = io.Discard
}

// fPrint 打印到 writer，忽略错误
func fPrint(out io.Writer, format string, a ...any) {
	_, _ = fmt.Fprintf(out, format, a...)
}
