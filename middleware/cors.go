package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// CORSConfig CORS 中间件配置
type CORSConfig struct {
	// AllowOrigins 允许的源，支持 "*" 与 "https://*.example.com" 形式的子域通配
	AllowOrigins []string

	// AllowMethods 预检返回的方法（默认 GET, HEAD, OPTIONS）
	AllowMethods []string

	// AllowHeaders 预检返回的请求头
	AllowHeaders []string

	// ExposeHeaders 允许前端读取的响应头
	ExposeHeaders []string

	// AllowCredentials 为 true 时 AllowOrigins 不能为 "*"
	AllowCredentials bool

	// MaxAge 预检缓存时间
	MaxAge time.Duration
}

// DefaultCORSConfig 默认允许所有源访问只读接口
func DefaultCORSConfig() *CORSConfig {
	return &CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Traceparent"},
		MaxAge:       12 * time.Hour,
	}
}

// corsPolicy 预先计算好的响应头与来源匹配规则
type corsPolicy struct {
	any       bool
	exact     map[string]bool
	wildcards [][2]string // prefix, suffix

	methods     string
	headers     string
	expose      string
	maxAge      string
	credentials bool
}

func newCORSPolicy(cfg *CORSConfig) *corsPolicy {
	p := &corsPolicy{
		exact:       make(map[string]bool),
		methods:     strings.Join(cfg.AllowMethods, ", "),
		headers:     strings.Join(cfg.AllowHeaders, ", "),
		expose:      strings.Join(cfg.ExposeHeaders, ", "),
		maxAge:      strconv.Itoa(int(cfg.MaxAge.Seconds())),
		credentials: cfg.AllowCredentials,
	}
	for _, origin := range cfg.AllowOrigins {
		switch {
		case origin == "*":
			p.any = true
		case strings.Count(origin, "*") == 1:
			prefix, suffix, _ := strings.Cut(origin, "*")
			p.wildcards = append(p.wildcards, [2]string{prefix, suffix})
		default:
			p.exact[origin] = true
		}
	}
	return p
}

// allow 通配部分不能为空
func (p *corsPolicy) allow(origin string) bool {
	if p.any || p.exact[origin] {
		return true
	}
	for _, w := range p.wildcards {
		if len(origin) > len(w[0])+len(w[1]) &&
			strings.HasPrefix(origin, w[0]) && strings.HasSuffix(origin, w[1]) {
			return true
		}
	}
	return false
}

// CORS 创建 CORS 中间件，只作用于只读 HTTP 接口；websocket 握手的来源由 ws.Upgrader 校验
func CORS(cfgs ...*CORSConfig) gin.HandlerFunc {
	cfg := DefaultCORSConfig()
	if len(cfgs) > 0 && cfgs[0] != nil {
		cfg = cfgs[0]
	}
	p := newCORSPolicy(cfg)
	if p.credentials && p.any {
		panic("middleware: CORS AllowCredentials cannot be used with AllowOrigins [\"*\"]")
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" || !p.allow(origin) {
			c.Next()
			return
		}

		if p.any {
			c.Header("Access-Control-Allow-Origin", "*")
		} else {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		if p.credentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		if p.expose != "" {
			c.Header("Access-Control-Expose-Headers", p.expose)
		}

		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", p.methods)
			c.Header("Access-Control-Allow-Headers", p.headers)
			c.Header("Access-Control-Max-Age", p.maxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
