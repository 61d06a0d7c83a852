package routes

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// Resolver 路径解析器：判断某路径能否命中宿主应用的已知路由
type Resolver interface {
	Resolve(path string) bool
}

// ── gin 路由表实现 ──

// GinResolver 基于 gin 路由表的 Resolver 实现
// 宿主应用把它的 *gin.Engine 交给引擎，sender_path 校验便与真实路由保持一致。
type GinResolver struct {
	patterns []string
}

// NewGinResolver 从 gin 引擎的路由表构建解析器
func NewGinResolver(engine *gin.Engine) *GinResolver {
	infos := engine.Routes()
	patterns := make([]string, 0, len(infos))
	for _, ri := range infos {
		patterns = append(patterns, ri.Path)
	}
	return &GinResolver{patterns: patterns}
}

// Resolve 判断路径是否命中任一路由
func (r *GinResolver) Resolve(path string) bool {
	return matchAny(r.patterns, path)
}

// ── 静态模式表实现 ──

// StaticResolver 基于静态模式列表的 Resolver 实现（gin 风格模式）
// 供没有 gin 引擎可注入的宿主（如管理 CLI）从配置构建。
type StaticResolver struct {
	patterns []string
}

// NewStaticResolver 从模式列表构建解析器
func NewStaticResolver(patterns ...string) *StaticResolver {
	return &StaticResolver{patterns: patterns}
}

// Resolve 判断路径是否命中任一模式
func (r *StaticResolver) Resolve(path string) bool {
	return matchAny(r.patterns, path)
}

func matchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if matchPattern(p, path) {
			return true
		}
	}
	return false
}

// matchPattern 按 gin 路由语法逐段匹配：:param 匹配任意非空段，*param 匹配剩余全部
func matchPattern(pattern, path string) bool {
	ps := splitSegments(pattern)
	ts := splitSegments(path)

	for i, seg := range ps {
		if strings.HasPrefix(seg, "*") {
			return true
		}
		if i >= len(ts) {
			return false
		}
		if strings.HasPrefix(seg, ":") {
			if ts[i] == "" {
				return false
			}
			continue
		}
		if seg != ts[i] {
			return false
		}
	}
	return len(ps) == len(ts)
}

func splitSegments(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
