package entity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrLanguageUnavailable 宿主未提供该用户的通知语言配置（非致命，调用方降级处理）
	ErrLanguageUnavailable = errors.New("通知语言配置不可用")
	// ErrUnresolvable 无法根据多态引用还原实体
	ErrUnresolvable = errors.New("无法解析实体引用")
)

// Ref 多态实体引用：类型标签 + 数字主键
// 任何可被观察 / 可作为通知 sender 的对象都通过它定位，核心不关心实体的具体形状。
type Ref struct {
	Type string `json:"type"`
	ID   uint   `json:"id"`
}

// Path 约定式路径 /<type>/<id>/，用于自动推导 sender_path
func (r Ref) Path() string {
	return "/" + r.Type + "/" + strconv.FormatUint(uint64(r.ID), 10) + "/"
}

func (r Ref) String() string {
	return r.Type + ":" + strconv.FormatUint(uint64(r.ID), 10)
}

// IsZero 引用是否为空
func (r Ref) IsZero() bool {
	return r.Type == "" && r.ID == 0
}

// Identifiable 可被引用的实体自述其多态引用
type Identifiable interface {
	EntityRef() Ref
}

// RefOf 提取任意对象的多态引用；对象未实现 Identifiable 时返回 false
func RefOf(v any) (Ref, bool) {
	if v == nil {
		return Ref{}, false
	}
	ident, ok := v.(Identifiable)
	if !ok {
		return Ref{}, false
	}
	return ident.EntityRef(), true
}

// ResolveFunc 按数字主键还原某一类型实体
type ResolveFunc func(ctx context.Context, id uint) (any, error)

// Resolver 宿主提供的实体引用解析器
type Resolver interface {
	Resolve(ctx context.Context, ref Ref) (any, error)
}

// MapResolver 基于类型标签注册表的 Resolver 实现
// 启动期注册、此后只读，可被并发读取。
type MapResolver struct {
	funcs map[string]ResolveFunc
}

// NewMapResolver 创建空的解析器注册表
func NewMapResolver() *MapResolver {
	return &MapResolver{funcs: make(map[string]ResolveFunc)}
}

// Register 注册某类型标签的解析函数；重复注册时后者覆盖前者
func (m *MapResolver) Register(typeTag string, fn ResolveFunc) {
	m.funcs[typeTag] = fn
}

// Resolve 按引用还原实体
func (m *MapResolver) Resolve(ctx context.Context, ref Ref) (any, error) {
	fn, ok := m.funcs[ref.Type]
	if !ok {
		return nil, fmt.Errorf("%w: 未注册类型 %q", ErrUnresolvable, ref.Type)
	}
	v, err := fn(ctx, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnresolvable, ref, err)
	}
	return v, nil
}

// LanguageStore 宿主提供的用户通知语言查询
type LanguageStore interface {
	// NotificationLanguage 返回用户的通知语言码；未配置时返回 ErrLanguageUnavailable
	NotificationLanguage(ctx context.Context, userID uint) (string, error)
}
