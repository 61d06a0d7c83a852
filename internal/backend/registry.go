package backend

import (
	"fmt"
)

// Key 通道标识 (MediumID, Label)
type Key struct {
	MediumID byte
	Label    string
}

// Registry 通道注册表
// 进程启动时从显式配置构建一次，此后只读，可被并发读取。
type Registry struct {
	backends       []Backend
	keys           []Key
	minSensitivity map[byte]int
	feed           FeedBackend
}

// NewRegistry 按注册顺序构建通道注册表
// 同一 MediumID 可有多个实现，取其中最小的敏感度作为该通道的默认判定阈值；
// 第一个实现 FeedBackend 的通道被视为站内信通道。
func NewRegistry(backends ...Backend) (*Registry, error) {
	r := &Registry{
		backends:       backends,
		keys:           make([]Key, 0, len(backends)),
		minSensitivity: make(map[byte]int),
	}

	seen := make(map[Key]bool)
	for _, b := range backends {
		key := Key{MediumID: b.MediumID(), Label: b.Label()}
		if seen[key] {
			return nil, fmt.Errorf("通道重复注册: (%c, %s)", key.MediumID, key.Label)
		}
		seen[key] = true
		r.keys = append(r.keys, key)

		if cur, ok := r.minSensitivity[b.MediumID()]; !ok || b.SpamSensitivity() < cur {
			r.minSensitivity[b.MediumID()] = b.SpamSensitivity()
		}

		if fb, ok := b.(FeedBackend); ok && r.feed == nil {
			r.feed = fb
		}
	}

	return r, nil
}

// Backends 全部已注册通道，按注册顺序
func (r *Registry) Backends() []Backend { return r.backends }

// Keys 全部通道标识，按注册顺序
func (r *Registry) Keys() []Key { return r.keys }

// Feed 站内信通道；未注册时为 nil
func (r *Registry) Feed() FeedBackend { return r.feed }

// MinSensitivity 某 MediumID 下所有实现的最小敏感度
func (r *Registry) MinSensitivity(mediumID byte) (int, bool) {
	s, ok := r.minSensitivity[mediumID]
	return s, ok
}

// MediumByName 按通道名称（如 "email"）定位 MediumID，退订接口使用
func (r *Registry) MediumByName(name string) (byte, error) {
	for _, key := range r.keys {
		if key.Label == name {
			return key.MediumID, nil
		}
	}
	return 0, fmt.Errorf("未知通道: %q", name)
}
