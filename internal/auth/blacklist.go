package auth

import (
	"context"
	"sync"
	"time"
)

// TokenBlacklist stores the JTIs of revoked tokens until the tokens would have expired anyway.
type TokenBlacklist interface {
	Add(ctx context.Context, jti string, originalTokenExpTime time.Time) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// MemoryBlacklist keeps revoked JTIs in process. It serves a single API server
// running without Redis; revocations are lost on restart.
type MemoryBlacklist struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewMemoryBlacklist 创建一个进程内的黑名单。
func NewMemoryBlacklist() *MemoryBlacklist {
	return &MemoryBlacklist{expires: make(map[string]time.Time), now: time.Now}
}

func (b *MemoryBlacklist) Add(_ context.Context, jti string, originalTokenExpTime time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	// 顺便清理已经过期的条目
	for id, exp := range b.expires {
		if !exp.After(now) {
			delete(b.expires, id)
		}
	}
	if originalTokenExpTime.After(now) {
		b.expires[jti] = originalTokenExpTime
	}
	return nil
}

func (b *MemoryBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	exp, ok := b.expires[jti]
	return ok && exp.After(b.now()), nil
}
