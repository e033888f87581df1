package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimiter 按客户端 IP 的固定窗口限流
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	counts  map[string]int
	resetAt map[string]time.Time
	now     func() time.Time
}

// NewRateLimiter 每个 IP 每个 window 最多 limit 次请求
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		counts:  make(map[string]int),
		resetAt: make(map[string]time.Time),
		now:     time.Now,
	}
}

// clientIP 取 RemoteAddr 的主机部分，兼容 IPv6
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Allow 记一次请求，超限返回 false
func (l *RateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if last, ok := l.resetAt[ip]; !ok || now.Sub(last) > l.window {
		l.counts[ip] = 0
		l.resetAt[ip] = now
	}
	l.counts[ip]++
	return l.counts[ip] <= l.limit
}

// Wrap 超限时返回 429
func (l *RateLimiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientIP(r)) {
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StartCleanup 定时清理两个窗口内没有请求的 IP，ctx 结束时退出
func (l *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.cleanup()
			}
		}
	}()
}

func (l *RateLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for ip, last := range l.resetAt {
		if now.Sub(last) > 2*l.window {
			delete(l.resetAt, ip)
			delete(l.counts, ip)
		}
	}
}

// LimitBody 限制请求体大小
func LimitBody(max int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, max)
		next.ServeHTTP(w, r)
	})
}
