package api

import (
	"net"
	"sync"

	"golang.org/x/time/rate"
)

// registration limits per remote address
const registerRate = rate.Limit(1)
const registerBurst = 5

// ipLimiter throttles the public registration endpoint per remote host
type ipLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newIPLimiter() *ipLimiter {
	return &ipLimiter{limiters: make(map[string]*rate.Limiter)}
}

func (l *ipLimiter) allow(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	l.mu.Lock()
	lim, ok := l.limiters[host]
	if !ok {
		lim = rate.NewLimiter(registerRate, registerBurst)
		l.limiters[host] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}
