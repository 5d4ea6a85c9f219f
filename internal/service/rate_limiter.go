package service

import (
	"context"
	"strings"
	"sync"
	"time"
)

// RateLimiter limita la frecuencia de intentos por clave. Cuando rechaza,
// devuelve cuánto falta para que la clave vuelva a tener cupo.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration)
}

type memoryRateLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	max       int
	hits      map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryRateLimiter crea un limitador de ventana deslizante en memoria.
// Se usa cuando no hay Redis configurado.
func NewMemoryRateLimiter(window time.Duration, max int) RateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &memoryRateLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

func (l *memoryRateLimiter) Allow(_ context.Context, key string) (bool, time.Duration) {
	key = normalizeLimiterKey(key)
	if key == "" {
		return false, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now().UTC()
	cutoff := now.Add(-l.window)
	l.sweep(now, cutoff)

	kept := pruneBefore(l.hits[key], cutoff)
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false, kept[0].Add(l.window).Sub(now)
	}
	l.hits[key] = append(kept, now)
	return true, 0
}

// sweep borra, como mucho una vez por ventana, las claves sin intentos
// vigentes.
func (l *memoryRateLimiter) sweep(now, cutoff time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	for k, entries := range l.hits {
		if len(entries) == 0 || !entries[len(entries)-1].After(cutoff) {
			delete(l.hits, k)
		}
	}
	l.lastSweep = now
}

func pruneBefore(entries []time.Time, cutoff time.Time) []time.Time {
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}

func normalizeLimiterKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// loginLimiterKey combina email e IP para que un tercero no pueda bloquear
// el login de una cuenta desde otra dirección.
func loginLimiterKey(emailAddr, clientIP string) string {
	if clientIP == "" {
		return emailAddr
	}
	return emailAddr + "|" + clientIP
}

type allowAll struct{}

func (allowAll) Allow(context.Context, string) (bool, time.Duration) { return true, 0 }
