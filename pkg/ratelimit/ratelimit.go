// Package ratelimit wraps golang.org/x/time/rate token buckets for the
// two per-connection limits the connection handler enforces: voice
// packets and quick-chat messages.
package ratelimit

import (
	"time"

	"golang.org/x/time/rate"
)

// VoiceInterval and VoiceBurst give a 50ms-per-token, 5-token bucket:
// at most 5 voice packets in the first instant, refilling one every
// 50ms thereafter.
const (
	VoiceInterval = 50 * time.Millisecond
	VoiceBurst    = 5

	QuickChatInterval = 2 * time.Second
	QuickChatBurst    = 1
)

// New builds a token-bucket limiter that refills one token every
// interval, up to burst tokens banked.
func New(interval time.Duration, burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Every(interval), burst)
}

// NewVoice builds the per-connection voice-packet limiter.
func NewVoice() *rate.Limiter {
	return New(VoiceInterval, VoiceBurst)
}

// NewQuickChat builds the per-connection quick-chat limiter.
func NewQuickChat() *rate.Limiter {
	return New(QuickChatInterval, QuickChatBurst)
}
