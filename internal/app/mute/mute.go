// Package mute flips local publish-mute and per-tile remote playback-mute.
// Neither touches subscriptions or publications, and neither can fail: a
// missing target is a no-op.
package mute

import (
	"sync"

	"github.com/dkeye/Reception/internal/core"
)

// LocalAudioOwner is implemented by session.Session.
type LocalAudioOwner interface {
	LocalAudio() core.LocalTrack
}

// ToggleLocal flips the enabled flag of owner's local audio track and
// reports whether it is now muted.
func ToggleLocal(owner LocalAudioOwner) bool {
	if owner == nil {
		return false
	}
	track := owner.LocalAudio()
	if track == nil {
		return false
	}
	track.SetEnabled(!track.Enabled())
	return !track.Enabled()
}

// LocalMuted reports the current local publish-mute state.
func LocalMuted(owner LocalAudioOwner) bool {
	if owner == nil {
		return false
	}
	track := owner.LocalAudio()
	return track != nil && !track.Enabled()
}

// PlaybackTarget is implemented by tracks.Router.
type PlaybackTarget interface {
	SetPlaybackMuted(bool)
}

// Playback is one tile's client-side playback-mute flag.
type Playback struct {
	// apply serializes toggles so the target sees them in order.
	apply  sync.Mutex
	mu     sync.Mutex
	muted  bool
	target PlaybackTarget
}

func NewPlayback(target PlaybackTarget) *Playback {
	return &Playback{target: target}
}

// Toggle flips the flag, applies it to the target and returns the new value.
func (p *Playback) Toggle() bool {
	p.apply.Lock()
	defer p.apply.Unlock()

	p.mu.Lock()
	p.muted = !p.muted
	muted := p.muted
	p.mu.Unlock()

	if p.target != nil {
		p.target.SetPlaybackMuted(muted)
	}
	return muted
}

func (p *Playback) Muted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}
