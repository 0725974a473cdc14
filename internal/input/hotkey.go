// Package input turns a global hotkey into push-to-talk gating for the
// microphone session.
package input

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.design/x/hotkey"
)

// Mode selects how key presses map to the talking state
type Mode int

const (
	// Hold talks while the key is held down
	Hold Mode = iota
	// Toggle flips the talking state on every press
	Toggle
)

// ParseMode parses "hold" or "toggle"
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hold":
		return Hold, nil
	case "toggle":
		return Toggle, nil
	default:
		return Hold, fmt.Errorf("unknown push-to-talk mode: %s", s)
	}
}

// PushToTalk tracks whether the user is talking. onChange runs on the
// listener goroutine for every state change.
type PushToTalk struct {
	mode     Mode
	onChange func(talking bool)

	mu      sync.Mutex
	talking bool

	hk     *hotkey.Hotkey
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPushToTalk creates an idle PushToTalk
func NewPushToTalk(mode Mode, onChange func(talking bool)) *PushToTalk {
	return &PushToTalk{mode: mode, onChange: onChange}
}

// Start registers the global hotkey (e.g. "ctrl+shift+space") and begins
// listening for presses.
func (p *PushToTalk) Start(ctx context.Context, combo string) error {
	mods, key, err := ParseHotkey(combo)
	if err != nil {
		return fmt.Errorf("invalid hotkey: %w", err)
	}

	p.hk = hotkey.New(mods, key)
	if err := p.hk.Register(); err != nil {
		return fmt.Errorf("failed to register hotkey: %w", err)
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		p.listen(ctx, p.hk.Keydown(), p.hk.Keyup())
	}()
	return nil
}

func (p *PushToTalk) listen(ctx context.Context, down, up <-chan hotkey.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-down:
			if !ok {
				return
			}
			if p.mode == Toggle {
				p.set(!p.Talking())
			} else {
				p.set(true)
			}
		case _, ok := <-up:
			if !ok {
				return
			}
			if p.mode == Hold {
				p.set(false)
			}
		}
	}
}

func (p *PushToTalk) set(talking bool) {
	p.mu.Lock()
	changed := p.talking != talking
	p.talking = talking
	p.mu.Unlock()

	if changed && p.onChange != nil {
		p.onChange(talking)
	}
}

// Talking reports the current state
func (p *PushToTalk) Talking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.talking
}

// Stop unregisters the hotkey and waits briefly for the listener to exit
func (p *PushToTalk) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	if p.hk != nil {
		p.hk.Unregister()
	}
	if p.done != nil {
		select {
		case <-p.done:
		case <-time.After(100 * time.Millisecond):
		}
	}
}

var namedKeys = map[string]hotkey.Key{
	"space": hotkey.KeySpace, "return": hotkey.KeyReturn, "enter": hotkey.KeyReturn,
	"tab": hotkey.KeyTab, "escape": hotkey.KeyEscape, "esc": hotkey.KeyEscape,
	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD,
	"e": hotkey.KeyE, "f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH,
	"i": hotkey.KeyI, "j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO, "p": hotkey.KeyP,
	"q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,
	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7,
	"8": hotkey.Key8, "9": hotkey.Key9,
	"f1": hotkey.KeyF1, "f2": hotkey.KeyF2, "f3": hotkey.KeyF3, "f4": hotkey.KeyF4,
	"f5": hotkey.KeyF5, "f6": hotkey.KeyF6, "f7": hotkey.KeyF7, "f8": hotkey.KeyF8,
	"f9": hotkey.KeyF9, "f10": hotkey.KeyF10, "f11": hotkey.KeyF11, "f12": hotkey.KeyF12,
}

// ParseHotkey parses a combination like "ctrl+shift+space"
func ParseHotkey(s string) ([]hotkey.Modifier, hotkey.Key, error) {
	if strings.TrimSpace(s) == "" {
		return nil, 0, fmt.Errorf("empty hotkey string")
	}

	var mods []hotkey.Modifier
	var key hotkey.Key
	var keyFound bool

	for _, part := range strings.Split(strings.ToLower(s), "+") {
		part = strings.TrimSpace(part)
		switch part {
		case "ctrl", "control":
			mods = append(mods, hotkey.ModCtrl)
		case "shift":
			mods = append(mods, hotkey.ModShift)
		default:
			if mod, ok := platformModifiers[part]; ok {
				mods = append(mods, mod)
				continue
			}
			if keyFound {
				return nil, 0, fmt.Errorf("multiple keys specified")
			}
			k, ok := namedKeys[part]
			if !ok {
				return nil, 0, fmt.Errorf("unknown key: %s", part)
			}
			key = k
			keyFound = true
		}
	}

	if !keyFound {
		return nil, 0, fmt.Errorf("no key specified")
	}
	return mods, key, nil
}
