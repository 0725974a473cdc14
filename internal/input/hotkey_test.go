//go:build linux || darwin

package input

import (
	"context"
	"testing"
	"time"

	"golang.design/x/hotkey"
)

func TestParseHotkey(t *testing.T) {
	mods, key, err := ParseHotkey("Ctrl+Shift+Space")
	if err != nil {
		t.Fatalf("ParseHotkey() returned error: %v", err)
	}
	if key != hotkey.KeySpace || len(mods) != 2 || mods[0] != hotkey.ModCtrl || mods[1] != hotkey.ModShift {
		t.Fatalf("unexpected parse %v %v", mods, key)
	}

	mods, key, _ = ParseHotkey("alt+f9")
	if key != hotkey.KeyF9 || len(mods) != 1 || mods[0] != platformModifiers["alt"] {
		t.Fatalf("expected alt+F9, got %v %v", mods, key)
	}

	for _, bad := range []string{"", "ctrl+shift", "ctrl+a+b", "ctrl+hyper"} {
		if _, _, err := ParseHotkey(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestParseMode(t *testing.T) {
	if m, _ := ParseMode(""); m != Hold {
		t.Fatal("expected hold by default")
	}
	if m, _ := ParseMode("Toggle"); m != Toggle {
		t.Fatal("expected toggle")
	}
	if _, err := ParseMode("latch"); err == nil {
		t.Fatal("expected error for an unknown mode")
	}
}

func runListener(t *testing.T, p *PushToTalk) (chan hotkey.Event, chan hotkey.Event, func()) {
	t.Helper()
	down := make(chan hotkey.Event)
	up := make(chan hotkey.Event)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.listen(ctx, down, up)
	}()
	return down, up, func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("listener did not exit")
		}
	}
}

func TestHoldMode(t *testing.T) {
	changes := make(chan bool, 4)
	p := NewPushToTalk(Hold, func(talking bool) { changes <- talking })
	down, up, stop := runListener(t, p)
	defer stop()

	down <- hotkey.Event{}
	if !<-changes {
		t.Fatal("expected talking after key down")
	}
	up <- hotkey.Event{}
	if <-changes {
		t.Fatal("expected silence after key up")
	}
	if p.Talking() {
		t.Fatal("expected Talking() to be false")
	}
}

func TestToggleMode(t *testing.T) {
	changes := make(chan bool, 4)
	p := NewPushToTalk(Toggle, func(talking bool) { changes <- talking })
	down, up, stop := runListener(t, p)
	defer stop()

	down <- hotkey.Event{}
	up <- hotkey.Event{}
	if !<-changes {
		t.Fatal("expected the first press to start talking")
	}
	down <- hotkey.Event{}
	if <-changes {
		t.Fatal("expected the second press to stop talking")
	}
	select {
	case c := <-changes:
		t.Fatalf("key up must not change a toggle, got %v", c)
	default:
	}
}
