//go:build linux

package input

import "golang.design/x/hotkey"

// X11 has no fixed Alt or Super bit; Mod1 and Mod4 are the usual mapping.
var platformModifiers = map[string]hotkey.Modifier{
	"alt":     hotkey.Mod1,
	"option":  hotkey.Mod1,
	"super":   hotkey.Mod4,
	"win":     hotkey.Mod4,
	"cmd":     hotkey.Mod4,
	"command": hotkey.Mod4,
}
