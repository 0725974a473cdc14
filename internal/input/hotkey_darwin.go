//go:build darwin

package input

import "golang.design/x/hotkey"

var platformModifiers = map[string]hotkey.Modifier{
	"alt":     hotkey.ModOption,
	"option":  hotkey.ModOption,
	"cmd":     hotkey.ModCmd,
	"command": hotkey.ModCmd,
	"super":   hotkey.ModCmd,
	"win":     hotkey.ModCmd,
}
