package hotkeys

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	VKBack     VKey = 0x08
	VKTab      VKey = 0x09
	VKReturn   VKey = 0x0D
	VKShift    VKey = 0x10
	VKControl  VKey = 0x11
	VKMenu     VKey = 0x12
	VKPause    VKey = 0x13
	VKCapital  VKey = 0x14
	VKEscape   VKey = 0x1B
	VKSpace    VKey = 0x20
	VKPrior    VKey = 0x21
	VKNext     VKey = 0x22
	VKEnd      VKey = 0x23
	VKHome     VKey = 0x24
	VKLeft     VKey = 0x25
	VKUp       VKey = 0x26
	VKRight    VKey = 0x27
	VKDown     VKey = 0x28
	VKSnapshot VKey = 0x2C
	VKInsert   VKey = 0x2D
	VKDelete   VKey = 0x2E
	VKLWin     VKey = 0x5B
	VKRWin     VKey = 0x5C
	VKNumpad0  VKey = 0x60
	VKMultiply VKey = 0x6A
	VKAdd      VKey = 0x6B
	VKSubtract VKey = 0x6D
	VKDecimal  VKey = 0x6E
	VKDivide   VKey = 0x6F
	VKF1       VKey = 0x70
	VKF2       VKey = 0x71
	VKF3       VKey = 0x72
	VKF12      VKey = 0x7B
	VKF24      VKey = 0x87
	VKNumLock  VKey = 0x90
	VKScroll   VKey = 0x91
	VKLShift   VKey = 0xA0
	VKRShift   VKey = 0xA1
	VKLControl VKey = 0xA2
	VKRControl VKey = 0xA3
	VKLMenu    VKey = 0xA4
	VKRMenu    VKey = 0xA5
	VKOem1     VKey = 0xBA
	VKOemPlus  VKey = 0xBB
	VKOemComma VKey = 0xBC
	VKOemMinus VKey = 0xBD
	VKOemDot   VKey = 0xBE
	VKOem2     VKey = 0xBF
	VKOem3     VKey = 0xC0
	VKOem4     VKey = 0xDB
	VKOem5     VKey = 0xDC
	VKOem6     VKey = 0xDD
	VKOem7     VKey = 0xDE
)

var keyNames = map[VKey]string{
	VKBack:     "Backspace",
	VKTab:      "Tab",
	VKReturn:   "Enter",
	VKPause:    "Pause",
	VKCapital:  "CapsLock",
	VKEscape:   "Esc",
	VKSpace:    "Space",
	VKPrior:    "PageUp",
	VKNext:     "PageDown",
	VKEnd:      "End",
	VKHome:     "Home",
	VKLeft:     "Left",
	VKUp:       "Up",
	VKRight:    "Right",
	VKDown:     "Down",
	VKSnapshot: "PrintScreen",
	VKInsert:   "Insert",
	VKDelete:   "Delete",
	VKMultiply: "Num*",
	VKAdd:      "Num+",
	VKSubtract: "Num-",
	VKDecimal:  "Num.",
	VKDivide:   "Num/",
	VKNumLock:  "NumLock",
	VKScroll:   "ScrollLock",
	VKOem1:     ";",
	VKOemPlus:  "=",
	VKOemComma: ",",
	VKOemMinus: "-",
	VKOemDot:   ".",
	VKOem2:     "/",
	VKOem3:     "`",
	VKOem4:     "[",
	VKOem5:     "\\",
	VKOem6:     "]",
	VKOem7:     "'",
}

var modifierByName = map[string]Modifier{
	"CTRL":    ModControl,
	"CONTROL": ModControl,
	"SHIFT":   ModShift,
	"ALT":     ModAlt,
}

// keyAliases holds spellings accepted by ParseSpec in addition to KeyName output.
var keyAliases = map[string]VKey{
	"RETURN":    VKReturn,
	"ESCAPE":    VKEscape,
	"DEL":       VKDelete,
	"INS":       VKInsert,
	"PGUP":      VKPrior,
	"PGDN":      VKNext,
	"BACKQUOTE": VKOem3,
	"GRAVE":     VKOem3,
}

var keyByName = buildKeyByName()

func buildKeyByName() map[string]VKey {
	out := make(map[string]VKey, len(keyNames)+len(keyAliases)+64)
	for vk, name := range keyNames {
		out[strings.ToUpper(name)] = vk
	}
	for name, vk := range keyAliases {
		out[name] = vk
	}
	for i := VKey(0); i < 24; i++ {
		out["F"+strconv.Itoa(int(i)+1)] = VKF1 + i
	}
	for i := VKey(0); i < 10; i++ {
		out["NUM"+strconv.Itoa(int(i))] = VKNumpad0 + i
	}
	return out
}

// IsModifierKey reports whether vk is one of the Ctrl, Alt, Shift or Win keys,
// including their left/right variants.
func IsModifierKey(vk VKey) bool {
	switch vk {
	case VKShift, VKControl, VKMenu,
		VKLShift, VKRShift, VKLControl, VKRControl, VKLMenu, VKRMenu,
		VKLWin, VKRWin:
		return true
	}
	return false
}

// KeyName returns a human-readable name for a virtual-key code.
// Unknown codes render as hex, e.g. "0xE2".
func KeyName(vk VKey) string {
	switch {
	case vk >= VKF1 && vk <= VKF24:
		return "F" + strconv.Itoa(int(vk-VKF1)+1)
	case vk >= 'A' && vk <= 'Z', vk >= '0' && vk <= '9':
		return string(rune(vk))
	case vk >= VKNumpad0 && vk <= VKNumpad0+9:
		return "Num" + strconv.Itoa(int(vk-VKNumpad0))
	}
	if name, ok := keyNames[vk]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", uint32(vk))
}

// ParseSpec parses a human binding such as "Ctrl+Shift+F12" or "F5" into an
// enabled Binding. Modifiers are optional; the Win modifier is not supported.
func ParseSpec(spec string) (Binding, error) {
	raw := strings.TrimSpace(spec)
	if raw == "" {
		return Binding{}, fmt.Errorf("hotkey spec is empty")
	}

	parts := strings.Split(raw, "+")
	// "Ctrl++" names the plus key on the main keyboard.
	if strings.HasSuffix(raw, "++") {
		parts = append(parts[:len(parts)-2], "=")
	}

	var mods Modifier
	for _, token := range parts[:len(parts)-1] {
		name := strings.ToUpper(strings.TrimSpace(token))
		mod, ok := modifierByName[name]
		if !ok {
			return Binding{}, fmt.Errorf("unknown modifier %q in hotkey %q", token, raw)
		}
		mods |= mod
	}

	key, err := parseKeyToken(parts[len(parts)-1])
	if err != nil {
		return Binding{}, fmt.Errorf("hotkey %q: %w", raw, err)
	}
	return NewBinding(key, mods), nil
}

func parseKeyToken(raw string) (VKey, error) {
	token := strings.ToUpper(strings.TrimSpace(raw))
	if token == "" {
		return 0, fmt.Errorf("missing hotkey key token")
	}

	if key, ok := keyByName[token]; ok {
		return key, nil
	}

	if len(token) == 1 {
		ch := token[0]
		if (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			return VKey(ch), nil
		}
	}

	if strings.HasPrefix(token, "0X") {
		value, err := strconv.ParseUint(token[2:], 16, 8)
		if err != nil {
			return 0, fmt.Errorf("invalid hex key %q", raw)
		}
		if value == 0 {
			return 0, fmt.Errorf("key code 0x00 is not a valid virtual key")
		}
		return VKey(value), nil
	}

	if IsModifierKey(modifierVKey(token)) {
		return 0, fmt.Errorf("modifier %q cannot be used as the key", raw)
	}
	return 0, fmt.Errorf("unknown key %q", raw)
}

func modifierVKey(token string) VKey {
	switch token {
	case "CTRL", "CONTROL":
		return VKControl
	case "ALT":
		return VKMenu
	case "SHIFT":
		return VKShift
	case "WIN", "SUPER":
		return VKLWin
	}
	return 0
}
