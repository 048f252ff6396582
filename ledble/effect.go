package ledble

import "fmt"

// Effect is one of the fixture's built-in animated effects. An effect runs in
// place of a static color until a color command clears it.
type Effect uint8

// EffectNone means no effect: the fixture shows its static color.
const EffectNone Effect = 0

const (
	EffectJumpRGB Effect = 0x87
	EffectJumpAll Effect = 0x88

	EffectCrossfadeRGB     Effect = 0x89
	EffectCrossfadeAll     Effect = 0x8a
	EffectCrossfadeRed     Effect = 0x8b
	EffectCrossfadeGreen   Effect = 0x8c
	EffectCrossfadeBlue    Effect = 0x8d
	EffectCrossfadeYellow  Effect = 0x8e
	EffectCrossfadeCyan    Effect = 0x8f
	EffectCrossfadeMagenta Effect = 0x90
	EffectCrossfadeWhite   Effect = 0x91
	EffectCrossfadeRG      Effect = 0x92
	EffectCrossfadeRB      Effect = 0x93
	EffectCrossfadeGB      Effect = 0x94

	EffectBlinkAll     Effect = 0x95
	EffectBlinkRed     Effect = 0x96
	EffectBlinkGreen   Effect = 0x97
	EffectBlinkBlue    Effect = 0x98
	EffectBlinkYellow  Effect = 0x99
	EffectBlinkCyan    Effect = 0x9a
	EffectBlinkMagenta Effect = 0x9b
	EffectBlinkWhite   Effect = 0x9c
)

var effectNames = map[Effect]string{
	EffectNone:             "none",
	EffectJumpRGB:          "jump-rgb",
	EffectJumpAll:          "jump-all",
	EffectCrossfadeRGB:     "crossfade-rgb",
	EffectCrossfadeAll:     "crossfade-all",
	EffectCrossfadeRed:     "crossfade-red",
	EffectCrossfadeGreen:   "crossfade-green",
	EffectCrossfadeBlue:    "crossfade-blue",
	EffectCrossfadeYellow:  "crossfade-yellow",
	EffectCrossfadeCyan:    "crossfade-cyan",
	EffectCrossfadeMagenta: "crossfade-magenta",
	EffectCrossfadeWhite:   "crossfade-white",
	EffectCrossfadeRG:      "crossfade-red-green",
	EffectCrossfadeRB:      "crossfade-red-blue",
	EffectCrossfadeGB:      "crossfade-green-blue",
	EffectBlinkAll:         "blink-all",
	EffectBlinkRed:         "blink-red",
	EffectBlinkGreen:       "blink-green",
	EffectBlinkBlue:        "blink-blue",
	EffectBlinkYellow:      "blink-yellow",
	EffectBlinkCyan:        "blink-cyan",
	EffectBlinkMagenta:     "blink-magenta",
	EffectBlinkWhite:       "blink-white",
}

func (e Effect) String() string {
	if name, ok := effectNames[e]; ok {
		return name
	}
	return fmt.Sprintf("Effect(%#02x)", uint8(e))
}
