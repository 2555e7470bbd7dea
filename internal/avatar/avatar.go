// Package avatar derives deterministic colors and initials for users.
package avatar

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"unicode"
	"unicode/utf16"
)

const defaultSeed = "seed"

// NormalizeSeed trims and lowercases a seed. An empty seed stays empty: only
// a missing one falls back, see ResolveSeed.
func NormalizeSeed(seed string) string {
	return strings.ToLower(strings.TrimSpace(seed))
}

// ResolveSeed prefers the user id, then email, then username. With none of
// them present the seed is "seed".
func ResolveSeed(userID, email, username string) string {
	for _, v := range []string{userID, email, username} {
		if strings.TrimSpace(v) != "" {
			return NormalizeSeed(v)
		}
	}
	return defaultSeed
}

// Hash is the 31-multiplier string hash over UTF-16 code units, wrapped to
// 32 bits, returned as an absolute value. Web clients compute the same value,
// so colors agree across platforms.
func Hash(s string) int64 {
	var h int32
	for _, cu := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(cu)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return v
}

// Hue maps a seed to [0, 360).
func Hue(seed string) int {
	return int(Hash(NormalizeSeed(seed)) % 360)
}

// RGB is an 8-bit color.
type RGB struct {
	R, G, B uint8
}

// Hex renders #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Palette is the two-stop pastel gradient of an avatar.
type Palette struct {
	Hue  int
	Hue2 int
}

// NewPalette builds the gradient for hue.
func NewPalette(hue int) Palette {
	return Palette{Hue: hue, Hue2: (hue + 35) % 360}
}

// Primary is hsl(hue, 55%, 82%).
func (p Palette) Primary() RGB { return HSL(float64(p.Hue), 0.55, 0.82) }

// Secondary is hsl(hue+35, 60%, 72%).
func (p Palette) Secondary() RGB { return HSL(float64(p.Hue2), 0.60, 0.72) }

// CSS returns the two stops as hsl() strings.
func (p Palette) CSS() (string, string) {
	return fmt.Sprintf("hsl(%d, 55%%, 82%%)", p.Hue), fmt.Sprintf("hsl(%d, 60%%, 72%%)", p.Hue2)
}

// HSL converts hue in degrees and saturation/lightness in [0,1] to RGB.
func HSL(h, s, l float64) RGB {
	c := (1 - math.Abs(2*l-1)) * s
	hp := math.Mod(h, 360) / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))
	var r, g, b float64
	switch {
	case hp < 1:
		r, g, b = c, x, 0
	case hp < 2:
		r, g, b = x, c, 0
	case hp < 3:
		r, g, b = 0, c, x
	case hp < 4:
		r, g, b = 0, x, c
	case hp < 5:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	m := l - c/2
	conv := func(v float64) uint8 { return uint8(math.Round((v + m) * 255)) }
	return RGB{R: conv(r), G: conv(g), B: conv(b)}
}

// Initials takes the first letter of up to two words, uppercased; "U" for
// blank names.
func Initials(name string) string {
	parts := strings.FieldsFunc(name, unicode.IsSpace)
	if len(parts) == 0 {
		return "U"
	}
	if len(parts) > 2 {
		parts = parts[:2]
	}
	var b strings.Builder
	for _, p := range parts {
		r := []rune(p)
		b.WriteRune(r[0])
	}
	return strings.ToUpper(b.String())
}

// Cache memoizes hues per normalized seed for the life of the process.
type Cache struct {
	mu   sync.RWMutex
	hues map[string]int
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{hues: make(map[string]int)}
}

// Palette returns the memoized palette for seed.
func (c *Cache) Palette(seed string) Palette {
	s := NormalizeSeed(seed)
	c.mu.RLock()
	hue, ok := c.hues[s]
	c.mu.RUnlock()
	if !ok {
		hue = Hue(s)
		c.mu.Lock()
		c.hues[s] = hue
		c.mu.Unlock()
	}
	return NewPalette(hue)
}

// Len reports how many seeds are cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.hues)
}
