package muc

import (
	"fmt"
	imgcolor "image/color"
	"math/rand"
	"sort"

	"mellium.im/xmpp/color"
	"mellium.im/xmpp/jid"
)

// Color is an opaque display token for a nick, a "#rrggbb" string the UI
// hands to lipgloss.
type Color string

const nickLuma = 188

// DefaultPalette is used when the theme provides none
var DefaultPalette = []Color{
	"#e06c75", "#98c379", "#e5c07b", "#61afef",
	"#c678dd", "#56b6c2", "#d19a66", "#be5046",
}

// DefaultOwnColor is the color of our own nick
const DefaultOwnColor Color = "#abb2bf"

// ConsistentColor derives an XEP-0392 color from an identifier
func ConsistentColor(s string) Color {
	c := color.String(s, nickLuma, color.None)
	r, g, b := imgcolor.YCbCrToRGB(c.Y, c.Cb, c.Cr)
	return Color(fmt.Sprintf("#%02x%02x%02x", r, g, b))
}

// Colorer hands out nick colors for a room
type Colorer struct {
	palette       []Color
	own           Color
	deterministic bool
	next          int
}

// NewColorer creates a colorer. An empty palette falls back to
// DefaultPalette.
func NewColorer(palette []Color, own Color, deterministic bool) *Colorer {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	if own == "" {
		own = DefaultOwnColor
	}
	return &Colorer{palette: palette, own: own, deterministic: deterministic}
}

// Own returns the color reserved for our nick
func (c *Colorer) Own() Color {
	return c.own
}

// Pick returns the color for an occupant seen for the first time
func (c *Colorer) Pick(nick string, real jid.JID) Color {
	if c.deterministic {
		return ConsistentColor(colorSource(nick, real))
	}
	col := c.palette[c.next%len(c.palette)]
	c.next++
	return col
}

// Recolor reassigns colors to occupants, most recent talkers first, so that
// active speakers get distinct colors. Our own nick keeps its color.
func (c *Colorer) Recolor(reg *Registry, ownNick string, random bool) {
	occupants := make([]*Occupant, 0, len(reg.order))
	for _, o := range reg.order {
		if o.Nick == ownNick {
			o.Color = c.own
			continue
		}
		occupants = append(occupants, o)
	}

	if c.deterministic {
		for _, o := range occupants {
			o.Color = ConsistentColor(colorSource(o.Nick, o.RealJID))
		}
		return
	}

	sort.SliceStable(occupants, func(i, j int) bool {
		return occupants[i].LastTalked.After(occupants[j].LastTalked)
	})

	palette := c.palette
	if random {
		palette = append([]Color(nil), c.palette...)
		rand.Shuffle(len(palette), func(i, j int) {
			palette[i], palette[j] = palette[j], palette[i]
		})
	}
	for i, o := range occupants {
		o.Color = palette[i%len(palette)]
	}
	c.next = len(occupants)
}

func colorSource(nick string, real jid.JID) string {
	if bare := real.Bare().String(); bare != "" {
		return bare
	}
	return nick
}
