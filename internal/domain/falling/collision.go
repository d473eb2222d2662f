package falling

import (
	"math"

	"github.com/okian/mangacatch/internal/domain/slots"
)

// Collider decides whether an object touches a participant slot.
type Collider interface {
	Hit(o Object, s slots.Slot) bool
}

// Radius catches objects whose centre is within R pixels of the slot.
type Radius struct {
	R float64
}

// Hit implements Collider.
func (c Radius) Hit(o Object, s slots.Slot) bool {
	return math.Hypot(o.X-s.X, o.Y-s.Y) <= c.R
}

// Band catches objects inside a vertical band around the slot
// (Above pixels above, Below pixels below, both exclusive) that are also
// laterally closer than Lateral.
type Band struct {
	Above   float64
	Below   float64
	Lateral float64
}

// Hit implements Collider.
func (c Band) Hit(o Object, s slots.Slot) bool {
	return o.Y > s.Y-c.Above && o.Y < s.Y+c.Below && math.Abs(o.X-s.X) < c.Lateral
}
