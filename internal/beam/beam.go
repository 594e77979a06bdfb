// Package beam tracks the raster beam position and frame counter that every
// other chipset component times itself against.
package beam

import "github.com/agnusdei/chipsetcore/internal/types"

// HposCnt is the number of horizontal bus-cycle positions in a scanline on
// the base chipset (0xE3, matching the PAL/NTSC long line count used by the
// allocation tables in internal/dma).
const HposCnt = 0xE3

// HposMax is the last valid horizontal position, used as a jump-table
// sentinel by internal/dma.
const HposMax = HposCnt - 1

// Standard names the two video standards the original hardware supported.
// Only the frame line count differs between them at this layer; pixel
// clock and color encoding are the video output stage's concern, which is
// out of scope for this core.
type Standard int

const (
	PAL Standard = iota
	NTSC
)

// linesPerField returns the number of scanlines in a field for the given
// standard, before any interlace adjustment.
func linesPerField(std Standard) uint16 {
	if std == NTSC {
		return 262
	}
	return 312
}

// Position is the beam's (v, h) coordinate, also used as the coprocessor's
// comparator input (§4.5). Only the low 16 bits of Clock-derived state ever
// feed the comparator, so Position is kept at exactly 16 bits per axis.
type Position struct {
	V, H uint16
}

// Frame tracks interlace field polarity and the running frame index. Long
// fields (the "long" line in PAL/NTSC interlace) run one scanline longer
// than short fields; NumLines always reports the count for the *current*
// field.
type Frame struct {
	Interlaced bool
	Long       bool
	Index      uint64

	standard Standard
}

// NumLines returns the scanline count of the current field.
func (f *Frame) NumLines() uint16 {
	n := linesPerField(f.standard)
	if f.Interlaced && f.Long {
		return n + 1
	}
	return n
}

// Counter is the beam counter described in spec §3-4.2: current position,
// bus clock, and the frame this position belongs to.
type Counter struct {
	Pos   Position
	Clock int64
	Frame Frame

	// vsyncHandlers are invoked, in registration order, when the beam
	// wraps from the last line of a field back to line 0. Subcomponents
	// register their own vsync_handler here during chipset wiring rather
	// than Counter knowing about them by name.
	vsyncHandlers []func()
}

// New creates a Counter for the given video standard.
func New(std Standard, interlaced bool) *Counter {
	return &Counter{
		Frame: Frame{Interlaced: interlaced, standard: std},
	}
}

// OnVSync registers a handler to run every time the beam crosses into a new
// field. Handlers run in registration order.
func (c *Counter) OnVSync(fn func()) {
	c.vsyncHandlers = append(c.vsyncHandlers, fn)
}

// Tick advances the beam by exactly one bus cycle, wrapping H back to 0 and
// incrementing V (running VSync handling on field wrap) when it crosses
// HposCnt. This is the only place pos.h is allowed to become 0 outside of
// explicit resets, satisfying invariant 2 in spec §3.
func (c *Counter) Tick() {
	c.Pos.H++
	if c.Pos.H >= HposCnt {
		c.Pos.H = 0
		c.advanceLine()
	}
}

// Advance fast-forwards the beam by n bus cycles without running any of the
// scheduler's event dispatch, used by Scheduler.ExecuteUntil's fast path
// when no event is due before the target cycle. It calls Tick n times, so
// line and field wraps (including vsync handlers) happen exactly as they
// would cycle by cycle, for any n.
func (c *Counter) Advance(n int64) {
	for i := int64(0); i < n; i++ {
		c.Tick()
	}
}

func (c *Counter) advanceLine() {
	c.Pos.V++
	if c.Pos.V >= c.Frame.NumLines() {
		c.Pos.V = 0
		if c.Frame.Interlaced {
			c.Frame.Long = !c.Frame.Long
		}
		c.Frame.Index++
		for _, fn := range c.vsyncHandlers {
			fn()
		}
	}
}

// Beam16 packs the low 16 bits of the beam position the way the
// coprocessor's comparator reads it: V in the high byte, H in the low byte
// (spec §4.5, invariant 6).
func (c *Counter) Beam16() uint16 {
	return uint16(c.Pos.V)<<8 | (c.Pos.H & 0xFF)
}

// Save/Load implement types.Stater. The video standard is part of the
// saved state (rather than left to the caller to re-supply via New) so a
// loaded snapshot reproduces NumLines() correctly even if the host
// reconstructs the Counter with the wrong standard before loading.
func (c *Counter) Save(s *types.State) {
	s.Write16(c.Pos.V)
	s.Write16(c.Pos.H)
	s.Write64(uint64(c.Clock))
	s.WriteBool(c.Frame.Interlaced)
	s.WriteBool(c.Frame.Long)
	s.Write64(c.Frame.Index)
	s.Write8(uint8(c.Frame.standard))
}

func (c *Counter) Load(s *types.State) {
	c.Pos.V = s.Read16()
	c.Pos.H = s.Read16()
	c.Clock = int64(s.Read64())
	c.Frame.Interlaced = s.ReadBool()
	c.Frame.Long = s.ReadBool()
	c.Frame.Index = s.Read64()
	c.Frame.standard = Standard(s.Read8())
}

var _ types.Stater = (*Counter)(nil)
