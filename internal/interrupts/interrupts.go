// Package interrupts implements the interrupt aggregator of spec §4.7:
// a single INTREQ register fed by every other subcomponent through
// raise_irq, with optional scheduler-delayed posting.
package interrupts

import "github.com/agnusdei/chipsetcore/internal/types"

// Scheduler is the narrow slice of internal/scheduler this package
// depends on: posting a delayed callback to the INTERRUPT slot. Bound by
// internal/chipset so this package never imports internal/scheduler
// directly.
type Scheduler interface {
	ScheduleInterrupt(delay int64, source int)
}

// Aggregator holds the INTENA/INTREQ register pair and the mapping from
// this core's internal interrupt source tags (copper, disk, blitter,
// vertical blank) onto their hardware bit positions.
type Aggregator struct {
	intena uint16
	intreq uint16

	sched Scheduler
}

// New creates an Aggregator with both registers cleared.
func New(sched Scheduler) *Aggregator {
	return &Aggregator{sched: sched}
}

// bitFor maps a source tag onto its INTREQ/INTENA bit. Source tags are
// the Source* constants below; internal/disk does not import this package
// and declares its own IRQDskSync/IRQDskBlk with the same values.
func bitFor(source int) uint16 {
	switch source {
	case SourceSoft:
		return types.INTF_SOFT
	case SourceDskBlk:
		return types.INTF_DSKBLK
	case SourceDskSync:
		return types.INTF_DSKSYN
	case SourceVertB:
		return types.INTF_VERTB
	case SourceCoper:
		return types.INTF_COPER
	case SourceBlit:
		return types.INTF_BLIT
	}
	return 0
}

// Interrupt source tags, shared across the packages that raise them.
const (
	SourceSoft = iota
	SourceDskBlk
	SourceDskSync
	SourceVertB
	SourceCoper
	SourceBlit
)

// RaiseIRQ implements spec §4.7's raise_irq(source, delay=0). With
// delay == 0 the request bit is set immediately; otherwise the request
// is posted to the scheduler's INTERRUPT slot and only takes effect when
// that slot fires.
func (a *Aggregator) RaiseIRQ(source int, delay int64) {
	if delay <= 0 {
		a.setRequest(source)
		return
	}
	if a.sched != nil {
		a.sched.ScheduleInterrupt(delay, source)
	}
}

// Service is called by the INTERRUPT slot handler when a delayed request
// becomes due.
func (a *Aggregator) Service(source int) {
	a.setRequest(source)
}

func (a *Aggregator) setRequest(source int) {
	a.intreq |= bitFor(source)
}

// WriteINTENA applies a SETCLR-style write (bit 15 selects set vs clear
// for the remaining bits), matching the hardware's own INTENA/INTREQ
// write convention.
func (a *Aggregator) WriteINTENA(v uint16) {
	a.intena = applySetClr(a.intena, v)
}

// WriteINTREQ lets software (or a subcomponent acting on its behalf)
// clear or set request bits directly, same SETCLR convention.
func (a *Aggregator) WriteINTREQ(v uint16) {
	a.intreq = applySetClr(a.intreq, v)
}

func applySetClr(reg, v uint16) uint16 {
	bits := v &^ types.INTF_SETCLR
	if v&types.INTF_SETCLR != 0 {
		return reg | bits
	}
	return reg &^ bits
}

// INTREQ/INTENA return the live register values; the actual forwarding
// to the CPU (masking INTREQ by INTENA and signalling an interrupt
// level) is explicitly out of scope for this core (spec Non-goals) and
// is the consumer's job.
func (a *Aggregator) INTREQ() uint16 { return a.intreq }
func (a *Aggregator) INTENA() uint16 { return a.intena }

// Save/Load implement types.Stater.
func (a *Aggregator) Save(s *types.State) {
	s.Write16(a.intena)
	s.Write16(a.intreq)
}

func (a *Aggregator) Load(s *types.State) {
	a.intena = s.Read16()
	a.intreq = s.Read16()
}

var _ types.Stater = (*Aggregator)(nil)
