// Package scheduler implements the chipset's event scheduler: a fixed set
// of slots, each tracking the next cycle at which its owner wants to run,
// dispatched in slot order whenever their trigger falls due.
package scheduler

import (
	"fmt"
	"math"
)

// Never is the sentinel trigger value meaning "this slot is disabled".
const Never = int64(math.MaxInt64)

// Slot names one of the fixed logical activity classes described in
// spec §3. The scheduler never allocates slots dynamically; every
// subcomponent that needs scheduled callbacks owns exactly one of these.
type Slot uint8

const (
	SlotCopper Slot = iota
	SlotBlitter
	SlotDiskRotate
	SlotDiskChange
	SlotRaster
	SlotVBlank
	SlotInterrupt
	SlotRegisterChange
	SlotCIAATimer
	SlotCIABTimer
	SlotMouse0
	SlotMouse1
	SlotKeyboard
	SlotSecondary
	numSlots
)

func (s Slot) String() string {
	names := [numSlots]string{
		"COPPER", "BLITTER", "DISK_ROTATE", "DISK_CHANGE", "RASTER", "VBL",
		"INTERRUPT", "REGISTER_CHANGE", "CIA_A", "CIA_B", "MOUSE0", "MOUSE1",
		"KEYBOARD", "SECONDARY",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "UNKNOWN_SLOT"
}

// event is the scheduler's record for a single slot.
type event struct {
	trigger int64
	data    int64
}

// BeamAdvancer is the one dependency the scheduler has on the beam
// counter, supplied after construction (see Attach) rather than through a
// constructor parameter, per the spec's guidance on avoiding cyclic
// configure-at-construction wiring. Tick advances the beam by a single bus
// cycle; Advance fast-forwards it by n cycles with no event dispatch.
type BeamAdvancer interface {
	Tick()
	Advance(n int64)
}

// ViolationLogger receives a message whenever a contract violation is
// detected (scheduling a trigger in the past). In release builds this is the only trace of the violation; in
// Strict mode the scheduler panics instead.
type ViolationLogger interface {
	Errorf(format string, args ...interface{})
}

// Scheduler dispatches slot handlers in cycle order. It is single-threaded
// and cooperative: handlers run to completion before the next cycle is
// considered, matching the concurrency model in spec §5.
type Scheduler struct {
	clock int64
	slots [numSlots]event
	// handlers[slot] is called with the slot's data word when its
	// trigger falls due. Registered once per slot at construction time,
	// mirroring the teacher's RegisterEvent/eventHandlers table.
	handlers [numSlots]func(data int64)

	beam BeamAdvancer
	log  ViolationLogger

	// Strict turns the one contract violation this scheduler detects
	// (scheduling a trigger in the past) into a panic instead of a logged
	// warning. Some scheduler tests set it; chipset.Core and the release
	// build driven by cmd/chipsetsim leave it unset.
	Strict bool
}

// New creates a Scheduler with every slot disabled.
func New(log ViolationLogger) *Scheduler {
	s := &Scheduler{log: log}
	for i := range s.slots {
		s.slots[i].trigger = Never
	}
	return s
}

// Attach wires the beam counter the scheduler advances during dispatch.
// Called once during chipset construction, after both the scheduler and
// the beam counter already exist.
func (s *Scheduler) Attach(beam BeamAdvancer) {
	s.beam = beam
}

// RegisterHandler binds the function a slot invokes when it comes due.
// Called once per slot during chipset wiring.
func (s *Scheduler) RegisterHandler(slot Slot, fn func(data int64)) {
	s.handlers[slot] = fn
}

// Clock returns the current bus-cycle count since power-on.
func (s *Scheduler) Clock() int64 {
	return s.clock
}

// ScheduleAbs arms a slot to fire at the given absolute cycle. Scheduling a
// trigger in the past is a contract violation (spec §4.1 "Failure"): it
// panics in Strict mode, and otherwise is logged and clamped to the
// current cycle so the slot still fires promptly instead of silently never
// firing.
func (s *Scheduler) ScheduleAbs(slot Slot, trigger int64, data int64) {
	if trigger < s.clock {
		msg := "scheduler: slot %s scheduled for %d, which is before clock %d"
		if s.Strict {
			panic(fmt.Sprintf(msg, slot, trigger, s.clock))
		}
		if s.log != nil {
			s.log.Errorf(msg, slot, trigger, s.clock)
		}
		trigger = s.clock
	}
	s.slots[slot] = event{trigger: trigger, data: data}
}

// ScheduleRel arms a slot to fire delta cycles from now.
func (s *Scheduler) ScheduleRel(slot Slot, delta int64, data int64) {
	s.ScheduleAbs(slot, s.clock+delta, data)
}

// Cancel disarms a slot. Cancelling an already-disabled slot is a no-op.
func (s *Scheduler) Cancel(slot Slot) {
	s.slots[slot].trigger = Never
}

// IsScheduled reports whether a slot currently has a pending trigger.
func (s *Scheduler) IsScheduled(slot Slot) bool {
	return s.slots[slot].trigger != Never
}

// Trigger returns the slot's current trigger cycle (Never if disabled).
func (s *Scheduler) Trigger(slot Slot) int64 {
	return s.slots[slot].trigger
}

// nextTrigger returns the smallest trigger across all slots.
func (s *Scheduler) nextTrigger() int64 {
	next := Never
	for i := range s.slots {
		if s.slots[i].trigger < next {
			next = s.slots[i].trigger
		}
	}
	return next
}

// dispatchDue invokes every slot whose trigger is <= clock, in slot-index
// order (spec §4.1 "Ordering": ties broken by stable slot index). A
// handler is free to reschedule its own slot; because we snapshot the due
// set by index rather than re-scanning after each call, a handler
// rescheduling itself to an earlier cycle only takes effect on the next
// dispatch pass, matching the spec's rescheduling rule.
func (s *Scheduler) dispatchDue() {
	var due [numSlots]bool
	for i := range s.slots {
		due[i] = s.slots[i].trigger <= s.clock
	}
	for i := Slot(0); i < numSlots; i++ {
		if due[i] && s.slots[i].trigger <= s.clock {
			data := s.slots[i].data
			// Disarm before invoking: a handler that wants to stay
			// active must explicitly reschedule itself.
			s.slots[i].trigger = Never
			if fn := s.handlers[i]; fn != nil {
				fn(data)
			}
		}
	}
}

// tick executes exactly one bus cycle: dispatch anything due, advance the
// clock, then advance the beam by one position (spec §4.1 execute()).
func (s *Scheduler) tick() {
	s.dispatchDue()
	s.clock++
	if s.beam != nil {
		s.beam.Tick()
	}
}

// ExecuteUntil advances the scheduler to target, dispatching every event
// that falls due along the way. When no slot is due before target it
// fast-forwards the clock and beam directly instead of ticking one cycle
// at a time, which is observably identical (spec §8 "Universal
// invariants") but far cheaper for long idle stretches such as a CPU-only
// scanline. Events due exactly at target are dispatched on arrival,
// before ExecuteUntil returns.
func (s *Scheduler) ExecuteUntil(target int64) {
	for s.clock < target {
		next := s.nextTrigger()
		if next > target {
			if s.beam != nil {
				s.beam.Advance(target - s.clock)
			}
			s.clock = target
			return
		}
		s.tick()
	}
	s.dispatchDue()
}

// Tick advances exactly one bus cycle (dispatch, clock, beam). It has the
// shape of the dma.TickFunc that the bus arbiter's wait-state spin loop
// takes; within this module only tests call it.
func (s *Scheduler) Tick() {
	s.tick()
}

