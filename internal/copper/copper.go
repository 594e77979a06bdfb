// Package copper implements the coprocessor described in spec §4.5: a
// tiny program counter walking 32-bit MOVE/WAIT/SKIP instructions against
// chipset registers, gated by the beam comparator and the bus arbiter.
package copper

import "github.com/agnusdei/chipsetcore/internal/types"

// State names one step of the coprocessor's state machine.
type State uint8

const (
	StateRequestDMA State = iota
	StateFetch
	StateMove
	StateWaitOrSkip
	StateJmp1
	StateJmp2
)

// RegisterWriter is the collaborator MOVE's register write goes through.
// Bound in by internal/chipset so this
// package never imports the chipset's own register file directly.
type RegisterWriter interface {
	WriteRegister(addr types.RegAddr, value uint16)
}

// BusRequester lets the coprocessor ask the arbiter for a cycle and learn
// whether it was granted, without importing internal/dma directly.
type BusRequester interface {
	RequestCopperCycle() (granted bool)
}

// BlitterStatus reports whether the blitter is currently busy, needed for
// WAIT's optional "blitter-finished" gate (copins2 bit 15).
type BlitterStatus interface {
	BlitterBusy() bool
}

// ViolationLogger receives a message whenever the coprocessor halts on a
// contract violation (spec §7, "coprocessor halted"). Same shape as
// scheduler.ViolationLogger so internal/chipset can wire its one log.Logger
// adapter to both.
type ViolationLogger interface {
	Errorf(format string, args ...interface{})
}

const (
	skipLowBit      = 1
	bfdBit          = 1 << 15 // Blitter-Finished-Disable, copins2 bit 15
	cdangRegion0    = 0x40
	cdangRegion1    = 0x80
	terminateRegion = 0x80
)

// Copper is the coprocessor core. It holds no reference to the scheduler;
// internal/chipset drives it one step at a time from the COPPER slot
// handler, which runs again every cycle and, while the coprocessor is in
// WAIT_OR_SKIP, compares the live beam against WakeBeam before letting it
// continue.
type Copper struct {
	state State

	coppc  uint32 // current program counter, a byte address into chip RAM
	coplc  [2]uint32
	copins1, copins2 uint16

	cdang bool // copper danger bit (COPCON), allows 0x40-0x7F writes
	skip  bool // one-shot flag set by SKIP, consumed by the next MOVE

	// halted is set when a MOVE targets a reserved register (spec §7,
	// scenario 3: "coprocessor halted (slot cancelled)"). Step becomes a
	// no-op until a JMP clears it; only Jump/QueueVSyncJump can resume.
	halted bool

	regs RegisterWriter
	bus  BusRequester
	blit BlitterStatus
	mem  MemoryReader
	log  ViolationLogger

	// wakeBeam is set by WAIT_OR_SKIP when it computes the next beam
	// position the comparator will fire at; internal/chipset reads this
	// to know when to re-invoke Step.
	wakeBeam     uint16
	wakeBlitGate bool

	beamFn BeamFn
}

// MemoryReader reads a 16-bit word of chip RAM at a byte address, used to
// fetch copins1/copins2.
type MemoryReader interface {
	ReadChipWord(addr uint32) uint16
}

// New creates a Copper wired to its four collaborators.
func New(regs RegisterWriter, bus BusRequester, blit BlitterStatus, mem MemoryReader) *Copper {
	return &Copper{regs: regs, bus: bus, blit: blit, mem: mem, state: StateRequestDMA}
}

// SetCDANG sets or clears the copper-danger bit (COPCON write).
func (c *Copper) SetCDANG(v bool) {
	c.cdang = v
}

// SetLogger wires the violation logger, following the Attach-after-
// construct pattern used throughout this module (see SetBeamFn).
func (c *Copper) SetLogger(log ViolationLogger) {
	c.log = log
}

// Halted reports whether the coprocessor has stopped after writing a
// reserved register. internal/chipset checks this to stop dispatching the
// COPPER slot entirely instead of rescheduling it every cycle.
func (c *Copper) Halted() bool {
	return c.halted
}

// SetLocation sets coplc[n] (COP1LC/COP2LC write), n in {0,1}.
func (c *Copper) SetLocation(n int, addr uint32) {
	c.coplc[n] = addr
}

// Jump forces the state machine to JMP1/JMP2, reloading coppc from
// coplc[n] on the following Step. This is the Open Question #2 decision:
// COPJMP1/2 reload from coplc[0]/[1] and re-enter REQUEST_DMA.
func (c *Copper) Jump(n int) {
	c.halted = false
	if n == 0 {
		c.state = StateJmp1
	} else {
		c.state = StateJmp2
	}
}

// QueueVSyncJump arranges for a JMP1 a few cycles after vertical sync, as
// spec §4.5 requires ("Vertical sync queues a JMP1 a few cycles in").
// internal/chipset calls this from the beam's OnVSync handler and is
// responsible for the "a few cycles" delay via the scheduler; Copper
// itself just performs the jump when told to.
func (c *Copper) QueueVSyncJump() {
	c.Jump(0)
}

// WakeBeam returns the beam position computed by the most recent WAIT,
// and whether that WAIT also requires the blitter to be idle.
func (c *Copper) WakeBeam() (beam uint16, blitterGate bool) {
	return c.wakeBeam, c.wakeBlitGate
}

// State returns the current state machine step, mainly for tests and
// snapshotting.
func (c *Copper) State() State {
	return c.state
}

// Step runs exactly one state transition. internal/chipset calls this
// from the COPPER scheduler slot, which it reschedules one cycle later
// after every dispatch; in WAIT_OR_SKIP it polls the beam each cycle and
// calls Resume once the wake position is reached. The slot is never
// scheduled directly for the wake cycle.
func (c *Copper) Step() {
	if c.halted {
		return
	}
	switch c.state {
	case StateJmp1:
		c.coppc = c.coplc[0]
		c.state = StateRequestDMA
	case StateJmp2:
		c.coppc = c.coplc[1]
		c.state = StateRequestDMA
	case StateRequestDMA:
		if c.bus.RequestCopperCycle() {
			c.state = StateFetch
		}
	case StateFetch:
		c.copins1 = c.mem.ReadChipWord(c.coppc)
		c.coppc += 2
		if c.copins1&skipLowBit == 0 {
			c.state = StateMove
		} else {
			c.state = StateWaitOrSkip
		}
	case StateMove:
		c.copins2 = c.mem.ReadChipWord(c.coppc)
		c.coppc += 2
		c.performMove()
		if !c.halted {
			c.state = StateRequestDMA
		}
	case StateWaitOrSkip:
		c.copins2 = c.mem.ReadChipWord(c.coppc)
		c.coppc += 2
		c.performWaitOrSkip()
	}
}

// performMove executes the register-write half of a MOVE instruction,
// honoring the cdang-gated register ranges and the terminate-on-reserved
// rule, and consuming a pending skip flag if one was armed by a prior
// SKIP. A skipped MOVE neither writes nor halts.
func (c *Copper) performMove() {
	if c.skip {
		c.skip = false
		return
	}
	addr := types.RegAddr(c.copins1 & 0x1FE)
	if addr >= terminateRegion {
		// Writing to a reserved register halts the copper; it never
		// re-enters REQUEST_DMA on its own (a JMP is required).
		c.halted = true
		if c.log != nil {
			c.log.Errorf("copper: halted after MOVE to reserved register %#x", addr)
		}
		return
	}
	allowed := addr < cdangRegion0 || (addr < cdangRegion1 && c.cdang)
	if allowed && c.regs != nil {
		c.regs.WriteRegister(addr, c.copins2)
	}
}

// performWaitOrSkip dispatches to WAIT or SKIP based on copins2's low
// bit, per spec §4.5's instruction encoding table.
func (c *Copper) performWaitOrSkip() {
	isSkip := c.copins2&skipLowBit != 0
	vmhm, vphp := c.comparatorOperands()

	if isSkip {
		if c.comparatorFires(vmhm, vphp, c.currentBeam()) {
			c.skip = true
		} else {
			c.skip = false
		}
		c.state = StateRequestDMA
		return
	}

	c.wakeBeam = c.computeWakeBeam(vmhm, vphp)
	c.wakeBlitGate = c.copins2&bfdBit != 0
	// Stay in WAIT_OR_SKIP conceptually; internal/chipset won't call
	// Step again until the beam (and, if gated, the blitter) satisfy
	// the comparator, at which point it transitions us back to
	// REQUEST_DMA itself via Resume.
	c.state = StateWaitOrSkip
}

// Resume is called by internal/chipset once a parked WAIT's comparator
// condition (and blitter gate, if set) is satisfied, returning the
// coprocessor to REQUEST_DMA so Step resumes normal fetch/decode.
func (c *Copper) Resume() {
	if c.state == StateWaitOrSkip {
		c.state = StateRequestDMA
	}
}

// comparatorOperands splits copins1 (the mask half) and copins2 (the
// target half) into the masked beam-compare operands, per spec §4.5's
// `(beam & vm_hm_mask) >= (vp_hp & vm_hm_mask)` rule. The mask lives in
// copins1 with its own low bit already consumed by the state dispatch,
// so both words are read with bit 0 cleared before use.
func (c *Copper) comparatorOperands() (mask, target uint16) {
	mask = c.copins1 &^ skipLowBit
	target = c.copins2 &^ skipLowBit
	return mask, target
}

func (c *Copper) comparatorFires(mask, target, beam uint16) bool {
	return (beam & mask) >= (target & mask)
}

// currentBeam is overridden by tests; in production internal/chipset
// sets Copper.beamFn to the live beam.Counter.Beam16.
func (c *Copper) currentBeam() uint16 {
	if c.beamFn != nil {
		return c.beamFn()
	}
	return 0
}

// BeamFn is the function the coprocessor reads the live beam position
// through; set once during chipset wiring via SetBeamFn, matching the
// Attach-after-construct wiring pattern used elsewhere in this module.
type BeamFn func() uint16

// SetBeamFn wires the live beam position reader.
func (c *Copper) SetBeamFn(fn BeamFn) {
	c.beamFn = fn
}

// computeWakeBeam implements spec §4.5's "Wake-beam computation": given
// the masked comparator target, return the smallest beam position >=
// the current beam for which the comparator fires. Uses the suggested
// bitwise-greedy approach: start from the maximum in-frame value and
// trial-clear bits from high to low while the candidate stays >= the
// current beam and the comparator still fires for it.
func (c *Copper) computeWakeBeam(mask, target uint16) uint16 {
	const sentinel = 0xFFFF
	beam := c.currentBeam()

	if c.comparatorFires(mask, target, beam) {
		return beam
	}

	candidate := uint16(0xFFFF)
	for bit := 15; bit >= 0; bit-- {
		trial := candidate &^ (1 << bit)
		if trial >= beam && c.comparatorFires(mask, target, trial) {
			candidate = trial
		}
	}
	if !c.comparatorFires(mask, target, candidate) || candidate < beam {
		return sentinel
	}
	return candidate
}
