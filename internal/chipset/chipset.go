// Package chipset wires the beam counter, event scheduler, DMA
// allocation tables, bus arbiter, coprocessor, disk controller, and
// interrupt aggregator into the single scheduling/arbitration core
// described by the specification. It owns the chipset register surface
// (DMACON, ADKCON, COPCON, the pointer/window registers, ...) and
// dispatches register reads/writes to whichever subcomponent they
// belong to.
package chipset

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/agnusdei/chipsetcore/internal/beam"
	"github.com/agnusdei/chipsetcore/internal/copper"
	"github.com/agnusdei/chipsetcore/internal/disk"
	"github.com/agnusdei/chipsetcore/internal/dma"
	"github.com/agnusdei/chipsetcore/internal/interrupts"
	"github.com/agnusdei/chipsetcore/internal/scheduler"
	"github.com/agnusdei/chipsetcore/internal/types"
	"github.com/agnusdei/chipsetcore/pkg/log"
)

// MemoryBus is the external collaborator chip-RAM reads/writes for both
// the coprocessor's instruction fetch and the disk controller's DMA word
// transfer go through. Supplied by the host emulator, not implemented by
// this core.
type MemoryBus interface {
	ReadChipWord(addr uint32) uint16
	WriteChipWord(addr uint32, v uint16)
}

// CPU is the external collaborator for CPU wait states. Core stores it
// but no code path calls ChargeWaitStates, and nothing in Core invokes
// the arbiter's ExecuteUntilBusFree. This core never drives CPU
// instruction execution itself.
type CPU interface {
	ChargeWaitStates(n int)
}

// Drive is re-exported from internal/disk so callers configuring this
// core don't need to import internal/disk directly for the common case.
type Drive = disk.Drive

// Config holds the construction-time parameters; Opt functions mutate it
// before the Core is built, mirroring the teacher's own functional
// options pattern for chipset construction.
type Config struct {
	Standard        beam.Standard
	Interlaced      bool
	EnhancedChipset bool
	Logger          log.Logger
}

// Opt configures a Config. Grounded on the teacher's gameboy.GameBoyOpt
// functional-options pattern.
type Opt func(*Config)

// WithStandard selects PAL or NTSC line timing.
func WithStandard(std beam.Standard) Opt {
	return func(c *Config) { c.Standard = std }
}

// WithInterlace enables interlaced field toggling.
func WithInterlace(v bool) Opt {
	return func(c *Config) { c.Interlaced = v }
}

// WithEnhancedChipset selects the enhanced chipset, whose DDF window
// never has the base chipset's every-other-line fetch for a small
// ddfstrt.
func WithEnhancedChipset(v bool) Opt {
	return func(c *Config) { c.EnhancedChipset = v }
}

// WithLogger overrides the default logger.
func WithLogger(l log.Logger) Opt {
	return func(c *Config) { c.Logger = l }
}

// Core is the wired-up chipset scheduling and DMA arbitration core.
type Core struct {
	cfg Config

	beam  *beam.Counter
	sched *scheduler.Scheduler
	lines *dma.LineTables
	arb   *dma.Arbiter
	cop   *copper.Copper
	dsk   *disk.Controller
	irq   *interrupts.Aggregator

	bus MemoryBus
	cpu CPU
	log log.Logger

	// Register file. Kept flat here rather than distributed across
	// subcomponents because the register surface's cdang/SETCLR/armed-
	// twice quirks are shared decode logic, not per-component state.
	dmacon, adkcon, bplcon0, bplcon1 uint16
	diwstrt, diwstop, ddfstrt, ddfstop uint16
	bplpt                              [6]uint32
	audpt                              [4]uint32
	sprpt                              [8]uint32

	busOwner [dma.HposCnt]dma.Owner
	staging  pointerStaging

	// inspectSem guards read-only out-of-band snapshot/inspection
	// queries (spec §5) against the running core. A semaphore rather
	// than a plain mutex because multiple external readers (debugger,
	// remote shell) must be able to skip instead of blocking the core
	// thread when it's busy; TryAcquire gives callers that choice.
	inspectSem *semaphore.Weighted
}

// New builds a fully wired Core. Each subcomponent receives its siblings
// only after they exist, either as constructor arguments or through
// Attach/SetBeamFn-style calls, so no two siblings need each other at
// construction time.
func New(bus MemoryBus, cpu CPU, opts ...Opt) *Core {
	cfg := Config{Standard: beam.PAL, Logger: log.New()}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Core{
		cfg:        cfg,
		bus:        bus,
		cpu:        cpu,
		log:        cfg.Logger,
		inspectSem: semaphore.NewWeighted(1),
	}

	c.beam = beam.New(cfg.Standard, cfg.Interlaced)
	c.sched = scheduler.New(loggerAdapter{c.log})
	c.sched.Attach(c.beam)
	c.lines = dma.NewLineTables()
	c.arb = dma.NewArbiter()
	c.irq = interrupts.New(schedulerIRQAdapter{c.sched})
	c.dsk = disk.New(busAdapter{bus}, c.irq)
	c.cop = copper.New(registerAdapter{c}, busRequestAdapter{c}, blitterStatusAdapter{}, memReaderAdapter{bus})
	c.cop.SetBeamFn(c.beam.Beam16)
	c.cop.SetLogger(loggerAdapter{c.log})

	c.beam.OnVSync(c.onVSync)
	c.sched.RegisterHandler(scheduler.SlotRaster, c.onRasterSlot)
	c.sched.RegisterHandler(scheduler.SlotCopper, c.onCopperSlot)
	c.sched.RegisterHandler(scheduler.SlotDiskRotate, c.onDiskRotateSlot)
	c.sched.RegisterHandler(scheduler.SlotInterrupt, c.onInterruptSlot)

	c.sched.ScheduleAbs(scheduler.SlotRaster, beam.HposCnt, 0)
	c.sched.ScheduleAbs(scheduler.SlotCopper, 0, 0)

	return c
}

// loggerAdapter narrows log.Logger to scheduler.ViolationLogger.
type loggerAdapter struct{ l log.Logger }

func (a loggerAdapter) Errorf(format string, args ...interface{}) { a.l.Errorf(format, args...) }

// schedulerIRQAdapter narrows *scheduler.Scheduler to
// interrupts.Scheduler; the interrupt slot's data word carries the
// source tag.
type schedulerIRQAdapter struct{ s *scheduler.Scheduler }

func (a schedulerIRQAdapter) ScheduleInterrupt(delay int64, source int) {
	a.s.ScheduleRel(scheduler.SlotInterrupt, delay, int64(source))
}

// busAdapter narrows MemoryBus to disk.MemoryBus.
type busAdapter struct{ bus MemoryBus }

func (a busAdapter) ReadWord(addr uint32) uint16      { return a.bus.ReadChipWord(addr) }
func (a busAdapter) WriteWord(addr uint32, v uint16)  { a.bus.WriteChipWord(addr, v) }

// memReaderAdapter narrows MemoryBus to copper.MemoryReader.
type memReaderAdapter struct{ bus MemoryBus }

func (a memReaderAdapter) ReadChipWord(addr uint32) uint16 { return a.bus.ReadChipWord(addr) }

// registerAdapter narrows *Core to copper.RegisterWriter.
type registerAdapter struct{ c *Core }

func (a registerAdapter) WriteRegister(addr types.RegAddr, value uint16) {
	a.c.WriteRegister(addr, value)
}

// busRequestAdapter narrows *Core to copper.BusRequester, consulting the
// arbiter for the beam's current horizontal position.
type busRequestAdapter struct{ c *Core }

func (a busRequestAdapter) RequestCopperCycle() bool {
	h := int(a.c.beam.Pos.H)
	owner := a.c.arb.Owner(h, a.c.lines.DASEventAt(h), a.c.dmaEnableSnapshot())
	return owner == dma.OwnerCopper
}

// blitterStatusAdapter is a placeholder blitter-idle check; this core
// has no blitter model of its own (spec Non-goals exclude blitter pixel
// operations), so WAIT's blitter-finished gate always reports idle. A
// host emulator wiring a real blitter would replace this with its own
// BlitterStatus implementation instead of relying on Core's default.
type blitterStatusAdapter struct{}

func (blitterStatusAdapter) BlitterBusy() bool { return false }

func (c *Core) dmaEnableSnapshot() dma.DMAEnable {
	master := c.dmacon&types.DMACONF_DMAEN != 0
	return dma.DMAEnable{
		Refresh:         master,
		Disk:            master && c.dmacon&types.DMACONF_DSKEN != 0,
		Audio:           master && c.dmacon&(types.DMACONF_AUD0EN|types.DMACONF_AUD1EN|types.DMACONF_AUD2EN|types.DMACONF_AUD3EN) != 0,
		Sprite:          master && c.dmacon&types.DMACONF_SPREN != 0,
		Bitplane:        master && c.dmacon&types.DMACONF_BPLEN != 0,
		CopperEnabled:   master && c.dmacon&types.DMACONF_COPEN != 0,
		BlitterEnabled:  master && c.dmacon&types.DMACONF_BLTEN != 0,
		BlitterPriority: c.dmacon&types.DMACONF_BLTPRI != 0,
	}
}

// AttachDrive installs a drive at the given select index and, if the
// DISK_ROTATE slot is not already pending, starts it. From then on the
// slot runs every diskRotateDelay cycles whether or not any drive motor
// is on.
func (c *Core) AttachDrive(index int, d Drive) {
	c.dsk.AttachDrive(index, d)
	if !c.sched.IsScheduled(scheduler.SlotDiskRotate) {
		c.sched.ScheduleRel(scheduler.SlotDiskRotate, diskRotateDelay, 0)
	}
}

// SelectDrive latches the drive-select register directly, bypassing the
// falling-edge motor toggle (see WriteSelect for the hardware-accurate
// path).
func (c *Core) SelectDrive(index int) {
	c.dsk.SelectDrive(index)
}

// WriteSelect applies a new value to the drive-select parallel latch.
// This register lives outside the 0xDFF000 custom-chip space (it's a CIA
// port on real hardware, a component outside this core's scope), so the
// host emulator calls this directly rather than routing it through
// WriteRegister.
func (c *Core) WriteSelect(latch uint8) {
	c.dsk.WriteSelect(latch)
}

// ExecuteUntil fast-forwards the scheduling core to the given absolute
// bus cycle, dispatching every scheduled event (raster, copper, disk
// rotate, interrupt) along the way. It holds the inspection lock while it
// runs, so Inspect skips and InspectBlocking waits.
func (c *Core) ExecuteUntil(target int64) {
	_ = c.inspectSem.Acquire(context.Background(), 1)
	defer c.inspectSem.Release(1)
	c.sched.ExecuteUntil(target)
}

// Clock returns the current bus cycle count.
func (c *Core) Clock() int64 { return c.sched.Clock() }

// BeamPosition returns the live beam position.
func (c *Core) BeamPosition() beam.Position { return c.beam.Pos }

func (c *Core) resolution() dma.Resolution {
	if c.bplcon0&0x8000 != 0 { // BPLCON0 bit 15: hires
		return dma.Hires
	}
	return dma.Lores
}

func (c *Core) bpu() int {
	return int((c.bplcon0 >> 12) & 0x7)
}

// onRasterSlot is the RASTER slot handler described in spec §4.2:
// recompute the DDF window and bitplane/DAS tables, clear busOwner[],
// and reschedule itself for the next line.
func (c *Core) onRasterSlot(_ int64) {
	odd := dma.ComputeDDFWindow(int(c.ddfstrt), int(c.ddfstop), c.resolution(), dma.Enhanced(c.cfg.EnhancedChipset))
	even := odd // horizontal-scroll-driven odd/even split is a BPLCON1 concern the host video stage owns; this core treats both windows identically absent that input.
	c.lines.Rebuild(c.resolution(), c.bpu(), odd, even, int(c.dmacon&0x3F))

	for i := range c.busOwner {
		c.busOwner[i] = dma.OwnerNone
	}

	c.sched.ScheduleRel(scheduler.SlotRaster, beam.HposCnt, 0)
}

// onCopperSlot drives the coprocessor one step, then reschedules itself
// for the next cycle. Whenever the state is WAIT_OR_SKIP it compares the
// beam (and the blitter gate) against WakeBeam each cycle and calls
// Resume once it fires. It stops rescheduling entirely once the
// coprocessor has halted (spec §7,
// "coprocessor halted (slot cancelled)") — only a JMP, via WriteRegister's
// COPJMP1/2 case or a vsync-queued jump, can bring it back.
func (c *Core) onCopperSlot(_ int64) {
	if c.cop.Halted() {
		return
	}
	if c.cop.State() == copper.StateWaitOrSkip {
		wake, blitGate := c.cop.WakeBeam()
		if c.beam.Beam16() >= wake && (!blitGate || !(blitterStatusAdapter{}).BlitterBusy()) {
			c.cop.Resume()
		} else {
			c.sched.ScheduleRel(scheduler.SlotCopper, 1, 0)
			return
		}
	}
	c.cop.Step()
	if c.cop.Halted() {
		return
	}
	c.sched.ScheduleRel(scheduler.SlotCopper, 1, 0)
}

// onDiskRotateSlot is scheduled at a fixed bus-cycle delay once a drive
// is attached (spec §4.6 "Per-scanline rotate event"); it does not check
// whether any drive motor is on.
const diskRotateDelay = 0x1A0 // 416 bus cycles, a little under two scanlines of HposCnt (0xE3)

func (c *Core) onDiskRotateSlot(_ int64) {
	c.dsk.Rotate()
	c.sched.ScheduleRel(scheduler.SlotDiskRotate, diskRotateDelay, 0)
}

// ensureCopperScheduled re-arms the COPPER slot if it isn't already
// pending. Needed after a COPJMP1/2 write, since a halted coprocessor
// leaves the slot disarmed (onCopperSlot stopped rescheduling it) and
// Jump alone doesn't put it back on the scheduler.
func (c *Core) ensureCopperScheduled() {
	if !c.sched.IsScheduled(scheduler.SlotCopper) {
		c.sched.ScheduleRel(scheduler.SlotCopper, 0, 0)
	}
}

func (c *Core) onInterruptSlot(data int64) {
	c.irq.Service(int(data))
}

// onVSync fires on every field wrap: raise the vertical-blank interrupt
// and queue the coprocessor's post-vsync JMP1 (spec §4.5 "Vertical sync
// queues a JMP1 a few cycles in").
const vsyncCopperJumpDelay = 4

func (c *Core) onVSync() {
	c.irq.RaiseIRQ(interrupts.SourceVertB, 0)
	c.cop.QueueVSyncJump()
	c.sched.ScheduleRel(scheduler.SlotCopper, vsyncCopperJumpDelay, 0)
}

// Inspect runs fn with read-only access to the core's state, skipping
// (rather than blocking) if the core is mid-cycle. Returns false if the
// inspection was skipped.
func (c *Core) Inspect(fn func(*Core)) bool {
	if !c.inspectSem.TryAcquire(1) {
		return false
	}
	defer c.inspectSem.Release(1)
	fn(c)
	return true
}

// InspectBlocking is the same as Inspect but waits for the lock instead
// of skipping; used by callers (e.g. a deterministic test harness) that
// must not silently miss an inspection.
func (c *Core) InspectBlocking(ctx context.Context, fn func(*Core)) error {
	if err := c.inspectSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.inspectSem.Release(1)
	fn(c)
	return nil
}

// SaveState serializes every subcomponent's state into a sealed
// snapshot (spec §5/§7).
func (c *Core) SaveState() []byte {
	s := types.NewState()
	s.WriteComponent(c.beam.Save)
	s.WriteComponent(c.dsk.Save)
	s.WriteComponent(c.irq.Save)
	s.WriteComponent(func(inner *types.State) {
		inner.Write16(c.dmacon)
		inner.Write16(c.adkcon)
		inner.Write16(c.bplcon0)
		inner.Write16(c.bplcon1)
		inner.Write16(c.diwstrt)
		inner.Write16(c.diwstop)
		inner.Write16(c.ddfstrt)
		inner.Write16(c.ddfstop)
	})
	return s.Seal()
}

// LoadState restores every subcomponent's state from a sealed snapshot.
// On a bad snapshot no component's existing state is mutated.
func (c *Core) LoadState(raw []byte) error {
	s, err := types.Unseal(raw)
	if err != nil {
		return err
	}
	s.ReadComponent(c.beam.Load)
	s.ReadComponent(c.dsk.Load)
	s.ReadComponent(c.irq.Load)
	s.ReadComponent(func(inner *types.State) {
		c.dmacon = inner.Read16()
		c.adkcon = inner.Read16()
		c.bplcon0 = inner.Read16()
		c.bplcon1 = inner.Read16()
		c.diwstrt = inner.Read16()
		c.diwstop = inner.Read16()
		c.ddfstrt = inner.Read16()
		c.ddfstop = inner.Read16()
	})
	return nil
}
