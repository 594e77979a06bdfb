// Package disk implements the disk controller described in spec §4.6:
// the DSKLEN/DSKSYNC register contract, the per-rotation byte-at-a-time
// transfer state machine, the six-byte FIFO, and drive select/motor.
package disk

import (
	"github.com/agnusdei/chipsetcore/internal/types"
	"github.com/agnusdei/chipsetcore/pkg/utils"
)

// selectBits is the number of drive-select lines the 8-bit parallel
// latch carries; the Amiga wires four, one per physical drive bay.
const selectBits = 4

// State names a disk DMA state.
type State uint8

const (
	DMAOff State = iota
	DMAWait
	DMARead
	DMAWrite
	DMAFlush
)

// fifoCapacity is the disk controller's FIFO depth in bytes (spec §4.6).
const fifoCapacity = 6

// Drive is the one external collaborator: a physical (or virtual) floppy
// the controller reads/writes a byte at a time and can query for turbo
// support. SetMotor is called on each falling edge of that drive's
// select bit (spec §4.6 "Drive select / motor"); ramping the motor
// toward its target speed over time is the drive's own concern, not
// this controller's.
type Drive interface {
	ReadByte() uint8
	WriteByte(b uint8)
	Turbo() bool
	MotorOn() bool
	SetMotor(on bool)
}

// MemoryBus is the chip-RAM access the controller needs for the DMA word
// transfer path (spec §4.6 "DMA word transfer").
type MemoryBus interface {
	ReadWord(addr uint32) uint16
	WriteWord(addr uint32, v uint16)
}

// InterruptRaiser lets the controller post sync-match and block-complete
// interrupts without importing internal/interrupts directly.
type InterruptRaiser interface {
	RaiseIRQ(source int, delay int64)
}

// Interrupt source tags the controller raises. Their values equal
// interrupts.SourceDskSync and interrupts.SourceDskBlk, so internal/chipset
// passes the interrupt aggregator to New directly as the InterruptRaiser.
const (
	IRQDskSync = 2
	IRQDskBlk  = 1
)

// Controller is the disk controller core.
type Controller struct {
	state State

	fifo *utils.FIFO[uint8]

	dsklen     uint16
	dsklenArm1 bool // true once bit 15 has been seen set once (armed-twice rule)
	dskptr     uint32
	dsksync    uint16
	syncFlag   bool

	wordSyncRequired bool // mirrors ADKCON's WORDSYNC bit

	selected    int // currently selected drive index, -1 if none
	selectLatch uint8
	drives      [4]Drive

	bus  MemoryBus
	irq  InterruptRaiser
}

// New creates a disk controller with no drive selected and DMA off.
func New(bus MemoryBus, irq InterruptRaiser) *Controller {
	return &Controller{
		state:    DMAOff,
		fifo:     utils.NewFIFO[uint8](fifoCapacity),
		selected: -1,
		bus:      bus,
		irq:      irq,
	}
}

// AttachDrive installs a drive at the given select index (0-3).
func (c *Controller) AttachDrive(index int, d Drive) {
	c.drives[index] = d
}

// SetWordSyncRequired mirrors ADKCON's WORDSYNC bit into the controller,
// since it decides DMA_WAIT vs DMA_READ on a DSKLEN write.
func (c *Controller) SetWordSyncRequired(v bool) {
	c.wordSyncRequired = v
}

// SelectDrive directly selects a drive index without going through the
// select-latch edge logic; used by hosts (and tests) that want to pick a
// drive without simulating the hardware's falling-edge motor toggle.
func (c *Controller) SelectDrive(index int) {
	c.selected = index
}

// WriteSelect applies a new value to the 8-bit drive-select parallel
// latch (spec §4.6). Bits 0-3 are the four drive-select lines; each
// falling edge (the bit transitioning from set to clear) both selects
// that drive and toggles its motor, matching the Amiga hardware's own
// select/motor wiring.
func (c *Controller) WriteSelect(latch uint8) {
	for i := uint8(0); i < selectBits; i++ {
		was := utils.TestBit(c.selectLatch, i)
		now := utils.TestBit(latch, i)
		if was && !now {
			c.selected = int(i)
			if d := c.drives[i]; d != nil {
				d.SetMotor(!d.MotorOn())
			}
		}
	}
	c.selectLatch = latch
}

// WriteDSKLEN applies the "armed twice" rule from spec §4.6: DMA enables
// only when bit 15 was set on both this write and the previous one, and
// the WRITE bit follows the same rule. A write with bit 15 clear forces
// DMA_OFF and clears the FIFO immediately.
func (c *Controller) WriteDSKLEN(v uint16) {
	enableRequested := v&types.DSKLENF_DMAEN != 0

	if !enableRequested {
		c.dsklenArm1 = false
		c.dsklen = v
		c.state = DMAOff
		c.fifo.Reset()
		return
	}

	wasArmed := c.dsklenArm1
	prevWrite := c.dsklen&types.DSKLENF_WRITE != 0
	c.dsklenArm1 = true
	c.dsklen = v

	if !wasArmed {
		// First write with bit 15 set only arms the rule; DMA doesn't
		// actually start until the matching second write.
		return
	}

	write := prevWrite && v&types.DSKLENF_WRITE != 0
	if write {
		c.state = DMAWrite
	} else if c.wordSyncRequired {
		c.state = DMAWait
	} else {
		c.state = DMARead
	}

	if d := c.currentDrive(); d != nil && d.Turbo() {
		c.runTurboTransfer()
	}
}

// WriteDSKSYNC stores the 16-bit sync pattern compared against the FIFO.
func (c *Controller) WriteDSKSYNC(v uint16) {
	c.dsksync = v
}

// SetPointer sets the chip-RAM disk DMA pointer (DSKPTH/DSKPTL).
func (c *Controller) SetPointer(addr uint32) {
	c.dskptr = addr
}

// State returns the current DMA state, for tests and snapshotting.
func (c *Controller) State() State {
	return c.state
}

// DSKLEN returns the raw DSKLEN register value, for readback through
// internal/chipset's ReadRegister.
func (c *Controller) DSKLEN() uint16 {
	return c.dsklen
}

func (c *Controller) currentDrive() Drive {
	if c.selected < 0 || c.selected >= len(c.drives) {
		return nil
	}
	return c.drives[c.selected]
}

// Rotate runs one DSK_ROTATE tick (spec §4.6 "Per-scanline rotate
// event"), scheduled by internal/chipset every fixed bus-cycle delay
// once a drive is attached. Rotate does not check the drive's motor.
func (c *Controller) Rotate() {
	d := c.currentDrive()
	if d == nil {
		return
	}

	switch c.state {
	case DMAOff:
		d.ReadByte() // head rotates past a byte with no transfer

	case DMAWait, DMARead:
		b := d.ReadByte()
		c.fifo.Push(b)
		if c.compareFifo(c.dsksync) {
			c.syncFlag = true
			if c.irq != nil {
				c.irq.RaiseIRQ(IRQDskSync, 0)
			}
			if c.state == DMAWait {
				c.fifo.Reset()
				c.state = DMARead
			}
		}
		c.drainReadFIFOToMemory()

	case DMAWrite:
		c.fillWriteFIFOFromMemory()
		if c.fifo.Size > 0 {
			b := *c.fifo.Pop()
			d.WriteByte(b)
		}

	case DMAFlush:
		if c.fifo.Size > 0 {
			b := *c.fifo.Pop()
			d.WriteByte(b)
		}
		if c.fifo.Size == 0 {
			c.state = DMAOff
			if c.irq != nil {
				c.irq.RaiseIRQ(IRQDskBlk, 0)
			}
		}
	}
}

// compareFifo implements spec §4.6's compareFifo(word): true iff the
// FIFO holds at least two bytes and its low 16 bits equal word.
func (c *Controller) compareFifo(word uint16) bool {
	if c.fifo.Size < 2 {
		return false
	}
	lo := *c.fifo.GetIndex(c.fifo.Size - 2)
	hi := *c.fifo.GetIndex(c.fifo.Size - 1)
	fifo16 := uint16(lo) | uint16(hi)<<8
	return fifo16 == word
}

func (c *Controller) readFIFO16() (uint16, bool) {
	if c.fifo.Size < 2 {
		return 0, false
	}
	lo := *c.fifo.Pop()
	hi := *c.fifo.Pop()
	return uint16(lo) | uint16(hi)<<8, true
}

// drainReadFIFOToMemory implements the read half of spec §4.6's "DMA
// word transfer": while a full word is available, pop it and write it to
// chip RAM at the disk DMA pointer, advancing the pointer and decrementing
// the masked word count in dsklen until it reaches zero. Restricted to
// DMA_READ: DMA_WAIT is still scanning for the sync mark (spec §4.6
// "awaiting sync match"), and must not consume word count or transfer any
// data until the sync match promotes it to DMA_READ.
func (c *Controller) drainReadFIFOToMemory() {
	if c.state != DMARead {
		return
	}
	for {
		word, ok := c.readFIFO16()
		if !ok {
			return
		}
		if c.bus != nil {
			c.bus.WriteWord(c.dskptr, word)
		}
		c.dskptr += 2
		if c.decrementWordCount() {
			if c.irq != nil {
				c.irq.RaiseIRQ(IRQDskBlk, 0)
			}
			c.state = DMAOff
			return
		}
	}
}

// fillWriteFIFOFromMemory implements the write half of spec §4.6's "DMA
// word transfer": while the FIFO has room for a full word, read one from
// chip RAM at the disk DMA pointer, push it as two bytes, advance the
// pointer, and decrement the masked word count. Once the word count
// reaches zero every word has been queued for the drive and the
// controller moves to DMA_FLUSH to drain the remaining FIFO bytes before
// raising the block-complete interrupt.
func (c *Controller) fillWriteFIFOFromMemory() {
	if c.state != DMAWrite {
		return
	}
	for c.fifo.Capacity()-c.fifo.Size >= 2 {
		if c.bus == nil {
			return
		}
		word := c.bus.ReadWord(c.dskptr)
		c.dskptr += 2
		c.fifo.Push(uint8(word))
		c.fifo.Push(uint8(word >> 8))
		if c.decrementWordCount() {
			c.state = DMAFlush
			return
		}
	}
}

// decrementWordCount decrements the masked word count in dsklen and
// reports whether it has reached zero.
func (c *Controller) decrementWordCount() bool {
	count := c.dsklen & 0x3FFF
	if count == 0 {
		return true
	}
	count--
	c.dsklen = (c.dsklen &^ 0x3FFF) | count
	return count == 0
}

// runTurboTransfer performs the whole transfer synchronously on the
// DSKLEN write, per spec §4.6 "Turbo (optional) DMA", then raises the
// completion interrupt with a small delay rather than immediately, since
// real turbo devices still incur some controller latency.
func (c *Controller) runTurboTransfer() {
	const turboDelay = 4

	switch c.state {
	case DMAWrite:
		count := c.dsklen & 0x3FFF
		for i := uint16(0); i < count; i++ {
			if c.bus == nil {
				break
			}
			word := c.bus.ReadWord(c.dskptr)
			c.dskptr += 2
			c.fifo.Push(uint8(word))
			c.fifo.Push(uint8(word >> 8))
			if d := c.currentDrive(); d != nil {
				for c.fifo.Size > 0 {
					b := *c.fifo.Pop()
					d.WriteByte(b)
				}
			}
		}
		c.state = DMAOff
		if c.irq != nil {
			c.irq.RaiseIRQ(IRQDskBlk, turboDelay)
		}

	case DMAWait, DMARead:
		d := c.currentDrive()
		count := c.dsklen & 0x3FFF
		for i := uint16(0); i < count; i++ {
			lo := d.ReadByte()
			hi := d.ReadByte()
			word := uint16(lo) | uint16(hi)<<8
			if c.bus != nil {
				c.bus.WriteWord(c.dskptr, word)
			}
			c.dskptr += 2
		}
		c.state = DMAOff
		if c.irq != nil {
			c.irq.RaiseIRQ(IRQDskBlk, turboDelay)
		}
	}
}

// Save/Load implement types.Stater.
func (c *Controller) Save(s *types.State) {
	s.Write8(uint8(c.state))
	s.Write16(c.dsklen)
	s.WriteBool(c.dsklenArm1)
	s.Write32(c.dskptr)
	s.Write16(c.dsksync)
	s.WriteBool(c.syncFlag)
	s.WriteBool(c.wordSyncRequired)
	s.Write8(uint8(c.fifo.Size))
	for i := 0; i < c.fifo.Capacity(); i++ {
		s.Write8(*c.fifo.GetIndex(i))
	}
}

func (c *Controller) Load(s *types.State) {
	c.state = State(s.Read8())
	c.dsklen = s.Read16()
	c.dsklenArm1 = s.ReadBool()
	c.dskptr = s.Read32()
	c.dsksync = s.Read16()
	c.syncFlag = s.ReadBool()
	c.wordSyncRequired = s.ReadBool()
	size := int(s.Read8())
	c.fifo.Reset()
	for i := 0; i < c.fifo.Capacity(); i++ {
		v := s.Read8()
		if i < size {
			c.fifo.Push(v)
		}
	}
}

var _ types.Stater = (*Controller)(nil)
