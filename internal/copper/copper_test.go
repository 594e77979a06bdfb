package copper

import (
	"testing"

	"github.com/agnusdei/chipsetcore/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegs struct {
	writes map[types.RegAddr]uint16
}

func newFakeRegs() *fakeRegs { return &fakeRegs{writes: map[types.RegAddr]uint16{}} }

func (r *fakeRegs) WriteRegister(addr types.RegAddr, value uint16) {
	r.writes[addr] = value
}

type alwaysGrantBus struct{}

func (alwaysGrantBus) RequestCopperCycle() bool { return true }

type idleBlitter struct{}

func (idleBlitter) BlitterBusy() bool { return false }

type fakeMem struct {
	words map[uint32]uint16
}

func (m *fakeMem) ReadChipWord(addr uint32) uint16 { return m.words[addr] }

func TestMoveWritesAllowedLowRegister(t *testing.T) {
	regs := newFakeRegs()
	mem := &fakeMem{words: map[uint32]uint16{
		0x1000: 0x0020, // copins1: register 0x20, MOVE (low bit 0)
		0x1002: 0xABCD, // copins2: value
	}}
	c := New(regs, alwaysGrantBus{}, idleBlitter{}, mem)
	c.SetLocation(0, 0x1000)
	c.Jump(0)

	c.Step() // JMP1 -> REQUEST_DMA
	c.Step() // REQUEST_DMA -> FETCH
	c.Step() // FETCH -> MOVE (reads copins1)
	c.Step() // MOVE -> REQUEST_DMA (reads copins2, writes register)

	require.Contains(t, regs.writes, types.RegAddr(0x0020))
	assert.Equal(t, uint16(0xABCD), regs.writes[0x0020])
}

func TestMoveToCdangRegionBlockedWithoutCdang(t *testing.T) {
	regs := newFakeRegs()
	mem := &fakeMem{words: map[uint32]uint16{
		0x1000: 0x0060, // register 0x60, in the 0x40-0x7F cdang-gated range
		0x1002: 0x1234,
	}}
	c := New(regs, alwaysGrantBus{}, idleBlitter{}, mem)
	c.SetLocation(0, 0x1000)
	c.Jump(0)

	c.Step()
	c.Step()
	c.Step()
	c.Step()

	assert.NotContains(t, regs.writes, types.RegAddr(0x0060))
}

func TestMoveToCdangRegionAllowedWithCdang(t *testing.T) {
	regs := newFakeRegs()
	mem := &fakeMem{words: map[uint32]uint16{
		0x1000: 0x0060,
		0x1002: 0x1234,
	}}
	c := New(regs, alwaysGrantBus{}, idleBlitter{}, mem)
	c.SetCDANG(true)
	c.SetLocation(0, 0x1000)
	c.Jump(0)

	c.Step()
	c.Step()
	c.Step()
	c.Step()

	assert.Equal(t, uint16(0x1234), regs.writes[0x0060])
}

func TestMoveToReservedRegisterTerminates(t *testing.T) {
	regs := newFakeRegs()
	mem := &fakeMem{words: map[uint32]uint16{
		0x1000: 0x0090, // >= 0x80, reserved
		0x1002: 0x1234,
		0x1004: 0x0020, // would write register 0x20 if the copper kept running
		0x1006: 0xBEEF,
	}}
	c := New(regs, alwaysGrantBus{}, idleBlitter{}, mem)
	c.SetLocation(0, 0x1000)
	c.Jump(0)

	c.Step() // JMP1
	c.Step() // REQUEST_DMA
	c.Step() // FETCH
	c.Step() // MOVE -> halts

	assert.Empty(t, regs.writes)
	assert.True(t, c.Halted())

	// Further Step calls must be no-ops; a halted copper never resumes
	// fetching on its own.
	for i := 0; i < 4; i++ {
		c.Step()
	}
	assert.Empty(t, regs.writes)
	assert.True(t, c.Halted())

	// Only a JMP clears the halt and lets the copper resume.
	c.Jump(0)
	assert.False(t, c.Halted())
}

func TestSkipSuppressesNextMoveOnly(t *testing.T) {
	regs := newFakeRegs()
	mem := &fakeMem{words: map[uint32]uint16{
		0x1000: 0x0003, // SKIP: low bits both 1 (copins1 bit0=1)
		0x1002: 0x0001, // copins2 low bit 1 -> SKIP, not WAIT
		0x1004: 0x0020, // next MOVE: register 0x20
		0x1006: 0xBEEF,
	}}
	c := New(regs, alwaysGrantBus{}, idleBlitter{}, mem)
	c.SetBeamFn(func() uint16 { return 0xFFFF }) // comparator always satisfied
	c.SetLocation(0, 0x1000)
	c.Jump(0)

	c.Step() // JMP1
	c.Step() // REQUEST_DMA
	c.Step() // FETCH -> WAIT_OR_SKIP (copins1 low bit 1)
	c.Step() // WAIT_OR_SKIP: SKIP fires since beam already satisfies comparator

	c.Step() // REQUEST_DMA
	c.Step() // FETCH
	c.Step() // MOVE -> register write suppressed by skip
	c.Step() // REQUEST_DMA

	assert.NotContains(t, regs.writes, types.RegAddr(0x0020))
}

func TestWaitComputesWakeBeamAtOrAfterCurrentPosition(t *testing.T) {
	regs := newFakeRegs()
	mem := &fakeMem{words: map[uint32]uint16{
		0x1000: 0x0001, // WAIT: copins1 low bit 1
		0x1002: 0x0000, // copins2 low bit 0 -> WAIT not SKIP; mask/target trivial
	}}
	c := New(regs, alwaysGrantBus{}, idleBlitter{}, mem)
	c.SetBeamFn(func() uint16 { return 0x0100 })
	c.SetLocation(0, 0x1000)
	c.Jump(0)

	c.Step() // JMP1
	c.Step() // REQUEST_DMA
	c.Step() // FETCH -> WAIT_OR_SKIP
	c.Step() // WAIT_OR_SKIP: computes wake beam

	wake, _ := c.WakeBeam()
	assert.GreaterOrEqual(t, wake, uint16(0x0100))
	assert.Equal(t, StateWaitOrSkip, c.State())
}
