package chipset

import (
	"testing"

	"github.com/agnusdei/chipsetcore/internal/types"
	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dumpOnFailure registers a cleanup that spew-dumps the core's register
// file if the test fails, giving a full structural view of the
// mismatched state instead of just the one field an assertion names.
func dumpOnFailure(t *testing.T, c *Core) {
	t.Helper()
	t.Cleanup(func() {
		if t.Failed() {
			t.Logf("core state at failure:\n%s", spew.Sdump(c))
		}
	})
}

type fakeBus struct {
	mem map[uint32]uint16
}

func newFakeBus() *fakeBus { return &fakeBus{mem: map[uint32]uint16{}} }

func (b *fakeBus) ReadChipWord(addr uint32) uint16     { return b.mem[addr] }
func (b *fakeBus) WriteChipWord(addr uint32, v uint16) { b.mem[addr] = v }

type fakeCPU struct{ waited int }

func (c *fakeCPU) ChargeWaitStates(n int) { c.waited += n }

func TestDMACONSetClrWrite(t *testing.T) {
	c := New(newFakeBus(), &fakeCPU{})
	c.WriteRegister(types.DMACON, types.DMACONF_SETCLR|types.DMACONF_DMAEN|types.DMACONF_BPLEN)
	v := c.ReadRegister(types.DMACON)
	assert.NotZero(t, v&types.DMACONF_DMAEN)
	assert.NotZero(t, v&types.DMACONF_BPLEN)

	c.WriteRegister(types.DMACON, types.DMACONF_BPLEN) // clear, bit 15 unset
	v = c.ReadRegister(types.DMACON)
	assert.Zero(t, v&types.DMACONF_BPLEN)
	assert.NotZero(t, v&types.DMACONF_DMAEN)
}

func TestCopperLocationAndJump(t *testing.T) {
	bus := newFakeBus()
	bus.mem[0x2000] = uint16(types.DSKLEN) // MOVE targeting DSKLEN (< 0x40, always allowed)
	bus.mem[0x2002] = 0x4242
	c := New(bus, &fakeCPU{})
	c.WriteRegister(types.DMACON, types.DMACONF_SETCLR|types.DMACONF_DMAEN|types.DMACONF_COPEN)

	c.WriteRegister(types.COP1LCH, 0x0000)
	c.WriteRegister(types.COP1LCL, 0x2000)
	c.WriteRegister(types.COPJMP1, 0)

	for i := 0; i < 8; i++ {
		c.ExecuteUntil(c.Clock() + 1)
	}

	assert.Equal(t, uint16(0x4242), c.ReadRegister(types.DSKLEN))
}

func TestCopperHaltsOnReservedRegisterWriteAndResumesOnJump(t *testing.T) {
	bus := newFakeBus()
	bus.mem[0x2000] = 0x0090 // MOVE targeting a reserved register (>= 0x80)
	bus.mem[0x2002] = 0x1234
	bus.mem[0x2004] = uint16(types.DSKLEN) // would run if the copper resumes
	bus.mem[0x2006] = 0x5555
	c := New(bus, &fakeCPU{})
	dumpOnFailure(t, c)
	c.WriteRegister(types.DMACON, types.DMACONF_SETCLR|types.DMACONF_DMAEN|types.DMACONF_COPEN)

	c.WriteRegister(types.COP1LCH, 0x0000)
	c.WriteRegister(types.COP1LCL, 0x2000)
	c.WriteRegister(types.COPJMP1, 0)

	for i := 0; i < 8; i++ {
		c.ExecuteUntil(c.Clock() + 1)
	}
	require.True(t, c.cop.Halted(), "coprocessor must halt after a MOVE to a reserved register")

	// Running further cycles must not advance the coprocessor at all.
	for i := 0; i < 8; i++ {
		c.ExecuteUntil(c.Clock() + 1)
	}
	assert.True(t, c.cop.Halted())
	assert.Zero(t, c.ReadRegister(types.DSKLEN))

	// A COPJMP1 write resumes it and re-arms dispatch.
	c.WriteRegister(types.COP1LCL, 0x2004)
	c.WriteRegister(types.COPJMP1, 0)
	for i := 0; i < 8; i++ {
		c.ExecuteUntil(c.Clock() + 1)
	}
	assert.False(t, c.cop.Halted())
	assert.Equal(t, uint16(0x5555), c.ReadRegister(types.DSKLEN))
}

func TestSaveAndLoadStateRoundTrips(t *testing.T) {
	bus := newFakeBus()
	c := New(bus, &fakeCPU{})
	dumpOnFailure(t, c)
	c.WriteRegister(types.DMACON, types.DMACONF_SETCLR|types.DMACONF_DMAEN)
	c.WriteRegister(types.DIWSTRT, 0x1234)

	snap := c.SaveState()

	c2 := New(newFakeBus(), &fakeCPU{})
	err := c2.LoadState(snap)
	require.NoError(t, err)
	assert.Equal(t, c.ReadRegister(types.DMACON), c2.ReadRegister(types.DMACON))
}

func TestLoadStateRejectsCorruptSnapshot(t *testing.T) {
	c := New(newFakeBus(), &fakeCPU{})
	bad := []byte{1, 2, 3}
	err := c.LoadState(bad)
	assert.Error(t, err)
}

func TestInspectSkipsWhenLockHeld(t *testing.T) {
	c := New(newFakeBus(), &fakeCPU{})
	ok := c.Inspect(func(*Core) {
		inner := c.Inspect(func(*Core) {})
		assert.False(t, inner, "a second Inspect call must skip while the first is in progress")
	})
	assert.True(t, ok)
}
