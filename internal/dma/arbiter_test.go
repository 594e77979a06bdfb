package dma

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArbiterRefreshAlwaysWins(t *testing.T) {
	a := NewArbiter()
	enable := DMAEnable{Refresh: true, CopperEnabled: true, BlitterEnabled: true}
	owner := a.Owner(0x01, ClassRefresh, enable)
	assert.Equal(t, OwnerRefresh, owner)
}

func TestArbiterCopperYieldsEndOfLineRefreshCycle(t *testing.T) {
	a := NewArbiter()
	enable := DMAEnable{CopperEnabled: true}
	owner := a.Owner(0xE0, ClassNone, enable)
	assert.Equal(t, OwnerCPU, owner)
}

func TestArbiterCopperTakesOtherCycles(t *testing.T) {
	a := NewArbiter()
	enable := DMAEnable{CopperEnabled: true}
	owner := a.Owner(0x50, ClassNone, enable)
	assert.Equal(t, OwnerCopper, owner)
}

func TestArbiterBlitterYieldsToCPUWithoutPriorityOnceBLSSet(t *testing.T) {
	a := NewArbiter()
	enable := DMAEnable{BlitterEnabled: true}

	owner := a.Owner(0x50, ClassNone, enable)
	assert.Equal(t, OwnerBlitter, owner)

	a.NoteCPUDenied()
	a.NoteCPUDenied()
	assert.True(t, a.BLS())

	owner = a.Owner(0x50, ClassNone, enable)
	assert.Equal(t, OwnerCPU, owner)
}

func TestArbiterBlitterPriorityAlwaysWinsOverCPU(t *testing.T) {
	a := NewArbiter()
	enable := DMAEnable{BlitterEnabled: true, BlitterPriority: true}
	owner := a.Owner(0x50, ClassNone, enable)
	assert.Equal(t, OwnerBlitter, owner)
}

func TestExecuteUntilBusFreeChargesWaitStatesAndSetsBLS(t *testing.T) {
	a := NewArbiter()
	ticks := 0
	h := 0x50
	ownerAt := func(int) (Class, DMAEnable) {
		return ClassNone, DMAEnable{BlitterEnabled: true}
	}
	tick := func() { ticks++ }
	currentH := func() int { return h }

	waits := a.ExecuteUntilBusFree(tick, ownerAt, currentH)
	assert.Equal(t, 2, waits, "the blitter holds the bus until two CPU denials set bls, then the CPU is granted")
	assert.Equal(t, 2, ticks)
	assert.True(t, a.BLS())
}

func TestDDFWindowSmallStartIsEveryOtherLineOnBaseChipset(t *testing.T) {
	w := ComputeDDFWindow(0x10, 0xD0, Lores, false)
	assert.True(t, w.EveryOtherLine)
	assert.Equal(t, 0x18, w.Start)
}

func TestDDFWindowEnhancedChipsetSuppressesEveryOtherLine(t *testing.T) {
	w := ComputeDDFWindow(0x10, 0xD0, Lores, true)
	assert.False(t, w.EveryOtherLine)
}

func TestDDFWindowLargeStartNeverFires(t *testing.T) {
	w := ComputeDDFWindow(HposCnt+5, HposCnt+10, Lores, false)
	assert.Equal(t, HposCnt, w.Start)
	assert.Equal(t, HposCnt, w.Stop)
}

func TestLineTablesJumpTableScansRightToLeft(t *testing.T) {
	lt := NewLineTables()
	oddWindow := DDFWindow{Start: 0x30, Stop: 0x50}
	evenWindow := DDFWindow{Start: 0x30, Stop: 0x50}
	lt.Rebuild(Lores, 4, oddWindow, evenWindow, 0)

	next := lt.NextBitplaneEvent(0x2F)
	assert.GreaterOrEqual(t, next, 0x30)
	assert.Less(t, next, 0x50)
}
