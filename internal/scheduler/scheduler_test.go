package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBeam is a minimal BeamAdvancer that just counts cycles and records
// hsync wraps, enough to check the scheduler drives it correctly without
// pulling in the real beam package (which would make this a dependency
// cycle: beam doesn't import scheduler, but keeping the test isolated
// keeps the two packages independently testable).
type fakeBeam struct {
	h, v   int64
	hposCnt int64
	wraps  int64
}

func newFakeBeam(hposCnt int64) *fakeBeam {
	return &fakeBeam{hposCnt: hposCnt}
}

func (b *fakeBeam) Tick() {
	b.h++
	if b.h >= b.hposCnt {
		b.h = 0
		b.v++
		b.wraps++
	}
}

func (b *fakeBeam) Advance(n int64) {
	for i := int64(0); i < n; i++ {
		b.Tick()
	}
}

func TestExecuteUntilMatchesTickByTick(t *testing.T) {
	const hposCnt = 0xE3

	tickwise := New(nil)
	tickwise.Strict = true
	beamA := newFakeBeam(hposCnt)
	tickwise.Attach(beamA)

	fast := New(nil)
	fast.Strict = true
	beamB := newFakeBeam(hposCnt)
	fast.Attach(beamB)

	var fired int
	tickwise.RegisterHandler(SlotRaster, func(data int64) { fired++ })
	fast.RegisterHandler(SlotRaster, func(data int64) { fired++ })

	tickwise.ScheduleAbs(SlotRaster, hposCnt, 0)
	fast.ScheduleAbs(SlotRaster, hposCnt, 0)

	for i := int64(0); i < hposCnt; i++ {
		tickwise.Tick()
	}
	fast.ExecuteUntil(hposCnt)

	assert.Equal(t, tickwise.Clock(), fast.Clock())
	assert.Equal(t, beamA.h, beamB.h)
	assert.Equal(t, beamA.v, beamB.v)
	assert.Equal(t, beamA.wraps, beamB.wraps)
}

func TestEndOfLineArithmetic(t *testing.T) {
	const hposCnt = 0xE3

	s := New(nil)
	s.Strict = true
	b := newFakeBeam(hposCnt)
	s.Attach(b)

	var hsyncCount int
	s.RegisterHandler(SlotRaster, func(data int64) { hsyncCount++ })
	s.ScheduleAbs(SlotRaster, hposCnt, 0)

	s.ExecuteUntil(hposCnt)

	assert.Equal(t, 1, hsyncCount)
	assert.Equal(t, int64(1), b.v)
	assert.Equal(t, int64(0), b.h)
}

func TestScheduleAbsInPastIsContractViolation(t *testing.T) {
	s := New(nil)
	s.Strict = true
	s.ScheduleRel(SlotCopper, 10, 0)
	s.ExecuteUntil(10)

	assert.Panics(t, func() {
		s.ScheduleAbs(SlotCopper, 5, 0)
	})
}

func TestCancelDisarmsSlot(t *testing.T) {
	s := New(nil)
	fired := false
	s.RegisterHandler(SlotDiskRotate, func(data int64) { fired = true })
	s.ScheduleRel(SlotDiskRotate, 5, 0)
	s.Cancel(SlotDiskRotate)
	s.ExecuteUntil(100)

	require.False(t, fired)
	assert.False(t, s.IsScheduled(SlotDiskRotate))
}

func TestDispatchOrderIsStableBySlotIndex(t *testing.T) {
	s := New(nil)
	var order []Slot
	s.RegisterHandler(SlotBlitter, func(data int64) { order = append(order, SlotBlitter) })
	s.RegisterHandler(SlotCopper, func(data int64) { order = append(order, SlotCopper) })
	s.ScheduleRel(SlotBlitter, 5, 0)
	s.ScheduleRel(SlotCopper, 5, 0)

	s.ExecuteUntil(5)

	require.Len(t, order, 2)
	assert.Equal(t, SlotCopper, order[0])
	assert.Equal(t, SlotBlitter, order[1])
}
