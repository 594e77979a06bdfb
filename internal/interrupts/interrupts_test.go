package interrupts

import (
	"testing"

	"github.com/agnusdei/chipsetcore/internal/types"
	"github.com/stretchr/testify/assert"
)

type fakeScheduler struct {
	delay  int64
	source int
	called bool
}

func (f *fakeScheduler) ScheduleInterrupt(delay int64, source int) {
	f.delay, f.source, f.called = delay, source, true
}

func TestRaiseIRQImmediateSetsRequestBit(t *testing.T) {
	a := New(nil)
	a.RaiseIRQ(SourceVertB, 0)
	assert.NotZero(t, a.INTREQ()&types.INTF_VERTB)
}

func TestRaiseIRQWithDelayPostsToScheduler(t *testing.T) {
	sched := &fakeScheduler{}
	a := New(sched)
	a.RaiseIRQ(SourceDskBlk, 5)

	assert.True(t, sched.called)
	assert.Equal(t, int64(5), sched.delay)
	assert.Zero(t, a.INTREQ()&types.INTF_DSKBLK, "bit must not be set until the slot actually fires")

	a.Service(SourceDskBlk)
	assert.NotZero(t, a.INTREQ()&types.INTF_DSKBLK)
}

func TestWriteINTENASetClrConvention(t *testing.T) {
	a := New(nil)
	a.WriteINTENA(types.INTF_SETCLR | types.INTF_VERTB | types.INTF_COPER)
	assert.NotZero(t, a.INTENA()&types.INTF_VERTB)
	assert.NotZero(t, a.INTENA()&types.INTF_COPER)

	a.WriteINTENA(types.INTF_VERTB) // clear, bit 15 unset
	assert.Zero(t, a.INTENA()&types.INTF_VERTB)
	assert.NotZero(t, a.INTENA()&types.INTF_COPER)
}
