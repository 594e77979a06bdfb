// Command chipsetsim drives the chipset scheduling and DMA arbitration
// core headless, for exercising and debugging the scheduler/DMA/copper/
// disk/interrupt wiring without a full emulator attached. It has no
// video or audio output surface; that is explicitly out of scope for
// this core (see SPEC_FULL.md Non-goals).
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/agnusdei/chipsetcore/internal/beam"
	"github.com/agnusdei/chipsetcore/internal/chipset"
	"github.com/agnusdei/chipsetcore/pkg/log"
)

// flatMemory is a trivial MemoryBus backing store, enough to let a
// coprocessor program or disk DMA transfer actually move data during a
// standalone run.
type flatMemory struct {
	words map[uint32]uint16
}

func newFlatMemory() *flatMemory {
	return &flatMemory{words: make(map[uint32]uint16)}
}

func (m *flatMemory) ReadChipWord(addr uint32) uint16     { return m.words[addr] }
func (m *flatMemory) WriteChipWord(addr uint32, v uint16) { m.words[addr] = v }

// noopCPU ignores wait-state charges; a standalone run has no CPU model
// to actually stall.
type noopCPU struct{}

func (noopCPU) ChargeWaitStates(int) {}

func main() {
	standard := flag.String("standard", "pal", "video standard: pal or ntsc")
	interlace := flag.Bool("interlace", false, "enable interlaced field toggling")
	cycles := flag.Int64("cycles", int64(beam.HposCnt)*1000, "number of bus cycles to run")
	statusEvery := flag.Int64("status-every", int64(beam.HposCnt)*100, "print a status line every N cycles")
	flag.Parse()

	std := beam.PAL
	if *standard == "ntsc" {
		std = beam.NTSC
	}

	logger := log.New()
	mem := newFlatMemory()
	core := chipset.New(mem, noopCPU{},
		chipset.WithStandard(std),
		chipset.WithInterlace(*interlace),
		chipset.WithLogger(logger),
	)

	start := time.Now()
	var target int64
	for target < *cycles {
		target += *statusEvery
		if target > *cycles {
			target = *cycles
		}
		core.ExecuteUntil(target)
		pos := core.BeamPosition()
		fmt.Printf("clock=%d pos=(%d,%d)\n", core.Clock(), pos.V, pos.H)
	}

	logger.Infof("ran %d cycles in %s", *cycles, time.Since(start))
}
