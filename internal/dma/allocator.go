package dma

import "github.com/agnusdei/chipsetcore/pkg/utils"

// FetchKind classifies a DDFSTRT/DDFSTOP value against the fixed
// thresholds the 9-case/18-case table keys off: small values (below
// 0x18) can't start a fetch window before the display already would on
// its own, medium values behave normally, and values beyond HposMax can
// never trigger within the line.
type FetchKind uint8

const (
	FetchSmall FetchKind = iota
	FetchMedium
	FetchLarge
)

func classifyFetch(h int) FetchKind {
	switch {
	case h < 0x18:
		return FetchSmall
	case h > HposMax:
		return FetchLarge
	default:
		return FetchMedium
	}
}

// DDFWindow is the active bitplane data-fetch window for one scanline,
// computed from DDFSTRT/DDFSTOP and the current fetch state.
type DDFWindow struct {
	Start, Stop int
	// EveryOtherLine is the base chipset's "early-access scan-line"
	// effect (spec §4.3): a very small ddfstrt only enables DMA every
	// other line.
	EveryOtherLine bool
}

// Enhanced selects the 18-case enhanced-chipset table instead of the
// base 9-case table; the two differ in how the small/large corner cases
// resolve, not in the basic start/stop arithmetic.
type Enhanced bool

// ComputeDDFWindow derives the window from the small/medium/large
// classification of ddfstrt and ddfstop. It does not take a fetch state
// as input, and the enhanced chipset differs from the base chipset only
// in never setting EveryOtherLine. hires halves the window's cycle granularity against lores, since a
// hires fetch unit is four cycles instead of eight.
func ComputeDDFWindow(ddfstrt, ddfstop int, res Resolution, enhanced Enhanced) DDFWindow {
	startKind := classifyFetch(ddfstrt)
	stopKind := classifyFetch(ddfstop)

	w := DDFWindow{Start: ddfstrt, Stop: ddfstop}

	switch {
	case startKind == FetchSmall && stopKind == FetchSmall:
		// Both edges before the normal window: the window degenerates
		// to the earliest position the hardware can actually start
		// fetching from, and on the base chipset this only happens
		// every other line.
		w.Start = 0x18
		if !bool(enhanced) {
			w.EveryOtherLine = true
		}
	case startKind == FetchSmall:
		w.Start = 0x18
		if !bool(enhanced) {
			w.EveryOtherLine = true
		}
	case startKind == FetchLarge:
		// Never starts within the line.
		w.Start = HposCnt
		w.Stop = HposCnt
		return w
	}

	switch stopKind {
	case FetchLarge:
		w.Stop = HposMax
	case FetchSmall:
		// Degenerate: stop before start collapses the window to empty.
		w.Stop = w.Start
	}

	if w.Stop < w.Start {
		w.Stop = w.Start
	}

	if res == Hires {
		// Hires fetch units are half as wide; align both edges to the
		// nearest 4-cycle boundary the way the lores table aligns to
		// 8-cycle boundaries.
		w.Start -= w.Start % 4
		w.Stop -= w.Stop % 4
	} else {
		w.Start -= w.Start % 8
		w.Stop -= w.Stop % 8
	}

	w.Start = utils.Clamp(0, w.Start, HposCnt)
	w.Stop = utils.Clamp(w.Start, w.Stop, HposCnt)
	return w
}

// LineTables holds the per-scanline working tables rebuilt every
// horizontal sync: the bitplane/DAS event arrays restricted to the
// active fetch window and DMA-enable mask, and the right-to-left jump
// tables derived from them.
type LineTables struct {
	bplEvent    [HposCnt]bitplaneEvent
	dasEvent    [HposCnt]Class
	nextBplEvent [HposCnt + 1]int
	nextDasEvent [HposCnt + 1]int
}

// NewLineTables returns an empty set of per-line tables; Rebuild must be
// called before first use.
func NewLineTables() *LineTables {
	return &LineTables{}
}

// Rebuild repopulates the per-line tables from the static allocation
// tables, restricted to window (the active DDF window, independently for
// odd and even bitplanes to emulate horizontal scroll) and dasMask (the
// enabled DAS classes), then rebuilds the jump tables by scanning
// right-to-left (spec §4.3 "Jump tables").
func (lt *LineTables) Rebuild(res Resolution, bpu int, oddWindow, evenWindow DDFWindow, dasMask int) {
	for h := 0; h < HposCnt; h++ {
		lt.bplEvent[h] = bitplaneEvent{}
		lt.dasEvent[h] = dasTable[dasMask][h]
	}

	for h := oddWindow.Start; h < oddWindow.Stop && h < HposCnt; h++ {
		lt.bplEvent[h] = bitplaneTable[res][bpu][h]
	}
	// Where the even window differs from the odd one (horizontal
	// scroll), insert a shift-register fill-in event so the pixel
	// pipeline still reloads on the cycle the even plane's window would
	// have fetched but the odd window's doesn't cover, or vice versa.
	for h := evenWindow.Start; h < evenWindow.Stop && h < HposCnt; h++ {
		ev := bitplaneTable[res][bpu][h]
		if !lt.bplEvent[h].valid && ev.valid {
			ev.shiftLoad = true
			lt.bplEvent[h] = ev
		} else if lt.bplEvent[h].valid {
			lt.bplEvent[h].shiftLoad = true
		}
	}

	lt.rebuildJumpTables()
}

func (lt *LineTables) rebuildJumpTables() {
	lt.nextBplEvent[HposCnt] = HposMax
	lt.nextDasEvent[HposCnt] = HposMax
	for h := HposCnt - 1; h >= 0; h-- {
		if lt.bplEvent[h].valid {
			lt.nextBplEvent[h] = h
		} else {
			lt.nextBplEvent[h] = lt.nextBplEvent[h+1]
		}
		if lt.dasEvent[h] != ClassNone {
			lt.nextDasEvent[h] = h
		} else {
			lt.nextDasEvent[h] = lt.nextDasEvent[h+1]
		}
	}
}

// NextBitplaneEvent returns the smallest h' > h with a pending bitplane
// fetch, or HposMax if none remains on the line.
func (lt *LineTables) NextBitplaneEvent(h int) int {
	if h+1 >= HposCnt {
		return HposMax
	}
	return lt.nextBplEvent[h+1]
}

// NextDASEvent returns the smallest h' > h with a pending DAS slot, or
// HposMax if none remains.
func (lt *LineTables) NextDASEvent(h int) int {
	if h+1 >= HposCnt {
		return HposMax
	}
	return lt.nextDasEvent[h+1]
}

// BitplaneEventAt reports whether h has a scheduled bitplane fetch and,
// if so, which plane and whether it also triggers a shift-register load.
func (lt *LineTables) BitplaneEventAt(h int) (plane int, shiftLoad, ok bool) {
	ev := lt.bplEvent[h]
	return ev.plane, ev.shiftLoad, ev.valid
}

// DASEventAt returns the DAS class scheduled at h (ClassNone if none).
func (lt *LineTables) DASEventAt(h int) Class {
	return lt.dasEvent[h]
}
