package chipset

import "github.com/agnusdei/chipsetcore/internal/types"

// Pending high words for the 32-bit pointer registers, which the
// hardware (and every example ROM) always writes high-then-low. Each
// *PTH write stages the high half; the matching *PTL write combines it
// into the full pointer and applies it.
type pointerStaging struct {
	cop    [2]uint32
	bpl    [6]uint32
	aud    [4]uint32
	spr    [8]uint32
	dsk    uint32
}

// WriteRegister dispatches a 16-bit register write to whichever
// subcomponent owns addr. Unrecognized addresses are silently ignored,
// matching the coprocessor's own "registers >= 0x80 terminate, others
// pass through" tolerance rather than this core treating every unknown
// write as fatal.
func (c *Core) WriteRegister(addr types.RegAddr, value uint16) {
	switch addr {
	case types.DMACON:
		c.dmacon = applySetClrWord(c.dmacon, value)
	case types.ADKCON:
		c.adkcon = applySetClrWord(c.adkcon, value)
		c.dsk.SetWordSyncRequired(c.adkcon&types.ADKCONF_WORDSYNC != 0)
	case types.COPCON:
		c.cop.SetCDANG(value&types.COPCONF_CDANG != 0)
	case types.COP1LCH:
		c.staging.cop[0] = uint32(value) << 16
	case types.COP1LCL:
		c.staging.cop[0] |= uint32(value)
		c.cop.SetLocation(0, c.staging.cop[0])
	case types.COP2LCH:
		c.staging.cop[1] = uint32(value) << 16
	case types.COP2LCL:
		c.staging.cop[1] |= uint32(value)
		c.cop.SetLocation(1, c.staging.cop[1])
	case types.COPJMP1:
		c.cop.Jump(0)
		c.ensureCopperScheduled()
	case types.COPJMP2:
		c.cop.Jump(1)
		c.ensureCopperScheduled()
	case types.DSKLEN:
		c.dsk.WriteDSKLEN(value)
	case types.DSKSYNC:
		c.dsk.WriteDSKSYNC(value)
	case types.DSKPTH:
		c.staging.dsk = uint32(value) << 16
	case types.DSKPTL:
		c.staging.dsk |= uint32(value)
		c.dsk.SetPointer(c.staging.dsk)
	case types.DIWSTRT:
		c.diwstrt = value
	case types.DIWSTOP:
		c.diwstop = value
	case types.DDFSTRT:
		c.ddfstrt = value
	case types.DDFSTOP:
		c.ddfstop = value
	case types.BPLCON0:
		c.bplcon0 = value
	case types.BPLCON1:
		c.bplcon1 = value
	case types.INTENA:
		c.irq.WriteINTENA(value)
	case types.INTREQ:
		c.irq.WriteINTREQ(value)
	default:
		c.writePointerArray(addr, value)
	}
}

// writePointerArray handles the BPLxPT/AUDxLC/SPRxPT register families,
// which are generated ranges rather than single named addresses.
func (c *Core) writePointerArray(addr types.RegAddr, value uint16) {
	for n := 0; n < 6; n++ {
		if addr == types.BPLxPTH(n) {
			c.staging.bpl[n] = uint32(value) << 16
			return
		}
		if addr == types.BPLxPTL(n) {
			c.staging.bpl[n] |= uint32(value)
			c.bplpt[n] = c.staging.bpl[n]
			return
		}
	}
	for n := 0; n < 4; n++ {
		if addr == types.AUDxLCH(n) {
			c.staging.aud[n] = uint32(value) << 16
			return
		}
		if addr == types.AUDxLCL(n) {
			c.staging.aud[n] |= uint32(value)
			c.audpt[n] = c.staging.aud[n]
			return
		}
	}
	for n := 0; n < 8; n++ {
		if addr == types.SPRxPTH(n) {
			c.staging.spr[n] = uint32(value) << 16
			return
		}
		if addr == types.SPRxPTL(n) {
			c.staging.spr[n] |= uint32(value)
			c.sprpt[n] = c.staging.spr[n]
			return
		}
	}
}

// ReadRegister dispatches a 16-bit register read. It returns VPOSR/VHPOSR,
// DMACON, ADKCON, INTENA, INTREQ, DIWSTRT/DIWSTOP, DDFSTRT/DDFSTOP,
// BPLCON0/BPLCON1 and DSKLEN; everything else reads back zero, since this
// core has no model of the registers it doesn't own (blitter status bits,
// audio, sprite data).
func (c *Core) ReadRegister(addr types.RegAddr) uint16 {
	switch addr {
	case types.VPOSR:
		return uint16(c.beam.Pos.V >> 8)
	case types.VHPOSR:
		return c.beam.Beam16()
	case types.DMACON:
		return c.dmacon
	case types.ADKCON:
		return c.adkcon
	case types.INTENA:
		return c.irq.INTENA()
	case types.INTREQ:
		return c.irq.INTREQ()
	case types.DIWSTRT:
		return c.diwstrt
	case types.DIWSTOP:
		return c.diwstop
	case types.DDFSTRT:
		return c.ddfstrt
	case types.DDFSTOP:
		return c.ddfstop
	case types.BPLCON0:
		return c.bplcon0
	case types.BPLCON1:
		return c.bplcon1
	case types.DSKLEN:
		return c.dsk.DSKLEN()
	}
	return 0
}

func applySetClrWord(reg, v uint16) uint16 {
	bits := v &^ types.DMACONF_SETCLR
	if v&types.DMACONF_SETCLR != 0 {
		return reg | bits
	}
	return reg &^ bits
}
