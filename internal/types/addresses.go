package types

// RegAddr is the offset of a chipset register within custom-chip address
// space (0xDFF000-based). Only the registers the core consumes or writes are
// named here; everything else (blitter, audio generation, video output) is
// reached only through the collaborator interfaces in internal/chipset.
type RegAddr uint16

const (
	VPOSR   RegAddr = 0x004
	VHPOSR  RegAddr = 0x006
	DSKBYTR RegAddr = 0x01A
	DSKPTH  RegAddr = 0x020
	DSKPTL  RegAddr = 0x022
	DSKLEN  RegAddr = 0x024
	DSKDAT  RegAddr = 0x026
	COPCON  RegAddr = 0x02E
	COP1LCH RegAddr = 0x080
	COP1LCL RegAddr = 0x082
	COP2LCH RegAddr = 0x084
	COP2LCL RegAddr = 0x086
	COPJMP1 RegAddr = 0x088
	COPJMP2 RegAddr = 0x08A
	COPINS  RegAddr = 0x08C
	DIWSTRT RegAddr = 0x08E
	DIWSTOP RegAddr = 0x090
	DDFSTRT RegAddr = 0x092
	DDFSTOP RegAddr = 0x094
	DMACON  RegAddr = 0x096
	DSKSYNC RegAddr = 0x07E
	ADKCON  RegAddr = 0x09E
	INTENA  RegAddr = 0x09A
	INTREQ  RegAddr = 0x09C
	BPLCON0 RegAddr = 0x100
	BPLCON1 RegAddr = 0x102
)

// BPLxPTH/BPLxPTL return the bitplane pointer register pair for plane n (0-5).
func BPLxPTH(n int) RegAddr { return RegAddr(0x0E0 + n*4) }
func BPLxPTL(n int) RegAddr { return RegAddr(0x0E2 + n*4) }

// AUDxLCH/AUDxLCL return the audio channel pointer register pair for
// channel n (0-3). The core writes these through on behalf of the copper
// but never reads the samples they describe.
func AUDxLCH(n int) RegAddr { return RegAddr(0x0A0 + n*16) }
func AUDxLCL(n int) RegAddr { return RegAddr(0x0A2 + n*16) }

// SPRxPTH/SPRxPTL return the sprite pointer register pair for sprite n (0-7).
func SPRxPTH(n int) RegAddr { return RegAddr(0x120 + n*4) }
func SPRxPTL(n int) RegAddr { return RegAddr(0x122 + n*4) }

// DMACON bit assignments.
const (
	DMACONF_SETCLR  = Bit15
	DMACONF_BBUSY   = Bit14 // blitter busy status (read only)
	DMACONF_BZERO   = Bit13 // blitter zero status (read only)
	DMACONF_BLTPRI  = Bit10 // blitter priority (vs CPU)
	DMACONF_DMAEN   = Bit9  // master DMA enable
	DMACONF_BPLEN   = Bit8
	DMACONF_COPEN   = Bit7
	DMACONF_BLTEN   = Bit6
	DMACONF_SPREN   = Bit5
	DMACONF_DSKEN   = Bit4
	DMACONF_AUD0EN  = Bit0
	DMACONF_AUD1EN  = Bit1
	DMACONF_AUD2EN  = Bit2
	DMACONF_AUD3EN  = Bit3
)

// ADKCON bit assignments relevant to the disk controller.
const (
	ADKCONF_PRECOMP1 = Bit14
	ADKCONF_PRECOMP0 = Bit13
	ADKCONF_MFMPREC  = Bit12
	ADKCONF_WORDSYNC = Bit10 // sync-required: DSK_WAIT vs DSK_READ
	ADKCONF_MSBSYNC  = Bit9
	ADKCONF_FAST     = Bit8
)

// COPCON bit assignments.
const (
	COPCONF_CDANG = Bit1
)

// INTENA/INTREQ bit assignments for the lines this core raises.
const (
	INTF_SETCLR = Bit15
	INTF_SOFT   = Bit0
	INTF_DSKBLK = Bit1
	INTF_VERTB  = Bit5
	INTF_COPER  = Bit4
	INTF_BLIT   = Bit6
	INTF_DSKSYN = Bit12
)

// DSKLEN bit assignments.
const (
	DSKLENF_DMAEN = Bit15
	DSKLENF_WRITE = Bit14
)
