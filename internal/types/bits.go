package types

// Bit masks for the 16-bit chipset registers (DMACON, ADKCON, INTENA, ...).
// Named Bit0..Bit15 rather than per-register constants because the same
// bit position means something different in every register that uses it.
const (
	Bit0 = 1 << iota
	Bit1
	Bit2
	Bit3
	Bit4
	Bit5
	Bit6
	Bit7
	Bit8
	Bit9
	Bit10
	Bit11
	Bit12
	Bit13
	Bit14
	Bit15
)
