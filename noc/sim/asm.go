package sim

// Register numbers.
const (
	Zero = 0
	RA   = 1
	SP   = 2
	T0   = 5
	T1   = 6
	T2   = 7
	S0   = 8
	S1   = 9
	A0   = 10
	A1   = 11
	T3   = 28
	T4   = 29
)

const (
	insnEbreak = 0x00100073
	insnNop    = 0x00000013
)

func Ebreak() uint32 { return insnEbreak }
func Nop() uint32    { return insnNop }

func iType(op, f3, rd, rs1 uint32, imm int32) uint32 {
	return uint32(imm&0xfff)<<20 | rs1<<15 | f3<<12 | rd<<7 | op
}

func sType(f3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm & 0xfff)
	return (u>>5)<<25 | rs2<<20 | rs1<<15 | f3<<12 | (u&0x1f)<<7 | 0x23
}

func bType(f3, rs1, rs2 uint32, off int32) uint32 {
	u := uint32(off & 0x1fff)
	return ((u>>12)&1)<<31 | ((u>>5)&0x3f)<<25 | rs2<<20 | rs1<<15 | f3<<12 | ((u>>1)&0xf)<<8 | ((u>>11)&1)<<7 | 0x63
}

func Lui(rd, imm20 uint32) uint32 {
	return (imm20&0xfffff)<<12 | rd<<7 | 0x37
}

func Addi(rd, rs1 uint32, imm int32) uint32 {
	return iType(0x13, 0, rd, rs1, imm)
}

func Lw(rd, rs1 uint32, off int32) uint32 {
	return iType(0x03, 2, rd, rs1, off)
}

func Lbu(rd, rs1 uint32, off int32) uint32 {
	return iType(0x03, 4, rd, rs1, off)
}

func Sw(rs2, rs1 uint32, off int32) uint32 {
	return sType(2, rs1, rs2, off)
}

func Sh(rs2, rs1 uint32, off int32) uint32 {
	return sType(1, rs1, rs2, off)
}

func Sb(rs2, rs1 uint32, off int32) uint32 {
	return sType(0, rs1, rs2, off)
}

func Beq(rs1, rs2 uint32, off int32) uint32 {
	return bType(0, rs1, rs2, off)
}

func Bne(rs1, rs2 uint32, off int32) uint32 {
	return bType(1, rs1, rs2, off)
}

// Jal jumps by off bytes, which must be even and within +-1MiB.
func Jal(rd uint32, off int32) uint32 {
	u := uint32(off & 0x1fffff)
	return ((u>>20)&1)<<31 | ((u>>1)&0x3ff)<<21 | ((u>>11)&1)<<20 | ((u>>12)&0xff)<<12 | rd<<7 | 0x6f
}

func Jalr(rd, rs1 uint32, off int32) uint32 {
	return iType(0x67, 0, rd, rs1, off)
}

// Li loads a 32-bit constant in two instructions.
func Li(rd, v uint32) []uint32 {
	lo := int32(v<<20) >> 20
	hi := (v - uint32(lo)) >> 12
	return []uint32{Lui(rd, hi), Addi(rd, rd, lo)}
}
