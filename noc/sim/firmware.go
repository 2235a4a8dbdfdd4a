package sim

// MailboxValue is what the verification firmware writes to its mailbox once
// it is running.
const MailboxValue = 0xFFB1208C

// Layout of the verification firmware.
const (
	FirmwareBase    = 0x4000
	FirmwareMailbox = 0x8000
	// The host writes non-zero here to make the firmware run one pass of
	// its watchpoint body; the firmware clears it and counts passes in
	// FirmwareDone.
	FirmwareCommand = FirmwareMailbox + 4
	FirmwareDone    = FirmwareMailbox + 8
	FirmwareData    = FirmwareMailbox + 0x10
)

// VerifyFirmware builds the firmware image driven by the run-elf
// verification script:
//
//	_start:  mailbox = MailboxValue
//	spin:    wait for command != 0; command = 0
//	pc_watchpoint_target:
//	         store one byte at data+0, +3, +4 and +5
//	         done++; goto spin
func VerifyFirmware() []byte {
	var code []uint32
	emit := func(ws ...uint32) uint32 {
		addr := uint32(FirmwareBase + 4*len(code))
		code = append(code, ws...)
		return addr
	}
	emit(Lui(T1, FirmwareMailbox>>12))
	emit(Li(T0, MailboxValue)...)
	emit(Sw(T0, T1, 0))
	spin := emit(Lw(T2, T1, 4))
	emit(Beq(T2, Zero, -4))
	emit(Sw(Zero, T1, 4))
	emit(Addi(T3, T1, FirmwareData-FirmwareMailbox))
	target := emit(Addi(T2, T2, 0))
	emit(Sb(T2, T3, 0), Sb(T2, T3, 3), Sb(T2, T3, 4), Sb(T2, T3, 5))
	emit(Lw(T4, T1, 8), Addi(T4, T4, 1), Sw(T4, T1, 8))
	here := emit(0)
	code[len(code)-1] = Jal(Zero, int32(spin)-int32(here))

	return BuildELF(Program{
		Entry: FirmwareBase,
		Segments: []Segment{
			{Name: ".text", Addr: FirmwareBase, Data: Words(code...)},
			{Name: ".data", Addr: FirmwareMailbox, Data: make([]byte, 0x20)},
		},
		Symbols: map[string]uint32{
			"_start":               FirmwareBase,
			"spin":                 spin,
			"pc_watchpoint_target": target,
			"mailbox":              FirmwareMailbox,
			"debug_command":        FirmwareCommand,
			"debug_done":           FirmwareDone,
			"watch_data":           FirmwareData,
		},
	})
}

// EbreakFirmware is a one-instruction image that halts right away.
func EbreakFirmware(base uint32) []byte {
	return BuildELF(Program{
		Entry:    base,
		Segments: []Segment{{Name: ".text", Addr: base, Data: Words(Ebreak())}},
		Symbols:  map[string]uint32{"_start": base},
	})
}
