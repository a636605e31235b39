package uartx

// pl011Divisors returns the PL011 integer and fractional baud divisors for
// baud on a clock of clk Hz, clamped to the range the hardware accepts.
func pl011Divisors(clk, baud uint32) (ibrd, fbrd uint32) {
	div := uint32(8 * uint64(clk) / uint64(baud))

	ibrd = div >> 7
	switch {
	case ibrd == 0:
		return 1, 0
	case ibrd >= 65535:
		return 65535, 0
	}
	return ibrd, ((div & 0x7f) + 1) / 2
}
