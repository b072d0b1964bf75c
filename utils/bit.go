package utils

// SetBit sets bit pos (0 is the least significant) of n.
func SetBit(n *byte, pos uint) {
	*n |= 1 << pos
}

func ClearBit(n *byte, pos uint) {
	*n &^= 1 << pos
}

func HasBit(n byte, pos uint) bool {
	return n&(1<<pos) != 0
}
