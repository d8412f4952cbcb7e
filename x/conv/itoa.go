// Package conv formats integers into caller-owned buffers, for paths that
// avoid fmt and strconv on the MCU.
package conv

// Itoa writes n in base 10 at the end of buf and returns that tail. A 20-byte
// buf holds any int64; shorter buffers keep the low-order digits.
func Itoa(buf []byte, n int64) []byte {
	if n >= 0 || len(buf) < 2 {
		return Utoa(buf, uint64(n))
	}
	d := Utoa(buf[1:], uint64(-n))
	i := len(buf) - len(d) - 1
	buf[i] = '-'
	return buf[i:]
}
