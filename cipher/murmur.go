package cipher

import murmur "github.com/aviddiviner/go-murmur"

// murmurM is MurmurHash2's multiplier; RotateKey mixes with it too.
const murmurM = 0x5bd1e995

// Murmur2 is the 32-bit MurmurHash2 of data.
func Murmur2(data []byte, seed uint32) uint32 {
	return murmur.MurmurHash2(data, seed)
}
