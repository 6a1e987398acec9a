// Package cipher holds the per-session obfuscation state shared with the game
// server. It is not cryptography: both sides derive the same keys and evolve
// them once per message, so the streams stay aligned only while every message
// is processed exactly once.
package cipher

import "math/bits"

const (
	hashSeed  = 255
	evolveXor = 114296087
)

// EncryptionKey derives the outbound key from the server host and the salt
// delivered in the key exchange.
func EncryptionKey(host, salt string) uint32 {
	return Murmur2([]byte(host+salt), hashSeed)
}

// RotateKey returns the next key. It depends on the key only.
func RotateKey(key uint32) uint32 {
	key *= murmurM
	key = ((key>>24)^key)*murmurM ^ evolveXor
	key = ((key >> 13) ^ key) * murmurM
	return (key >> 15) ^ key
}

// Transform obfuscates buf in place, leaving the opcode byte at buf[0]
// untouched. Each payload byte is mixed with one byte of the key and then bit
// rotated by that key byte's low three bits; decrypt undoes both steps.
func Transform(buf []byte, key uint32, decrypt bool) {
	for i := 1; i < len(buf); i++ {
		k := byte(key >> (8 * uint((i-1)%4)))
		shift := int(k & 7)
		if decrypt {
			buf[i] = bits.RotateLeft8(buf[i], -shift) ^ k
		} else {
			buf[i] = bits.RotateLeft8(buf[i]^k, shift)
		}
	}
}

// State is one session's key pair. It is not safe for concurrent use; the
// owning session serializes every send and receive.
type State struct {
	clientVersion uint32
	decryptionKey uint32
	encryptionKey uint32
	keyed         bool
}

func New(clientVersion uint32) *State {
	return &State{clientVersion: clientVersion}
}

// Install sets the keys from a key exchange.
func (s *State) Install(decryptionKey uint32, host, salt string) {
	s.decryptionKey = decryptionKey
	s.encryptionKey = EncryptionKey(host, salt)
	s.keyed = true
}

func (s *State) Keyed() bool { return s.keyed }

func (s *State) DecryptionKey() uint32 { return s.decryptionKey }

func (s *State) EncryptionKey() uint32 { return s.encryptionKey }

// Encrypt transforms an outbound message and advances the encryption key.
// Before a key exchange, or with a zero key, it leaves buf as is.
func (s *State) Encrypt(buf []byte) {
	if !s.keyed || s.encryptionKey == 0 {
		return
	}
	Transform(buf, s.encryptionKey, false)
	s.encryptionKey = RotateKey(s.encryptionKey)
}

// Decrypt transforms an inbound message with the decryption key folded with
// the client version and advances the decryption key.
func (s *State) Decrypt(buf []byte) {
	if !s.keyed {
		return
	}
	Transform(buf, s.decryptionKey^s.clientVersion, true)
	s.decryptionKey = RotateKey(s.decryptionKey)
}
