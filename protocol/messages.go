package protocol

import (
	"fmt"
	"unicode/utf8"
)

func versionMessage(op uint8, version uint32) []byte {
	w := NewWriter(VersionMessageSize)
	w.U8(op)
	w.U32(version)
	b, _ := w.Bytes()
	return b
}

func ProtocolVersion(version uint32) []byte {
	return versionMessage(OpProtocolVersion, version)
}

func ClientVersion(version uint32) []byte {
	return versionMessage(OpClientVersion, version)
}

// Spawn asks the server to place a cell named name.
func Spawn(name string) []byte {
	w := NewWriter(2 + utf8.RuneCountInString(name))
	w.U8(OpSpawn)
	w.String(name)
	b, _ := w.Bytes()
	return b
}

// Move targets world coordinates. key is the session's current decryption
// key, echoed back so the server can validate the sender.
func Move(x, y int32, key uint32) []byte {
	w := NewWriter(MoveMessageSize)
	w.U8(OpMove)
	w.I32(x)
	w.I32(y)
	w.I32(int32(key))
	b, _ := w.Bytes()
	return b
}

func Split() []byte { return []byte{OpSplit} }
func Eject() []byte { return []byte{OpEject} }

// MoveCommand is a decoded move message.
type MoveCommand struct {
	X, Y int32
	Key  uint32
}

func DecodeMove(b []byte) (MoveCommand, error) {
	r := NewReader(b)
	op, err := r.U8()
	if err != nil {
		return MoveCommand{}, err
	}
	if op != OpMove {
		return MoveCommand{}, fmt.Errorf("decode move: opcode %d", op)
	}
	var m MoveCommand
	if m.X, err = r.I32(); err != nil {
		return MoveCommand{}, err
	}
	if m.Y, err = r.I32(); err != nil {
		return MoveCommand{}, err
	}
	if m.Key, err = r.U32(); err != nil {
		return MoveCommand{}, err
	}
	return m, nil
}

// KeyExchange is the payload of OpKeyExchange.
type KeyExchange struct {
	DecryptionKey uint32
	Salt          string
}

// DecodeKeyExchange reads the payload following the opcode byte.
func DecodeKeyExchange(r *Reader) (KeyExchange, error) {
	key, err := r.U32()
	if err != nil {
		return KeyExchange{}, fmt.Errorf("key exchange: %w", err)
	}
	salt, err := r.String()
	if err != nil {
		return KeyExchange{}, fmt.Errorf("key exchange salt: %w", err)
	}
	return KeyExchange{DecryptionKey: key, Salt: salt}, nil
}

// Envelope is a compressed inner message: Size is the exact length the
// payload must inflate to.
type Envelope struct {
	Size    uint32
	Payload []byte
}

func DecodeEnvelope(r *Reader) (Envelope, error) {
	size, err := r.U32()
	if err != nil {
		return Envelope{}, fmt.Errorf("compressed envelope: %w", err)
	}
	return Envelope{Size: size, Payload: r.Rest()}, nil
}

// Bounds is the payload of OpWorldBounds.
type Bounds struct {
	Left, Top, Right, Bottom float64
}

func DecodeBounds(r *Reader) (Bounds, error) {
	var (
		b   Bounds
		err error
	)
	for _, f := range []*float64{&b.Left, &b.Top, &b.Right, &b.Bottom} {
		if *f, err = r.F64(); err != nil {
			return Bounds{}, fmt.Errorf("world bounds: %w", err)
		}
	}
	return b, nil
}
