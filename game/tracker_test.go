package game

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"cellswarm/protocol"
)

type record struct {
	id       uint32
	x, y     int32
	size     uint16
	flags    uint8
	ext      uint8
	skin     string
	nameWire []byte
}

// update encodes a viewport delta without the opcode byte.
func update(eats int, adds []record, removes []uint32) []byte {
	le := binary.LittleEndian
	b := le.AppendUint16(nil, uint16(eats))
	for i := 0; i < eats; i++ {
		b = le.AppendUint32(b, uint32(i+1))
		b = le.AppendUint32(b, uint32(i+100))
	}
	for _, r := range adds {
		b = le.AppendUint32(b, r.id)
		b = le.AppendUint32(b, uint32(r.x))
		b = le.AppendUint32(b, uint32(r.y))
		b = le.AppendUint16(b, r.size)
		b = append(b, r.flags)
		if r.flags&0x80 != 0 {
			b = append(b, r.ext)
		}
		if r.flags&0x02 != 0 {
			b = append(b, 0xaa, 0xbb, 0xcc)
		}
		if r.flags&0x04 != 0 {
			b = append(append(b, r.skin...), 0)
		}
		if r.flags&0x08 != 0 {
			b = append(append(b, r.nameWire...), 0)
		}
		if r.ext&0x04 != 0 {
			b = append(b, 1, 2, 3, 4)
		}
	}
	b = le.AppendUint32(b, 0)
	b = le.AppendUint16(b, uint16(len(removes)))
	for _, id := range removes {
		b = le.AppendUint32(b, id)
	}
	return b
}

func apply(t *testing.T, tr *Tracker, b []byte) {
	t.Helper()
	if err := tr.ApplyUpdate(protocol.NewReader(b)); err != nil {
		t.Fatalf("apply update: %v", err)
	}
}

func TestApplyUpdateAddsEntities(t *testing.T) {
	tr := NewTracker()
	apply(t, tr, update(2, []record{
		{id: 1, x: 10, y: -20, size: 32},
		{id: 2, x: 5, y: 5, size: 100, flags: 0x01},
		{id: 3, x: 7, y: 8, size: 10, flags: 0x80, ext: 0x01},
	}, nil))

	if tr.Len() != 3 {
		t.Fatalf("len = %d, want 3", tr.Len())
	}
	e, _ := tr.Get(1)
	if e.X != 10 || e.Y != -20 || e.Size != 32 || e.IsVirus || e.IsPellet {
		t.Fatalf("entity 1 = %+v", e)
	}
	if v, _ := tr.Get(2); !v.IsVirus {
		t.Fatalf("entity 2 should be a virus")
	}
	if p, _ := tr.Get(3); !p.IsPellet || p.IsVirus {
		t.Fatalf("entity 3 should be a pellet: %+v", p)
	}
}

func TestApplyUpdateSkipsReservedFields(t *testing.T) {
	tr := NewTracker()
	apply(t, tr, update(0, []record{
		{id: 9, x: 1, y: 2, size: 3, flags: 0x80 | 0x02 | 0x04 | 0x08, ext: 0x04 | 0x01, skin: "%doge", nameWire: []byte("bob")},
		{id: 10, x: 4, y: 5, size: 6},
	}, nil))
	e, ok := tr.Get(9)
	if !ok || e.Name != "bob" || !e.IsPellet {
		t.Fatalf("entity 9 = %+v", e)
	}
	if e, ok := tr.Get(10); !ok || e.X != 4 {
		t.Fatalf("record after padded record misparsed: %+v", e)
	}
}

func TestNameDecodedAsUTF8(t *testing.T) {
	tr := NewTracker()
	apply(t, tr, update(0, []record{
		{id: 1, size: 50, flags: 0x08, nameWire: []byte("größe ☃")},
	}, nil))
	if e, _ := tr.Get(1); e.Name != "größe ☃" {
		t.Fatalf("name = %q, want %q", e.Name, "größe ☃")
	}
}

func TestInvalidUTF8NameIsParseError(t *testing.T) {
	tr := NewTracker()
	err := tr.ApplyUpdate(protocol.NewReader(update(0, []record{
		{id: 1, size: 50, flags: 0x08, nameWire: []byte{0xff, 0xfe}},
	}, nil)))
	if !errors.Is(err, protocol.ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestNameIsStickyAcrossUpdates(t *testing.T) {
	tr := NewTracker()
	apply(t, tr, update(0, []record{{id: 5, size: 40, flags: 0x08, nameWire: []byte("alice")}}, nil))
	apply(t, tr, update(0, []record{{id: 5, x: 99, size: 41}}, nil))

	e, _ := tr.Get(5)
	if e.Name != "alice" {
		t.Fatalf("name after nameless update = %q, want alice", e.Name)
	}
	if e.X != 99 || e.Size != 41 {
		t.Fatalf("position not updated: %+v", e)
	}

	apply(t, tr, update(0, []record{{id: 5, size: 41, flags: 0x08, nameWire: []byte("eve")}}, nil))
	if e, _ := tr.Get(5); e.Name != "eve" {
		t.Fatalf("name after named update = %q, want eve", e.Name)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	tr := NewTracker()
	apply(t, tr, update(0, []record{{id: 1, size: 1}, {id: 2, size: 2}}, nil))
	tr.AddOwned(1)

	apply(t, tr, update(0, nil, []uint32{1, 1, 77}))
	if tr.Len() != 1 {
		t.Fatalf("len after remove = %d, want 1", tr.Len())
	}
	if len(tr.Owned()) != 0 {
		t.Fatalf("owned cell not pruned: %v", tr.Owned())
	}
	apply(t, tr, update(0, nil, []uint32{1}))
	if _, ok := tr.Get(2); !ok || tr.Len() != 1 {
		t.Fatalf("second remove changed snapshot")
	}
}

func TestRemoveClearsStickyName(t *testing.T) {
	tr := NewTracker()
	apply(t, tr, update(0, []record{{id: 5, size: 40, flags: 0x08, nameWire: []byte("alice")}}, []uint32{5}))
	if tr.Len() != 0 {
		t.Fatalf("entity added and removed in one update should be gone")
	}
	apply(t, tr, update(0, []record{{id: 5, size: 40}}, nil))
	if e, _ := tr.Get(5); e.Name != "" {
		t.Fatalf("name survived removal: %q", e.Name)
	}
}

func TestApplyUpdateTruncated(t *testing.T) {
	b := update(0, []record{{id: 1, size: 1}}, []uint32{3})
	for _, n := range []int{1, 5, 12, len(b) - 1} {
		err := NewTracker().ApplyUpdate(protocol.NewReader(b[:n]))
		if !errors.Is(err, protocol.ErrShortBuffer) {
			t.Fatalf("truncated at %d: err = %v", n, err)
		}
	}
}

func TestSelfAggregate(t *testing.T) {
	tr := NewTracker()
	apply(t, tr, update(0, []record{
		{id: 1, x: 100, y: 0, size: 30},
		{id: 2, x: 300, y: 200, size: 50},
	}, nil))
	tr.AddOwned(1)
	tr.AddOwned(2)
	x, y, size := tr.Self()
	if x != 200 || y != 100 || size != 80 {
		t.Fatalf("self = (%v, %v, %v), want (200, 100, 80)", x, y, size)
	}

	// an owned id missing from the view contributes nothing
	tr.AddOwned(3)
	x, _, size = tr.Self()
	if math.Abs(x-400.0/3) > 1e-9 || size != 80 {
		t.Fatalf("self with missing member = (%v, %v)", x, size)
	}
}

func TestSelfWithoutOwnedCellsIsOrigin(t *testing.T) {
	tr := NewTracker()
	apply(t, tr, update(0, []record{{id: 1, x: 500, y: 500, size: 30}}, nil))
	if x, y, size := tr.Self(); x != 0 || y != 0 || size != 0 {
		t.Fatalf("self = (%v, %v, %v), want origin", x, y, size)
	}
}

func bounds(left, top, right, bottom float64) *protocol.Reader {
	le := binary.LittleEndian
	var b []byte
	for _, f := range []float64{left, top, right, bottom} {
		b = le.AppendUint64(b, math.Float64bits(f))
	}
	return protocol.NewReader(b)
}

func TestApplyBounds(t *testing.T) {
	tr := NewTracker()
	if err := tr.ApplyBounds(bounds(-7071, -7071, 7071, 7071)); err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if x, y := tr.Offset(); x != 0 || y != 0 {
		t.Fatalf("offset = (%v, %v)", x, y)
	}
	if err := tr.ApplyBounds(bounds(0, 1000, 14142, 15142)); err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if x, y := tr.Offset(); x != 7071 || y != 8071 {
		t.Fatalf("offset = (%v, %v), want (7071, 8071)", x, y)
	}

	// a zoomed camera frame is ignored
	if err := tr.ApplyBounds(bounds(100, 100, 2000, 1500)); err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if x, y := tr.Offset(); x != 7071 || y != 8071 {
		t.Fatalf("small bounds moved offset to (%v, %v)", x, y)
	}
}

func TestDecodeFlags(t *testing.T) {
	f := DecodeFlags(0x80|0x08|0x01, 0x04)
	if !f.Virus || !f.Named || !f.Extended || f.Skin || f.Reserved || f.Pellet || !f.ExtendedPadded {
		t.Fatalf("flags = %+v", f)
	}
}
