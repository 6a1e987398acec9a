package game

import (
	"fmt"
	"slices"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"cellswarm/protocol"
)

// Tracker is one session's view of the world: the entities it can see, the
// cells it owns and the world offset taken from the last authoritative bounds.
// It is owned by a single session goroutine and is not safe for concurrent use.
type Tracker struct {
	entities map[uint32]Entity
	owned    []uint32

	offsetX, offsetY float64
}

func NewTracker() *Tracker {
	return &Tracker{entities: make(map[uint32]Entity)}
}

func (t *Tracker) Len() int { return len(t.entities) }

func (t *Tracker) Get(id uint32) (Entity, bool) {
	e, ok := t.entities[id]
	return e, ok
}

// Entities returns a copy of the snapshot ordered by id.
func (t *Tracker) Entities() []Entity {
	out := make([]Entity, 0, len(t.entities))
	for _, e := range t.entities {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Entity) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// Upsert inserts e, or overwrites the entity with the same id. A record
// without a name keeps the name already known for that id.
func (t *Tracker) Upsert(e Entity) {
	if old, ok := t.entities[e.ID]; ok && e.Name == "" && old.Name != "" {
		e.Name = old.Name
	}
	t.entities[e.ID] = e
}

// Remove deletes id from the snapshot and from the owned cells. Removing an
// unknown id is a no-op.
func (t *Tracker) Remove(id uint32) {
	if i := slices.Index(t.owned, id); i >= 0 {
		t.owned = slices.Delete(t.owned, i, i+1)
	}
	delete(t.entities, id)
}

func (t *Tracker) AddOwned(id uint32) {
	if !slices.Contains(t.owned, id) {
		t.owned = append(t.owned, id)
	}
}

func (t *Tracker) Owned() []uint32 {
	return slices.Clone(t.owned)
}

// Self aggregates the owned cells: coordinates are averaged over the owned
// list and sizes summed. Owned ids missing from the snapshot add nothing.
func (t *Tracker) Self() (x, y, size float64) {
	n := float64(len(t.owned))
	for _, id := range t.owned {
		c, ok := t.entities[id]
		if !ok {
			continue
		}
		x += float64(c.X) / n
		y += float64(c.Y) / n
		size += float64(c.Size)
	}
	return x, y, size
}

func (t *Tracker) Offset() (x, y float64) {
	return t.offsetX, t.offsetY
}

// ApplyUpdate consumes a viewport delta: eat records, add records up to a
// zero id, then remove records.
func (t *Tracker) ApplyUpdate(r *protocol.Reader) error {
	eats, err := r.U16()
	if err != nil {
		return fmt.Errorf("eat count: %w", err)
	}
	if err := r.Skip(int(eats) * 8); err != nil {
		return fmt.Errorf("eat records: %w", err)
	}

	for {
		id, err := r.U32()
		if err != nil {
			return fmt.Errorf("entity id: %w", err)
		}
		if id == 0 {
			break
		}
		e, err := readEntity(r, id)
		if err != nil {
			return fmt.Errorf("entity %d: %w", id, err)
		}
		t.Upsert(e)
	}

	removes, err := r.U16()
	if err != nil {
		return fmt.Errorf("remove count: %w", err)
	}
	for i := 0; i < int(removes); i++ {
		id, err := r.U32()
		if err != nil {
			return fmt.Errorf("remove record %d: %w", i, err)
		}
		t.Remove(id)
	}
	return nil
}

func readEntity(r *protocol.Reader, id uint32) (Entity, error) {
	e := Entity{ID: id}
	var err error
	if e.X, err = r.I32(); err != nil {
		return e, err
	}
	if e.Y, err = r.I32(); err != nil {
		return e, err
	}
	if e.Size, err = r.U16(); err != nil {
		return e, err
	}
	raw, err := r.U8()
	if err != nil {
		return e, err
	}
	var ext uint8
	if raw&flagExtended != 0 {
		if ext, err = r.U8(); err != nil {
			return e, err
		}
	}

	f := DecodeFlags(raw, ext)
	e.IsVirus = f.Virus
	if f.Reserved {
		if err := r.Skip(3); err != nil {
			return e, err
		}
	}
	if f.Skin {
		if _, err := r.String(); err != nil {
			return e, err
		}
	}
	if f.Named {
		s, err := r.String()
		if err != nil {
			return e, err
		}
		if e.Name, err = DecodeName(s); err != nil {
			return e, err
		}
	}
	e.IsPellet = f.Pellet
	if f.ExtendedPadded {
		if err := r.Skip(4); err != nil {
			return e, err
		}
	}
	return e, nil
}

// DecodeName re-reads a wire string as UTF-8. The wire string holds one code
// point per byte, so the code points are narrowed back to bytes and those
// bytes decoded as UTF-8.
func DecodeName(wire string) (string, error) {
	b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(wire))
	if err != nil {
		return "", fmt.Errorf("narrow name: %w", err)
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("name %q is not UTF-8: %w", b, protocol.ErrMalformed)
	}
	return string(b), nil
}

// ApplyBounds records the centre of the viewport as the world offset unless
// the viewport is smaller than the world in both axes.
func (t *Tracker) ApplyBounds(r *protocol.Reader) error {
	b, err := protocol.DecodeBounds(r)
	if err != nil {
		return err
	}
	if b.Right-b.Left < MinBoundsSpan && b.Bottom-b.Top < MinBoundsSpan {
		return nil
	}
	t.offsetX = (b.Left + b.Right) / 2
	t.offsetY = (b.Top + b.Bottom) / 2
	return nil
}
