package game

import "math"

// Flags is the decoded classification of an entity record.
//
// Record flag byte:
//
//	0x01 virus
//	0x02 three reserved bytes follow
//	0x04 skin string follows
//	0x08 name string follows
//	0x80 an extended flag byte follows
//
// Extended flag byte:
//
//	0x01 pellet
//	0x04 four reserved bytes follow
type Flags struct {
	Virus    bool
	Reserved bool
	Skin     bool
	Named    bool
	Extended bool

	Pellet         bool
	ExtendedPadded bool
}

const (
	flagVirus    = 0x01
	flagReserved = 0x02
	flagSkin     = 0x04
	flagName     = 0x08
	flagExtended = 0x80

	extPellet = 0x01
	extPadded = 0x04
)

func DecodeFlags(flags, extended uint8) Flags {
	return Flags{
		Virus:          flags&flagVirus != 0,
		Reserved:       flags&flagReserved != 0,
		Skin:           flags&flagSkin != 0,
		Named:          flags&flagName != 0,
		Extended:       flags&flagExtended != 0,
		Pellet:         extended&extPellet != 0,
		ExtendedPadded: extended&extPadded != 0,
	}
}

// Entity is one object in a session's viewport.
type Entity struct {
	ID       uint32
	X, Y     int32
	Size     uint16
	IsVirus  bool
	IsPellet bool
	Name     string
}

func (e Entity) Radius() float64 {
	return math.Sqrt(float64(e.Size) * RadiusSizeDivisor / math.Pi)
}

func (e Entity) DistanceTo(x, y float64) float64 {
	return math.Hypot(float64(e.X)-x, float64(e.Y)-y)
}
