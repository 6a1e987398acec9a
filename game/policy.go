package game

import "math"

// Rand is the randomness the wander step needs; *math/rand/v2.Rand has it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type Reason uint8

const (
	ReasonIdle Reason = iota
	ReasonFollow
	ReasonFlee
	ReasonPellet
	ReasonWander
)

func (r Reason) String() string {
	switch r {
	case ReasonFollow:
		return "follow"
	case ReasonFlee:
		return "flee"
	case ReasonPellet:
		return "pellet"
	case ReasonWander:
		return "wander"
	}
	return "idle"
}

// Decision is the outcome of one tick. Move is false when no command should
// be sent.
type Decision struct {
	X, Y   float64
	Move   bool
	Reason Reason
}

// Wire converts the target to protocol integers, truncating toward zero and
// wrapping like a 32-bit integer store.
func (d Decision) Wire() (int32, int32) {
	return wireInt(d.X), wireInt(d.Y)
}

func wireInt(f float64) int32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(int64(math.Mod(math.Trunc(f), 1<<32)))
}

// Policy picks a movement target for one session. Name is the session's own
// display name; entities carrying it are never treated as threats.
type Policy struct {
	Name string
}

// Decide picks this tick's target: the mouse when following, away from a
// nearby bigger player, toward the closest pellet, or a random wander step.
// A bigger player outside its danger radius with no pellet in view yields an
// idle decision rather than a wander.
func (p Policy) Decide(t *Tracker, tg TargetingSnapshot, rng Rand) Decision {
	botX, botY, botSize := t.Self()

	if tg.FollowMouse {
		offX, offY := t.Offset()
		return Decision{
			X:      float64(tg.MouseX) + offX,
			Y:      float64(tg.MouseY) + offY,
			Move:   true,
			Reason: ReasonFollow,
		}
	}

	threat, threatDist, hasThreat := closest(t, botX, botY, func(e Entity) bool {
		return !e.IsVirus && !e.IsPellet && float64(e.Size) > botSize*ThreatSizeRatio && e.Name != p.Name
	})
	if hasThreat && threatDist < threat.Radius()+DangerMargin {
		angle := math.Atan2(float64(threat.Y)-botY, float64(threat.X)-botX) + math.Pi
		angle = math.Mod(angle, 2*math.Pi)
		return Decision{
			X:      botX + FleeDistance*math.Cos(angle),
			Y:      botY + FleeDistance*math.Sin(angle),
			Move:   true,
			Reason: ReasonFlee,
		}
	}

	pellet, _, hasPellet := closest(t, botX, botY, func(e Entity) bool {
		return e.IsPellet && !e.IsVirus
	})
	if hasPellet {
		return Decision{X: float64(pellet.X), Y: float64(pellet.Y), Move: true, Reason: ReasonPellet}
	}
	if hasThreat {
		// a threat outside its danger radius with nothing to eat: hold course
		return Decision{Reason: ReasonIdle}
	}

	roll := rng.Float64()
	dx := float64(rng.IntN(WanderRange))
	dy := float64(rng.IntN(WanderRange))
	switch {
	case roll > 0.5:
		return Decision{X: botX + dx, Y: botY - dy, Move: true, Reason: ReasonWander}
	case roll < 0.5:
		return Decision{X: botX - dx, Y: botY + dy, Move: true, Reason: ReasonWander}
	}
	return Decision{Reason: ReasonIdle}
}

// closest returns the matching entity nearest to (x, y). Equal distances go
// to the lower id so the choice does not depend on map order.
func closest(t *Tracker, x, y float64, match func(Entity) bool) (Entity, float64, bool) {
	var (
		best  Entity
		bestD = math.Inf(1)
		found bool
	)
	for _, e := range t.entities {
		if !match(e) {
			continue
		}
		d := e.DistanceTo(x, y)
		if d < bestD || (d == bestD && e.ID < best.ID) {
			best, bestD, found = e, d, true
		}
	}
	return best, bestD, found
}
