package game

import "sync/atomic"

// TargetingSnapshot is an immutable view of the operator's targeting input.
type TargetingSnapshot struct {
	MouseX, MouseY int32
	FollowMouse    bool
}

// Targeting is shared by every session of a pool. Writers replace the whole
// snapshot so a reader never sees a mouse position from one update paired with
// the mode from another.
type Targeting struct {
	v atomic.Pointer[TargetingSnapshot]
}

func NewTargeting() *Targeting {
	t := &Targeting{}
	t.v.Store(&TargetingSnapshot{})
	return t
}

func (t *Targeting) Load() TargetingSnapshot {
	return *t.v.Load()
}

func (t *Targeting) SetMouse(x, y int32) {
	t.update(func(s *TargetingSnapshot) {
		s.MouseX, s.MouseY = x, y
	})
}

func (t *Targeting) SetFollowMouse(on bool) {
	t.update(func(s *TargetingSnapshot) {
		s.FollowMouse = on
	})
}

func (t *Targeting) update(fn func(*TargetingSnapshot)) {
	for {
		old := t.v.Load()
		next := *old
		fn(&next)
		if t.v.CompareAndSwap(old, &next) {
			return
		}
	}
}
