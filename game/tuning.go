package game

const (
	ThreatSizeRatio   = 1.15    // a player this many times our size is a threat
	DangerMargin      = 420.0   // added to a threat's radius before we flee
	FleeDistance      = 14142.0 // flee target distance, about the map diagonal
	WanderRange       = 1337    // exclusive bound of each random wander offset
	MinBoundsSpan     = 14000.0 // smaller bounds are a zoomed camera, not the world
	RadiusSizeDivisor = 100.0
)
