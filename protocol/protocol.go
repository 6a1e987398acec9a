package protocol

// Opcodes sent by the client to the game server.
const (
	OpSpawn           uint8 = 0
	OpMove            uint8 = 16
	OpSplit           uint8 = 17
	OpEject           uint8 = 21
	OpProtocolVersion uint8 = 254
	OpClientVersion   uint8 = 255
)

// Opcodes received from the game server.
const (
	OpTickStart     uint8 = 32
	OpKeyExchange   uint8 = 241
	OpSpawnAllowed  uint8 = 242
	OpCompressed    uint8 = 255
	OpViewportDelta uint8 = 16 // inside a compressed envelope
	OpWorldBounds   uint8 = 64 // inside a compressed envelope
)

// Control channel opcodes (operator -> pool).
const (
	CtlStart     uint8 = 0
	CtlSplit     uint8 = 1
	CtlEject     uint8 = 2
	CtlFollowOn  uint8 = 3
	CtlFollowOff uint8 = 4
	CtlMouse     uint8 = 10
)

// Fixed sizes of outbound messages.
const (
	MoveMessageSize    = 13
	VersionMessageSize = 5
)
