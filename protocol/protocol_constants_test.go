package protocol

import "testing"

func TestOutboundOpcodes(t *testing.T) {
	if OpSpawn != 0 {
		t.Fatalf("OpSpawn = %d, want %d", OpSpawn, 0)
	}
	if OpMove != 16 {
		t.Fatalf("OpMove = %d, want %d", OpMove, 16)
	}
	if OpProtocolVersion != 254 {
		t.Fatalf("OpProtocolVersion = %d, want %d", OpProtocolVersion, 254)
	}
	if OpClientVersion != 255 {
		t.Fatalf("OpClientVersion = %d, want %d", OpClientVersion, 255)
	}
}

func TestInboundOpcodes(t *testing.T) {
	if OpTickStart != 32 {
		t.Fatalf("OpTickStart = %d, want %d", OpTickStart, 32)
	}
	if OpKeyExchange != 241 {
		t.Fatalf("OpKeyExchange = %d, want %d", OpKeyExchange, 241)
	}
	if OpSpawnAllowed != 242 {
		t.Fatalf("OpSpawnAllowed = %d, want %d", OpSpawnAllowed, 242)
	}
	if OpCompressed != 255 {
		t.Fatalf("OpCompressed = %d, want %d", OpCompressed, 255)
	}
}

func TestMessageSizes(t *testing.T) {
	if n := len(Move(1, 2, 3)); n != MoveMessageSize {
		t.Fatalf("len(Move) = %d, want %d", n, MoveMessageSize)
	}
	if n := len(ProtocolVersion(22)); n != VersionMessageSize {
		t.Fatalf("len(ProtocolVersion) = %d, want %d", n, VersionMessageSize)
	}
	if n := len(Spawn("FreeBots#1")); n != 12 {
		t.Fatalf("len(Spawn) = %d, want %d", n, 12)
	}
}
