package session

import (
	"regexp"
	"strings"

	"cellswarm/protocol"
)

// Transport is one session's connection to the game server. Receive blocks
// until a whole binary message arrives; Close unblocks it.
type Transport interface {
	Send([]byte) error
	Receive() ([]byte, error)
	Close() error
}

// Handshake carries the parameters fixed when the pool starts.
type Handshake struct {
	Address         string
	Host            string
	ProtocolVersion uint32
	ClientVersion   uint32
}

// NewHandshake fills Host from the address.
func NewHandshake(address string, protocolVersion, clientVersion uint32) Handshake {
	return Handshake{
		Address:         address,
		Host:            HostFromAddress(address),
		ProtocolVersion: protocolVersion,
		ClientVersion:   clientVersion,
	}
}

var partyParam = regexp.MustCompile(`\?party_id=(\w+)`)

// HostFromAddress strips the scheme, the default TLS port and a party query
// from a server address. The result seeds the encryption key.
func HostFromAddress(address string) string {
	host := strings.Replace(address, "wss://", "", 1)
	host = strings.Replace(host, ":443", "", 1)
	if loc := partyParam.FindStringIndex(host); loc != nil {
		host = host[:loc[0]] + host[loc[1]:]
	}
	return host
}

// Action is an operator command broadcast to every session.
type Action uint8

const (
	ActionSplit Action = iota + 1
	ActionEject
)

func (a Action) message() []byte {
	switch a {
	case ActionSplit:
		return protocol.Split()
	case ActionEject:
		return protocol.Eject()
	}
	return nil
}

func (a Action) String() string {
	switch a {
	case ActionSplit:
		return "split"
	case ActionEject:
		return "eject"
	}
	return "unknown"
}
