package protocol

import (
	"errors"
	"fmt"
)

// commands coming in from the operator on the control channel.

type StartPool struct {
	Address         string
	ProtocolVersion uint32
	ClientVersion   uint32
}

type SplitAll struct{}

type EjectAll struct{}

type FollowMouse struct {
	Enabled bool
}

type MousePosition struct {
	X, Y int32
}

var ErrUnknownControl = errors.New("unknown control opcode")

// DecodeControl returns one of the command structs above. An unknown opcode
// yields ErrUnknownControl, which callers are expected to ignore.
func DecodeControl(b []byte) (any, error) {
	r := NewReader(b)
	op, err := r.U8()
	if err != nil {
		return nil, err
	}
	switch op {
	case CtlStart:
		var c StartPool
		if c.Address, err = r.String(); err != nil {
			return nil, fmt.Errorf("start: address: %w", err)
		}
		if c.ProtocolVersion, err = r.U32(); err != nil {
			return nil, fmt.Errorf("start: protocol version: %w", err)
		}
		if c.ClientVersion, err = r.U32(); err != nil {
			return nil, fmt.Errorf("start: client version: %w", err)
		}
		return c, nil
	case CtlSplit:
		return SplitAll{}, nil
	case CtlEject:
		return EjectAll{}, nil
	case CtlFollowOn:
		return FollowMouse{Enabled: true}, nil
	case CtlFollowOff:
		return FollowMouse{Enabled: false}, nil
	case CtlMouse:
		var c MousePosition
		if c.X, err = r.I32(); err != nil {
			return nil, fmt.Errorf("mouse: %w", err)
		}
		if c.Y, err = r.I32(); err != nil {
			return nil, fmt.Errorf("mouse: %w", err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w %d", ErrUnknownControl, op)
}
