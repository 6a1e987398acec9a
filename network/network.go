package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cellswarm/game"
	"cellswarm/protocol"
	"cellswarm/session"
)

// Controller is what the control channel drives. *session.Pool satisfies it.
type Controller interface {
	Start(ctx context.Context, hs session.Handshake) error
	Broadcast(a session.Action) int
	Targeting() *game.Targeting
}

// ControlServer accepts operator connections and applies their commands.
// Sessions started from a command live as long as the server's context, not
// the connection that started them.
type ControlServer struct {
	ctx context.Context
	ctl Controller
	log *zap.Logger

	PongWait     time.Duration
	PingInterval time.Duration

	upgrader websocket.Upgrader
}

func NewControlServer(ctx context.Context, ctl Controller, log *zap.Logger) *ControlServer {
	if log == nil {
		log = zap.NewNop()
	}
	return &ControlServer{
		ctx:          ctx,
		ctl:          ctl,
		log:          log,
		PongWait:     60 * time.Second,
		PingInterval: 25 * time.Second,
		upgrader: websocket.Upgrader{
			// the operator page is served from the game's origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler serves the control channel on every path.
func (s *ControlServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", s)
	return mux
}

func (s *ControlServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	log := s.log.With(zap.String("remote", r.RemoteAddr))
	log.Info("operator connected")

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(s.PongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(s.PongWait))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(s.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("read", zap.Error(err))
			}
			break
		}
		// operator traffic also counts as liveness
		_ = conn.SetReadDeadline(time.Now().Add(s.PongWait))
		if err := s.Apply(msg); err != nil {
			log.Warn("control command rejected", zap.Error(err))
		}
	}
	log.Info("operator disconnected")
}

// Apply decodes one control message and carries it out. Unknown opcodes are
// ignored.
func (s *ControlServer) Apply(msg []byte) error {
	cmd, err := protocol.DecodeControl(msg)
	if errors.Is(err, protocol.ErrUnknownControl) {
		s.log.Debug("ignoring control message", zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}

	switch c := cmd.(type) {
	case protocol.StartPool:
		hs := session.NewHandshake(c.Address, c.ProtocolVersion, c.ClientVersion)
		if err := s.ctl.Start(s.ctx, hs); err != nil {
			return fmt.Errorf("start %s: %w", c.Address, err)
		}
	case protocol.SplitAll:
		n := s.ctl.Broadcast(session.ActionSplit)
		s.log.Debug("split", zap.Int("sessions", n))
	case protocol.EjectAll:
		n := s.ctl.Broadcast(session.ActionEject)
		s.log.Debug("eject", zap.Int("sessions", n))
	case protocol.FollowMouse:
		s.ctl.Targeting().SetFollowMouse(c.Enabled)
	case protocol.MousePosition:
		s.ctl.Targeting().SetMouse(c.X, c.Y)
	}
	return nil
}
