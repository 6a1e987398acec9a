package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"cellswarm/cipher"
	"cellswarm/game"
	"cellswarm/inflate"
	"cellswarm/metrics"
	"cellswarm/protocol"
)

const (
	TickInterval       = 40 * time.Millisecond
	SpawnRetryInterval = 2 * time.Second
)

var (
	ErrClosed       = errors.New("session closed")
	ErrCipherDesync = errors.New("cipher desynchronized")
)

type State int32

const (
	StateConnecting State = iota
	StateHandshaking
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Options tune a session. Zero values select the defaults.
type Options struct {
	TickInterval       time.Duration
	SpawnRetryInterval time.Duration
	// TrackOwnCells records the cell id carried by the tick-start message as
	// an owned cell. Off by default: the server dialect modeled here does not
	// document that id.
	TrackOwnCells bool
	Decompressor  inflate.Decompressor
	Rand          game.Rand
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = TickInterval
	}
	if o.SpawnRetryInterval <= 0 {
		o.SpawnRetryInterval = SpawnRetryInterval
	}
	if o.Decompressor == nil {
		o.Decompressor = inflate.Flate{}
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Session drives one game connection. All protocol state is owned by the
// goroutine running Run; other goroutines interact through Do and State.
type Session struct {
	ID   int
	Name string

	hs        Handshake
	conn      Transport
	targeting *game.Targeting
	opts      Options
	log       *zap.Logger

	cipher  *cipher.State
	tracker *game.Tracker
	policy  game.Policy

	state   atomic.Int32
	actions chan Action
	inbound chan []byte
	done    chan struct{}
	once    sync.Once

	tick  *time.Ticker
	spawn *time.Ticker
}

func New(id int, name string, conn Transport, hs Handshake, targeting *game.Targeting, opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{
		ID:        id,
		Name:      name,
		hs:        hs,
		conn:      conn,
		targeting: targeting,
		opts:      opts,
		log:       opts.Logger.With(zap.Int("session_id", id), zap.String("name", name)),
		cipher:    cipher.New(hs.ClientVersion),
		tracker:   game.NewTracker(),
		policy:    game.Policy{Name: name},
		actions:   make(chan Action, 8),
		inbound:   make(chan []byte, 64),
		done:      make(chan struct{}),
	}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Done is closed once the session has shut down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Do queues an operator action without blocking. It reports false when the
// session is closed or its queue is full.
func (s *Session) Do(a Action) bool {
	if s.State() == StateClosed {
		return false
	}
	select {
	case s.actions <- a:
		return true
	default:
		return false
	}
}

// Run announces the protocol and client versions and then serves the
// connection until ctx is cancelled or the transport fails. It always closes
// the transport and stops the tick and spawn timers before returning.
func (s *Session) Run(ctx context.Context) error {
	defer s.shutdown()

	if err := s.send(protocol.ProtocolVersion(s.hs.ProtocolVersion)); err != nil {
		return fmt.Errorf("announce protocol version: %w", err)
	}
	if err := s.send(protocol.ClientVersion(s.hs.ClientVersion)); err != nil {
		return fmt.Errorf("announce client version: %w", err)
	}
	s.setState(StateHandshaking)
	s.log.Debug("handshaking")

	readErr := make(chan error, 1)
	go s.readLoop(readErr)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			s.opts.Metrics.Error(metrics.KindTransport)
			return fmt.Errorf("receive: %w", err)
		case msg := <-s.inbound:
			if err := s.handle(msg); err != nil {
				return err
			}
		case <-tickerC(s.tick):
			if err := s.move(); err != nil {
				return err
			}
		case <-tickerC(s.spawn):
			if err := s.send(protocol.Spawn(s.Name)); err != nil {
				return fmt.Errorf("spawn: %w", err)
			}
		case a := <-s.actions:
			if err := s.send(a.message()); err != nil {
				return fmt.Errorf("%s: %w", a, err)
			}
		}
	}
}

// tickerC returns nil for a timer that has not been started, which blocks
// forever in a select.
func tickerC(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func (s *Session) readLoop(errc chan<- error) {
	for {
		msg, err := s.conn.Receive()
		if err != nil {
			errc <- err
			return
		}
		select {
		case s.inbound <- msg:
		case <-s.done:
			return
		}
	}
}

func (s *Session) shutdown() {
	s.once.Do(func() {
		s.setState(StateClosed)
		if s.tick != nil {
			s.tick.Stop()
		}
		if s.spawn != nil {
			s.spawn.Stop()
		}
		close(s.done)
		if err := s.conn.Close(); err != nil {
			s.log.Debug("close transport", zap.Error(err))
		}
		s.log.Info("session closed")
	})
}

func (s *Session) send(b []byte) error {
	if s.State() == StateClosed {
		return ErrClosed
	}
	s.cipher.Encrypt(b)
	return s.conn.Send(b)
}

// handle decrypts and dispatches one inbound message. A parse failure on an
// encrypted stream means the keys no longer line up with the server's, which
// only a new connection can fix.
func (s *Session) handle(msg []byte) error {
	keyed := s.cipher.Keyed()
	s.cipher.Decrypt(msg)

	err := s.dispatch(msg)
	switch {
	case err == nil:
		return nil
	case protocol.IsParseError(err) && keyed:
		s.opts.Metrics.Error(metrics.KindDesync)
		s.log.Error("decrypted message failed to parse", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrCipherDesync, err)
	case protocol.IsParseError(err):
		s.opts.Metrics.Error(metrics.KindParse)
		s.log.Warn("discarding malformed message", zap.Error(err))
		return nil
	}
	return err
}

func (s *Session) dispatch(msg []byte) error {
	r := protocol.NewReader(msg)
	op, err := r.U8()
	if err != nil {
		return err
	}
	s.opts.Metrics.Received(op)

	switch op {
	case protocol.OpTickStart:
		return s.startTicking(r)
	case protocol.OpKeyExchange:
		kx, err := protocol.DecodeKeyExchange(r)
		if err != nil {
			return err
		}
		s.cipher.Install(kx.DecryptionKey, s.hs.Host, kx.Salt)
		s.log.Debug("keys installed", zap.Uint32("decryption_key", kx.DecryptionKey))
	case protocol.OpSpawnAllowed:
		if s.spawn == nil {
			s.spawn = time.NewTicker(s.opts.SpawnRetryInterval)
		}
	case protocol.OpCompressed:
		env, err := protocol.DecodeEnvelope(r)
		if err != nil {
			return err
		}
		inner, err := s.opts.Decompressor.Decompress(env.Payload, int(env.Size))
		if err != nil {
			s.opts.Metrics.Error(metrics.KindDecompress)
			s.log.Warn("discarding compressed message", zap.Error(err))
			return nil
		}
		return s.dispatchInner(inner)
	}
	return nil
}

func (s *Session) dispatchInner(msg []byte) error {
	r := protocol.NewReader(msg)
	op, err := r.U8()
	if err != nil {
		return err
	}
	switch op {
	case protocol.OpViewportDelta:
		return s.tracker.ApplyUpdate(r)
	case protocol.OpWorldBounds:
		return s.tracker.ApplyBounds(r)
	}
	return nil
}

func (s *Session) startTicking(r *protocol.Reader) error {
	if s.opts.TrackOwnCells && r.Remaining() >= 4 {
		id, err := r.U32()
		if err != nil {
			return err
		}
		s.tracker.AddOwned(id)
	}
	if s.tick == nil {
		s.tick = time.NewTicker(s.opts.TickInterval)
	}
	if s.State() != StateActive {
		s.setState(StateActive)
		s.log.Info("session active")
	}
	return nil
}

func (s *Session) move() error {
	d := s.policy.Decide(s.tracker, s.targeting.Load(), s.opts.Rand)
	if !d.Move {
		return nil
	}
	x, y := d.Wire()
	if err := s.send(protocol.Move(x, y, s.cipher.DecryptionKey())); err != nil {
		return fmt.Errorf("move: %w", err)
	}
	s.opts.Metrics.Move(d.Reason.String())
	return nil
}
