package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/eapache/queue"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"cellswarm/game"
)

var ErrAlreadyStarted = errors.New("pool already started")

// Dialer opens a transport to address through proxy. A nil proxy dials
// directly.
type Dialer interface {
	Dial(ctx context.Context, address string, proxy *url.URL) (Transport, error)
}

// Info is returned by Sessions for status reporting.
type Info struct {
	ID    int
	Name  string
	State State
}

type PoolConfig struct {
	Dialer     Dialer
	Proxies    []*url.URL
	Targeting  *game.Targeting
	NamePrefix string
	// Stagger is the pause between two session launches.
	Stagger time.Duration
	Session Options
}

// Pool launches one session per proxy and fans operator actions out to them.
// Sessions are added as they connect and removed when they close.
type Pool struct {
	cfg PoolConfig
	log *zap.Logger

	mu       sync.RWMutex
	sessions map[int]*Session
	started  bool
	hs       Handshake
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewPool(cfg PoolConfig) *Pool {
	if cfg.Targeting == nil {
		cfg.Targeting = game.NewTargeting()
	}
	if cfg.NamePrefix == "" {
		cfg.NamePrefix = "FreeBots"
	}
	if cfg.Stagger <= 0 {
		cfg.Stagger = 300 * time.Millisecond
	}
	cfg.Session = cfg.Session.withDefaults()
	return &Pool{
		cfg:      cfg,
		log:      cfg.Session.Logger,
		sessions: make(map[int]*Session),
	}
}

func (p *Pool) Targeting() *game.Targeting { return p.cfg.Targeting }

// Start begins launching sessions against hs.Address, one per proxy, spaced
// by the configured stagger. It returns immediately; a pool starts once.
func (p *Pool) Start(ctx context.Context, hs Handshake) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true
	p.hs = hs

	pending := queue.New()
	for _, proxy := range p.cfg.Proxies {
		pending.Add(proxy)
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.launch(ctx, pending)

	p.log.Info("pool starting",
		zap.String("address", hs.Address),
		zap.String("host", hs.Host),
		zap.Int("sessions", pending.Length()),
	)
	return nil
}

func (p *Pool) launch(ctx context.Context, pending *queue.Queue) {
	defer p.wg.Done()
	limiter := rate.NewLimiter(rate.Every(p.cfg.Stagger), 1)
	for id := 0; pending.Length() > 0; id++ {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		proxy, _ := pending.Remove().(*url.URL)
		p.wg.Add(1)
		go p.runSession(ctx, id, proxy)
	}
}

func (p *Pool) runSession(ctx context.Context, id int, proxy *url.URL) {
	defer p.wg.Done()
	name := fmt.Sprintf("%s#%d", p.cfg.NamePrefix, id)
	log := p.log.With(zap.Int("session_id", id), zap.Stringer("proxy", proxyLabel{proxy}))

	conn, err := p.cfg.Dialer.Dial(ctx, p.hs.Address, proxy)
	if err != nil {
		p.cfg.Session.Metrics.DialFailed()
		log.Warn("dial failed", zap.Error(err))
		return
	}
	log.Info("connected", zap.String("address", p.hs.Address))

	s := New(id, name, conn, p.hs, p.cfg.Targeting, p.cfg.Session)
	p.mu.Lock()
	p.sessions[id] = s
	p.mu.Unlock()
	p.cfg.Session.Metrics.SessionOpened()

	defer func() {
		p.mu.Lock()
		delete(p.sessions, id)
		p.mu.Unlock()
		p.cfg.Session.Metrics.SessionClosed()
	}()

	if err := s.Run(ctx); err != nil {
		log.Error("session ended", zap.Error(err))
	}
}

// Broadcast queues a on every live session and returns how many accepted it.
func (p *Pool) Broadcast(a Action) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, s := range p.sessions {
		if s.Do(a) {
			n++
		}
	}
	return n
}

// Sessions lists the live sessions ordered by id.
func (p *Pool) Sessions() []Info {
	p.mu.RLock()
	out := make([]Info, 0, len(p.sessions))
	for id, s := range p.sessions {
		out = append(out, Info{ID: id, Name: s.Name, State: s.State()})
	}
	p.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Close stops launching, closes every session and waits for them to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

type proxyLabel struct{ u *url.URL }

func (l proxyLabel) String() string {
	if l.u == nil {
		return "direct"
	}
	return l.u.Host
}
