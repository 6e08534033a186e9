package playback

import (
	"errors"
	"sync"
	"time"

	"telecast/models"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("playback session not found")

// Directive is one queued instruction for the device to apply. The device
// polls its session's directives instead of holding a connection open.
type Directive struct {
	Action string `json:"action"` // "swap", "prepare", "resume"
	URI    string `json:"uri,omitempty"`
}

// Session is one device playback session: a queue, the resilience controller
// watching it, and the directive/notice outbox the device drains.
type Session struct {
	ID        string
	Queue     models.PlaybackQueue
	CreatedAt time.Time

	controller *Controller
	outbox     *outbox
	player     *remotePlayer
}

// remotePlayer satisfies Player by recording directives for the device.
type remotePlayer struct {
	outbox *outbox

	mu    sync.Mutex
	index int
}

func (p *remotePlayer) CurrentIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}

func (p *remotePlayer) setIndex(i int) {
	p.mu.Lock()
	p.index = i
	p.mu.Unlock()
}

func (p *remotePlayer) SwapCurrentURI(uri string) {
	p.outbox.directive(Directive{Action: "swap", URI: uri})
}

func (p *remotePlayer) Prepare() {
	p.outbox.directive(Directive{Action: "prepare"})
}

func (p *remotePlayer) Resume() {
	p.outbox.directive(Directive{Action: "resume"})
}

// outbox buffers directives and notices until the device polls.
type outbox struct {
	mu         sync.Mutex
	directives []Directive
	notices    []string
}

func (o *outbox) directive(d Directive) {
	o.mu.Lock()
	o.directives = append(o.directives, d)
	o.mu.Unlock()
}

func (o *outbox) Notify(msg string) {
	o.mu.Lock()
	o.notices = append(o.notices, msg)
	o.mu.Unlock()
}

func (o *outbox) drain() ([]Directive, []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	directives, notices := o.directives, o.notices
	o.directives, o.notices = nil, nil
	return directives, notices
}

// SessionManager owns the live playback sessions.
type SessionManager struct {
	reconnectMax   int
	reconnectDelay time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionManager(reconnectMax int, reconnectDelay time.Duration) *SessionManager {
	return &SessionManager{
		reconnectMax:   reconnectMax,
		reconnectDelay: reconnectDelay,
		sessions:       make(map[string]*Session),
	}
}

// Open creates a session for a built queue and the device's reported
// capabilities.
func (m *SessionManager) Open(queue models.PlaybackQueue, caps DeviceCapabilities) *Session {
	ob := &outbox{}
	player := &remotePlayer{outbox: ob, index: queue.StartIndex}
	s := &Session{
		ID:        uuid.NewString(),
		Queue:     queue,
		CreatedAt: time.Now(),
		outbox:    ob,
		player:    player,
	}
	s.controller = NewController(player, ob, caps, queue, m.reconnectMax, m.reconnectDelay)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

func (m *SessionManager) get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// ReportError feeds a device error event to the session's controller.
func (m *SessionManager) ReportError(id string, perr PlayerError) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	s.controller.OnPlayerError(perr)
	return nil
}

// ReportReady records a READY transition at the given queue index.
func (m *SessionManager) ReportReady(id string, index int) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	s.player.setIndex(index)
	s.controller.OnReady()
	return nil
}

// ReportTransition records a queue advance to a new index.
func (m *SessionManager) ReportTransition(id string, index int) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	s.player.setIndex(clampIndex(index, len(s.Queue.Items)))
	s.controller.OnMediaTransition(index)
	return nil
}

// Directives drains the pending directives and notices for a session.
func (m *SessionManager) Directives(id string) ([]Directive, []string, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, nil, err
	}
	directives, notices := s.outbox.drain()
	return directives, notices, nil
}

// Close ends a session and drops its pending work.
func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.controller.Close()
	return nil
}
