// Package conversation runs the spoken dialogue: waiting for the wake word,
// answering questions, and falling back to idle after silence.
//
// All state lives in Machine and every transition happens under its mutex,
// whether triggered by an utterance or by a timer firing. Timers carry the
// turn they were armed for; a timer from an earlier turn is ignored.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/teslashibe/nlweb-voice/pkg/router"
	"github.com/teslashibe/nlweb-voice/pkg/speech"
)

// State is the conversation state.
type State int

const (
	// StateIdle waits for the wake word.
	StateIdle State = iota
	// StateActive answers questions until exit or silence.
	StateActive
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Transition describes one state change.
type Transition struct {
	From   State     `json:"from"`
	To     State     `json:"to"`
	Turn   uint64    `json:"turn"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Exchange is one answered utterance.
type Exchange struct {
	Turn      uint64        `json:"turn"`
	Utterance string        `json:"utterance"`
	Intent    router.Intent `json:"intent"`
	Reply     string        `json:"reply"`
	Latency   time.Duration `json:"latency"`
	At        time.Time     `json:"at"`
}

// Status is a point-in-time view of the machine.
type Status struct {
	SessionID    string `json:"session_id"`
	State        State  `json:"state"`
	Turn         uint64 `json:"turn"`
	TimerPending bool   `json:"timer_pending"`
	Closed       bool   `json:"closed"`
}

// Responder answers an utterance. *router.Router implements it.
type Responder interface {
	Route(ctx context.Context, text string) router.Reply
}

// pendingTimer is the single armed timer and the turn it belongs to.
type pendingTimer struct {
	turn  uint64
	timer *time.Timer
}

// Machine is the conversation state machine.
type Machine struct {
	config    *Config
	responder Responder
	voice     *speech.Chain
	logger    *slog.Logger
	sessionID string

	mu      sync.Mutex
	state   State
	turn    uint64
	pending *pendingTimer
	closed  bool
}

// New creates an idle machine that answers through responder and speaks
// through speaker.
func New(responder Responder, speaker speech.Speaker, opts ...Option) *Machine {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	sessionID := uuid.NewString()
	logger := cfg.Logger.With("component", "conversation", "session_id", sessionID)

	return &Machine{
		config:    cfg,
		responder: responder,
		voice:     speech.NewChain(cfg.Logger, speaker),
		logger:    logger,
		sessionID: sessionID,
		state:     StateIdle,
	}
}

// Config returns the machine configuration.
func (m *Machine) Config() *Config {
	return m.config
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status returns a snapshot for display.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		SessionID:    m.sessionID,
		State:        m.state,
		Turn:         m.turn,
		TimerPending: m.pending != nil,
		Closed:       m.closed,
	}
}

// OnUtterance feeds one recognized utterance into the machine. Knowledge
// queries run synchronously on the caller's goroutine; the request is
// detached from ctx cancellation so it finishes or times out on its own.
func (m *Machine) OnUtterance(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	speakCtx := context.WithoutCancel(ctx)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	switch {
	case m.state == StateIdle && !m.isWake(text):
		m.mu.Unlock()
		m.logger.Debug("ignoring utterance while idle", "text", text)

	case m.state == StateIdle:
		m.cancelTimerLocked()
		m.turn++
		turn := m.turn
		tr := m.transitionLocked(StateActive, "activation")
		m.mu.Unlock()

		m.notify(tr)
		m.logger.Info("wake word detected", "turn", turn)
		m.voice.Say(speakCtx, m.config.Acknowledgement)
		m.armIfCurrent(turn, m.config.ResponseTimeout)

	case m.isExit(text):
		m.cancelTimerLocked()
		m.turn++
		tr := m.transitionLocked(StateIdle, "exit")
		m.mu.Unlock()

		m.notify(tr)
		m.logger.Info("conversation ended by user", "text", text)
		m.voice.Say(speakCtx, m.config.Farewell)

	default:
		m.cancelTimerLocked()
		m.turn++
		turn := m.turn
		m.mu.Unlock()

		started := time.Now()
		reply := m.responder.Route(speakCtx, text)
		m.logger.Info("answered", "turn", turn, "intent", reply.Intent, "latency", time.Since(started))
		if m.config.OnExchange != nil {
			m.config.OnExchange(Exchange{
				Turn:      turn,
				Utterance: text,
				Intent:    reply.Intent,
				Reply:     reply.Text,
				Latency:   time.Since(started),
				At:        time.Now(),
			})
		}

		m.voice.Say(speakCtx, reply.Text)
		m.armIfCurrent(turn, m.config.FollowUpTimeout)
	}
}

// OnTimerExpiry handles a timer armed for turn. It is a no-op unless that
// timer is still the pending one and the conversation is active.
func (m *Machine) OnTimerExpiry(turn uint64) {
	m.mu.Lock()
	if m.closed || m.state != StateActive || m.turn != turn || m.pending == nil || m.pending.turn != turn {
		m.mu.Unlock()
		m.logger.Debug("ignoring stale timer", "timer_turn", turn)
		return
	}
	m.pending = nil
	m.turn++
	tr := m.transitionLocked(StateIdle, "timeout")
	m.mu.Unlock()

	m.notify(tr)
	m.logger.Info("conversation timed out", "turn", turn)
	m.voice.Say(context.Background(), m.config.Reprompt)
}

// Shutdown stops the machine for good: the pending timer is cancelled and
// later events are ignored. It is safe to call more than once.
func (m *Machine) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.cancelTimerLocked()
	m.logger.Info("conversation shut down", "turn", m.turn, "state", m.state)
}

// armIfCurrent arms a timer for turn unless the machine moved on while the
// caller was speaking or answering.
func (m *Machine) armIfCurrent(turn uint64, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.state != StateActive || m.turn != turn {
		return
	}
	m.armLocked(turn, d)
}

// armLocked starts the single pending timer. An existing timer is a
// contract violation: callers cancel before re-arming.
func (m *Machine) armLocked(turn uint64, d time.Duration) {
	if m.pending != nil {
		m.violation("timer armed while another is pending", "pending_turn", m.pending.turn, "turn", turn)
		m.cancelTimerLocked()
	}
	m.pending = &pendingTimer{
		turn:  turn,
		timer: time.AfterFunc(d, func() { m.OnTimerExpiry(turn) }),
	}
}

func (m *Machine) cancelTimerLocked() {
	if m.pending == nil {
		return
	}
	m.pending.timer.Stop()
	m.pending = nil
}

func (m *Machine) transitionLocked(to State, reason string) Transition {
	tr := Transition{From: m.state, To: to, Turn: m.turn, Reason: reason, At: time.Now()}
	m.state = to
	return tr
}

func (m *Machine) notify(tr Transition) {
	m.logger.Debug("state transition", "from", tr.From, "to", tr.To, "reason", tr.Reason)
	if m.config.Observer != nil {
		m.config.Observer(tr)
	}
}

func (m *Machine) violation(msg string, args ...any) {
	if m.config.StrictInvariants {
		panic(fmt.Sprintf("conversation: %s %v", msg, args))
	}
	m.logger.Error(msg, args...)
}

// isWake reports whether text contains the wake word.
func (m *Machine) isWake(text string) bool {
	wake := strings.ToLower(strings.TrimSpace(m.config.WakeWord))
	return wake != "" && strings.Contains(strings.ToLower(text), wake)
}

// isExit reports whether text contains an exit phrase as whole words.
func (m *Machine) isExit(text string) bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	normalized := " " + strings.Join(words, " ") + " "
	for _, phrase := range m.config.ExitPhrases {
		p := strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
		if p != "" && strings.Contains(normalized, " "+p+" ") {
			return true
		}
	}
	return false
}
