package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"chattersphere/internal/broadcast"
	"chattersphere/internal/domain"
)

const (
	DefaultTypingTimeout = 2 * time.Second
	reloadTimeout        = 5 * time.Second
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrSessionClosed  = errors.New("session closed")
	ErrNotStarted     = errors.New("session not started")
	ErrAlreadyStarted = errors.New("session already started")
)

type State int

const (
	StateIdle State = iota
	StateLoading
	StateLive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Options configura una Session. Store es obligatorio; el resto es opcional.
type Options struct {
	Store         MessageStore
	Broadcaster   broadcast.Broadcaster
	Topic         string
	PollInterval  time.Duration
	TypingTimeout time.Duration
	// Simulator nil desactiva las respuestas sinteticas.
	Simulator CounterpartSimulator
	// CounterpartOnline nil se toma como conectado.
	CounterpartOnline func(id string) bool
	Logger            *zap.Logger
	// OnUpdate corre en el loop de la sesion: no debe llamar a Send ni a Start.
	OnUpdate func(Snapshot)
}

// Snapshot es una copia del estado visible de la sesion.
type Snapshot struct {
	State    State
	Messages []domain.Message
	Typing   bool
}

// Session mantiene la vista local de la conversacion entre selfID y counterpartID.
// Refrescos, eventos del broadcaster y respuestas sinteticas se aplican en un unico
// goroutine (el loop), nunca en paralelo.
type Session struct {
	selfID        string
	counterpartID string
	key           string
	opts          Options
	logger        *zap.Logger

	ops       chan func()
	reloadReq chan struct{}
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu       sync.RWMutex
	state    State
	messages []domain.Message
	pending  []domain.Message
	typing   bool

	// solo se tocan desde el loop
	ticker         *time.Ticker
	unsubscribe    func()
	typingTimer    *time.Timer
	typingGen      int
	nextTempID     int64
	deferredReload bool
}

func NewSession(selfID, counterpartID string, opts Options) *Session {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.TypingTimeout <= 0 {
		opts.TypingTimeout = DefaultTypingTimeout
	}
	if opts.Topic == "" {
		opts.Topic = broadcast.DefaultTopic
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		selfID:        selfID,
		counterpartID: counterpartID,
		key:           domain.ConversationKey(selfID, counterpartID),
		opts:          opts,
		logger:        logger.With(zap.String("conversation", domain.ConversationKey(selfID, counterpartID))),
		ops:           make(chan func(), 16),
		reloadReq:     make(chan struct{}, 1),
		done:          make(chan struct{}),
		ctx:           ctx,
		cancel:        cancel,
		state:         StateIdle,
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

func (s *Session) Key() string {
	return s.key
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Typing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typing
}

// Messages devuelve el historial confirmado seguido de los envios optimistas en curso.
func (s *Session) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messagesLocked()
}

func (s *Session) messagesLocked() []domain.Message {
	out := make([]domain.Message, 0, len(s.messages)+len(s.pending))
	out = append(out, s.messages...)
	return append(out, s.pending...)
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{State: s.state, Messages: s.messagesLocked(), Typing: s.typing}
}

// Start carga el historial completo, arranca el refresco periodico y se suscribe
// a los eventos de entrega. Si la carga falla la sesion vuelve a Idle.
func (s *Session) Start(ctx context.Context) error {
	if s.opts.Store == nil {
		return errors.New("session store not configured")
	}
	s.mu.Lock()
	switch s.state {
	case StateIdle:
	case StateClosed:
		s.mu.Unlock()
		return ErrSessionClosed
	default:
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateLoading
	s.mu.Unlock()

	unsubscribe := func() {}
	if s.opts.Broadcaster != nil {
		var err error
		unsubscribe, err = s.opts.Broadcaster.Subscribe(ctx, s.opts.Topic, s.handleEvent)
		if err != nil {
			s.setState(StateIdle)
			return err
		}
	}

	msgs, err := s.opts.Store.ListBetween(ctx, s.selfID, s.counterpartID)
	if err != nil {
		unsubscribe()
		s.setState(StateIdle)
		return err
	}

	err = s.call(func() {
		s.mu.Lock()
		s.messages = sortedCopy(msgs)
		s.state = StateLive
		s.mu.Unlock()
		s.ticker = time.NewTicker(s.opts.PollInterval)
		s.unsubscribe = unsubscribe
		s.notify()
		// eventos recibidos mientras se cargaba el historial
		if s.deferredReload {
			s.deferredReload = false
			s.reload()
		}
	})
	if err != nil {
		unsubscribe()
		return err
	}
	return nil
}

// Send agrega el mensaje de forma optimista, lo persiste y lo publica.
// Si la persistencia falla la entrada optimista se descarta y se devuelve el error.
func (s *Session) Send(ctx context.Context, body string) (domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.Message{}, ErrEmptyMessage
	}
	switch s.State() {
	case StateLive:
	case StateClosed:
		return domain.Message{}, ErrSessionClosed
	default:
		return domain.Message{}, ErrNotStarted
	}

	var tempID int64
	err := s.call(func() {
		s.nextTempID--
		tempID = s.nextTempID
		s.mu.Lock()
		s.pending = append(s.pending, domain.Message{
			ID:         tempID,
			SenderID:   s.selfID,
			ReceiverID: s.counterpartID,
			Body:       body,
			CreatedAt:  time.Now().UTC(),
		})
		s.mu.Unlock()
		s.notify()
	})
	if err != nil {
		return domain.Message{}, err
	}

	msg, appendErr := s.opts.Store.Append(ctx, s.selfID, s.counterpartID, body)

	_ = s.call(func() {
		s.mu.Lock()
		s.pending = removeMessage(s.pending, tempID)
		if appendErr == nil {
			s.messages = insertMessage(s.messages, msg)
		}
		s.mu.Unlock()
		s.notify()
	})
	if appendErr != nil {
		return domain.Message{}, appendErr
	}

	s.publish(ctx, msg)
	s.maybeReply()
	return msg, nil
}

// SetDraft actualiza el indicador de escritura; se apaga solo tras TypingTimeout sin cambios.
func (s *Session) SetDraft(text string) {
	active := strings.TrimSpace(text) != ""
	s.post(func() {
		s.typingGen++
		gen := s.typingGen
		if s.typingTimer != nil {
			s.typingTimer.Stop()
			s.typingTimer = nil
		}
		s.setTyping(active)
		if !active {
			return
		}
		s.typingTimer = time.AfterFunc(s.opts.TypingTimeout, func() {
			s.post(func() {
				if s.typingGen == gen {
					s.setTyping(false)
				}
			})
		})
	})
}

// Close detiene el loop, los timers, la suscripcion y las respuestas pendientes.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		close(s.done)
		s.cancel()
		s.wg.Wait()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		if s.typingTimer != nil {
			s.typingTimer.Stop()
		}
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
	})
	return nil
}

func (s *Session) loop() {
	defer s.wg.Done()
	for {
		var tick <-chan time.Time
		if s.ticker != nil {
			tick = s.ticker.C
		}
		select {
		case <-s.done:
			return
		case fn := <-s.ops:
			fn()
		case <-s.reloadReq:
			if s.State() == StateLive {
				s.reload()
			} else {
				s.deferredReload = true
			}
		case <-tick:
			s.reload()
		}
	}
}

func (s *Session) post(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.ops <- fn:
		return true
	case <-s.done:
		return false
	}
}

// call ejecuta fn en el loop y espera a que termine.
func (s *Session) call(fn func()) error {
	finished := make(chan struct{})
	if !s.post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrSessionClosed
	}
	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

func (s *Session) handleEvent(payload []byte) {
	ev, err := broadcast.DecodeEvent(payload)
	if err != nil {
		s.logger.Debug("ignoring malformed delivery event", zap.Error(err))
		return
	}
	if !ev.Matches(s.selfID, s.counterpartID) {
		return
	}
	select {
	case s.reloadReq <- struct{}{}:
	default:
	}
}

// reload relee el historial y reemplaza el estado local solo si cambio.
func (s *Session) reload() {
	ctx, cancel := context.WithTimeout(s.ctx, reloadTimeout)
	defer cancel()
	msgs, err := s.opts.Store.ListBetween(ctx, s.selfID, s.counterpartID)
	if err != nil {
		if s.ctx.Err() == nil {
			s.logger.Warn("reload conversation failed", zap.Error(err))
		}
		return
	}
	msgs = sortedCopy(msgs)

	s.mu.Lock()
	changed := !sameMessages(s.messages, msgs)
	if changed {
		s.messages = msgs
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) setTyping(v bool) {
	s.mu.Lock()
	changed := s.typing != v
	s.typing = v
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

func (s *Session) notify() {
	if s.opts.OnUpdate == nil {
		return
	}
	s.opts.OnUpdate(s.Snapshot())
}

func (s *Session) publish(ctx context.Context, msg domain.Message) {
	if err := broadcast.PublishEvent(ctx, s.opts.Broadcaster, s.opts.Topic, domain.NewDeliveryEvent(msg)); err != nil {
		s.logger.Warn("publish delivery event failed", zap.Error(err), zap.Int64("message_id", msg.ID))
	}
}

func (s *Session) maybeReply() {
	if s.opts.Simulator == nil {
		return
	}
	if s.opts.CounterpartOnline != nil && !s.opts.CounterpartOnline(s.counterpartID) {
		return
	}
	delay, ok := s.opts.Simulator.Plan()
	if !ok {
		return
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-s.done:
			return
		case <-timer.C:
		}
		s.deliverReply()
	}()
}

// deliverReply persiste la respuesta como si la hubiera escrito el contraparte.
func (s *Session) deliverReply() {
	body, err := s.opts.Simulator.Compose(s.ctx, s.Messages(), s.selfID, s.counterpartID)
	if err != nil || strings.TrimSpace(body) == "" {
		if s.ctx.Err() == nil {
			s.logger.Warn("compose synthetic reply failed", zap.Error(err))
		}
		return
	}
	if s.ctx.Err() != nil {
		return
	}
	msg, err := s.opts.Store.Append(s.ctx, s.counterpartID, s.selfID, body)
	if err != nil {
		if s.ctx.Err() == nil {
			s.logger.Warn("append synthetic reply failed", zap.Error(err))
		}
		return
	}
	s.publish(s.ctx, msg)
	s.post(func() {
		s.mu.Lock()
		s.messages = insertMessage(s.messages, msg)
		s.mu.Unlock()
		s.notify()
	})
}

func sortedCopy(in []domain.Message) []domain.Message {
	out := append([]domain.Message(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func insertMessage(msgs []domain.Message, msg domain.Message) []domain.Message {
	for _, m := range msgs {
		if m.ID == msg.ID {
			return msgs
		}
	}
	return sortedCopy(append(msgs, msg))
}

func removeMessage(msgs []domain.Message, id int64) []domain.Message {
	out := msgs[:0]
	for _, m := range msgs {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

func sameMessages(a, b []domain.Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Body != b[i].Body {
			return false
		}
	}
	return true
}
