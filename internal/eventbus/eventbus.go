package eventbus

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Приоритеты событий; ниже PriorityHigh событие можно отбросить при переполнении
const (
	PriorityLow    = 0
	PriorityNormal = 3
	PriorityHigh   = 5
)

// ErrBusClosed публикация в закрытую шину
var ErrBusClosed = errors.New("eventbus: closed")

// Envelope контейнер события жизненного цикла регионов
type Envelope struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"ts"`
	Source    string            `json:"source"`
	EventType string            `json:"type"`
	Version   int               `json:"v"`
	Priority  int               `json:"prio,omitempty"`
	Payload   []byte            `json:"payload,omitempty"` // JSON
	Metadata  map[string]string `json:"meta,omitempty"`
}

// NewEnvelope создает событие с новым UUID и текущим временем UTC.
func NewEnvelope(source, eventType string, payload []byte) *Envelope {
	return &Envelope{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		Version:   1,
		Priority:  PriorityNormal,
		Payload:   payload,
	}
}

// Filter отбирает события по типу и источнику; пустой список пропускает все
type Filter struct {
	Types   []string
	Sources []string
}

func matchFilter(ev *Envelope, f Filter) bool {
	match := func(val string, arr []string) bool {
		return len(arr) == 0 || slices.Contains(arr, val)
	}
	return match(ev.EventType, f.Types) && match(ev.Source, f.Sources)
}

type Subscription interface {
	Unsubscribe()
}

// Handler потребляет события.
type Handler func(ctx context.Context, ev *Envelope)

// Stats агрегированные метрики шины.
type Stats struct {
	Published uint64
	Consumed  uint64
	Dropped   uint64
	InFlight  int
}

// EventBus шина событий: в памяти для одного процесса, JetStream для кластера
type EventBus interface {
	Publish(ctx context.Context, ev *Envelope) error
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
	Metrics() Stats
}

//================ In-Memory implementation =================//

// MemoryBus шина в памяти. У каждого подписчика своя очередь и горутина,
// поэтому события доходят до подписчика в порядке публикации.
type MemoryBus struct {
	mu          sync.RWMutex
	subscribers map[int]*memSub
	nextID      int
	capacity    int
	closed      bool

	statsMu sync.Mutex
	stats   Stats
}

// NewMemoryBus создаёт шину с очередью capacity на подписчика.
func NewMemoryBus(capacity int) *MemoryBus {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryBus{
		subscribers: make(map[int]*memSub),
		capacity:    capacity,
	}
}

// Publish раздает событие подписчикам. Если очередь подписчика полна,
// событие с приоритетом ниже PriorityHigh отбрасывается, остальные ждут места.
func (mb *MemoryBus) Publish(ctx context.Context, ev *Envelope) error {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return ErrBusClosed
	}

	for _, sub := range mb.subscribers {
		if !matchFilter(ev, sub.filter) {
			continue
		}
		select {
		case sub.queue <- ev:
			continue
		default:
		}
		if ev.Priority < PriorityHigh {
			mb.count(func(s *Stats) { s.Dropped++ })
			continue
		}
		select {
		case sub.queue <- ev:
		case <-sub.ctx.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	mb.count(func(s *Stats) { s.Published++ })
	return nil
}

func (mb *MemoryBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	cctx, cancel := context.WithCancel(ctx)
	sub := &memSub{
		bus:     mb,
		id:      mb.nextID,
		filter:  f,
		handler: h,
		queue:   make(chan *Envelope, mb.capacity),
		ctx:     cctx,
		cancel:  cancel,
	}
	mb.nextID++
	mb.subscribers[sub.id] = sub
	go sub.run()
	return sub, nil
}

func (mb *MemoryBus) Metrics() Stats {
	mb.statsMu.Lock()
	s := mb.stats
	mb.statsMu.Unlock()

	mb.mu.RLock()
	for _, sub := range mb.subscribers {
		s.InFlight += len(sub.queue)
	}
	mb.mu.RUnlock()
	return s
}

// Close отписывает всех; дальнейшие Publish возвращают ошибку
func (mb *MemoryBus) Close() error {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.closed = true
	for id, sub := range mb.subscribers {
		sub.cancel()
		delete(mb.subscribers, id)
	}
	return nil
}

func (mb *MemoryBus) count(f func(*Stats)) {
	mb.statsMu.Lock()
	f(&mb.stats)
	mb.statsMu.Unlock()
}

type memSub struct {
	bus     *MemoryBus
	id      int
	filter  Filter
	handler Handler
	queue   chan *Envelope
	ctx     context.Context
	cancel  context.CancelFunc
}

func (s *memSub) run() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.queue:
			s.handler(s.ctx, ev)
			s.bus.count(func(st *Stats) { st.Consumed++ })
		}
	}
}

func (s *memSub) Unsubscribe() {
	s.cancel()
	s.bus.mu.Lock()
	delete(s.bus.subscribers, s.id)
	s.bus.mu.Unlock()
}
