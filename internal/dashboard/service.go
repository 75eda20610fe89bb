package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/appointment-insights/internal/appointments"
	"github.com/wolfman30/appointment-insights/internal/insights"
	"github.com/wolfman30/appointment-insights/internal/notify"
	"github.com/wolfman30/appointment-insights/internal/observability/metrics"
	"github.com/wolfman30/appointment-insights/pkg/logging"
)

type Fetcher interface {
	FetchAll(ctx context.Context) ([]appointments.Appointment, error)
}

type FactGenerator interface {
	GenerateAll(ctx context.Context, in insights.Input) insights.Facts
}

type ChangeNotifier interface {
	HandleChange(ctx context.Context, evt appointments.ChangeEvent) (notify.Notification, bool)
}

// Observer receives every published model.
type Observer func(Model)

type observerEntry struct {
	id int
	fn Observer
}

// Service owns the dashboard model. Refreshes are serialized; fact
// generation runs in the background and a newer refresh cancels it.
type Service struct {
	fetcher     Fetcher
	facts       FactGenerator
	notifier    ChangeNotifier
	logger      *logging.Logger
	metrics     *metrics.DashboardMetrics
	recentLimit int
	now         func() time.Time

	baseCtx    context.Context
	baseCancel context.CancelFunc
	refreshMu  sync.Mutex
	wg         sync.WaitGroup

	publishMu     sync.Mutex
	lastPublished uint64

	mu          sync.RWMutex
	model       Model
	generation  uint64
	cancelFacts context.CancelFunc
	observers   []observerEntry
	nextID      int
}

type Option func(*Service)

func WithNotifier(n ChangeNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithMetrics(m *metrics.DashboardMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithRecentLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recentLimit = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(fetcher Fetcher, facts FactGenerator, logger *logging.Logger, opts ...Option) *Service {
	if fetcher == nil || facts == nil {
		panic("dashboard: fetcher and fact generator required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		fetcher:     fetcher,
		facts:       facts,
		logger:      logger,
		recentLimit: DefaultRecentLimit,
		now:         time.Now,
		baseCtx:     ctx,
		baseCancel:  cancel,
		model:       Model{Loading: true, FactsLoading: true},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers an observer and returns a func that removes it.
func (s *Service) Subscribe(fn Observer) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, observerEntry{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, entry := range s.observers {
				if entry.id == id {
					s.observers = append(s.observers[:i], s.observers[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Service) Snapshot() Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// Refresh re-fetches every appointment and rebuilds the model. A fetch
// error is shown on the model with an empty appointment list and is also
// returned. There is no retry. When ctx itself ends during the fetch the
// current model is kept and nothing is published.
func (s *Service) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	records, err := s.fetcher.FetchAll(ctx)
	if err != nil && ctx.Err() != nil {
		s.metrics.ObserveRefresh("aborted")
		s.logger.Warn("refresh abandoned by caller, keeping current model", "error", err)
		return fmt.Errorf("dashboard: refresh aborted: %w", err)
	}
	if err != nil {
		records = nil
		s.metrics.ObserveRefresh("error")
		s.logger.Error("failed to load appointments", "error", err)
	} else {
		s.metrics.ObserveRefresh("ok")
	}

	model, input := build(records, s.now(), s.recentLimit)
	if err != nil {
		model.Error = "Failed to load data: " + err.Error()
	}

	s.mu.Lock()
	if s.cancelFacts != nil {
		s.cancelFacts()
		s.cancelFacts = nil
	}
	s.generation++
	gen := s.generation
	model.Generation = gen

	var factCtx context.Context
	var cancel context.CancelFunc
	if model.HasAppointments() {
		model.Facts = s.model.Facts
		model.FactsLoading = true
		factCtx, cancel = context.WithCancel(s.baseCtx)
		s.cancelFacts = cancel
	}
	s.model = model
	s.mu.Unlock()

	s.logger.Info("dashboard refreshed", "appointments", len(model.Appointments), "generation", gen)
	s.publish(model)

	if cancel != nil {
		s.wg.Add(1)
		go s.generateFacts(factCtx, cancel, gen, input)
	}
	return err
}

func (s *Service) generateFacts(ctx context.Context, cancel context.CancelFunc, gen uint64, in insights.Input) {
	defer s.wg.Done()
	defer cancel()

	facts := s.facts.GenerateAll(ctx, in)

	s.mu.Lock()
	if gen != s.generation || ctx.Err() != nil {
		s.mu.Unlock()
		s.logger.Debug("discarding facts for superseded snapshot", "generation", gen)
		return
	}
	s.model.Facts = facts
	s.model.FactsLoading = false
	s.cancelFacts = nil
	snapshot := s.model
	s.mu.Unlock()

	s.publish(snapshot)
}

// HandleChange is the change feed callback: every change triggers a full
// refresh, then notification rules run against the event.
func (s *Service) HandleChange(ctx context.Context, evt appointments.ChangeEvent) {
	s.metrics.ObserveChangeEvent(string(evt.Kind))
	s.logger.Info("appointment change received", "kind", evt.Kind)

	_ = s.Refresh(ctx)

	if s.notifier != nil {
		s.notifier.HandleChange(ctx, evt)
	}
}

// Wait blocks until no fact generation is in flight.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close cancels in-flight fact generation and waits for it to stop.
func (s *Service) Close() {
	s.baseCancel()
	s.wg.Wait()
}

// publish delivers model to every observer in order. Models older than the
// last one delivered are dropped.
func (s *Service) publish(model Model) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	if model.Generation < s.lastPublished {
		return
	}
	s.lastPublished = model.Generation

	s.mu.RLock()
	observers := make([]Observer, 0, len(s.observers))
	for _, entry := range s.observers {
		observers = append(observers, entry.fn)
	}
	s.mu.RUnlock()

	for _, fn := range observers {
		fn(model)
	}
}
