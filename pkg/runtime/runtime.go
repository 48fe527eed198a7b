package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/prince1katiyar/Parking-project/pkg/agent"
	"github.com/prince1katiyar/Parking-project/pkg/memory"
	"github.com/prince1katiyar/Parking-project/pkg/memory/embed"
	"github.com/prince1katiyar/Parking-project/pkg/models"
	"github.com/prince1katiyar/Parking-project/pkg/parking"
	"github.com/prince1katiyar/Parking-project/pkg/tools"
)

// DefaultContextLimit is how many prior turns are retrieved for each message.
const DefaultContextLimit = 10

// DeciderLoader constructs the decision model used by the resolver.
type DeciderLoader func(ctx context.Context) (models.Decider, error)

// StaticDecider wraps an already constructed decider.
func StaticDecider(d models.Decider) DeciderLoader {
	return func(context.Context) (models.Decider, error) { return d, nil }
}

// Observer receives runtime and loop events.
type Observer interface {
	agent.Observer
	MemoryFailure(op string)
	TurnCompleted(outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ToolCalled(string, string)           {}
func (nopObserver) Resolved(string, int)                {}
func (nopObserver) MemoryFailure(string)                {}
func (nopObserver) TurnCompleted(string, time.Duration) {}

// Option configures runtime construction.
type Option func(*config)

type config struct {
	decider       DeciderLoader
	registry      *tools.Registry
	memory        *memory.Store
	locker        Locker
	systemPrompt  string
	maxIterations int
	callTimeout   time.Duration
	contextLimit  int
	logger        *zap.Logger
	observer      Observer
}

func defaultConfig() *config {
	return &config{
		contextLimit: DefaultContextLimit,
		logger:       zap.NewNop(),
		observer:     nopObserver{},
	}
}

func (c *config) validate() error {
	if c.decider == nil {
		return errors.New("runtime requires a decider loader")
	}
	return nil
}

func (c *config) contextLimitValue() int {
	if c.contextLimit <= 0 {
		return DefaultContextLimit
	}
	return c.contextLimit
}

// WithDecider sets the loader responsible for constructing the decision model.
func WithDecider(loader DeciderLoader) Option {
	return func(c *config) {
		c.decider = loader
	}
}

// WithRegistry supplies the tool registry. Without it the runtime serves an
// empty in-memory parking store.
func WithRegistry(reg *tools.Registry) Option {
	return func(c *config) {
		c.registry = reg
	}
}

// WithMemory supplies the conversation memory. Without it turns are kept in
// process with the offline embedder.
func WithMemory(store *memory.Store) Option {
	return func(c *config) {
		c.memory = store
	}
}

// WithLocker replaces the in-process session lock.
func WithLocker(l Locker) Option {
	return func(c *config) {
		if l != nil {
			c.locker = l
		}
	}
}

// WithSystemPrompt replaces the default system prompt template.
func WithSystemPrompt(prompt string) Option {
	return func(c *config) {
		c.systemPrompt = prompt
	}
}

// WithMaxIterations overrides the tool-call budget per message.
func WithMaxIterations(n int) Option {
	return func(c *config) {
		c.maxIterations = n
	}
}

// WithCallTimeout bounds each model decision and tool call.
func WithCallTimeout(d time.Duration) Option {
	return func(c *config) {
		c.callTimeout = d
	}
}

// WithContextLimit overrides how many records are retrieved from memory per message.
func WithContextLimit(limit int) Option {
	return func(c *config) {
		c.contextLimit = limit
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(c *config) {
		if o != nil {
			c.observer = o
		}
	}
}

// Runtime serialises messages per session and wires memory, the resolver and tools together.
type Runtime struct {
	resolver     *agent.Resolver
	memory       *memory.Store
	locker       Locker
	contextLimit int
	logger       *zap.Logger
	observer     Observer

	sessions *sessionManager
}

// New builds a runtime based on the supplied configuration options.
func New(ctx context.Context, opts ...Option) (*Runtime, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	decider, err := cfg.decider(ctx)
	if err != nil {
		return nil, fmt.Errorf("load decider: %w", err)
	}

	registry := cfg.registry
	if registry == nil {
		registry, err = tools.NewParkingRegistry(parking.NewInMemoryStore())
		if err != nil {
			return nil, fmt.Errorf("build tool registry: %w", err)
		}
	}

	store := cfg.memory
	if store == nil {
		store, err = memory.NewStore(memory.NewInMemoryIndex(), embed.NewDummyEmbedder(0), memory.WithLogger(cfg.logger))
		if err != nil {
			return nil, fmt.Errorf("create memory store: %w", err)
		}
	}

	resolver, err := agent.New(agent.Options{
		Decider:       decider,
		Registry:      registry,
		SystemPrompt:  cfg.systemPrompt,
		MaxIterations: cfg.maxIterations,
		CallTimeout:   cfg.callTimeout,
		Logger:        cfg.logger,
		Observer:      cfg.observer,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise resolver: %w", err)
	}

	locker := cfg.locker
	if locker == nil {
		locker = NewLocalLocker()
	}

	rt := &Runtime{
		resolver:     resolver,
		memory:       store,
		locker:       locker,
		contextLimit: cfg.contextLimitValue(),
		logger:       cfg.logger,
		observer:     cfg.observer,
	}
	rt.sessions = newSessionManager(rt)
	return rt, nil
}

// Memory returns the conversation memory store.
func (rt *Runtime) Memory() *memory.Store {
	return rt.memory
}

// Close releases the memory backend.
func (rt *Runtime) Close(ctx context.Context) error {
	return rt.memory.Close(ctx)
}

// NewSession provisions an interactive session. If id is empty a unique identifier is generated.
func (rt *Runtime) NewSession(id string) *Session {
	return rt.sessions.newSession(id)
}

// GetSession retrieves an active session by its ID.
func (rt *Runtime) GetSession(id string) (*Session, error) {
	return rt.sessions.getSession(strings.TrimSpace(id))
}

// RemoveSession forgets a session id. Its stored turns are kept.
func (rt *Runtime) RemoveSession(id string) {
	rt.sessions.removeSession(strings.TrimSpace(id))
}

// ActiveSessions returns a copy of all active session IDs.
func (rt *Runtime) ActiveSessions() []string {
	return rt.sessions.activeIDs()
}

// Invoke handles one user message and always returns conversational text.
// Messages of one session are processed strictly in arrival order; the user
// and assistant turns are both stored before the next message of the session
// starts retrieving.
func (rt *Runtime) Invoke(ctx context.Context, sessionID, text string) string {
	start := time.Now()
	sessionID = rt.sessions.ensure(sessionID).ID()
	log := rt.logger.With(zap.String("session_id", sessionID))

	unlock, err := rt.locker.Lock(ctx, sessionID)
	if err != nil {
		log.Error("acquire session lock", zap.Error(err))
		rt.observer.TurnCompleted("lock_failed", time.Since(start))
		return agent.Apology
	}
	defer unlock()

	res := rt.resolver.Resolve(ctx, agent.Request{
		SessionID: sessionID,
		Input:     text,
		History:   rt.history(ctx, log, sessionID, text),
	})
	if res.Err != nil {
		log.Warn("resolver degraded to apology", zap.String("outcome", string(res.Outcome)), zap.Error(res.Err))
	}

	// A caller that went away still gets its turn recorded.
	persistCtx := context.WithoutCancel(ctx)
	rt.remember(persistCtx, log, sessionID, memory.RoleUser, text)
	rt.remember(persistCtx, log, sessionID, memory.RoleAssistant, res.Reply)

	rt.observer.TurnCompleted(string(res.Outcome), time.Since(start))
	return res.Reply
}

// history retrieves the most relevant prior turns and orders them least
// similar first, so the best match sits right before the new message.
func (rt *Runtime) history(ctx context.Context, log *zap.Logger, sessionID, query string) []models.Message {
	turns, err := rt.memory.Retrieve(ctx, sessionID, query, rt.contextLimit)
	if err != nil {
		log.Warn("memory retrieve failed; continuing without history", zap.Error(err))
		rt.observer.MemoryFailure("retrieve")
		return nil
	}
	out := make([]models.Message, 0, len(turns))
	for i := len(turns) - 1; i >= 0; i-- {
		out = append(out, models.Message{Role: string(turns[i].Role), Content: turns[i].Text})
	}
	return out
}

func (rt *Runtime) remember(ctx context.Context, log *zap.Logger, sessionID string, role memory.Role, text string) {
	if _, _, err := rt.memory.Append(ctx, sessionID, role, text); err != nil {
		log.Warn("memory append failed", zap.String("role", string(role)), zap.Error(err))
		rt.observer.MemoryFailure("append_" + string(role))
	}
}

// Session encapsulates the conversational context for a single user.
type Session struct {
	runtime *Runtime
	id      string
}

// ID returns the unique identifier associated with the session.
func (s *Session) ID() string { return s.id }

// Send is Invoke bound to this session.
func (s *Session) Send(ctx context.Context, text string) string {
	return s.runtime.Invoke(ctx, s.id, text)
}
