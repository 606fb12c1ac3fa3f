package procman

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/okafor/toolmux/internal/observability"
	"github.com/okafor/toolmux/internal/tracing"
	"github.com/okafor/toolmux/pkg/executor"
)

var (
	// ErrUnknownTool is returned when neither the caller nor the
	// catalog can say how to spawn a tool.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrCommandTimeout is returned when a send exceeds its bound. The
	// session was killed; a retry respawns transparently.
	ErrCommandTimeout = errors.New("command timed out")

	// ErrSessionFailed is returned for non-timeout send failures.
	ErrSessionFailed = errors.New("session command failed")
)

// Catalog resolves a tool name to its execution spec. Satisfied by the
// tool registry.
type Catalog interface {
	Spec(name string) (executor.Spec, bool)
}

// Manager owns the map from tool name to live session. Exactly one
// session may exist per tool name; replacing a dead one swaps the map
// entry atomically under the per-name lock.
type Manager struct {
	catalog Catalog

	mu       sync.RWMutex
	sessions map[string]*session
	locks    map[string]*sync.Mutex

	// newDriver is the spawn seam; tests substitute scripted drivers.
	newDriver func(spec executor.Spec) driver
}

// NewManager creates a session manager resolving specs through catalog.
func NewManager(catalog Catalog) *Manager {
	observability.EnsureRegistered()
	return &Manager{
		catalog:  catalog,
		sessions: make(map[string]*session),
		locks:    make(map[string]*sync.Mutex),
		newDriver: func(spec executor.Spec) driver {
			return executor.NewSession(spec)
		},
	}
}

// nameLock returns the mutex serializing operations for one tool name.
// Operations on different names never contend on these.
func (m *Manager) nameLock(name string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lock, ok := m.locks[name]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	m.locks[name] = lock
	return lock
}

// resolveSpec builds the spawn spec: catalog configuration first, with
// an explicit command/args override from the caller taking precedence.
func (m *Manager) resolveSpec(name, command string, args []string) (executor.Spec, error) {
	spec, ok := executor.Spec{}, false
	if m.catalog != nil {
		spec, ok = m.catalog.Spec(name)
	}
	if command != "" {
		spec.Command = command
		spec.Args = args
		ok = true
	}
	if !ok {
		return executor.Spec{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	spec.Name = name
	return spec, nil
}

// Spawn creates a session for the tool if none is live; spawning a
// tool that already has one is a no-op returning the existing info.
// The returned state is INITIALIZING; it reaches READY once the
// startup prompt is observed (or the init timeout elapses), observable
// through Status.
func (m *Manager) Spawn(ctx context.Context, name, command string, args []string) (SessionInfo, error) {
	ctx, span := tracing.StartSpan(ctx, "toolmux.procman", "session.spawn",
		attribute.String("tool", name),
	)
	defer span.End()

	lock := m.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	if s := m.liveSession(name); s != nil {
		m.mu.RLock()
		info := s.info()
		m.mu.RUnlock()
		return info, nil
	}

	spec, err := m.resolveSpec(name, command, args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SessionInfo{}, err
	}

	drv := m.newDriver(spec)
	if err := drv.Start(ctx, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SessionInfo{}, err
	}

	now := time.Now()
	s := &session{
		tool:      name,
		drv:       drv,
		state:     StateInitializing,
		startedAt: now,
		lastUsed:  now,
	}

	m.mu.Lock()
	m.sessions[name] = s
	count := len(m.sessions)
	info := s.info()
	m.mu.Unlock()
	observability.SetActiveSessions(count)

	// Readiness is observed in the background so Spawn returns with
	// the session still INITIALIZING.
	go func() {
		drv.WaitReady(context.Background())
		m.mu.Lock()
		if m.sessions[name] == s && s.state == StateInitializing {
			s.state = StateReady
		}
		m.mu.Unlock()
	}()

	log.Info().
		Str("tool", name).
		Int("pid", drv.Pid()).
		Msg("Session spawn requested")

	return info, nil
}

// Status reports the current session state for a tool name. The second
// return is false when no session is present, which callers treat as
// TERMINATED.
func (m *Manager) Status(name string) (SessionInfo, bool) {
	m.mu.RLock()
	s, ok := m.sessions[name]
	if !ok {
		m.mu.RUnlock()
		return SessionInfo{}, false
	}
	info := s.info()
	m.mu.RUnlock()
	if info.State != StateInitializing && !s.drv.Running() {
		// Death not yet observed by a send; report it rather than a
		// stale READY.
		info.State = StateTerminated
	}
	return info, true
}

// Send submits one command frame to the tool's session, spawning it
// first if necessary. Sends for the same tool name are strictly
// serialized (FIFO); sends for different names proceed in parallel.
func (m *Manager) Send(ctx context.Context, name, text string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "toolmux.procman", "session.send",
		attribute.String("tool", name),
	)
	defer span.End()

	lock := m.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	s := m.liveSession(name)
	if s == nil {
		spec, err := m.resolveSpec(name, "", nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", err
		}
		now := time.Now()
		s = &session{
			tool:      name,
			drv:       m.newDriver(spec),
			state:     StateInitializing,
			startedAt: now,
			lastUsed:  now,
		}
		m.mu.Lock()
		m.sessions[name] = s
		count := len(m.sessions)
		m.mu.Unlock()
		observability.SetActiveSessions(count)
	}

	res := s.drv.Execute(ctx, text, nil, nil)

	m.mu.Lock()
	s.lastUsed = time.Now()
	if res.Success {
		s.state = StateReady
	} else if !s.drv.Running() {
		s.state = StateTerminated
	}
	m.mu.Unlock()

	if !res.Success {
		if res.TimedOut {
			err := fmt.Errorf("%w: %s", ErrCommandTimeout, res.Error)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return res.Output, err
		}
		err := fmt.Errorf("%w: %s", ErrSessionFailed, res.Error)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res.Output, err
	}

	return res.Output, nil
}

// Execute is the per-tool execution entry point: stateless tools get a
// fresh one-shot process, stateful tools are routed through their
// session. All failure modes are encoded in the result.
func (m *Manager) Execute(ctx context.Context, name, command string, args []string, env map[string]string) executor.ExecutionResult {
	spec, ok := executor.Spec{}, false
	if m.catalog != nil {
		spec, ok = m.catalog.Spec(name)
	}
	if !ok {
		return executor.ExecutionResult{
			Success:      false,
			Error:        fmt.Sprintf("unknown tool: %s", name),
			ExecutorKind: executor.KindStateless,
		}
	}

	if !spec.Stateful() {
		// An empty command means "run the tool as configured"; extra
		// args are appended to the catalog's.
		if command == "" {
			command = spec.Command
			args = append(append([]string{}, spec.Args...), args...)
		}
		return executor.NewSubprocess(spec).Execute(ctx, command, args, env)
	}

	lock := m.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	s := m.liveSession(name)
	if s == nil {
		now := time.Now()
		s = &session{
			tool:      name,
			drv:       m.newDriver(spec),
			state:     StateInitializing,
			startedAt: now,
			lastUsed:  now,
		}
		m.mu.Lock()
		m.sessions[name] = s
		count := len(m.sessions)
		m.mu.Unlock()
		observability.SetActiveSessions(count)
	}

	res := s.drv.Execute(ctx, command, args, env)

	m.mu.Lock()
	s.lastUsed = time.Now()
	if res.Success {
		s.state = StateReady
	} else if !s.drv.Running() {
		s.state = StateTerminated
	}
	m.mu.Unlock()

	return res
}

// Terminate gracefully shuts down the tool's session and removes it
// from the live map. Idempotent: terminating a name with no session is
// a no-op.
func (m *Manager) Terminate(ctx context.Context, name string) error {
	ctx, span := tracing.StartSpan(ctx, "toolmux.procman", "session.terminate",
		attribute.String("tool", name),
	)
	defer span.End()

	lock := m.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	s, ok := m.sessions[name]
	delete(m.sessions, name)
	count := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	observability.SetActiveSessions(count)

	if err := s.drv.Cleanup(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to terminate session %s: %w", name, err)
	}

	log.Info().Str("tool", name).Msg("Session terminated")
	return nil
}

// List returns a snapshot of all live sessions.
func (m *Manager) List() []SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.info())
	}
	return out
}

// Shutdown terminates every live session. Part of orderly shutdown of
// the whole layer; sessions that fail to terminate are logged and
// skipped.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	names := make([]string, 0, len(m.sessions))
	for name := range m.sessions {
		names = append(names, name)
	}
	m.mu.RUnlock()

	for _, name := range names {
		if err := m.Terminate(ctx, name); err != nil {
			log.Warn().Str("tool", name).Err(err).Msg("Failed to terminate session during shutdown")
		}
	}

	log.Info().Int("sessions", len(names)).Msg("Session manager shut down")
}

// liveSession returns the session for name if one is present and its
// process has not silently died. A dead entry is pruned so the caller
// can respawn under the same per-name lock.
func (m *Manager) liveSession(name string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[name]
	if !ok {
		return nil
	}
	if s.state == StateTerminated {
		delete(m.sessions, name)
		return nil
	}
	return s
}
