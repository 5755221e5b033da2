// ABOUTME: Connection supervisor: instance lifecycle, auth negotiation, and reconnection.
// ABOUTME: One event-loop goroutine per socket; per-key locks serialize lifecycle operations.

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/wagate/internal/ingress"
	"github.com/2389/wagate/internal/notify"
	"github.com/2389/wagate/internal/queue"
	"github.com/2389/wagate/internal/registry"
	"github.com/2389/wagate/internal/session"
	"github.com/2389/wagate/internal/store"
	"github.com/2389/wagate/internal/wa"
)

// defaultQRTimeout bounds the wait for the network's first QR offer.
const defaultQRTimeout = 30 * time.Second

// Deps are the collaborators a Service is built from.
type Deps struct {
	Registry *registry.Registry
	Sessions *session.Store
	Tenants  store.TenantStore
	Queue    queue.Enqueuer
	Notify   notify.Sink
	Dialer   wa.Dialer

	// Retry is the reconnection schedule. Zero value means the default.
	Retry RetryPolicy

	// QRTimeout bounds the QR wait during initialization. Zero means 30s.
	QRTimeout time.Duration

	// RetentionDays and SweepInterval drive the background session sweep.
	// Zero SweepInterval disables it.
	RetentionDays int
	SweepInterval time.Duration

	Logger *slog.Logger
}

// Service owns every live connection in the process. It is constructed once,
// started, and shut down; there is no package-level state.
type Service struct {
	registry  *registry.Registry
	sessions  *session.Store
	tenants   store.TenantStore
	ingress   *ingress.Router
	notify    notify.Sink
	dialer    wa.Dialer
	policy    RetryPolicy
	qrTimeout time.Duration
	retention int
	sweepEach time.Duration
	logger    *slog.Logger

	// renderQR is swapped in tests to avoid PNG encoding.
	renderQR func(string) (string, error)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu sync.Mutex
	// manual marks keys whose next close event was caused by an explicit
	// disconnect or force-reconnect, so the event loop must not schedule
	// its own recovery for it.
	manual map[registry.Key]bool
	// waits tracks each in-flight backoff wait; force-reconnect skips the
	// wait, disconnect aborts the resume entirely.
	waits map[registry.Key]*pendingResume
}

// pendingResume is a scheduled reconnection that has not dialed yet. Skip
// ends the backoff wait early; abort cancels the resume outright. Resume
// re-checks abort under the key lock, so a disconnect that lands after the
// timer fires still wins.
type pendingResume struct {
	skip      chan struct{}
	abort     chan struct{}
	skipOnce  sync.Once
	abortOnce sync.Once
}

func newPendingResume() *pendingResume {
	return &pendingResume{skip: make(chan struct{}), abort: make(chan struct{})}
}

func (p *pendingResume) requestSkip()  { p.skipOnce.Do(func() { close(p.skip) }) }
func (p *pendingResume) requestAbort() { p.abortOnce.Do(func() { close(p.abort) }) }

func (p *pendingResume) aborted() bool {
	select {
	case <-p.abort:
		return true
	default:
		return false
	}
}

// New creates a Service from its dependencies.
func New(deps Deps) (*Service, error) {
	if deps.Registry == nil || deps.Sessions == nil || deps.Dialer == nil || deps.Queue == nil {
		return nil, errors.New("supervisor requires registry, sessions, dialer, and queue")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	policy := deps.Retry
	if policy.MaxAttempts == 0 {
		policy = DefaultRetryPolicy()
	}
	qrTimeout := deps.QRTimeout
	if qrTimeout == 0 {
		qrTimeout = defaultQRTimeout
	}

	sink := deps.Notify
	if sink == nil {
		sink = notify.NewBroadcaster(logger)
	}

	return &Service{
		registry:  deps.Registry,
		sessions:  deps.Sessions,
		tenants:   deps.Tenants,
		ingress:   ingress.NewRouter(deps.Queue, logger),
		notify:    sink,
		dialer:    deps.Dialer,
		policy:    policy,
		qrTimeout: qrTimeout,
		retention: deps.RetentionDays,
		sweepEach: deps.SweepInterval,
		logger:    logger.With("component", "supervisor"),
		renderQR:  renderQRDataURL,
		manual:    make(map[registry.Key]bool),
		waits:     make(map[registry.Key]*pendingResume),
	}, nil
}

// Start begins background work: the session retention sweep. The given
// context scopes every goroutine the service spawns; Shutdown cancels it.
func (s *Service) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if s.sweepEach > 0 && s.retention > 0 {
		s.wg.Add(1)
		go s.retentionSweep()
	}

	s.logger.Info("supervisor started",
		"qr_timeout", s.qrTimeout,
		"max_reconnect_attempts", s.policy.MaxAttempts,
		"retention_days", s.retention)
}

// Shutdown closes every live socket and waits for the event loops to drain,
// bounded by ctx.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	for _, h := range s.registry.List() {
		s.setManual(h.Key)
		if sock := h.Socket(); sock != nil {
			if err := sock.Close(); err != nil {
				s.logger.Warn("socket close failed during shutdown",
					"tenant_id", h.Key.TenantID,
					"instance_id", h.Key.InstanceID,
					"error", err)
			}
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("supervisor stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("supervisor shutdown timed out: %w", ctx.Err())
	}
}

// InitRequest describes one instance initialization.
type InitRequest struct {
	TenantID    string
	InstanceID  string
	PhoneNumber string
	AuthMethod  registry.AuthMethod
}

// InitResult is the outcome of InitializeInstance. Exactly one of
// PairingCode and QRCode is set on a successful pending-auth result; both
// are empty when the stored session resumed without re-pairing.
type InitResult struct {
	Success     bool
	InstanceID  string
	Status      registry.State
	PairingCode string
	QRCode      string
	Error       string
}

// InitializeInstance loads or creates the session for a key, opens a socket,
// and negotiates authentication. Pairing-code auth requires a phone number
// and resolves synchronously; QR auth waits up to the configured timeout for
// the network's first QR offer. Whichever resolves first wins; the loser is
// detached and can never produce a second resolution.
func (s *Service) InitializeInstance(ctx context.Context, req InitRequest) InitResult {
	key := registry.Key{TenantID: req.TenantID, InstanceID: req.InstanceID}
	logger := s.logger.With("tenant_id", key.TenantID, "instance_id", key.InstanceID)

	unlock := s.registry.LockKey(key)
	defer unlock()

	if _, exists := s.registry.Get(key); exists {
		logger.Warn("initialization rejected, instance already running")
		return InitResult{
			InstanceID: req.InstanceID,
			Error:      registry.ErrAlreadyRunning.Error(),
		}
	}

	authState, save, err := s.sessions.InitAuthState(ctx, key)
	if err != nil {
		logger.Error("session initialization failed", "error", err)
		return InitResult{
			InstanceID: req.InstanceID,
			Status:     registry.StateFailed,
			Error:      fmt.Sprintf("session storage: %v", err),
		}
	}

	socket, err := s.dialer.Dial(ctx, authState)
	if err != nil {
		logger.Error("socket dial failed", "error", err)
		return InitResult{
			InstanceID: req.InstanceID,
			Status:     registry.StateFailed,
			Error:      fmt.Sprintf("connecting to network: %v", err),
		}
	}

	handle := registry.NewHandle(key, req.AuthMethod, wa.SanitizePhone(req.PhoneNumber), socket)
	if err := s.registry.Register(handle); err != nil {
		socket.Close()
		return InitResult{InstanceID: req.InstanceID, Error: err.Error()}
	}

	if err := s.sessions.SaveMetadata(key, &session.Metadata{
		AuthMethod:  string(req.AuthMethod),
		PhoneNumber: wa.SanitizePhone(req.PhoneNumber),
	}); err != nil {
		logger.Error("failed to save session metadata", "error", err)
	}

	registered := authState.Creds != nil && authState.Creds.Registered

	var res *qrResolver
	if !registered && req.AuthMethod == registry.AuthQRCode {
		res = newQRResolver()
	}

	s.wg.Add(1)
	go s.eventLoop(handle, save, res)

	if registered {
		logger.Info("resuming registered session")
		return InitResult{
			Success:    true,
			InstanceID: req.InstanceID,
			Status:     registry.StateConnecting,
		}
	}

	if req.AuthMethod == registry.AuthPairingCode {
		return s.negotiatePairing(ctx, key, handle, req)
	}
	return s.awaitQR(ctx, key, handle, req, res)
}

// negotiatePairing requests a pairing code for an unregistered session.
func (s *Service) negotiatePairing(ctx context.Context, key registry.Key, handle *registry.Handle, req InitRequest) InitResult {
	logger := s.logger.With("tenant_id", key.TenantID, "instance_id", key.InstanceID)

	phone := wa.SanitizePhone(req.PhoneNumber)
	if phone == "" {
		s.abandonInit(key, handle)
		return InitResult{
			InstanceID: req.InstanceID,
			Status:     registry.StateFailed,
			Error:      "pairing code auth requires a phone number; try QR code authentication instead",
		}
	}

	code, err := handle.Socket().RequestPairingCode(ctx, phone)
	if err != nil {
		logger.Error("pairing code request failed", "phone", phone, "error", err)
		s.abandonInit(key, handle)
		return InitResult{
			InstanceID: req.InstanceID,
			Status:     registry.StateFailed,
			Error:      fmt.Sprintf("pairing code request failed: %v; try QR code authentication instead", err),
		}
	}

	handle.SetStatus(registry.StatePairingPending)
	s.emit(notify.EventPairingCodeGenerated, key, map[string]any{"pairingCode": code})
	logger.Info("pairing code issued", "phone", phone)

	return InitResult{
		Success:     true,
		InstanceID:  req.InstanceID,
		Status:      registry.StatePairingPending,
		PairingCode: code,
	}
}

// awaitQR blocks until the first QR offer, the timeout, or ctx cancellation.
func (s *Service) awaitQR(ctx context.Context, key registry.Key, handle *registry.Handle, req InitRequest, res *qrResolver) InitResult {
	logger := s.logger.With("tenant_id", key.TenantID, "instance_id", key.InstanceID)

	timer := time.NewTimer(s.qrTimeout)
	defer timer.Stop()

	select {
	case code := <-res.ch:
		dataURL, err := s.renderQR(code)
		if err != nil {
			logger.Error("QR rendering failed", "error", err)
			s.abandonInit(key, handle)
			return InitResult{
				InstanceID: req.InstanceID,
				Status:     registry.StateFailed,
				Error:      fmt.Sprintf("rendering QR code: %v", err),
			}
		}

		handle.SetStatus(registry.StateQRPending)
		s.emit(notify.EventQRGenerated, key, map[string]any{"qrCode": dataURL})
		logger.Info("QR code issued")

		return InitResult{
			Success:    true,
			InstanceID: req.InstanceID,
			Status:     registry.StateQRPending,
			QRCode:     dataURL,
		}

	case <-timer.C:
		logger.Warn("timeout waiting for QR code", "timeout", s.qrTimeout)
		s.abandonInit(key, handle)
		return InitResult{
			InstanceID: req.InstanceID,
			Status:     registry.StateFailed,
			Error:      fmt.Sprintf("timeout waiting for QR code after %s", s.qrTimeout),
		}

	case <-ctx.Done():
		s.abandonInit(key, handle)
		return InitResult{
			InstanceID: req.InstanceID,
			Status:     registry.StateFailed,
			Error:      ctx.Err().Error(),
		}
	}
}

// abandonInit tears down a handle whose initialization failed before any
// connection was established. The session directory is kept: a later attempt
// with the same key reuses it.
func (s *Service) abandonInit(key registry.Key, handle *registry.Handle) {
	handle.SetStatus(registry.StateFailed)
	s.setManual(key)
	if sock := handle.Socket(); sock != nil {
		sock.Close()
	}
	s.registry.Remove(key)
	s.emit(notify.EventFailed, key, nil)
}

// eventLoop consumes one socket's event stream until it closes. Running all
// handling on a single goroutine per socket means credential saves are
// applied in arrival order with no extra locking.
func (s *Service) eventLoop(handle *registry.Handle, save wa.SaveCredsFunc, res *qrResolver) {
	defer s.wg.Done()

	key := handle.Key
	logger := s.logger.With("tenant_id", key.TenantID, "instance_id", key.InstanceID)

	for ev := range handle.Socket().Events() {
		switch e := ev.(type) {
		case wa.CredentialsChanged:
			if err := save(); err != nil {
				// Keep the connection alive but surface the problem in
				// health: credentials on disk no longer match the live
				// session, so a restart may force re-pairing.
				logger.Error("credential persistence failed, running degraded", "error", err)
				handle.SetDegraded(true)
			} else {
				handle.SetDegraded(false)
			}

		case wa.MessagesReceived:
			s.ingress.HandleMessages(s.processCtx(), key, handle, e.Messages)

		case wa.ConnectionChanged:
			switch ce := e.Event.(type) {
			case wa.QRCode:
				if res != nil {
					res.offer(ce.Code)
				}
			case wa.Opened:
				s.onOpened(key, handle, ce)
			case wa.Closed:
				s.onClosed(key, handle, ce)
			}
		}
	}

	logger.Debug("event loop exited")
}

// onOpened handles a successful connection.
func (s *Service) onOpened(key registry.Key, handle *registry.Handle, ev wa.Opened) {
	logger := s.logger.With("tenant_id", key.TenantID, "instance_id", key.InstanceID)

	phone := wa.PhoneFromJID(ev.SelfJID)
	if phone != "" {
		handle.SetPhoneNumber(phone)
	}
	handle.SetStatus(registry.StateConnected)
	handle.TouchActivity()

	if err := s.sessions.UpdateLastConnected(key); err != nil {
		logger.Error("failed to stamp last-connected time", "error", err)
	}

	s.upsertTenantStatus(key, string(registry.StateConnected), phone)
	s.emit(notify.EventConnected, key, map[string]any{"phoneNumber": phone})
	logger.Info("instance connected", "phone", phone)
}

// onClosed classifies a close and either removes the instance or schedules
// a reconnection.
func (s *Service) onClosed(key registry.Key, handle *registry.Handle, ev wa.Closed) {
	logger := s.logger.With("tenant_id", key.TenantID, "instance_id", key.InstanceID)

	if s.consumeManual(key) {
		logger.Debug("close consumed by explicit lifecycle operation",
			"code", ev.Code.String())
		return
	}

	logger.Warn("connection closed",
		"code", ev.Code.String(),
		"permanent", ev.Code.Permanent(),
		"error", ev.Err)

	if ev.Code.Permanent() {
		// The stored credentials can never resume this session. The
		// instance is removed and never auto-recreated; the caller must
		// re-provision. The session directory stays so an operator can
		// inspect it; explicit Disconnect is what deletes it.
		unlock := s.registry.LockKey(key)
		handle.SetStatus(registry.StateRemoved)
		s.registry.Remove(key)
		unlock()

		s.upsertTenantStatus(key, string(registry.StateDisconnected), "")
		s.emit(notify.EventDisconnected, key, map[string]any{
			"reason":    ev.Code.String(),
			"permanent": true,
		})
		return
	}

	handle.SetStatus(registry.StateDisconnected)
	s.emit(notify.EventDisconnected, key, map[string]any{
		"reason":    ev.Code.String(),
		"permanent": false,
	})
	s.scheduleReconnect(key, handle)
}

// scheduleReconnect starts the backoff wait for the next reconnection
// attempt, or gives up when the policy is exhausted.
func (s *Service) scheduleReconnect(key registry.Key, handle *registry.Handle) {
	logger := s.logger.With("tenant_id", key.TenantID, "instance_id", key.InstanceID)

	attempt := handle.ReconnectAttempts() + 1
	if s.policy.Exhausted(attempt) {
		logger.Error("reconnection attempts exhausted, giving up",
			"attempts", attempt-1)

		unlock := s.registry.LockKey(key)
		handle.SetStatus(registry.StateFailed)
		s.registry.Remove(key)
		unlock()

		s.upsertTenantStatus(key, string(registry.StateFailed), "")
		s.emit(notify.EventFailed, key, map[string]any{
			"reason": "reconnection attempts exhausted",
		})
		return
	}

	delay := s.policy.Delay(attempt)
	handle.SetStatus(registry.StateReconnecting)
	handle.SetReconnectAttempts(attempt)

	// Registered before the reconnecting event goes out, so anyone who
	// reacts to the event can already reach the wait.
	pending := newPendingResume()
	s.mu.Lock()
	s.waits[key] = pending
	s.mu.Unlock()

	s.emit(notify.EventReconnecting, key, map[string]any{
		"attempt": attempt,
		"delay":   delay.String(),
	})
	logger.Info("reconnection scheduled",
		"attempt", attempt,
		"max_attempts", s.policy.MaxAttempts,
		"delay", delay)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-pending.skip:
			logger.Info("backoff wait skipped by force-reconnect")
		case <-pending.abort:
			s.clearPending(key, pending)
			logger.Info("scheduled reconnect aborted by disconnect")
			return
		case <-s.processCtx().Done():
			s.clearPending(key, pending)
			return
		}

		s.resume(key, handle.PhoneNumber(), handle.AuthMethod, attempt, pending)
	}()
}

// clearPending drops the waits entry if it still points at p.
func (s *Service) clearPending(key registry.Key, p *pendingResume) {
	s.mu.Lock()
	if s.waits[key] == p {
		delete(s.waits, key)
	}
	s.mu.Unlock()
}

// resume replaces a dead handle with a fresh connection for the same key.
// No auth negotiation happens here: the stored session is expected to carry
// registered credentials. A pending record, if any, is consumed under the
// key lock; if a disconnect aborted it first, nothing is redialed.
func (s *Service) resume(key registry.Key, phone string, method registry.AuthMethod, attempts int, pending *pendingResume) {
	logger := s.logger.With("tenant_id", key.TenantID, "instance_id", key.InstanceID)

	unlock := s.registry.LockKey(key)
	defer unlock()

	if pending != nil {
		s.clearPending(key, pending)
		if pending.aborted() {
			logger.Info("resume cancelled by disconnect")
			return
		}
	}

	// Disconnect deletes the session directory under this same lock. A
	// resume that finds no stored session has nothing to pick up; dialing
	// anyway would mint fresh credentials for a logged-out instance.
	if !s.sessions.SessionExists(key) {
		logger.Info("no stored session to resume, abandoning reconnect")
		return
	}

	ctx := s.processCtx()
	if ctx.Err() != nil {
		return
	}

	s.registry.Remove(key)

	authState, save, err := s.sessions.InitAuthState(ctx, key)
	if err != nil {
		logger.Error("session reload failed during reconnect", "error", err)
		s.retryResume(key, phone, method, attempts)
		return
	}

	socket, err := s.dialer.Dial(ctx, authState)
	if err != nil {
		logger.Error("redial failed during reconnect", "error", err)
		s.retryResume(key, phone, method, attempts)
		return
	}

	handle := registry.NewHandle(key, method, phone, socket)
	handle.SetStatus(registry.StateConnecting)
	handle.SetReconnectAttempts(attempts)
	if err := s.registry.Register(handle); err != nil {
		// A concurrent initialize won the key; the fresh socket is
		// superfluous.
		socket.Close()
		logger.Warn("reconnect superseded by concurrent initialization")
		return
	}

	s.wg.Add(1)
	go s.eventLoop(handle, save, nil)
	logger.Info("reconnect dial succeeded", "attempt", attempts)
}

// retryResume schedules the next attempt after a failed resume, reusing the
// backoff schedule.
func (s *Service) retryResume(key registry.Key, phone string, method registry.AuthMethod, attempts int) {
	next := attempts + 1
	if s.policy.Exhausted(next) {
		s.logger.Error("reconnection attempts exhausted after failed resume",
			"tenant_id", key.TenantID,
			"instance_id", key.InstanceID)
		s.upsertTenantStatus(key, string(registry.StateFailed), "")
		s.emit(notify.EventFailed, key, map[string]any{
			"reason": "reconnection attempts exhausted",
		})
		return
	}

	delay := s.policy.Delay(next)
	s.emit(notify.EventReconnecting, key, map[string]any{
		"attempt": next,
		"delay":   delay.String(),
	})

	pending := newPendingResume()
	s.mu.Lock()
	s.waits[key] = pending
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-pending.skip:
		case <-pending.abort:
			s.clearPending(key, pending)
			return
		case <-s.processCtx().Done():
			s.clearPending(key, pending)
			return
		}

		s.resume(key, phone, method, next, pending)
	}()
}

// Disconnect logs the instance out of the network, deletes its session
// directory, and removes the handle. This is the only path that destroys
// the stored credentials.
func (s *Service) Disconnect(ctx context.Context, key registry.Key) error {
	logger := s.logger.With("tenant_id", key.TenantID, "instance_id", key.InstanceID)

	unlock := s.registry.LockKey(key)
	defer unlock()

	hadPending := s.abortPending(key)

	handle, ok := s.registry.Get(key)
	if !ok {
		if !hadPending {
			return registry.ErrNotFound
		}
		// A resume was waiting out its backoff with no live handle.
		// The abort above stops it; only the session teardown remains.
		if err := s.sessions.RemoveSession(key); err != nil {
			logger.Error("failed to remove session directory", "error", err)
		}
		s.upsertTenantStatus(key, string(registry.StateDisconnected), "")
		s.emit(notify.EventDisconnected, key, map[string]any{
			"reason":    "logout",
			"permanent": true,
		})
		logger.Info("pending reconnect aborted and session removed")
		return nil
	}

	// Mark the close as manual only while the event loop is still alive.
	// A handle sitting in Disconnected or Reconnecting already saw its
	// close; a stale marker would swallow the first close of a future
	// incarnation of this key.
	switch handle.Status() {
	case registry.StateDisconnected, registry.StateReconnecting, registry.StateRemoved, registry.StateFailed:
	default:
		s.setManual(key)
	}

	if sock := handle.Socket(); sock != nil {
		if err := sock.Logout(ctx); err != nil {
			logger.Warn("network logout failed, proceeding with teardown", "error", err)
		}
		if err := sock.Close(); err != nil {
			logger.Warn("socket close failed", "error", err)
		}
	}

	if err := s.sessions.RemoveSession(key); err != nil {
		logger.Error("failed to remove session directory", "error", err)
	}

	handle.SetStatus(registry.StateRemoved)
	s.registry.Remove(key)
	s.upsertTenantStatus(key, string(registry.StateDisconnected), "")
	s.emit(notify.EventDisconnected, key, map[string]any{
		"reason":    "logout",
		"permanent": true,
	})
	logger.Info("instance disconnected and session removed")
	return nil
}

// abortPending cancels any scheduled resume for key. Callers hold the key
// lock, so a resume racing past its timer still observes the abort before
// it can redial.
func (s *Service) abortPending(key registry.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.waits[key]
	if !ok {
		return false
	}
	p.requestAbort()
	delete(s.waits, key)
	return true
}

// ForceReconnect tears the connection down and redials immediately. An
// in-flight backoff wait, if any, is skipped instead.
func (s *Service) ForceReconnect(ctx context.Context, key registry.Key) error {
	logger := s.logger.With("tenant_id", key.TenantID, "instance_id", key.InstanceID)

	s.mu.Lock()
	if pending, ok := s.waits[key]; ok {
		s.mu.Unlock()
		pending.requestSkip()
		logger.Info("force-reconnect skipping backoff wait")
		return nil
	}
	s.mu.Unlock()

	unlock := s.registry.LockKey(key)
	handle, ok := s.registry.Get(key)
	if !ok {
		unlock()
		return registry.ErrNotFound
	}

	switch handle.Status() {
	case registry.StateDisconnected, registry.StateReconnecting, registry.StateRemoved, registry.StateFailed:
		// Event loop already gone; no close event is coming.
	default:
		s.setManual(key)
	}
	phone := handle.PhoneNumber()
	method := handle.AuthMethod

	if sock := handle.Socket(); sock != nil {
		if err := sock.Close(); err != nil {
			logger.Warn("socket close failed during force-reconnect", "error", err)
		}
	}
	s.registry.Remove(key)
	unlock()

	logger.Info("force-reconnect tearing down and redialing")
	s.resume(key, phone, method, 0, nil)
	return nil
}

// retentionSweep periodically removes stale session directories.
func (s *Service) retentionSweep() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepEach)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed, err := s.sessions.CleanupOldSessions(s.retention)
			if err != nil {
				s.logger.Error("session retention sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				s.logger.Info("session retention sweep removed stale sessions",
					"removed", removed)
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// processCtx returns the service-lifetime context, or Background before
// Start has run (tests drive the service without Start).
func (s *Service) processCtx() context.Context {
	if s.ctx != nil {
		return s.ctx
	}
	return context.Background()
}

// upsertTenantStatus mirrors a state change into the durable tenant record.
// Failures are logged: durable records lag reality rather than blocking it.
func (s *Service) upsertTenantStatus(key registry.Key, status, phone string) {
	if s.tenants == nil {
		return
	}

	upd := store.StatusUpdate{
		InstanceID:   key.InstanceID,
		InstanceName: key.InstanceID,
		Status:       status,
	}
	if phone != "" {
		upd.PhoneNumber = &phone
	}
	if status == string(registry.StateConnected) {
		now := time.Now()
		upd.LastConnectedAt = &now
	}

	ctx, cancel := context.WithTimeout(s.processCtx(), 5*time.Second)
	defer cancel()

	if err := s.tenants.UpsertInstanceStatus(ctx, key.TenantID, upd); err != nil {
		s.logger.Error("tenant record upsert failed",
			"tenant_id", key.TenantID,
			"instance_id", key.InstanceID,
			"status", status,
			"error", err)
	}
}

// emit publishes a lifecycle notification. Fire-and-forget.
func (s *Service) emit(name string, key registry.Key, payload map[string]any) {
	s.notify.Emit(notify.Event{
		Name:       name,
		TenantID:   key.TenantID,
		InstanceID: key.InstanceID,
		Payload:    payload,
		Timestamp:  time.Now(),
	})
}

// setManual marks the key's next close event as operator-initiated.
func (s *Service) setManual(key registry.Key) {
	s.mu.Lock()
	s.manual[key] = true
	s.mu.Unlock()
}

// consumeManual reads and clears the manual-close mark for a key.
func (s *Service) consumeManual(key registry.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manual[key] {
		delete(s.manual, key)
		return true
	}
	return false
}

// qrResolver delivers the first QR offer to the initialization flow exactly
// once. Later offers (the network refreshes QR codes) are dropped by the
// once; an offer arriving after the timeout parks harmlessly in the buffer.
type qrResolver struct {
	once sync.Once
	ch   chan string
}

func newQRResolver() *qrResolver {
	return &qrResolver{ch: make(chan string, 1)}
}

func (r *qrResolver) offer(code string) {
	r.once.Do(func() { r.ch <- code })
}
