// ABOUTME: Tests for the connection lifecycle: auth negotiation, reconnection, and teardown.
// ABOUTME: Drives the service through fake sockets with scripted events and short backoff.

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/wagate/internal/queue"
	"github.com/2389/wagate/internal/registry"
	"github.com/2389/wagate/internal/session"
	"github.com/2389/wagate/internal/store"
	"github.com/2389/wagate/internal/wa"
)

var testKey = registry.Key{TenantID: "acme", InstanceID: "main"}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testLoader returns an AuthLoader producing credentials with the given
// registration state; save reports saveErr.
func testLoader(registered bool, saveErr error) wa.AuthLoader {
	return func(dir string) (*wa.AuthState, wa.SaveCredsFunc, error) {
		if err := os.WriteFile(filepath.Join(dir, "creds.json"), []byte(`{}`), 0o644); err != nil {
			return nil, nil, err
		}
		save := func() error { return saveErr }
		return &wa.AuthState{Creds: &wa.Credentials{Registered: registered}}, save, nil
	}
}

type serviceParams struct {
	loader    wa.AuthLoader
	qrTimeout time.Duration
	retry     RetryPolicy
	tenants   store.TenantStore
	queue     queue.Enqueuer
}

func newTestService(t *testing.T, dialer *fakeDialer, p serviceParams) (*Service, *recordSink) {
	t.Helper()

	if p.loader == nil {
		p.loader = testLoader(false, nil)
	}
	if p.retry.MaxAttempts == 0 {
		p.retry = RetryPolicy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, Multiplier: 1.5, MaxDelay: 50 * time.Millisecond}
	}
	if p.qrTimeout == 0 {
		p.qrTimeout = 200 * time.Millisecond
	}
	if p.queue == nil {
		p.queue = queue.NewMemQueue()
	}

	sessions, err := session.NewStore(session.Config{
		Root:   t.TempDir(),
		Loader: p.loader,
		Logger: testLogger(),
		Sleep:  func(time.Duration) {},
	})
	require.NoError(t, err)
	t.Cleanup(sessions.Close)

	sink := &recordSink{}
	svc, err := New(Deps{
		Registry:  registry.New(testLogger()),
		Sessions:  sessions,
		Tenants:   p.tenants,
		Queue:     p.queue,
		Notify:    sink,
		Dialer:    dialer,
		Retry:     p.retry,
		QRTimeout: p.qrTimeout,
		Logger:    testLogger(),
	})
	require.NoError(t, err)

	svc.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		svc.Shutdown(ctx)
	})
	return svc, sink
}

func initPairing(t *testing.T, svc *Service) InitResult {
	t.Helper()
	return svc.InitializeInstance(context.Background(), InitRequest{
		TenantID:    "acme",
		InstanceID:  "main",
		PhoneNumber: "+55 11 99999-8888",
		AuthMethod:  registry.AuthPairingCode,
	})
}

func TestInitializeInstance(t *testing.T) {
	t.Run("pairing code flow", func(t *testing.T) {
		dialer := &fakeDialer{onDial: func(s *fakeSocket) { s.pairingCode = "ABCD1234" }}
		svc, sink := newTestService(t, dialer, serviceParams{})

		res := initPairing(t, svc)
		require.True(t, res.Success, res.Error)
		assert.Equal(t, registry.StatePairingPending, res.Status)
		assert.Equal(t, "ABCD1234", res.PairingCode)
		assert.Empty(t, res.QRCode)

		// Phone is sanitized to digits before the SDK sees it.
		assert.Equal(t, "5511999998888", dialer.socket(0).pairingRequest())
		require.Len(t, sink.named("pairing_code_generated"), 1)

		// Open event completes the flow.
		dialer.socket(0).emit(wa.ConnectionChanged{Event: wa.Opened{SelfJID: "5511999998888:3@s.whatsapp.net"}})
		require.Eventually(t, func() bool {
			return svc.IsConnected(testKey)
		}, time.Second, 5*time.Millisecond)

		st, err := svc.GetStatus(testKey)
		require.NoError(t, err)
		assert.Equal(t, registry.StateConnected, st)

		h := svc.GetHealth(testKey)
		assert.Equal(t, 0, h.ReconnectAttempts)
		assert.Equal(t, "5511999998888", h.PhoneNumber)
	})

	t.Run("pairing failure advises QR", func(t *testing.T) {
		dialer := &fakeDialer{onDial: func(s *fakeSocket) { s.pairingErr = errors.New("rate limited") }}
		svc, _ := newTestService(t, dialer, serviceParams{})

		res := initPairing(t, svc)
		assert.False(t, res.Success)
		assert.Equal(t, registry.StateFailed, res.Status)
		assert.Contains(t, res.Error, "QR code")

		// Failed instance is deregistered so the caller can retry.
		_, err := svc.GetStatus(testKey)
		assert.ErrorIs(t, err, registry.ErrNotFound)
	})

	t.Run("pairing without phone number fails", func(t *testing.T) {
		svc, _ := newTestService(t, &fakeDialer{}, serviceParams{})

		res := svc.InitializeInstance(context.Background(), InitRequest{
			TenantID:   "acme",
			InstanceID: "main",
			AuthMethod: registry.AuthPairingCode,
		})
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "phone number")
	})

	t.Run("QR flow", func(t *testing.T) {
		dialer := &fakeDialer{onDial: func(s *fakeSocket) {
			s.emit(wa.ConnectionChanged{Event: wa.QRCode{Code: "qr-payload"}})
		}}
		svc, sink := newTestService(t, dialer, serviceParams{})

		res := svc.InitializeInstance(context.Background(), InitRequest{
			TenantID:   "acme",
			InstanceID: "main",
			AuthMethod: registry.AuthQRCode,
		})
		require.True(t, res.Success, res.Error)
		assert.Equal(t, registry.StateQRPending, res.Status)
		assert.True(t, strings.HasPrefix(res.QRCode, "data:image/png;base64,"))
		assert.Empty(t, res.PairingCode)
		require.Len(t, sink.named("qr_generated"), 1)
	})

	t.Run("QR timeout resolves exactly once", func(t *testing.T) {
		dialer := &fakeDialer{}
		svc, _ := newTestService(t, dialer, serviceParams{qrTimeout: 50 * time.Millisecond})

		res := svc.InitializeInstance(context.Background(), InitRequest{
			TenantID:   "acme",
			InstanceID: "main",
			AuthMethod: registry.AuthQRCode,
		})
		assert.False(t, res.Success)
		assert.Equal(t, registry.StateFailed, res.Status)
		assert.Contains(t, res.Error, "timeout")

		// A QR arriving after the timeout must be inert.
		dialer.socket(0).emit(wa.ConnectionChanged{Event: wa.QRCode{Code: "late"}})
		time.Sleep(20 * time.Millisecond)
		_, err := svc.GetStatus(testKey)
		assert.ErrorIs(t, err, registry.ErrNotFound)
	})

	t.Run("duplicate key rejected without second socket", func(t *testing.T) {
		dialer := &fakeDialer{onDial: func(s *fakeSocket) { s.pairingCode = "CODE" }}
		svc, _ := newTestService(t, dialer, serviceParams{})

		first := initPairing(t, svc)
		require.True(t, first.Success)

		second := initPairing(t, svc)
		assert.False(t, second.Success)
		assert.Contains(t, second.Error, "already running")
		assert.Equal(t, 1, dialer.dialCount())
	})

	t.Run("registered session resumes without pairing", func(t *testing.T) {
		dialer := &fakeDialer{}
		svc, _ := newTestService(t, dialer, serviceParams{loader: testLoader(true, nil)})

		res := initPairing(t, svc)
		require.True(t, res.Success, res.Error)
		assert.Equal(t, registry.StateConnecting, res.Status)
		assert.Empty(t, res.PairingCode)
		assert.Empty(t, dialer.socket(0).pairingRequest())
	})

	t.Run("dial failure", func(t *testing.T) {
		dialer := &fakeDialer{dialErr: errors.New("network unreachable")}
		svc, _ := newTestService(t, dialer, serviceParams{})

		res := initPairing(t, svc)
		assert.False(t, res.Success)
		assert.Equal(t, registry.StateFailed, res.Status)
		assert.Contains(t, res.Error, "network unreachable")
	})
}

// connect brings an instance to Connected through the registered-session
// resume path.
func connect(t *testing.T, svc *Service, dialer *fakeDialer) {
	t.Helper()
	res := initPairing(t, svc)
	require.True(t, res.Success, res.Error)
	dialer.socket(dialer.dialCount() - 1).emit(wa.ConnectionChanged{
		Event: wa.Opened{SelfJID: "5511999998888@s.whatsapp.net"},
	})
	require.Eventually(t, func() bool {
		return svc.IsConnected(testKey)
	}, time.Second, 5*time.Millisecond)
}

func TestCloseHandling(t *testing.T) {
	t.Run("transient close reconnects", func(t *testing.T) {
		dialer := &fakeDialer{}
		svc, sink := newTestService(t, dialer, serviceParams{loader: testLoader(true, nil)})
		connect(t, svc, dialer)

		dialer.socket(0).fireClose(wa.CodeConnectionLost)

		require.Eventually(t, func() bool {
			return dialer.dialCount() == 2
		}, time.Second, 5*time.Millisecond)
		require.NotEmpty(t, sink.named("reconnecting"))

		// The replacement connects and the counter resets.
		dialer.socket(1).emit(wa.ConnectionChanged{Event: wa.Opened{SelfJID: "5511999998888@s.whatsapp.net"}})
		require.Eventually(t, func() bool {
			return svc.IsConnected(testKey)
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, 0, svc.GetHealth(testKey).ReconnectAttempts)
	})

	t.Run("logged out removes instance with no reconnection", func(t *testing.T) {
		dialer := &fakeDialer{}
		svc, sink := newTestService(t, dialer, serviceParams{loader: testLoader(true, nil)})
		connect(t, svc, dialer)

		dialer.socket(0).fireClose(wa.CodeLoggedOut)

		require.Eventually(t, func() bool {
			_, err := svc.GetStatus(testKey)
			return errors.Is(err, registry.ErrNotFound)
		}, time.Second, 5*time.Millisecond)
		assert.False(t, svc.IsConnected(testKey))

		// No reconnection attempt materializes.
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, 1, dialer.dialCount())
		assert.Empty(t, sink.named("reconnecting"))

		// Session directory survives a permanent close; only explicit
		// disconnect deletes it.
		assert.True(t, svc.GetHealth(testKey).SessionExists)
	})

	t.Run("connection replaced is permanent", func(t *testing.T) {
		dialer := &fakeDialer{}
		svc, _ := newTestService(t, dialer, serviceParams{loader: testLoader(true, nil)})
		connect(t, svc, dialer)

		dialer.socket(0).fireClose(wa.CodeConnectionReplaced)

		require.Eventually(t, func() bool {
			_, err := svc.GetStatus(testKey)
			return errors.Is(err, registry.ErrNotFound)
		}, time.Second, 5*time.Millisecond)
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 1, dialer.dialCount())
	})

	t.Run("reconnection gives up after max attempts", func(t *testing.T) {
		dialer := &fakeDialer{}
		svc, sink := newTestService(t, dialer, serviceParams{
			loader: testLoader(true, nil),
			retry:  RetryPolicy{MaxAttempts: 2, BaseDelay: 5 * time.Millisecond, Multiplier: 1.5, MaxDelay: 10 * time.Millisecond},
		})
		connect(t, svc, dialer)

		// Every replacement socket dies immediately.
		go func() {
			for {
				n := dialer.dialCount()
				for i := 0; i < n; i++ {
					dialer.socket(i).fireClose(wa.CodeConnectionLost)
				}
				if len(sink.named("failed")) > 0 {
					return
				}
				time.Sleep(2 * time.Millisecond)
			}
		}()

		require.Eventually(t, func() bool {
			return len(sink.named("failed")) > 0
		}, 2*time.Second, 10*time.Millisecond)
	})
}

func TestSend(t *testing.T) {
	t.Run("send on disconnected instance never touches socket", func(t *testing.T) {
		dialer := &fakeDialer{}
		svc, _ := newTestService(t, dialer, serviceParams{loader: testLoader(true, nil)})
		res := initPairing(t, svc) // still Connecting, no open event
		require.True(t, res.Success)

		var wg sync.WaitGroup
		results := make([]SendResult, 2)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = svc.SendText(context.Background(), testKey, "5511988887777", "hi")
			}(i)
		}
		wg.Wait()

		for _, r := range results {
			assert.False(t, r.Success)
			assert.Contains(t, r.Error, "not connected")
		}
		assert.Equal(t, 0, dialer.socket(0).sendCount())
	})

	t.Run("send on missing instance", func(t *testing.T) {
		svc, _ := newTestService(t, &fakeDialer{}, serviceParams{})
		r := svc.SendText(context.Background(), testKey, "5511988887777", "hi")
		assert.False(t, r.Success)
		assert.Contains(t, r.Error, "not connected")
	})

	t.Run("successful text send", func(t *testing.T) {
		dialer := &fakeDialer{}
		svc, _ := newTestService(t, dialer, serviceParams{loader: testLoader(true, nil)})
		connect(t, svc, dialer)

		r := svc.SendText(context.Background(), testKey, "+55 11 98888-7777", "hello")
		require.True(t, r.Success, r.Error)
		assert.Equal(t, "sent-1", r.MessageID)
		assert.Equal(t, []string{"5511988887777@s.whatsapp.net"}, dialer.socket(0).sentJIDs)
	})

	t.Run("SDK error becomes failure result", func(t *testing.T) {
		dialer := &fakeDialer{onDial: func(s *fakeSocket) { s.sendErr = errors.New("media too large") }}
		svc, _ := newTestService(t, dialer, serviceParams{loader: testLoader(true, nil)})
		connect(t, svc, dialer)

		r := svc.SendMedia(context.Background(), testKey, "5511988887777", []byte{1, 2}, "cap")
		assert.False(t, r.Success)
		assert.Contains(t, r.Error, "media too large")
	})
}

func TestVerifyConnection(t *testing.T) {
	t.Run("sends to own JID", func(t *testing.T) {
		dialer := &fakeDialer{onDial: func(s *fakeSocket) { s.selfJID = "5511999998888@s.whatsapp.net" }}
		svc, _ := newTestService(t, dialer, serviceParams{loader: testLoader(true, nil)})
		connect(t, svc, dialer)

		ok, err := svc.VerifyConnection(context.Background(), testKey)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Contains(t, dialer.socket(0).sentJIDs, "5511999998888@s.whatsapp.net")
	})

	t.Run("not connected", func(t *testing.T) {
		svc, _ := newTestService(t, &fakeDialer{}, serviceParams{})
		ok, err := svc.VerifyConnection(context.Background(), testKey)
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrNotConnected)
	})
}

func TestGetProfilePicture(t *testing.T) {
	t.Run("fetches by formatted JID", func(t *testing.T) {
		dialer := &fakeDialer{onDial: func(s *fakeSocket) { s.picURL = "https://pps.whatsapp.net/v/abc.jpg" }}
		svc, _ := newTestService(t, dialer, serviceParams{loader: testLoader(true, nil)})
		connect(t, svc, dialer)

		url, err := svc.GetProfilePicture(context.Background(), testKey, "+55 11 98888-7777")
		require.NoError(t, err)
		assert.Equal(t, "https://pps.whatsapp.net/v/abc.jpg", url)
		assert.Equal(t, "5511988887777@s.whatsapp.net", dialer.socket(0).lastPicRequest())
	})

	t.Run("not connected", func(t *testing.T) {
		svc, _ := newTestService(t, &fakeDialer{}, serviceParams{})
		_, err := svc.GetProfilePicture(context.Background(), testKey, "5511988887777")
		assert.ErrorIs(t, err, ErrNotConnected)
	})
}

func TestDisconnect(t *testing.T) {
	t.Run("logs out and removes session", func(t *testing.T) {
		dialer := &fakeDialer{}
		svc, _ := newTestService(t, dialer, serviceParams{loader: testLoader(true, nil)})
		connect(t, svc, dialer)
		require.True(t, svc.GetHealth(testKey).SessionExists)

		require.NoError(t, svc.Disconnect(context.Background(), testKey))

		assert.True(t, dialer.socket(0).wasLoggedOut())
		_, err := svc.GetStatus(testKey)
		assert.ErrorIs(t, err, registry.ErrNotFound)
		assert.False(t, svc.GetHealth(testKey).SessionExists)

		// No reconnection after an explicit disconnect.
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 1, dialer.dialCount())

		assert.ErrorIs(t, svc.Disconnect(context.Background(), testKey), registry.ErrNotFound)
	})

	t.Run("cancels a scheduled reconnect", func(t *testing.T) {
		dialer := &fakeDialer{}
		svc, sink := newTestService(t, dialer, serviceParams{
			loader: testLoader(true, nil),
			retry:  RetryPolicy{MaxAttempts: 3, BaseDelay: 80 * time.Millisecond, Multiplier: 1, MaxDelay: 80 * time.Millisecond},
		})
		connect(t, svc, dialer)

		dialer.socket(0).fireClose(wa.CodeConnectionLost)
		require.Eventually(t, func() bool {
			return len(sink.named("reconnecting")) > 0
		}, time.Second, 5*time.Millisecond)

		require.NoError(t, svc.Disconnect(context.Background(), testKey))
		assert.False(t, svc.GetHealth(testKey).SessionExists)

		// The backoff elapses without redialing or recreating the
		// session directory.
		time.Sleep(200 * time.Millisecond)
		assert.Equal(t, 1, dialer.dialCount())
		h := svc.GetHealth(testKey)
		assert.False(t, h.Running)
		assert.False(t, h.SessionExists)
	})

	t.Run("aborts a reconnect waiting after a failed redial", func(t *testing.T) {
		dialer := &fakeDialer{}
		svc, sink := newTestService(t, dialer, serviceParams{
			loader: testLoader(true, nil),
			retry:  RetryPolicy{MaxAttempts: 6, BaseDelay: 20 * time.Millisecond, Multiplier: 1, MaxDelay: 20 * time.Millisecond},
		})
		connect(t, svc, dialer)

		// The redial fails, parking recovery in a retry wait with no
		// live handle registered.
		dialer.setDialErr(errors.New("network unreachable"))
		dialer.socket(0).fireClose(wa.CodeConnectionLost)
		require.Eventually(t, func() bool {
			return len(sink.named("reconnecting")) >= 2
		}, time.Second, 5*time.Millisecond)

		require.NoError(t, svc.Disconnect(context.Background(), testKey))
		dialer.setDialErr(nil)

		time.Sleep(150 * time.Millisecond)
		assert.Equal(t, 1, dialer.dialCount())
		assert.False(t, svc.GetHealth(testKey).Running)
		assert.False(t, svc.GetHealth(testKey).SessionExists)
	})
}

func TestForceReconnect(t *testing.T) {
	t.Run("tears down and redials immediately", func(t *testing.T) {
		dialer := &fakeDialer{}
		svc, _ := newTestService(t, dialer, serviceParams{loader: testLoader(true, nil)})
		connect(t, svc, dialer)

		require.NoError(t, svc.ForceReconnect(context.Background(), testKey))

		assert.Equal(t, 2, dialer.dialCount())
		dialer.socket(1).emit(wa.ConnectionChanged{Event: wa.Opened{SelfJID: "5511999998888@s.whatsapp.net"}})
		require.Eventually(t, func() bool {
			return svc.IsConnected(testKey)
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("skips a pending backoff wait", func(t *testing.T) {
		dialer := &fakeDialer{}
		svc, sink := newTestService(t, dialer, serviceParams{
			loader: testLoader(true, nil),
			retry:  RetryPolicy{MaxAttempts: 3, BaseDelay: 10 * time.Second, Multiplier: 1, MaxDelay: 10 * time.Second},
		})
		connect(t, svc, dialer)

		dialer.socket(0).fireClose(wa.CodeConnectionLost)
		require.Eventually(t, func() bool {
			return len(sink.named("reconnecting")) > 0
		}, time.Second, 5*time.Millisecond)

		// The backoff would hold for 10s; force-reconnect jumps it.
		require.NoError(t, svc.ForceReconnect(context.Background(), testKey))
		require.Eventually(t, func() bool {
			return dialer.dialCount() == 2
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("unknown key", func(t *testing.T) {
		svc, _ := newTestService(t, &fakeDialer{}, serviceParams{})
		assert.ErrorIs(t, svc.ForceReconnect(context.Background(), testKey), registry.ErrNotFound)
	})
}

func TestDegradedCredentialPersistence(t *testing.T) {
	dialer := &fakeDialer{}
	svc, _ := newTestService(t, dialer, serviceParams{
		loader: testLoader(true, errors.New("disk full")),
	})
	connect(t, svc, dialer)

	dialer.socket(0).emit(wa.CredentialsChanged{})

	// The connection stays up; health surfaces the degradation.
	require.Eventually(t, func() bool {
		return svc.GetHealth(testKey).Degraded
	}, time.Second, 5*time.Millisecond)
	assert.True(t, svc.IsConnected(testKey))
}

func TestCredentialSavesApplyInArrivalOrder(t *testing.T) {
	// Each save writes a monotonically increasing revision; a burst of
	// credential updates must leave the highest revision on disk, with
	// every save applied in the order the events arrived.
	var (
		mu        sync.Mutex
		order     []int
		rev       int
		credsPath string
	)
	loader := func(dir string) (*wa.AuthState, wa.SaveCredsFunc, error) {
		path := filepath.Join(dir, "creds.json")
		if err := os.WriteFile(path, []byte(`{"rev":0}`), 0o644); err != nil {
			return nil, nil, err
		}
		mu.Lock()
		credsPath = path
		mu.Unlock()
		save := func() error {
			mu.Lock()
			defer mu.Unlock()
			rev++
			order = append(order, rev)
			return os.WriteFile(path, []byte(fmt.Sprintf(`{"rev":%d}`, rev)), 0o644)
		}
		return &wa.AuthState{Creds: &wa.Credentials{Registered: true}}, save, nil
	}

	dialer := &fakeDialer{}
	svc, _ := newTestService(t, dialer, serviceParams{loader: loader})
	connect(t, svc, dialer)

	for i := 0; i < 5; i++ {
		dialer.socket(0).emit(wa.CredentialsChanged{})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 5
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, order)
	data, err := os.ReadFile(credsPath)
	require.NoError(t, err)
	assert.Equal(t, `{"rev":5}`, string(data))
}

func TestInboundMessagesReachQueue(t *testing.T) {
	dialer := &fakeDialer{}
	q := queue.NewMemQueue()
	svc, _ := newTestService(t, dialer, serviceParams{loader: testLoader(true, nil), queue: q})
	connect(t, svc, dialer)

	dialer.socket(0).emit(wa.MessagesReceived{Messages: []wa.Message{{
		ID:        "m1",
		ChatJID:   "5511988887777@s.whatsapp.net",
		Kind:      wa.KindText,
		Body:      "hello",
		Timestamp: time.Now(),
	}}})

	require.Eventually(t, func() bool {
		return len(q.Jobs()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "process-message", q.Jobs()[0].Name)
}

func TestTenantRecordUpsertOnConnect(t *testing.T) {
	dialer := &fakeDialer{}
	mock := store.NewMockStore()
	svc, _ := newTestService(t, dialer, serviceParams{loader: testLoader(true, nil), tenants: mock})
	connect(t, svc, dialer)

	require.Eventually(t, func() bool {
		return mock.Upserts() > 0
	}, time.Second, 5*time.Millisecond)

	rec, err := mock.FindInstanceByTenant(context.Background(), "acme")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "connected", rec.Status)
	assert.NotNil(t, rec.LastConnectedAt)
}

func TestRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()

	assert.Equal(t, 5*time.Second, p.Delay(1))
	assert.Equal(t, 7500*time.Millisecond, p.Delay(2))
	assert.Equal(t, 60*time.Second, p.Delay(20)) // capped
	assert.False(t, p.Exhausted(10))
	assert.True(t, p.Exhausted(11))
}
