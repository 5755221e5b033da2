// ABOUTME: Fake dialer and socket for supervisor tests.
// ABOUTME: Scripted pairing codes, send receipts, and server-side close injection.

package supervisor

import (
	"context"
	"sync"

	"github.com/2389/wagate/internal/notify"
	"github.com/2389/wagate/internal/wa"
)

type fakeSocket struct {
	mu           sync.Mutex
	events       chan wa.Event
	pairingCode  string
	pairingErr   error
	pairingPhone string
	sendErr      error
	sendCalls    int
	sentJIDs     []string
	selfJID      string
	picURL       string
	picRequests  []string
	loggedOut    bool
	closed       bool
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{events: make(chan wa.Event, 16)}
}

func (f *fakeSocket) Events() <-chan wa.Event { return f.events }

// emit injects an event as if the network delivered it. Emits after the
// socket closed are dropped, like the real stream.
func (f *fakeSocket) emit(ev wa.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.events <- ev
}

// fireClose simulates a server-side close: the closed event is delivered,
// then the stream ends.
func (f *fakeSocket) fireClose(code wa.DisconnectCode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.events <- wa.ConnectionChanged{Event: wa.Closed{Code: code}}
	close(f.events)
}

func (f *fakeSocket) RequestPairingCode(_ context.Context, phone string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairingPhone = phone
	if f.pairingErr != nil {
		return "", f.pairingErr
	}
	return f.pairingCode, nil
}

func (f *fakeSocket) SendMessage(_ context.Context, jid string, _ wa.Payload) (*wa.SendReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	f.sentJIDs = append(f.sentJIDs, jid)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &wa.SendReceipt{MessageID: "sent-1", Timestamp: 1700000000}, nil
}

func (f *fakeSocket) FetchProfilePictureURL(_ context.Context, jid string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.picRequests = append(f.picRequests, jid)
	return f.picURL, nil
}

func (f *fakeSocket) lastPicRequest() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.picRequests) == 0 {
		return ""
	}
	return f.picRequests[len(f.picRequests)-1]
}

func (f *fakeSocket) SelfJID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selfJID
}

func (f *fakeSocket) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut = true
	return nil
}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.events <- wa.ConnectionChanged{Event: wa.Closed{Code: wa.CodeConnectionClosed}}
	close(f.events)
	return nil
}

func (f *fakeSocket) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sendCalls
}

func (f *fakeSocket) wasLoggedOut() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loggedOut
}

func (f *fakeSocket) pairingRequest() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pairingPhone
}

type fakeDialer struct {
	mu      sync.Mutex
	sockets []*fakeSocket
	dialErr error

	// onDial customizes each new socket before it is handed out.
	onDial func(*fakeSocket)
}

func (d *fakeDialer) Dial(_ context.Context, _ *wa.AuthState) (wa.Socket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	s := newFakeSocket()
	if d.onDial != nil {
		d.onDial(s)
	}
	d.sockets = append(d.sockets, s)
	return s, nil
}

func (d *fakeDialer) setDialErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialErr = err
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sockets)
}

func (d *fakeDialer) socket(i int) *fakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sockets[i]
}

// recordSink captures emitted notifications.
type recordSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordSink) Emit(e notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordSink) named(name string) []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Event
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
