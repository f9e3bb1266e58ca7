package stream

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	frames chan []byte
	errs   chan error

	mu     sync.Mutex
	writes [][]byte
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		errs:   make(chan error, 2),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case err := <-c.errs:
		return nil, err
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("write on closed conn")
	}
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close(normal bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	var err error = errors.New("connection force-closed")
	if normal {
		err = fakeNormalClose{}
	}
	select {
	case c.errs <- err:
	default:
	}
	return nil
}

func (c *fakeConn) wroteFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

type fakeNormalClose struct{}

func (fakeNormalClose) Error() string { return "normal closure" }
func (fakeNormalClose) NormalClose() bool { return true }

type fakeDialer struct {
	mu      sync.Mutex
	conns   []*fakeConn
	dialErr error
	count   int
}

func (d *fakeDialer) Dial(endpoint string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count++
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	if len(d.conns) == 0 {
		return nil, errors.New("no transport available")
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

type recordingNotifier struct {
	mu      sync.Mutex
	entries []string
}

func (n *recordingNotifier) Notify(title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = append(n.entries, title)
}

func (n *recordingNotifier) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.entries))
	copy(out, n.entries)
	return out
}

func statusFrame(t *testing.T, jobID, status string, extra map[string]any) []byte {
	t.Helper()
	data := map[string]any{}
	if status != "" {
		data["status"] = status
	}
	for k, v := range extra {
		data[k] = v
	}
	raw, err := json.Marshal(map[string]any{
		"type":   TypeJobUpdate,
		"job_id": jobID,
		"data":   data,
	})
	require.NoError(t, err)
	return raw
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Endpoint = "ws://test.local/api/ws/jobs"
	opts.ReconnectInterval = 20 * time.Millisecond
	opts.HeartbeatInterval = time.Hour
	return opts
}

func TestSnapshotMergeIsFieldByField(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}

	var received []JobUpdate
	var mu sync.Mutex
	opts := testOptions()
	opts.OnJobUpdate = func(u JobUpdate) {
		mu.Lock()
		received = append(received, u)
		mu.Unlock()
	}

	ch, err := New(dialer, opts)
	require.NoError(t, err)
	defer ch.Close()

	conn.frames <- statusFrame(t, "job-1", "running", map[string]any{"progress": 40, "message": "running strings"})
	conn.frames <- statusFrame(t, "job-1", "", map[string]any{"progress": 60})

	assert.Eventually(t, func() bool {
		snap, ok := ch.GetJobUpdate("job-1")
		return ok && snap.Progress == 60
	}, time.Second, 5*time.Millisecond)

	// The second frame carried no status; absence means unchanged.
	snap, ok := ch.GetJobUpdate("job-1")
	require.True(t, ok)
	assert.Equal(t, "running", snap.Status)
	assert.Equal(t, "running strings", snap.Message)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Equal(t, "job-1", received[0].JobID)
}

func TestHeartbeatAckAndNoiseAreDropped(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}

	var count int
	var mu sync.Mutex
	opts := testOptions()
	opts.OnJobUpdate = func(JobUpdate) {
		mu.Lock()
		count++
		mu.Unlock()
	}

	ch, err := New(dialer, opts)
	require.NoError(t, err)
	defer ch.Close()

	conn.frames <- []byte("pong")
	conn.frames <- []byte("{definitely not json")
	conn.frames <- statusFrame(t, "job-1", "queued", nil)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, time.Second, 5*time.Millisecond)

	// Parse noise is swallowed entirely, not surfaced as a channel error.
	assert.NoError(t, ch.Err())
	assert.True(t, ch.IsConnected())
}

func TestUnexpectedCloseReconnectsAfterDelay(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{first, second}}

	ch, err := New(dialer, testOptions())
	require.NoError(t, err)
	defer ch.Close()

	assert.Eventually(t, ch.IsConnected, time.Second, 5*time.Millisecond)

	first.errs <- errors.New("abnormal closure (1006)")

	assert.Eventually(t, func() bool {
		return ch.IsConnected() && dialer.dialCount() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestNormalClosureIsTerminal(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}

	ch, err := New(dialer, testOptions())
	require.NoError(t, err)
	defer ch.Close()

	assert.Eventually(t, ch.IsConnected, time.Second, 5*time.Millisecond)

	conn.errs <- fakeNormalClose{}

	assert.Eventually(t, func() bool { return !ch.IsConnected() }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, dialer.dialCount())
}

func TestCloseCancelsPendingReconnect(t *testing.T) {
	dialer := &fakeDialer{dialErr: errors.New("connection refused")}

	var delivered int
	var mu sync.Mutex
	opts := testOptions()
	opts.ReconnectInterval = 30 * time.Millisecond
	opts.OnJobUpdate = func(JobUpdate) {
		mu.Lock()
		delivered++
		mu.Unlock()
	}

	ch, err := New(dialer, opts)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return dialer.dialCount() >= 1 }, time.Second, 5*time.Millisecond)
	ch.Close()
	countAtClose := dialer.dialCount()

	// The retry delay elapses several times over; no late timer may fire.
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, countAtClose, dialer.dialCount())

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, delivered)
}

func TestManualReconnectBypassesDelay(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{first, second}}

	opts := testOptions()
	opts.ReconnectInterval = time.Hour

	ch, err := New(dialer, opts)
	require.NoError(t, err)
	defer ch.Close()

	assert.Eventually(t, ch.IsConnected, time.Second, 5*time.Millisecond)

	ch.Reconnect()

	assert.Eventually(t, func() bool {
		return dialer.dialCount() == 2 && ch.IsConnected()
	}, time.Second, 5*time.Millisecond)
}

func TestHeartbeatSendsPing(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}

	opts := testOptions()
	opts.HeartbeatInterval = 15 * time.Millisecond

	ch, err := New(dialer, opts)
	require.NoError(t, err)
	defer ch.Close()

	assert.Eventually(t, func() bool {
		for _, frame := range conn.wroteFrames() {
			if string(frame) == "ping" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestStatusEdgeNotifications(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	notifier := &recordingNotifier{}

	opts := testOptions()
	opts.EnableNotifications = true
	opts.Notifier = notifier

	ch, err := New(dialer, opts)
	require.NoError(t, err)
	defer ch.Close()

	conn.frames <- statusFrame(t, "job-1", "queued", nil)
	conn.frames <- statusFrame(t, "job-1", "running", nil)
	conn.frames <- statusFrame(t, "job-1", "running", nil) // unchanged, no edge
	conn.frames <- statusFrame(t, "job-1", "completed", map[string]any{
		"flag_candidates": []map[string]any{{"value": "CTF{x}", "confidence": 0.9, "source": "strings output"}},
	})
	conn.frames <- statusFrame(t, "job-2", "failed", map[string]any{"error_message": "sandbox timeout"})

	assert.Eventually(t, func() bool {
		return len(notifier.titles()) == 3
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"Analysis Started", "Analysis Complete", "Analysis Failed"}, notifier.titles())
}

func TestEndpointURLDerivation(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		jobID   string
		want    string
		wantErr bool
	}{
		{name: "https to wss", base: "https://ctf.example.com", want: "wss://ctf.example.com/api/ws/jobs"},
		{name: "http to ws", base: "http://localhost:8000", want: "ws://localhost:8000/api/ws/jobs"},
		{name: "job scoped", base: "https://ctf.example.com", jobID: "job-9", want: "wss://ctf.example.com/api/ws/jobs/job-9"},
		{name: "already ws", base: "ws://localhost:8000", want: "ws://localhost:8000/api/ws/jobs"},
		{name: "bad scheme", base: "ftp://nope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EndpointURL(tt.base, tt.jobID)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
