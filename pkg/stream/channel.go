package stream

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Conn is the minimal transport surface the channel needs. The production
// implementation wraps a websocket connection; tests supply fakes.
type Conn interface {
	// ReadMessage blocks until a frame arrives or the connection drops.
	ReadMessage() ([]byte, error)
	// WriteMessage sends one text frame.
	WriteMessage(data []byte) error
	// Close tears the transport down, with a normal-closure code when
	// normal is true.
	Close(normal bool) error
}

// Dialer establishes transports. Dial errors are treated like unexpected
// closes: recorded and retried on the reconnect schedule.
type Dialer interface {
	Dial(endpoint string) (Conn, error)
}

// closeClassifier lets transports flag a read error as a deliberate normal
// closure, which must not trigger a reconnect.
type closeClassifier interface {
	NormalClose() bool
}

func isNormalClose(err error) bool {
	if cc, ok := err.(closeClassifier); ok {
		return cc.NormalClose()
	}
	return false
}

// Notifier receives the one-shot human-readable status-edge notifications.
type Notifier interface {
	Notify(title, message string)
}

type logNotifier struct{}

func (logNotifier) Notify(title, message string) {
	log.Printf("stream: %s: %s", title, message)
}

// Options configures one Channel instance. Scope (JobID) is fixed for the
// instance lifetime; changing scope means creating a new channel.
type Options struct {
	// Endpoint is the feed address. Derive it with EndpointURL when only
	// the API origin is known.
	Endpoint string

	// JobID scopes the feed to a single job when set.
	JobID string

	// OnJobUpdate is an initial subscriber, registered before the first
	// connect attempt.
	OnJobUpdate func(JobUpdate)

	AutoReconnect     bool
	ReconnectInterval time.Duration
	HeartbeatInterval time.Duration

	EnableNotifications bool
	Notifier            Notifier
}

// DefaultOptions mirrors the feed client defaults: auto-reconnect every 3s,
// heartbeat every 30s.
func DefaultOptions() Options {
	return Options{
		AutoReconnect:     true,
		ReconnectInterval: 3 * time.Second,
		HeartbeatInterval: 30 * time.Second,
	}
}

// Channel maintains one live job-update feed connection: it reconnects on
// unexpected drops, answers the heartbeat, keeps per-job snapshots and fans
// messages out to subscribers in arrival order.
type Channel struct {
	opts   Options
	dialer Dialer

	mu          sync.Mutex
	conn        Conn
	connected   bool
	closed      bool
	lastErr     error
	lastMsg     *JobUpdate
	snapshots   map[string]*JobSnapshot
	subscribers map[int]func(JobUpdate)
	nextSubID   int

	reconnectNow chan struct{}
	done         chan struct{}
	wg           sync.WaitGroup
}

// New starts a channel with the given transport dialer. The connection
// sequence begins immediately.
func New(dialer Dialer, opts Options) (*Channel, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("stream: endpoint is required")
	}
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = 3 * time.Second
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	if opts.Notifier == nil {
		opts.Notifier = logNotifier{}
	}

	c := &Channel{
		opts:         opts,
		dialer:       dialer,
		snapshots:    make(map[string]*JobSnapshot),
		subscribers:  make(map[int]func(JobUpdate)),
		reconnectNow: make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	if opts.OnJobUpdate != nil {
		c.subscribers[c.nextSubID] = opts.OnJobUpdate
		c.nextSubID++
	}

	c.wg.Add(1)
	go c.run()
	return c, nil
}

// Subscribe registers a callback for every forwarded message and returns
// its unsubscribe function.
func (c *Channel) Subscribe(fn func(JobUpdate)) func() {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

// IsConnected reports whether the transport is currently open.
func (c *Channel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// LastMessage returns the most recent forwarded message, nil before the
// first one.
func (c *Channel) LastMessage() *JobUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastMsg
}

// Err returns the last transport or dial error. A successful open clears it.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// GetJobUpdate returns the merged live snapshot for a job id.
func (c *Channel) GetJobUpdate(jobID string) (JobSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.snapshots[jobID]
	if !ok {
		return JobSnapshot{}, false
	}
	return *snap, true
}

// ClearJobUpdate drops the snapshot for a job id. This is the only eviction
// path; the channel itself never expires entries.
func (c *Channel) ClearJobUpdate(jobID string) {
	c.mu.Lock()
	delete(c.snapshots, jobID)
	c.mu.Unlock()
}

// Reconnect discards the current transport and restarts the connect
// sequence immediately, bypassing the retry delay.
func (c *Channel) Reconnect() {
	select {
	case c.reconnectNow <- struct{}{}:
	default:
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close(false)
	}
}

// Close tears the channel down: pending reconnect timers and the heartbeat
// are cancelled, the transport is closed with a normal-closure code, and no
// subscriber callback fires after Close returns.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	close(c.done)
	if conn != nil {
		conn.Close(true)
	}
	c.wg.Wait()
}

func (c *Channel) run() {
	defer c.wg.Done()

	for {
		if c.isClosed() {
			return
		}

		conn, err := c.dialer.Dial(c.opts.Endpoint)
		if err != nil {
			// Dial failure behaves exactly like an unexpected close.
			c.recordError(err)
			if !c.opts.AutoReconnect || !c.waitRetry() {
				return
			}
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close(true)
			return
		}
		c.conn = conn
		c.connected = true
		c.lastErr = nil
		c.mu.Unlock()

		normal := c.readLoop(conn)

		c.mu.Lock()
		c.connected = false
		c.conn = nil
		closed := c.closed
		c.mu.Unlock()

		if closed || normal || !c.opts.AutoReconnect {
			return
		}
		if !c.waitRetry() {
			return
		}
	}
}

// waitRetry sleeps for the reconnect interval, or returns immediately when
// a manual reconnect is pending. It returns false once the channel closes.
func (c *Channel) waitRetry() bool {
	select {
	case <-c.reconnectNow:
		return true
	default:
	}

	timer := time.NewTimer(c.opts.ReconnectInterval)
	defer timer.Stop()

	select {
	case <-c.done:
		return false
	case <-c.reconnectNow:
		return true
	case <-timer.C:
		return true
	}
}

// readLoop pumps inbound frames until the transport drops, keeping the
// heartbeat alive for the duration. It reports whether the drop was a
// deliberate normal closure.
func (c *Channel) readLoop(conn Conn) bool {
	stopHeartbeat := make(chan struct{})
	var hbDone sync.WaitGroup
	hbDone.Add(1)
	go func() {
		defer hbDone.Done()
		ticker := time.NewTicker(c.opts.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopHeartbeat:
				return
			case <-ticker.C:
				if err := conn.WriteMessage([]byte(heartbeatPing)); err != nil {
					return
				}
			}
		}
	}()
	defer func() {
		close(stopHeartbeat)
		hbDone.Wait()
	}()

	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			if !isNormalClose(err) {
				c.recordError(err)
			}
			return isNormalClose(err)
		}
		c.handleRaw(raw)
	}
}

func (c *Channel) handleRaw(raw []byte) {
	update, err := parseMessage(raw)
	if err != nil {
		// Expected noise: log and drop, never surface or reconnect.
		log.Printf("stream: dropping frame: %v", err)
		return
	}
	if update == nil {
		// Heartbeat ack.
		return
	}

	switch update.Type {
	case TypeJobUpdate:
		c.applyUpdate(update)
	case TypeJobLog:
		c.forward(update)
	default:
		log.Printf("stream: dropping frame with unknown type %q", update.Type)
	}
}

// applyUpdate merges a status update into the snapshot map, raises
// status-edge notifications, and forwards the message.
func (c *Channel) applyUpdate(update *JobUpdate) {
	c.mu.Lock()
	snap, ok := c.snapshots[update.JobID]
	if !ok {
		snap = &JobSnapshot{}
		c.snapshots[update.JobID] = snap
	}
	prevStatus := snap.Status
	snap.merge(update)
	newStatus := snap.Status
	candidates := len(snap.FlagCandidates)
	errMsg := snap.ErrorMessage
	notify := c.opts.EnableNotifications && !c.closed
	c.mu.Unlock()

	if notify && newStatus != prevStatus {
		c.notifyStatusEdge(update.JobID, prevStatus, newStatus, candidates, errMsg)
	}

	c.forward(update)
}

func (c *Channel) notifyStatusEdge(jobID, prev, status string, candidates int, errMsg string) {
	switch status {
	case "completed":
		msg := fmt.Sprintf("Job %s finished", jobID)
		if candidates > 0 {
			msg = fmt.Sprintf("Job %s finished with %d flag candidate(s)", jobID, candidates)
		}
		c.opts.Notifier.Notify("Analysis Complete", msg)
	case "failed":
		msg := fmt.Sprintf("Job %s failed", jobID)
		if errMsg != "" {
			msg = fmt.Sprintf("Job %s failed: %s", jobID, errMsg)
		}
		c.opts.Notifier.Notify("Analysis Failed", msg)
	case "running":
		// Only the queued/pending (or unseen) -> running edge counts.
		if prev == "" || prev == "queued" || prev == "pending" {
			c.opts.Notifier.Notify("Analysis Started", fmt.Sprintf("Job %s is now running", jobID))
		}
	}
}

func (c *Channel) forward(update *JobUpdate) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.lastMsg = update
	subs := make([]func(JobUpdate), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(*update)
	}
}

func (c *Channel) recordError(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

func (c *Channel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
