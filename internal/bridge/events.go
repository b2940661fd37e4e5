package bridge

import (
	"context"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Event is one operator pendant or rig notification pushed by the bridge.
type Event struct {
	Type   string `json:"type"`
	Detail string `json:"detail,omitempty"`
}

// Pendant event types the recorder reacts to.
const (
	EventRerecord  = "rerecord"
	EventExitEarly = "exit_early"
	EventStop      = "stop"
	EventResume    = "resume"
)

type EventCallback func(Event)

// EventStream keeps a WebSocket subscription to the bridge event feed alive,
// reconnecting with backoff and pinging to detect dead connections.
type EventStream struct {
	wsURL string

	conn   *websocket.Conn
	connMu sync.Mutex

	cbs  []EventCallback
	cbMu sync.RWMutex

	maxReconnectAttempts int
	pingInterval         time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

func NewEventStream(wsURL string) *EventStream {
	return &EventStream{
		wsURL:                wsURL,
		maxReconnectAttempts: 5,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
	}
}

// OnEvent registers a callback invoked for every received event.
func (es *EventStream) OnEvent(cb EventCallback) {
	es.cbMu.Lock()
	es.cbs = append(es.cbs, cb)
	es.cbMu.Unlock()
}

func (es *EventStream) Connect(ctx context.Context) error {
	es.rootCtx, es.rootCancel = context.WithCancel(context.Background())

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, es.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		return err
	}
	es.setConn(conn)

	es.wg.Add(2)
	go es.listen()
	go es.pingLoop()
	return nil
}

func (es *EventStream) listen() {
	defer es.wg.Done()
	for {
		select {
		case <-es.stopCh:
			return
		default:
		}

		conn := es.getConn()
		if conn == nil {
			return
		}
		var ev Event
		if err := wsjson.Read(es.rootCtx, conn, &ev); err != nil {
			if es.isStopping() {
				return
			}
			_ = es.closeConn(websocket.StatusGoingAway, "reconnect")
			es.reconnect()
			return
		}
		es.dispatch(ev)
	}
}

func (es *EventStream) dispatch(ev Event) {
	es.cbMu.RLock()
	cbs := make([]EventCallback, len(es.cbs))
	copy(cbs, es.cbs)
	es.cbMu.RUnlock()
	for _, cb := range cbs {
		if cb != nil {
			cb(ev)
		}
	}
}

func (es *EventStream) pingLoop() {
	defer es.wg.Done()
	t := time.NewTicker(es.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-es.stopCh:
			return
		case <-t.C:
			conn := es.getConn()
			if conn == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(es.rootCtx, 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				if es.isStopping() {
					return
				}
				_ = es.closeConn(websocket.StatusGoingAway, "ping failure")
				es.reconnect()
				failures = 0
			}
		}
	}
}

func (es *EventStream) reconnect() {
	go func() {
		for attempt := 1; attempt <= es.maxReconnectAttempts; attempt++ {
			select {
			case <-es.stopCh:
				return
			case <-time.After(backoffDuration(attempt)):
			}

			dialCtx, cancel := context.WithTimeout(es.rootCtx, 10*time.Second)
			conn, _, err := websocket.Dial(dialCtx, es.wsURL, &websocket.DialOptions{
				CompressionMode: websocket.CompressionNoContextTakeover,
			})
			cancel()
			if err != nil {
				continue
			}
			es.setConn(conn)
			es.wg.Add(2)
			go es.listen()
			go es.pingLoop()
			return
		}
	}()
}

func (es *EventStream) Close(ctx context.Context) error {
	es.stopOnce.Do(func() { close(es.stopCh) })
	_ = es.closeConn(websocket.StatusNormalClosure, "close")

	done := make(chan struct{})
	go func() {
		es.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		if es.rootCancel != nil {
			es.rootCancel()
		}
		return nil
	}
}

func (es *EventStream) setConn(conn *websocket.Conn) {
	es.connMu.Lock()
	es.conn = conn
	es.connMu.Unlock()
}

func (es *EventStream) getConn() *websocket.Conn {
	es.connMu.Lock()
	defer es.connMu.Unlock()
	return es.conn
}

func (es *EventStream) closeConn(code websocket.StatusCode, reason string) error {
	es.connMu.Lock()
	defer es.connMu.Unlock()
	if es.conn == nil {
		return nil
	}
	err := es.conn.Close(code, reason)
	es.conn = nil
	return err
}

func (es *EventStream) isStopping() bool {
	select {
	case <-es.stopCh:
		return true
	default:
		return false
	}
}
