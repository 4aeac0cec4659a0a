package signal

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/curriculum-relay/internal/app"
	"github.com/dkeye/curriculum-relay/internal/core"
)

type Options struct {
	ReadLimit      int64
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	SendBuffer     int
	AllowedOrigins []string
}

func DefaultOptions() Options {
	return Options{
		ReadLimit:      32768,
		PingPeriod:     54 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      5 * time.Second,
		SendBuffer:     64,
		AllowedOrigins: []string{"*"},
	}
}

// withDefaults replaces non-positive timings and sizes so the pumps
// never see a zero ticker period.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.ReadLimit <= 0 {
		o.ReadLimit = def.ReadLimit
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = def.PingPeriod
	}
	if o.PongWait <= o.PingPeriod {
		o.PongWait = o.PingPeriod * 10 / 9
	}
	if o.WriteWait <= 0 {
		o.WriteWait = def.WriteWait
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = def.SendBuffer
	}
	return o
}

type SignalWSController struct {
	Orch     *app.Orchestrator
	opts     Options
	upgrader websocket.Upgrader
}

func NewSignalWSController(orch *app.Orchestrator, opts Options) *SignalWSController {
	ctl := &SignalWSController{Orch: orch, opts: opts.withDefaults()}
	ctl.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     ctl.checkOrigin,
	}
	return ctl
}

func (ctl *SignalWSController) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(ctl.opts.AllowedOrigins, "*") {
		return true
	}
	return slices.Contains(ctl.opts.AllowedOrigins, origin)
}

// WsSignalConn is the outbound side of one websocket.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{conn: ws, send: make(chan core.Frame, buffer)}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

// HandleSignal upgrades the request. The connection starts unauthenticated;
// the request headers are kept as the handshake snapshot.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := newWsSignalConn(ws, ctl.opts.SendBuffer)
	sess := core.NewSession(core.ConnID(uuid.NewString()), c.Request.Header, conn)
	ctl.Orch.OnConnect(sess)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sess.ID(), conn)
}
