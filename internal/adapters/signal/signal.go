package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/LivePodcast/internal/app/orch"
	"github.com/dkeye/LivePodcast/internal/core"
	"github.com/dkeye/LivePodcast/internal/domain"
)

type Config struct {
	ReadLimit    int64         `mapstructure:"read_limit"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

func (c Config) withDefaults() Config {
	if c.ReadLimit <= 0 {
		c.ReadLimit = 1 << 20
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	if c.PingPeriod <= 0 {
		c.PingPeriod = 54 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	return c
}

// pongWait must exceed the ping period so one lost pong is tolerated.
func (c Config) pongWait() time.Duration {
	return c.PingPeriod * 10 / 9
}

type SignalWSController struct {
	Orch *orch.Orchestrator
	cfg  Config
}

func NewSignalWSController(o *orch.Orchestrator, cfg Config) *SignalWSController {
	return &SignalWSController{
		Orch: o,
		cfg:  cfg.withDefaults(),
	}
}

type outMsg struct {
	kind int
	data []byte
}

// WsSignalConn is the outbound side of one websocket: a bounded queue drained by writePump.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan outMsg

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{
		conn: ws,
		send: make(chan outMsg, buffer),
	}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	return c.enqueue(outMsg{kind: websocket.BinaryMessage, data: f})
}

func (c *WsSignalConn) TrySendJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.enqueue(outMsg{kind: websocket.TextMessage, data: b})
}

func (c *WsSignalConn) enqueue(m outMsg) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrClosed
	}
	select {
	case c.send <- m:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16 << 10,
	WriteBufferSize: 16 << 10,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and runs the connection until it closes.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	meta := domain.NewConnection(c.ClientIP(), c.GetString("client_token"))
	logger := log.With().Str("module", "signal").Str("conn", string(meta.ID)).Logger()

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error().Err(err).Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.cfg.ReadLimit)
	logger.Info().Str("addr", meta.Addr).Msg("new WS connection")

	conn := newWsSignalConn(ws, ctl.cfg.SendBuffer)
	sess := core.NewMemberSession(meta, conn)

	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Connect(sess, cancel)

	// ReadMessage does not watch ctx; closing the socket unblocks it.
	stop := context.AfterFunc(ctx, func() { _ = ws.Close() })

	go ctl.writePump(ctx, meta.ID, conn)
	go func() {
		defer stop()
		ctl.readPump(ctx, meta.ID, conn)
		cancel()
	}()
}
