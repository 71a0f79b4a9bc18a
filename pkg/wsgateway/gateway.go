package wsgateway

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"playrelay/pkg/clientdata"
	"playrelay/pkg/compression"
	"playrelay/pkg/handler"
	"playrelay/pkg/metrics"
)

// unreliableQueueDepth bounds the per-connection outbound queue for
// sends marked unreliable; a full queue drops the newest frame,
// approximating UDP-style delivery over the gateway's TCP-backed
// WebSocket transport.
const unreliableQueueDepth = 64

// Config tunes the gateway's upgrader and origin policy.
type Config struct {
	ReadBufferSize   int
	WriteBufferSize  int
	DevMode          bool
	AllowedOrigins   []string
	CompressionLevel int
}

// DefaultConfig returns reasonable upgrader buffer sizes, with
// compression disabled until a loaded config's compression_level
// overrides it.
func DefaultConfig() Config {
	return Config{ReadBufferSize: 1024, WriteBufferSize: 1024}
}

// Gateway accepts WebSocket connections and drives one
// pkg/handler.Handler per connection.
type Gateway struct {
	cfg    Config
	shared *handler.Shared
	mx     *metrics.Metrics
	log    *logrus.Entry

	httpServer *http.Server
}

// New creates a gateway serving connections against shared's
// registries.
func New(cfg Config, shared *handler.Shared, mx *metrics.Metrics) *Gateway {
	return &Gateway{
		cfg:    cfg,
		shared: shared,
		mx:     mx,
		log:    logrus.WithField("component", "wsgateway"),
	}
}

func (g *Gateway) originAllowed(origin string) bool {
	if g.cfg.DevMode || len(g.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range g.cfg.AllowedOrigins {
		if strings.TrimSpace(allowed) == origin {
			return true
		}
	}
	return false
}

func (g *Gateway) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  g.cfg.ReadBufferSize,
		WriteBufferSize: g.cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := g.originAllowed(origin)
			if !allowed {
				g.log.WithField("origin", origin).Warn("websocket connection rejected: origin not allowed")
			}
			return allowed
		},
	}
}

// ServeHTTP is on_connect: it upgrades the request, constructs a
// fresh ClientData and per-connection Handler, and blocks reading
// frames (on_data) until the socket closes (on_disconnect).
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := g.upgrader().Upgrade(w, r, nil)
	if err != nil {
		g.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	connID := uuid.NewString()
	c := newConn(wsConn, connID, g.cfg.CompressionLevel)
	cd := clientdata.New(connID, r.RemoteAddr)
	cd.SetDisconnectFunc(func(reason string) {
		g.log.WithFields(logrus.Fields{"conn": connID, "reason": reason}).Info("disconnecting client")
		c.close()
	})

	h := handler.New(g.shared, cd, c)

	if g.mx != nil {
		g.mx.ClientConnected()
		defer g.mx.ClientDisconnected()
	}

	g.log.WithField("conn", connID).Info("client connected")
	c.serve(h, g.log.WithField("conn", connID))
	h.OnDisconnect()
	g.log.WithField("conn", connID).Info("client disconnected")
}

// ListenAndServe implements the "listen" half of the transport
// contract: it binds addr and serves upgraded connections until
// ctx is cancelled.
func (g *Gateway) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/", g)

	g.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- g.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return g.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// conn wraps one upgraded WebSocket connection with the reliable
// (synchronous, mutex-guarded) and unreliable (bounded, drop-newest)
// send paths handler.Sender requires. Every physical frame carries a
// one-byte compression.Type prefix ahead of the handler's tagged
// payload, so either side can compress independently of the other.
type conn struct {
	id             string
	ws             *websocket.Conn
	compressionLvl int

	writeMu sync.Mutex

	unreliableCh chan []byte
	closeOnce    sync.Once
	done         chan struct{}
}

func newConn(ws *websocket.Conn, id string, compressionLevel int) *conn {
	c := &conn{
		id:             id,
		ws:             ws,
		compressionLvl: compressionLevel,
		unreliableCh:   make(chan []byte, unreliableQueueDepth),
		done:           make(chan struct{}),
	}
	go c.unreliableWriter()
	return c
}

func (c *conn) writeFrame(data []byte) error {
	out, typ, err := compression.Compress(data, c.compressionLvl)
	if err != nil {
		return err
	}
	framed := make([]byte, 0, len(out)+1)
	framed = append(framed, byte(typ))
	framed = append(framed, out...)
	return c.ws.WriteMessage(websocket.BinaryMessage, framed)
}

func (c *conn) unreliableWriter() {
	for {
		select {
		case data := <-c.unreliableCh:
			c.writeMu.Lock()
			_ = c.writeFrame(data)
			c.writeMu.Unlock()
		case <-c.done:
			return
		}
	}
}

// Send implements handler.Sender. Reliable sends go straight to the
// socket under the write mutex; unreliable sends are queued and
// dropped (newest) under backpressure, since the unreliable channel is
// free to drop frames rather than stall the connection.
func (c *conn) Send(data []byte, reliable bool) error {
	if reliable {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return c.writeFrame(data)
	}
	select {
	case c.unreliableCh <- data:
	default:
		// queue full: drop the newest frame rather than block.
	}
	return nil
}

func (c *conn) Disconnect(reason string) {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	c.close()
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// serve runs the read loop (on_data) until the connection closes,
// dispatching each inbound binary frame to h.
func (c *conn) serve(h *handler.Handler, log *logrus.Entry) {
	defer c.close()
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("websocket read error")
			}
			return
		}
		if msgType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}
		payload, err := compression.Decompress(data[1:], compression.Type(data[0]))
		if err != nil {
			log.WithError(err).Warn("frame decompression failed")
			continue
		}
		if err := h.Dispatch(payload); err != nil {
			log.WithError(err).Warn("message dispatch failed")
		}
	}
}
