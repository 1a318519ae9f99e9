// Package live serves the mural over a websocket.
//
// Every connection is a Session with its own feed.Reconciler and
// viewport.Controller. The session subscribes to the shared feed source once,
// pushes a "feed" frame per snapshot, answers gesture messages with
// "viewport" frames, and releases the subscription exactly once when the
// socket goes away.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vibeteen/vibe-teen/internal/apperror"
	"github.com/vibeteen/vibe-teen/internal/auth"
	"github.com/vibeteen/vibe-teen/internal/feed"
	"github.com/vibeteen/vibe-teen/internal/feedsource"
	"github.com/vibeteen/vibe-teen/internal/inspiration"
	"github.com/vibeteen/vibe-teen/internal/model"
	"github.com/vibeteen/vibe-teen/internal/mural"
	"github.com/vibeteen/vibe-teen/internal/viewport"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
)

// Registrar records a new action for a member. *service.ActionService
// satisfies it.
type Registrar interface {
	Register(ctx context.Context, memberID, beneficiary, rawCategory string) error
}

// Config wires a Handler.
type Config struct {
	Source    feedsource.Source
	Builder   *mural.Builder
	Registrar Registrar
	Mission   inspiration.Provider // optional
	Viewport  viewport.Config
	CellSize  int
	Location  *time.Location
	Logger    *slog.Logger

	// CheckOrigin overrides the upgrader's same-origin check.
	CheckOrigin func(r *http.Request) bool
}

// Handler upgrades requests to websocket sessions.
type Handler struct {
	cfg      Config
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions int
}

// NewHandler returns the /live handler. Put auth.OptionalAuth in front of it
// so sessions can tell who is registering.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CellSize <= 0 {
		cfg.CellSize = feed.DefaultCellSize
	}
	return &Handler{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
}

// Sessions is the number of open sessions.
func (h *Handler) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions
}

// ServeHTTP upgrades the request and runs one session until either side
// closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.cfg.Logger.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	claims, _ := auth.ClaimsFromContext(r.Context())
	s := newSession(h.cfg, conn, claims)

	h.mu.Lock()
	h.sessions++
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.sessions--
		h.mu.Unlock()
	}()

	s.run()
}

// Session is one connected client.
type Session struct {
	cfg    Config
	conn   *websocket.Conn
	claims auth.Claims
	logger *slog.Logger

	rec *feed.Reconciler

	vpMu sync.Mutex
	vp   *viewport.Controller

	writeMu sync.Mutex
	closed  bool

	mission string
}

func newSession(cfg Config, conn *websocket.Conn, claims auth.Claims) *Session {
	var opts []feed.Option
	if cfg.Location != nil {
		opts = append(opts, feed.WithLocation(cfg.Location))
	}
	return &Session{
		cfg:    cfg,
		conn:   conn,
		claims: claims,
		logger: cfg.Logger.With(slog.String("remote", conn.RemoteAddr().String())),
		rec:    feed.NewReconciler(cfg.CellSize, opts...),
		vp:     viewport.New(cfg.Viewport),
	}
}

func (s *Session) run() {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	unsubscribe := s.cfg.Source.Subscribe(s.onSnapshot, s.onError)
	defer func() {
		unsubscribe()
		cancel()
		s.close()
		wg.Wait()
		s.logger.Debug("live session closed")
	}()

	s.logger.Debug("live session opened", slog.String("memberID", s.claims.MemberID))
	s.sendStatus()
	s.sendViewport()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.pingLoop(ctx)
	}()

	if s.cfg.Mission != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.fetchMission(ctx)
		}()
	}

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("live read failed", slog.String("error", err.Error()))
			}
			return
		}
		// A malformed message is the client's problem, not the connection's.
		var msg Inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendNotice("mensagem inválida")
			continue
		}
		s.handle(ctx, msg)
	}
}

func (s *Session) handle(ctx context.Context, msg Inbound) {
	switch msg.Type {
	case MsgWheel:
		s.gesture(func(c *viewport.Controller) { c.Wheel(msg.DeltaY) })
	case MsgZoom:
		switch msg.Dir {
		case "in":
			s.gesture(func(c *viewport.Controller) { c.ZoomIn() })
		case "out":
			s.gesture(func(c *viewport.Controller) { c.ZoomOut() })
		default:
			s.sendNotice("direção de zoom inválida")
		}
	case MsgPointerDown:
		s.gesture(func(c *viewport.Controller) { c.Begin(viewport.Point{X: msg.X, Y: msg.Y}) })
	case MsgPointerMove:
		s.gesture(func(c *viewport.Controller) { c.Move(viewport.Point{X: msg.X, Y: msg.Y}) })
	case MsgPointerUp:
		s.gesture(func(c *viewport.Controller) { c.End() })
	case MsgReset:
		s.gesture(func(c *viewport.Controller) { c.Reset() })
	case MsgRegister:
		s.register(ctx, msg)
	default:
		s.sendNotice("mensagem desconhecida: " + msg.Type)
	}
}

// register never echoes the action: it shows up with the next feed frame.
func (s *Session) register(ctx context.Context, msg Inbound) {
	if s.claims.MemberID == "" {
		s.sendNotice("entre para registrar uma ação")
		return
	}
	if s.cfg.Registrar == nil {
		s.sendNotice("registro indisponível")
		return
	}
	err := s.cfg.Registrar.Register(ctx, s.claims.MemberID, msg.BeneficiaryName, msg.Category)
	if err != nil {
		s.sendNotice(noticeFor(err))
	}
}

func noticeFor(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "não foi possível registrar, tente de novo"
}

func (s *Session) gesture(apply func(*viewport.Controller)) {
	s.vpMu.Lock()
	apply(s.vp)
	s.vpMu.Unlock()
	s.sendViewport()
}

func (s *Session) viewportState() viewport.State {
	s.vpMu.Lock()
	defer s.vpMu.Unlock()
	return s.vp.State()
}

// onSnapshot and onError run on the subscription's own goroutine, one call
// at a time.
func (s *Session) onSnapshot(entries []model.Action) {
	s.rec.OnSnapshot(entries)
	s.sendFeed()
}

func (s *Session) onError(err error) {
	s.rec.OnError(err)
	s.sendStatus()
}

func (s *Session) fetchMission(ctx context.Context) {
	text, err := s.cfg.Mission.Fetch(ctx)
	if err != nil || text == "" || ctx.Err() != nil {
		return
	}
	s.writeMu.Lock()
	s.mission = text
	s.writeMu.Unlock()
	s.send(Outbound{Type: FrameMission, Message: text})
}

func (s *Session) sendFeed() {
	frame := s.cfg.Builder.Frame(s.rec, s.viewportState())
	s.writeMu.Lock()
	frame.Mission = s.mission
	s.writeMu.Unlock()
	s.send(Outbound{Type: FrameFeed, Frame: &frame})
}

func (s *Session) sendViewport() {
	st := s.viewportState()
	s.send(Outbound{Type: FrameViewport, Viewport: &st, Transform: st.Transform()})
}

func (s *Session) sendStatus() {
	syncing := s.rec.Syncing()
	s.send(Outbound{Type: FrameStatus, Syncing: &syncing})
}

func (s *Session) sendNotice(msg string) {
	s.send(Outbound{Type: FrameNotice, Message: msg})
}

// send writes one frame. Writes after close are dropped.
func (s *Session) send(v Outbound) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(v); err != nil {
		s.logger.Debug("live write failed", slog.String("type", v.Type), slog.String("error", err.Error()))
	}
}

func (s *Session) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *Session) close() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = s.conn.Close()
}
