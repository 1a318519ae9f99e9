package live

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vibeteen/vibe-teen/internal/apperror"
	"github.com/vibeteen/vibe-teen/internal/auth"
	"github.com/vibeteen/vibe-teen/internal/category"
	"github.com/vibeteen/vibe-teen/internal/inspiration"
	"github.com/vibeteen/vibe-teen/internal/model"
	"github.com/vibeteen/vibe-teen/internal/mural"
	"github.com/vibeteen/vibe-teen/internal/viewport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSource struct {
	mu     sync.Mutex
	onSnap func([]model.Action)
	onErr  func(error)
	subs   int
	unsubs int
}

func (f *fakeSource) Subscribe(onSnapshot func([]model.Action), onError func(error)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs++
	f.onSnap, f.onErr = onSnapshot, onError
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.unsubs++
			f.mu.Unlock()
		})
	}
}

func (f *fakeSource) Create(context.Context, model.NewAction) error { return nil }
func (f *fakeSource) Delete(context.Context, string) error          { return nil }

func (f *fakeSource) push(entries []model.Action) {
	f.mu.Lock()
	cb := f.onSnap
	f.mu.Unlock()
	cb(entries)
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	cb := f.onErr
	f.mu.Unlock()
	cb(err)
}

func (f *fakeSource) unsubscribed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubs
}

type registrarFunc func(ctx context.Context, memberID, beneficiary, rawCategory string) error

func (f registrarFunc) Register(ctx context.Context, memberID, beneficiary, rawCategory string) error {
	return f(ctx, memberID, beneficiary, rawCategory)
}

type fixture struct {
	source *fakeSource
	tokens *auth.TokenService
	srv    *httptest.Server
	url    string
}

func newFixture(t *testing.T, reg Registrar, mission inspiration.Provider) *fixture {
	t.Helper()
	tokens, err := auth.NewTokenService("live-test-secret-live-test-secret")
	require.NoError(t, err)

	src := &fakeSource{}
	h := NewHandler(Config{
		Source:    src,
		Builder:   mural.NewBuilder(category.Default(), time.UTC),
		Registrar: reg,
		Mission:   mission,
		Viewport:  viewport.DefaultConfig(),
		CellSize:  10,
		Location:  time.UTC,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	srv := httptest.NewServer(auth.OptionalAuth(tokens)(h))
	t.Cleanup(srv.Close)

	return &fixture{
		source: src,
		tokens: tokens,
		srv:    srv,
		url:    "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

func (f *fixture) dial(t *testing.T, memberID string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if memberID != "" {
		tok, err := f.tokens.Generate(memberID, model.RoleUser)
		require.NoError(t, err)
		header.Set("Authorization", "Bearer "+tok)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(f.url, header)
	require.NoError(t, err)
	resp.Body.Close()

	// status and viewport are sent after the subscription exists
	readUntil(t, conn, FrameStatus)
	readUntil(t, conn, FrameViewport)
	return conn
}

func (f *fixture) hangUp(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	require.Eventually(t, func() bool { return f.source.unsubscribed() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func readUntil(t *testing.T, conn *websocket.Conn, typ string) Outbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var out Outbound
		require.NoError(t, conn.ReadJSON(&out), "waiting for %q", typ)
		if out.Type == typ {
			return out
		}
	}
}

func sampleEntries() []model.Action {
	at := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC).Format(model.TimestampLayout)
	return []model.Action{
		{ID: "2", AuthorName: "Bia", Category: model.CategoryCared, CreatedAt: at},
		{ID: "1", AuthorName: "Ana", Category: model.CategoryPrayed, CreatedAt: at},
	}
}

func TestSession_FeedAndViewport(t *testing.T) {
	f := newFixture(t, nil, nil)
	conn := f.dial(t, "")

	f.source.push(sampleEntries())
	feedFrame := readUntil(t, conn, FrameFeed)
	require.NotNil(t, feedFrame.Frame)
	require.Len(t, feedFrame.Frame.Cards, 3)
	assert.True(t, feedFrame.Frame.Cards[0].Center)
	assert.Equal(t, "2", feedFrame.Frame.Cards[1].Action.ID)
	assert.False(t, feedFrame.Frame.Syncing)

	require.NoError(t, conn.WriteJSON(Inbound{Type: MsgWheel, DeltaY: -120}))
	vp := readUntil(t, conn, FrameViewport)
	require.NotNil(t, vp.Viewport)
	assert.InDelta(t, 0.88, vp.Viewport.Zoom, 1e-9)

	require.NoError(t, conn.WriteJSON(Inbound{Type: MsgPointerDown, X: 10, Y: 10}))
	readUntil(t, conn, FrameViewport)
	require.NoError(t, conn.WriteJSON(Inbound{Type: MsgPointerMove, X: 40, Y: 5}))
	vp = readUntil(t, conn, FrameViewport)
	assert.Equal(t, 30.0, vp.Viewport.PanX)
	assert.Equal(t, -5.0, vp.Viewport.PanY)
	assert.Contains(t, vp.Transform, "translate(30px, -5px)")

	require.NoError(t, conn.WriteJSON(Inbound{Type: MsgReset}))
	vp = readUntil(t, conn, FrameViewport)
	assert.Equal(t, viewport.State{Zoom: 0.8}, *vp.Viewport)

	require.NoError(t, conn.WriteJSON(Inbound{Type: "dance"}))
	notice := readUntil(t, conn, FrameNotice)
	assert.Contains(t, notice.Message, "dance")

	f.hangUp(t, conn)
}

func TestSession_ZoomIsClamped(t *testing.T) {
	f := newFixture(t, nil, nil)
	conn := f.dial(t, "")

	var last Outbound
	for i := 0; i < 40; i++ {
		require.NoError(t, conn.WriteJSON(Inbound{Type: MsgZoom, Dir: "out"}))
		last = readUntil(t, conn, FrameViewport)
	}
	assert.Equal(t, 0.2, last.Viewport.Zoom)

	require.NoError(t, conn.WriteJSON(Inbound{Type: MsgZoom, Dir: "sideways"}))
	readUntil(t, conn, FrameNotice)

	f.hangUp(t, conn)
}

func TestSession_MalformedMessageKeepsSession(t *testing.T) {
	f := newFixture(t, nil, nil)
	conn := f.dial(t, "")

	for _, raw := range []string{`{"type":`, `not json`, `{"type":"zoom","dir":7}`} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))
		notice := readUntil(t, conn, FrameNotice)
		assert.Equal(t, "mensagem inválida", notice.Message, raw)
	}

	// still alive: gestures and feed frames keep flowing
	require.NoError(t, conn.WriteJSON(Inbound{Type: MsgZoom, Dir: "in"}))
	vp := readUntil(t, conn, FrameViewport)
	assert.Greater(t, vp.Viewport.Zoom, 0.8)

	f.source.push(sampleEntries())
	readUntil(t, conn, FrameFeed)

	f.hangUp(t, conn)
}

func TestSession_ErrorRaisesSyncingAndKeepsSnapshot(t *testing.T) {
	f := newFixture(t, nil, nil)
	conn := f.dial(t, "")

	f.source.push(sampleEntries())
	readUntil(t, conn, FrameFeed)

	f.source.fail(errors.New("store offline"))
	status := readUntil(t, conn, FrameStatus)
	require.NotNil(t, status.Syncing)
	assert.True(t, *status.Syncing)

	// the next good snapshot clears it
	f.source.push(sampleEntries()[:1])
	frame := readUntil(t, conn, FrameFeed)
	assert.False(t, frame.Frame.Syncing)
	assert.Len(t, frame.Frame.Cards, 2)

	f.hangUp(t, conn)
}

func TestSession_RegisterRequiresSignIn(t *testing.T) {
	called := false
	f := newFixture(t, registrarFunc(func(context.Context, string, string, string) error {
		called = true
		return nil
	}), nil)
	conn := f.dial(t, "")

	require.NoError(t, conn.WriteJSON(Inbound{Type: MsgRegister, Category: "prayed"}))
	notice := readUntil(t, conn, FrameNotice)
	assert.Contains(t, notice.Message, "entre")
	assert.False(t, called)

	f.hangUp(t, conn)
}

func TestSession_RegisterHasNoEcho(t *testing.T) {
	type call struct{ member, beneficiary, category string }
	calls := make(chan call, 1)
	f := newFixture(t, registrarFunc(func(_ context.Context, member, beneficiary, cat string) error {
		calls <- call{member, beneficiary, cat}
		return nil
	}), nil)
	conn := f.dial(t, "m-1")

	require.NoError(t, conn.WriteJSON(Inbound{Type: MsgRegister, BeneficiaryName: "Vó Rita", Category: "cuidei"}))
	select {
	case got := <-calls:
		assert.Equal(t, call{"m-1", "Vó Rita", "cuidei"}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("register was not called")
	}

	// Nothing comes back until the source delivers a snapshot.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	var out Outbound
	err := conn.ReadJSON(&out)
	require.Error(t, err)
	var netErr interface{ Timeout() bool }
	require.True(t, errors.As(err, &netErr) && netErr.Timeout(), "unexpected frame or error: %v", err)

	f.hangUp(t, conn)
}

func TestSession_RegisterFailureBecomesNotice(t *testing.T) {
	f := newFixture(t, registrarFunc(func(context.Context, string, string, string) error {
		return apperror.Unavailable("não foi possível registrar agora", errors.New("disk"))
	}), nil)
	conn := f.dial(t, "m-1")

	require.NoError(t, conn.WriteJSON(Inbound{Type: MsgRegister, Category: "prayed"}))
	notice := readUntil(t, conn, FrameNotice)
	assert.Equal(t, "não foi possível registrar agora", notice.Message)

	f.hangUp(t, conn)
}

func TestSession_Mission(t *testing.T) {
	mission := inspiration.ProviderFunc(func(context.Context) (string, error) {
		return "Ore por um vizinho", nil
	})
	f := newFixture(t, nil, mission)

	conn, resp, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.NoError(t, err)
	resp.Body.Close()

	out := readUntil(t, conn, FrameMission)
	assert.Equal(t, "Ore por um vizinho", out.Message)

	f.source.push(sampleEntries())
	frame := readUntil(t, conn, FrameFeed)
	assert.Equal(t, "Ore por um vizinho", frame.Frame.Mission)

	f.hangUp(t, conn)
}

func TestSession_UnsubscribesOnceOnDisconnect(t *testing.T) {
	f := newFixture(t, nil, nil)
	conn := f.dial(t, "")

	// abrupt close, no close frame
	conn.Close()
	require.Eventually(t, func() bool { return f.source.unsubscribed() == 1 }, 2*time.Second, 5*time.Millisecond)

	// late deliveries after the socket is gone are dropped quietly
	f.source.push(sampleEntries())
	assert.Equal(t, 1, f.source.unsubscribed())
}
