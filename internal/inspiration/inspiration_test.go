package inspiration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSettings struct {
	mu     sync.Mutex
	values map[string]string
	setErr error
}

func newMemSettings() *memSettings {
	return &memSettings{values: make(map[string]string)}
}

func (m *memSettings) GetSetting(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memSettings) SetSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func counting(text string, err error) (Provider, *int) {
	calls := 0
	return ProviderFunc(func(context.Context) (string, error) {
		calls++
		return text, err
	}), &calls
}

func TestClean(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Ore por um amigo  ", "Ore por um amigo"},
		{`"Doe um agasalho"`, "Doe um agasalho"},
		{"**Abrace sua mãe**\n\nExplicação extra", "Abrace sua mãe"},
		{"\n\n  \nSorria para o porteiro", "Sorria para o porteiro"},
		{"   ", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clean(tt.in), "Clean(%q)", tt.in)
	}

	long := Clean(strings.Repeat("a", MaxMissionLength+50))
	assert.Equal(t, MaxMissionLength, len([]rune(long)))
	assert.True(t, strings.HasSuffix(long, "…"))
}

func TestFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("passes through a good answer", func(t *testing.T) {
		p, _ := counting(" Visite um vizinho ", nil)
		got, err := NewFallback(p, "", 0, quietLogger()).Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Visite um vizinho", got)
	})

	t.Run("error yields the default", func(t *testing.T) {
		p, _ := counting("", errors.New("quota exceeded"))
		got, err := NewFallback(p, "", 0, quietLogger()).Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, DefaultMission, got)
	})

	t.Run("empty answer yields the configured text", func(t *testing.T) {
		p, _ := counting("  \n ", nil)
		got, err := NewFallback(p, "O amor é a maior revolução", 0, quietLogger()).Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, "O amor é a maior revolução", got)
	})

	t.Run("nil provider", func(t *testing.T) {
		got, err := NewFallback(nil, "", 0, nil).Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, DefaultMission, got)
	})

	t.Run("slow provider is cut off", func(t *testing.T) {
		slow := ProviderFunc(func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})
		start := time.Now()
		got, err := NewFallback(slow, "", 20*time.Millisecond, quietLogger()).Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, DefaultMission, got)
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	failing, failCalls := counting("", errors.New("down"))
	empty, _ := counting("   ", nil)
	good, goodCalls := counting("Ligue para sua avó", nil)
	never, neverCalls := counting("unused", nil)

	got, err := Chain{failing, empty, good, never}.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ligue para sua avó", got)
	assert.Equal(t, 1, *failCalls)
	assert.Equal(t, 1, *goodCalls)
	assert.Equal(t, 0, *neverCalls)

	_, err = Chain{failing, empty}.Fetch(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Chain{}.Fetch(ctx)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestDaily(t *testing.T) {
	ctx := context.Background()
	settings := newMemSettings()
	p, calls := counting("Ore por alguém", nil)

	d := NewDaily(p, settings, time.UTC)
	day := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return day }

	for i := 0; i < 3; i++ {
		got, err := d.Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Ore por alguém", got)
	}
	assert.Equal(t, 1, *calls, "same day is served from the cache")
	assert.Equal(t, "Ore por alguém", settings.values["mission:2026-10-17"])

	day = day.Add(24 * time.Hour)
	_, err := d.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, *calls, "a new day asks again")
}

func TestDaily_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	settings := newMemSettings()
	p, calls := counting("", errors.New("offline"))

	d := NewDaily(p, settings, time.UTC)

	_, err := d.Fetch(ctx)
	require.Error(t, err)
	_, err = d.Fetch(ctx)
	require.Error(t, err)

	assert.Equal(t, 2, *calls)
	assert.Empty(t, settings.values)
}

func TestDaily_CacheWriteFailureStillReturnsText(t *testing.T) {
	settings := newMemSettings()
	settings.setErr = errors.New("disk full")
	p, _ := counting("Agradeça a um professor", nil)

	got, err := NewDaily(p, settings, time.UTC).Fetch(context.Background())
	assert.Error(t, err)
	assert.Equal(t, "Agradeça a um professor", got)
}

const devotionalRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Devocional</title>
  <item><title>Ore por um colega de escola</title></item>
  <item><title></title><description>&lt;p&gt;Pague um lanche para &lt;b&gt;alguém&lt;/b&gt;&lt;/p&gt;</description></item>
  <item><title>Escreva um bilhete de gratidão</title></item>
</channel>
</rss>`

func TestFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, devotionalRSS)
	}))
	defer srv.Close()

	f := NewFeed(srv.URL)
	want := map[int]string{
		3: "Ore por um colega de escola",
		4: "Pague um lanche para alguém",
		5: "Escreva um bilhete de gratidão",
	}
	for yday, line := range want {
		f.now = func() time.Time { return time.Date(2026, 1, yday, 12, 0, 0, 0, time.UTC) }
		got, err := f.Fetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, line, got, "day %d", yday)
	}
}

func TestFeed_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/empty":
			fmt.Fprint(w, `<rss version="2.0"><channel><title>x</title></channel></rss>`)
		default:
			http.Error(w, "nope", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	_, err := NewFeed(srv.URL + "/empty").Fetch(context.Background())
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = NewFeed(srv.URL + "/broken").Fetch(context.Background())
	assert.Error(t, err)
}

func TestGenAI(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"\"Doe um agasalho no sinal\"\n"}]}}]}`)
	}))
	defer srv.Close()

	ctx := context.Background()
	g, err := NewGenAI(ctx, "test-key", "", "", WithBaseURL(srv.URL))
	require.NoError(t, err)

	got, err := g.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Doe um agasalho no sinal", got)
	assert.Contains(t, gotPath, DefaultModel+":generateContent")
	assert.Equal(t, "test-key", gotKey)
}

func TestGenAI_RequiresKey(t *testing.T) {
	_, err := NewGenAI(context.Background(), "", "", "")
	assert.Error(t, err)
}
