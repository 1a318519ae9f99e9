// Package handler contains the HTTP handlers of the mural server.
// Handlers only translate between HTTP and the services. Rules live in
// internal/service.
package handler

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/vibeteen/vibe-teen/internal/auth"
	"github.com/vibeteen/vibe-teen/internal/feed"
	"github.com/vibeteen/vibe-teen/internal/inspiration"
	"github.com/vibeteen/vibe-teen/internal/model"
	"github.com/vibeteen/vibe-teen/internal/mural"
	"github.com/vibeteen/vibe-teen/internal/viewport"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageHandler renders the mural page on the server. The page then opens
// /live and keeps itself current from the websocket frames.
//
// Templates are parsed once at startup: base.html holds the layout with a
// {{template "content" .}} slot that mural.html fills.
type PageHandler struct {
	templates *template.Template
	rec       *feed.Reconciler
	builder   *mural.Builder
	viewport  viewport.Config
	mission   inspiration.Provider
	logger    *slog.Logger
}

// NewPageHandler parses the embedded templates. mission may be nil.
func NewPageHandler(
	rec *feed.Reconciler,
	builder *mural.Builder,
	vp viewport.Config,
	mission inspiration.Provider,
	logger *slog.Logger,
) (*PageHandler, error) {
	tmpl, err := template.New("base").Funcs(template.FuncMap{
		"css": func(s string) template.CSS { return template.CSS(s) },
		"cardStyle": func(c mural.Card) template.CSS {
			return template.CSS(fmt.Sprintf("left:%dpx;top:%dpx;--tint:%s", c.X, c.Y, c.Meta.Tint))
		},
	}).ParseFS(templateFS, "templates/base.html", "templates/mural.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	return &PageHandler{
		templates: tmpl,
		rec:       rec,
		builder:   builder,
		viewport:  vp,
		mission:   mission,
		logger:    logger,
	}, nil
}

type pageData struct {
	Title      string
	Frame      mural.Frame
	Categories []categoryOption
	SignedIn   bool
	IsAdmin    bool
	CellSize   int
}

type categoryOption struct {
	Value model.Category
	Label string
	Verse string
	Tint  string
}

// HandleMural serves the mural.
//
// HTTP: GET /
func (h *PageHandler) HandleMural(w http.ResponseWriter, r *http.Request) {
	frame := h.builder.Frame(h.rec, viewport.New(h.viewport).State())
	if h.mission != nil {
		// Fallback never fails, so a slow upstream only costs its timeout.
		frame.Mission, _ = h.mission.Fetch(r.Context())
	}

	claims, signedIn := auth.ClaimsFromContext(r.Context())

	var cats []categoryOption
	for _, c := range model.Categories() {
		meta := h.builder.Table().MustLookup(c)
		cats = append(cats, categoryOption{Value: c, Label: meta.Label, Verse: meta.Verse, Tint: meta.Tint})
	}

	data := pageData{
		Title:      "Vibe Teen · Mural",
		Frame:      frame,
		Categories: cats,
		SignedIn:   signedIn,
		IsAdmin:    signedIn && claims.IsAdmin(),
		CellSize:   h.rec.CellSize(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
