package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vibeteen/vibe-teen/internal/apperror"
	"github.com/vibeteen/vibe-teen/internal/auth"
	"github.com/vibeteen/vibe-teen/internal/feed"
	"github.com/vibeteen/vibe-teen/internal/model"
	"github.com/vibeteen/vibe-teen/internal/mural"
	"github.com/vibeteen/vibe-teen/internal/spiral"
)

// MaxSpiralCells bounds /api/spiral so a query string can't allocate
// unbounded memory.
const MaxSpiralCells = 10000

// MaxSpiralCellSize bounds the cellSize query parameter. Together with
// MaxSpiralCells it keeps every coordinate far from int overflow.
const MaxSpiralCellSize = 10000

// ActionWriter is the part of service.ActionService the handlers need.
type ActionWriter interface {
	Register(ctx context.Context, memberID, beneficiary, rawCategory string) error
	Delete(ctx context.Context, id string) error
}

// MemberLookup resolves the caller for the "mine" count.
type MemberLookup interface {
	Me(ctx context.Context, id string) (*model.Member, error)
}

// ActionHandler serves the feed, the stats cards and action registration.
//
// Reads come from the server's own feed.Reconciler, which the feed source
// keeps current. Writes go through the service and are NOT echoed back: the
// new action shows up in the next snapshot.
type ActionHandler struct {
	actions ActionWriter
	members MemberLookup
	rec     *feed.Reconciler
	builder *mural.Builder
	now     func() time.Time
	logger  *slog.Logger
}

// NewActionHandler wires the handler. members may be nil; "mine" then
// counts by member ID only.
func NewActionHandler(
	actions ActionWriter,
	members MemberLookup,
	rec *feed.Reconciler,
	builder *mural.Builder,
	logger *slog.Logger,
) *ActionHandler {
	return &ActionHandler{
		actions: actions,
		members: members,
		rec:     rec,
		builder: builder,
		now:     time.Now,
		logger:  logger,
	}
}

// FeedResponse is the body of GET /api/actions.
type FeedResponse struct {
	Entries []model.Action `json:"entries"`
	Syncing bool           `json:"syncing"`
}

// HandleList returns the current snapshot, newest first.
//
// HTTP: GET /api/actions
func (h *ActionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	v := h.rec.View()
	if v.Entries == nil {
		v.Entries = []model.Action{}
	}
	writeJSON(w, http.StatusOK, FeedResponse{Entries: v.Entries, Syncing: v.Syncing})
}

type registerRequest struct {
	BeneficiaryName string `json:"beneficiaryName"`
	Category        string `json:"category"`
}

// HandleRegister records an action for the signed-in member.
//
// HTTP: POST /api/actions
// Auth: Required
//
// The answer is 202 with no action in the body. Clients wait for the feed.
func (h *ActionHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	memberID, ok := auth.MemberIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("entre para registrar uma ação"))
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.actions.Register(r.Context(), memberID, req.BeneficiaryName, req.Category); err != nil {
		h.logger.Warn("register action failed",
			slog.String("memberID", memberID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// HandleDelete removes an action.
//
// HTTP: DELETE /api/admin/actions/{id}
// Auth: Admin
func (h *ActionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.actions.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StatsResponse is mural.Stats plus the projection ticker line.
type StatsResponse struct {
	mural.Stats
	Syncing bool   `json:"syncing"`
	Quote   string `json:"quote"`
}

// HandleStats returns the stats cards. With a session, "mine" is included.
//
// HTTP: GET /api/stats
func (h *ActionHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	var memberID, name string
	if id, ok := auth.MemberIDFromContext(r.Context()); ok {
		memberID = id
		if h.members != nil {
			if m, err := h.members.Me(r.Context(), id); err == nil {
				name = m.DisplayName()
			}
		}
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		Stats:   h.builder.Stats(h.rec, memberID, name),
		Syncing: h.rec.Syncing(),
		Quote:   mural.QuoteAt(h.now()),
	})
}

// HandleSpiral returns spiral coordinates, for clients that lay out cards
// themselves.
//
// HTTP: GET /api/spiral?n=10&cellSize=160
func (h *ActionHandler) HandleSpiral(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "n", 0)
	if err != nil || n < 0 || n > MaxSpiralCells {
		writeError(w, apperror.ValidationFailed("n", "n must be between 0 and "+strconv.Itoa(MaxSpiralCells)))
		return
	}
	cellSize, err := intParam(r, "cellSize", h.rec.CellSize())
	if err != nil || cellSize <= 0 || cellSize > MaxSpiralCellSize {
		writeError(w, apperror.ValidationFailed("cellSize", "cellSize must be between 1 and "+strconv.Itoa(MaxSpiralCellSize)))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cellSize": cellSize,
		"cells":    spiral.Coords(n, cellSize),
	})
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
