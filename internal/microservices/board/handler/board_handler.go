package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/microservices/board/models"
	"kitchen-sync/internal/microservices/board/repository"
	"kitchen-sync/internal/microservices/board/rules"
	"kitchen-sync/internal/microservices/board/service"
	"kitchen-sync/internal/microservices/board/view"
)

const (
	defaultTimelineLimit = 50
	maxTimelineLimit     = 500
)

var upgrader = websocket.Upgrader{
	// kitchen screens are served from other origins on the LAN
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type BoardHandler struct {
	store       repository.OrderStoreInterface
	coordinator service.CoordinatorInterface
	board       service.BoardServiceInterface
	journal     repository.JournalRepoInterface
	hub         *Hub
	lg          *logger.Logger
}

// NewBoardHandler wires the board surface. journal may be nil.
func NewBoardHandler(store repository.OrderStoreInterface, coordinator service.CoordinatorInterface,
	board service.BoardServiceInterface, journal repository.JournalRepoInterface, hub *Hub, lg *logger.Logger) *BoardHandler {
	if lg == nil {
		lg = logger.New("board-http")
	}
	return &BoardHandler{store: store, coordinator: coordinator, board: board, journal: journal, hub: hub, lg: lg}
}

func (h *BoardHandler) project(orders []models.Order) view.Board {
	return view.Project(orders, h.coordinator.Pending)
}

// OnStoreChange is a store listener pushing every new snapshot to the screens.
func (h *BoardHandler) OnStoreChange(orders []models.Order) {
	h.hub.BroadcastBoard(h.project(orders))
}

func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	orders := view.ForTable(h.store.List(), r.URL.Query().Get("mesa"))
	writeJSON(w, http.StatusOK, h.project(orders))
}

func (h *BoardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.board.Load(r.Context()); err != nil {
		writeProblem(w, http.StatusBadGateway, "fetch_failure", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.project(h.store.List()))
}

type actionResponse struct {
	MutationID string        `json:"mutation_id"`
	From       models.Status `json:"from"`
	To         models.Status `json:"to"`
	Card       view.Card     `json:"card"`
	Outcome    string        `json:"outcome,omitempty"`
}

// Act starts a status change. The answer is 202 with the optimistic card; with
// ?wait=true it waits for the backend and answers with the settled card.
func (h *BoardHandler) Act(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, http.StatusBadRequest, "bad_order_id", "order id must be a positive integer")
		return
	}
	action, err := rules.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_action", err.Error())
		return
	}

	t, err := h.coordinator.Advance(r.Context(), id, action)
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		writeProblem(w, http.StatusNotFound, "not_found", err.Error())
		return
	case errors.Is(err, service.ErrMutationInFlight):
		writeProblem(w, http.StatusConflict, "mutation_in_flight", err.Error())
		return
	case errors.Is(err, service.ErrInvalidTransition):
		writeProblem(w, http.StatusUnprocessableEntity, "invalid_transition", err.Error())
		return
	case err != nil:
		writeProblem(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	resp := actionResponse{MutationID: t.MutationID, From: t.From, To: t.To}
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); !wait {
		resp.Card = view.Project([]models.Order{t.Optimistic}, func(int64) bool { return true }).Cards[0]
		writeJSON(w, http.StatusAccepted, resp)
		return
	}

	out, err := t.Wait(r.Context())
	if err != nil {
		// client gave up; the mutation still settles
		return
	}
	if out.Err != nil {
		writeProblem(w, http.StatusBadGateway, "sync_failure", out.Err.Error())
		return
	}
	resp.Card = view.Project([]models.Order{out.Order}, nil).Cards[0]
	resp.Outcome = string(models.OutcomeConfirmed)
	writeJSON(w, http.StatusOK, resp)
}

func (h *BoardHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeProblem(w, http.StatusServiceUnavailable, "journal_disabled", "no database configured")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_order_id", "order id must be an integer")
		return
	}
	limit := atoiDefault(r.URL.Query().Get("limit"), defaultTimelineLimit)
	if limit == 0 || limit > maxTimelineLimit {
		limit = maxTimelineLimit
	}
	offset := atoiDefault(r.URL.Query().Get("offset"), 0)

	events, err := h.journal.Timeline(r.Context(), id, limit, offset)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": id, "events": events})
}

// ServeWS registers a kitchen screen and sends it the current board.
func (h *BoardHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.lg.Warn("ws_upgrade_failed", map[string]any{"err": err.Error()})
		return
	}
	c := h.hub.addClient(conn)
	h.lg.Info("ws_client_connected", map[string]any{"clients": h.hub.ClientsCount()})

	b := h.project(h.store.List())
	if msg, err := json.Marshal(Frame{Type: "board", Board: &b}); err == nil {
		h.hub.sendTo(c, msg)
	}

	defer func() {
		h.hub.removeClient(c)
		h.lg.Info("ws_client_disconnected", map[string]any{"clients": h.hub.ClientsCount()})
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.lg.Warn("ws_read_failed", map[string]any{"err": err.Error()})
			}
			return
		}
	}
}
