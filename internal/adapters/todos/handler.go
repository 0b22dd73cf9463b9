// Package todos serves the todo collection over HTTP under BasePath.
package todos

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"

	"todoapi/internal/core"
	"todoapi/internal/validation"
	"todoapi/pkg/domain"
)

// BasePath prefixes every todo route.
const BasePath = "/api"

// Response messages.
const (
	MsgListed          = "Successfully retrieved all to-do items"
	MsgListEmpty       = "To-do list is empty"
	MsgRetrieved       = "Successfully retrieved todo"
	MsgAdded           = "Successfully added todo"
	MsgUpdated         = "Successfully updated todo"
	MsgDeleted         = "Successfully deleted todo"
	MsgExported        = "Successfully exported todos"
	MsgExportsListed   = "Successfully retrieved exports"
	MsgNotFound        = "Todo not found"
	MsgInternal        = "Internal server error"
	MsgRouteNotFound   = "Route not found"
	MsgMethod          = "Method not allowed"
	MsgExportsDisabled = "Export storage is not configured"
	MsgBodyTooLarge    = "Request body too large"
)

// Service is the part of core.Service the handler drives.
type Service interface {
	ListTodos(ctx context.Context) ([]domain.Todo, error)
	GetTodo(ctx context.Context, id string) (domain.Todo, error)
	CreateTodo(ctx context.Context, fields map[string]any) (domain.Todo, domain.Result, error)
	UpdateTodoText(ctx context.Context, id, text string) (domain.Todo, domain.Result, error)
	DeleteTodo(ctx context.Context, id string) ([]domain.Todo, domain.Result, error)
}

var _ Service = (*core.Service)(nil)

// Envelope is the body of every response. NewTodo is only set by addTodo.
type Envelope struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
	NewTodo any    `json:"newTodo,omitempty"`
}

// Handler routes todo requests. Exports may be nil, in which case the export
// routes answer 503.
type Handler struct {
	Service Service
	Exports *Exporter
	Logger  core.Logger
}

// NewHandler constructs a handler over svc.
func NewHandler(svc Service) *Handler {
	return &Handler{Service: svc}
}

type route struct {
	method string
	serve  func(*Handler, http.ResponseWriter, *http.Request)
}

var routes = map[string]route{
	"/getAllTodo":  {http.MethodGet, (*Handler).handleList},
	"/getTodo":     {http.MethodGet, (*Handler).handleGet},
	"/addTodo":     {http.MethodPost, (*Handler).handleAdd},
	"/updateTodo":  {http.MethodPut, (*Handler).handleUpdate},
	"/deleteTodo":  {http.MethodDelete, (*Handler).handleDelete},
	"/exportTodos": {http.MethodPost, (*Handler).handleExport},
	"/getExports":  {http.MethodGet, (*Handler).handleListExports},
}

// Routes returns the full paths served by the handler, sorted.
func Routes() []string {
	out := make([]string, 0, len(routes))
	for p := range routes {
		out = append(out, BasePath+p)
	}
	sort.Strings(out)
	return out
}

// RouteName maps a request path to the route it would be served by, or
// "unmatched". Used to bound metric label cardinality.
func RouteName(path string) string {
	rest, ok := strings.CutPrefix(strings.TrimSuffix(path, "/"), BasePath)
	if _, known := routes[rest]; ok && known {
		return BasePath + rest
	}
	return "unmatched"
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest, ok := strings.CutPrefix(strings.TrimSuffix(r.URL.Path, "/"), BasePath)
	rt, known := routes[rest]
	if !ok || !known {
		writeJSON(w, http.StatusNotFound, Envelope{Message: MsgRouteNotFound})
		return
	}
	if r.Method != rt.method {
		w.Header().Set("Allow", rt.method)
		writeJSON(w, http.StatusMethodNotAllowed, Envelope{Message: MsgMethod})
		return
	}
	rt.serve(h, w, r)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	todos, err := h.Service.ListTodos(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	msg := MsgListed
	if len(todos) == 0 {
		msg = MsgListEmpty
	}
	writeJSON(w, http.StatusOK, Envelope{Message: msg, Data: todos})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if err := validation.GetTodoID.ValidateQuery(query); err != nil {
		h.fail(w, r, err)
		return
	}
	todo, err := h.Service.GetTodo(r.Context(), query.Get(domain.FieldID))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Message: MsgRetrieved, Data: todo})
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	fields, ok := h.decodeAndValidate(w, r, validation.AddTodo)
	if !ok {
		return
	}
	created, _, err := h.Service.CreateTodo(r.Context(), fields)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, Envelope{Message: MsgAdded, NewTodo: created})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	fields, ok := h.decodeAndValidate(w, r, validation.UpdateTodo)
	if !ok {
		return
	}
	id, _ := fields[domain.FieldID].(string)
	text, _ := fields[domain.FieldText].(string)
	updated, _, err := h.Service.UpdateTodoText(r.Context(), id, text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Message: MsgUpdated, Data: updated})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if err := validation.DeleteTodoID.ValidateQuery(query); err != nil {
		h.fail(w, r, err)
		return
	}
	remaining, _, err := h.Service.DeleteTodo(r.Context(), query.Get(domain.FieldID))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Message: MsgDeleted, Data: remaining})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	if h.Exports == nil {
		writeJSON(w, http.StatusServiceUnavailable, Envelope{Message: MsgExportsDisabled})
		return
	}
	info, err := h.Exports.Export(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, Envelope{Message: MsgExported, Data: info})
}

func (h *Handler) handleListExports(w http.ResponseWriter, r *http.Request) {
	if h.Exports == nil {
		writeJSON(w, http.StatusServiceUnavailable, Envelope{Message: MsgExportsDisabled})
		return
	}
	infos, err := h.Exports.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Message: MsgExportsListed, Data: infos})
}

// decodeAndValidate reads the body and checks it against schema. On failure
// it has already written the response.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, schema *validation.Schema) (map[string]any, bool) {
	doc, err := decodeBody(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, Envelope{Message: MsgBodyTooLarge})
			return nil, false
		}
		h.fail(w, r, err)
		return nil, false
	}
	if err := schema.Validate(doc); err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	// the schemas require an object
	fields, _ := doc.(map[string]any)
	return fields, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *domain.ValidationError
	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, Envelope{Message: invalid.Message, Error: invalid.Detail})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, Envelope{Message: MsgNotFound, Error: err.Error()})
	default:
		h.logger().Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, Envelope{Message: MsgInternal, Error: "internal error"})
	}
}

func (h *Handler) logger() core.Logger {
	if h.Logger == nil {
		return core.NopLogger()
	}
	return h.Logger
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
