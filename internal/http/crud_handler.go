package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/todo-crud/internal/crud"
)

const maxEntityBodyBytes = 1 << 20

// CrudLogic is the verb set a CrudHandler dispatches to. *crud.Logic[T]
// satisfies it, as do wrappers that override single verbs.
type CrudLogic[T crud.Entity] interface {
	Create(ctx context.Context, param crud.CrudParam[T]) (crud.APIResult[int64], error)
	GetByID(ctx context.Context, param crud.CrudParam[T]) (crud.APIResult[[]T], error)
	Update(ctx context.Context, param crud.CrudParam[T]) (crud.APIResult[bool], error)
	PartialUpdate(ctx context.Context, param crud.CrudParam[T]) (crud.APIResult[bool], error)
	Delete(ctx context.Context, param crud.CrudParam[T]) (crud.APIResult[bool], error)
	GetByOwnerID(ctx context.Context, param crud.CrudParam[T]) (crud.APIResult[[]T], error)
}

// CrudHandler maps HTTP methods on one resource onto a CrudLogic. Every
// response body is an APIResult.
type CrudHandler[T crud.Entity] struct {
	logic  CrudLogic[T]
	name   string
	logger *slog.Logger
}

func NewCrudHandler[T crud.Entity](name string, logic CrudLogic[T], logger *slog.Logger) *CrudHandler[T] {
	return &CrudHandler[T]{logic: logic, name: name, logger: orDefault(logger)}
}

func (h *CrudHandler[T]) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return loggerFor(ctx, h.logger, "CrudHandler", h.name, operation, attrs...)
}

// ServeHTTP dispatches on the request method.
func (h *CrudHandler[T]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.logic == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	switch r.Method {
	case http.MethodPost:
		h.Create(w, r)
	case http.MethodGet:
		h.Get(w, r)
	case http.MethodPut:
		h.Update(w, r)
	case http.MethodPatch:
		h.Patch(w, r)
	case http.MethodDelete:
		h.Delete(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete)
	}
}

func (h *CrudHandler[T]) Create(w http.ResponseWriter, r *http.Request) {
	entity, err := decodeEntity[T](w, r)
	if err != nil {
		writeMalformed[int64](h, w, r, "Create", "body", err)
		return
	}
	result, err := h.logic.Create(r.Context(), h.param(r, crud.CrudParam[T]{Entity: &entity}))
	writeResult(h, w, r, "Create", http.StatusCreated, result, err)
}

func (h *CrudHandler[T]) Get(w http.ResponseWriter, r *http.Request) {
	ids, err := queryIDs(r, "ids")
	if err != nil {
		writeMalformed[[]T](h, w, r, "GetByID", "ids", err)
		return
	}
	result, err := h.logic.GetByID(r.Context(), h.param(r, crud.CrudParam[T]{EntityIDs: ids}))
	writeResult(h, w, r, "GetByID", http.StatusOK, result, err)
}

func (h *CrudHandler[T]) Update(w http.ResponseWriter, r *http.Request) {
	entity, err := decodeEntity[T](w, r)
	if err != nil {
		writeMalformed[bool](h, w, r, "Update", "body", err)
		return
	}
	result, err := h.logic.Update(r.Context(), h.param(r, crud.CrudParam[T]{Entity: &entity}))
	writeResult(h, w, r, "Update", http.StatusOK, result, err)
}

// Patch applies an RFC 6902 document sent as application/json-patch+json.
func (h *CrudHandler[T]) Patch(w http.ResponseWriter, r *http.Request) {
	if !acceptsPatch(r.Header.Get("Content-Type")) {
		writeMalformed[bool](h, w, r, "PartialUpdate", "patch", errors.New("content type must be application/json-patch+json"))
		return
	}
	ids, err := queryIDs(r, "id")
	if err != nil {
		writeMalformed[bool](h, w, r, "PartialUpdate", "id", err)
		return
	}
	var patch json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEntityBodyBytes)).Decode(&patch); err != nil {
		writeMalformed[bool](h, w, r, "PartialUpdate", "patch", err)
		return
	}
	result, err := h.logic.PartialUpdate(r.Context(), h.param(r, crud.CrudParam[T]{EntityIDs: ids, Patch: patch}))
	writeResult(h, w, r, "PartialUpdate", http.StatusOK, result, err)
}

func (h *CrudHandler[T]) Delete(w http.ResponseWriter, r *http.Request) {
	ids, err := queryIDs(r, "id")
	if err != nil {
		writeMalformed[bool](h, w, r, "Delete", "id", err)
		return
	}
	result, err := h.logic.Delete(r.Context(), h.param(r, crud.CrudParam[T]{EntityIDs: ids}))
	writeResult(h, w, r, "Delete", http.StatusOK, result, err)
}

// ServeMine returns the entities owned by the caller.
func (h *CrudHandler[T]) ServeMine(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.logic == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	result, err := h.logic.GetByOwnerID(r.Context(), h.param(r, crud.CrudParam[T]{}))
	writeResult(h, w, r, "GetByOwnerID", http.StatusOK, result, err)
}

// param fills in the requester from the authenticated principal. Without one
// the requester stays nil and the parameter checks reject the call.
func (h *CrudHandler[T]) param(r *http.Request, param crud.CrudParam[T]) crud.CrudParam[T] {
	if principal, ok := PrincipalFromContext(r.Context()); ok {
		param.Requester = principal
	}
	return param
}

func writeResult[T crud.Entity, R any](h *CrudHandler[T], w http.ResponseWriter, r *http.Request, operation string, okStatus int, result crud.APIResult[R], err error) {
	ctx := r.Context()
	status := crudStatus(result, err, okStatus)
	logger := h.log(ctx, operation, "status", status)

	switch {
	case status == http.StatusInternalServerError:
		logger.ErrorContext(ctx, "crud request failed", "error", err, "error_kind", crud.ErrorKind(err))
		result = crud.Rejected[R](nil, statusMessage(status))
	case err != nil:
		logger.WarnContext(ctx, "crud request refused", "error", err, "error_kind", crud.ErrorKind(err))
		result.Messages = append(result.Messages, err.Error())
	case !result.Successful:
		logger.InfoContext(ctx, "crud request rejected", "fields", crud.Errors(result.Errors).Fields())
	}

	newResponder(h.logger).writeJSON(ctx, w, status, result)
}

func writeMalformed[R any, T crud.Entity](h *CrudHandler[T], w http.ResponseWriter, r *http.Request, operation, field string, err error) {
	ctx := r.Context()
	h.log(ctx, operation, "error_kind", "bad_request").WarnContext(ctx, "malformed crud request", "field", field, "error", err)
	result := crud.Rejected[R](crud.Errors{{Field: field, Reason: err.Error()}}, statusMessage(http.StatusBadRequest))
	newResponder(h.logger).writeJSON(ctx, w, http.StatusBadRequest, result)
}

func crudStatus[R any](result crud.APIResult[R], err error, okStatus int) int {
	switch {
	case err == nil && result.Successful:
		return okStatus
	case err == nil:
		return http.StatusUnprocessableEntity
	case errors.Is(err, crud.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, crud.ErrVerbNotConfigured):
		return http.StatusMethodNotAllowed
	}
	return http.StatusInternalServerError
}

func decodeEntity[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var entity T
	if r.Body == nil || r.Body == http.NoBody {
		return entity, errors.New("request body is required")
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEntityBodyBytes)).Decode(&entity); err != nil {
		return entity, fmt.Errorf("%s: %w", errBadRequestBody, err)
	}
	return entity, nil
}

// queryIDs accepts repeated keys and comma separated values alike.
func queryIDs(r *http.Request, key string) ([]int64, error) {
	var ids []int64
	for _, raw := range r.URL.Query()[key] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not an integer id", part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func acceptsPatch(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json-patch+json" || mediaType == "application/json"
}
