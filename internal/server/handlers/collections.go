package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/bookclub/internal/config"
	"github.com/iudanet/bookclub/internal/document"
	"github.com/iudanet/bookclub/internal/models"
	"github.com/iudanet/bookclub/internal/server/storage"
	"github.com/iudanet/bookclub/pkg/api"
)

// ChangeHub будит long-poll запросы при изменении коллекции
type ChangeHub interface {
	Wait(collection string) <-chan struct{}
	Notify(collection string)
}

// CollectionsHandler обрабатывает чтение и запись документов коллекций
type CollectionsHandler struct {
	responder
	store     storage.DocumentStorage
	hub       ChangeHub
	public    map[string]bool
	relations map[string][]document.Relation
	now       func() time.Time
	maxWait   time.Duration
}

// NewCollectionsHandler создает handler для каталога collections.
// maxWait ограничивает время удержания long-poll запроса.
func NewCollectionsHandler(logger *slog.Logger, store storage.DocumentStorage, hub ChangeHub, collections []config.Collection, maxWait time.Duration) *CollectionsHandler {
	public := make(map[string]bool, len(collections))
	for _, c := range collections {
		public[c.Name] = c.Public
	}
	return &CollectionsHandler{
		responder: responder{logger: logger},
		store:     store,
		hub:       hub,
		public:    public,
		relations: config.RelationsOf(collections),
		now:       time.Now,
		maxWait:   maxWait,
	}
}

// Watch обрабатывает POST /api/v1/collections/{collection}/watch
// Отдает снапшот, как только ревизия коллекции отличается от after,
// или 204, если за время ожидания ничего не изменилось
func (h *CollectionsHandler) Watch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name, ok := h.collection(w, r)
	if !ok {
		return
	}
	userID, authenticated := GetUserID(ctx)
	if !h.public[name] && !authenticated {
		h.sendError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req api.WatchRequest
	if err := h.decode(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode watch request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	wait := h.maxWait
	if req.WaitSeconds > 0 {
		if d := time.Duration(req.WaitSeconds) * time.Second; d < wait {
			wait = d
		}
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		// Подписываемся до чтения ревизии, иначе запись между ними потеряется
		changed := h.hub.Wait(name)

		rev, err := h.store.Revision(ctx, name)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to read revision", slog.String("collection", name), slog.Any("error", err))
			h.sendError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		if req.After == 0 || rev != req.After {
			snap, err := h.store.Snapshot(ctx, name, req.Query)
			if err != nil {
				h.logger.ErrorContext(ctx, "failed to read snapshot", slog.String("collection", name), slog.Any("error", err))
				h.sendError(w, "internal server error", http.StatusInternalServerError)
				return
			}
			h.logger.DebugContext(ctx, "snapshot sent",
				slog.String("collection", name),
				slog.String("user_id", userID),
				slog.Int64("revision", snap.Revision),
				slog.Int("documents", len(snap.Documents)))
			h.sendJSON(w, snap, http.StatusOK)
			return
		}

		select {
		case <-changed:
		case <-timer.C:
			w.WriteHeader(http.StatusNoContent)
			return
		case <-ctx.Done():
			// Остановка сервера: клиент повторит watch с тем же after
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
}

// Create обрабатывает POST /api/v1/collections/{collection}/documents
// Владельцем документа становится пользователь из токена
func (h *CollectionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name, userID, ok := h.writer(w, r)
	if !ok {
		return
	}

	var req api.CreateRequest
	if err := h.decode(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode create request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	for k := range req.Fields {
		if models.IsReservedField(k) {
			h.sendError(w, "field "+k+" is read-only", http.StatusBadRequest)
			return
		}
	}
	fields, err := document.Normalize(req.Fields)
	if err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	// счетчики связей выводятся из массивов, а не из запроса
	if err := document.Recount(fields, h.relations[name]); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	now := h.now().UTC()
	doc := api.Document{
		ID:        uuid.New().String(),
		OwnerID:   userID,
		Fields:    fields,
		CreatedAt: now,
		UpdatedAt: now,
	}

	rev, err := h.store.CreateDocument(ctx, name, doc)
	if err != nil {
		h.writeFailed(w, r, "create", name, doc.ID, err)
		return
	}
	h.hub.Notify(name)

	h.logger.InfoContext(ctx, "document created",
		slog.String("collection", name),
		slog.String("id", doc.ID),
		slog.String("user_id", userID),
		slog.Int64("revision", rev))

	h.sendJSON(w, api.CreateResponse{ID: doc.ID, Revision: rev}, http.StatusCreated)
}

// Update обрабатывает PATCH /api/v1/collections/{collection}/documents/{id}
func (h *CollectionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name, userID, ok := h.writer(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if id == "" {
		h.sendError(w, "document id is required", http.StatusBadRequest)
		return
	}

	var patch api.Patch
	if err := h.decode(w, r, &patch); err != nil {
		h.logger.WarnContext(ctx, "failed to decode patch", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if patch.IsEmpty() {
		h.sendError(w, "patch is empty", http.StatusBadRequest)
		return
	}

	rev, err := h.store.UpdateDocument(ctx, name, id, userID, patch, h.relations[name], h.now().UTC())
	if err != nil {
		h.writeFailed(w, r, "update", name, id, err)
		return
	}
	h.hub.Notify(name)

	h.logger.InfoContext(ctx, "document updated",
		slog.String("collection", name),
		slog.String("id", id),
		slog.String("user_id", userID),
		slog.Int64("revision", rev))

	h.sendJSON(w, api.WriteResponse{Revision: rev}, http.StatusOK)
}

// Delete обрабатывает DELETE /api/v1/collections/{collection}/documents/{id}
func (h *CollectionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name, userID, ok := h.writer(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if id == "" {
		h.sendError(w, "document id is required", http.StatusBadRequest)
		return
	}

	rev, err := h.store.DeleteDocument(ctx, name, id, userID)
	if err != nil {
		h.writeFailed(w, r, "delete", name, id, err)
		return
	}
	h.hub.Notify(name)

	h.logger.InfoContext(ctx, "document deleted",
		slog.String("collection", name),
		slog.String("id", id),
		slog.String("user_id", userID),
		slog.Int64("revision", rev))

	h.sendJSON(w, api.WriteResponse{Revision: rev}, http.StatusOK)
}

// collection достает имя коллекции из пути и проверяет, что она есть в каталоге
func (h *CollectionsHandler) collection(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := r.PathValue("collection")
	if _, ok := h.public[name]; !ok {
		h.sendError(w, "unknown collection", http.StatusNotFound)
		return "", false
	}
	return name, true
}

// writer проверяет коллекцию и наличие пользователя для операций записи
func (h *CollectionsHandler) writer(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	name, ok := h.collection(w, r)
	if !ok {
		return "", "", false
	}
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.sendError(w, "authentication required", http.StatusUnauthorized)
		return "", "", false
	}
	return name, userID, true
}

func (h *CollectionsHandler) writeFailed(w http.ResponseWriter, r *http.Request, op, collection, id string, err error) {
	switch {
	case errors.Is(err, storage.ErrDocumentNotFound):
		h.sendError(w, "document not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrForbidden):
		h.logger.WarnContext(r.Context(), "write forbidden",
			slog.String("op", op),
			slog.String("collection", collection),
			slog.String("id", id))
		h.sendError(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, storage.ErrInvalidDocument):
		h.sendError(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.ErrorContext(r.Context(), "write failed",
			slog.String("op", op),
			slog.String("collection", collection),
			slog.String("id", id),
			slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
	}
}
