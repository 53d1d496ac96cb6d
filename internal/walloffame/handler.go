package walloffame

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"deligma/internal/uploads"
	pkgerrors "deligma/pkg/errors"
	"deligma/pkg/responses"
)

type Handler struct {
	store  Store
	assets *AssetCoordinator
	resp   *responses.Writer
}

func NewHandler(store Store, assets *AssetCoordinator, resp *responses.Writer) *Handler {
	return &Handler{store: store, assets: assets, resp: resp}
}

// Routes mounts the resource on r. Reads are public; writes go through
// requireAdmin, and create/update additionally through upload.
func (h *Handler) Routes(r chi.Router, requireAdmin, upload func(http.Handler) http.Handler) {
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)

	r.Group(func(r chi.Router) {
		r.Use(requireAdmin)
		r.Post("/reorder", h.handleReorder)
		r.With(upload).Post("/", h.handleCreate)
		r.With(upload).Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
		r.Patch("/{id}/toggle-activo", h.handleToggleActive)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("activos") == "true"

	members, err := h.store.ListMembers(r.Context(), activeOnly)
	if err != nil {
		h.resp.Error(r.Context(), w, err)
		return
	}
	h.resp.Success(w, members)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := memberID(r)
	if err != nil {
		h.resp.Error(r.Context(), w, err)
		return
	}

	member, err := h.store.GetMember(r.Context(), id)
	if err != nil {
		h.resp.Error(r.Context(), w, err)
		return
	}
	h.resp.Success(w, member)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uploaded := uploads.FilenameFromContext(ctx)

	member, err := h.create(r, uploaded)
	if err != nil {
		h.assets.Discard(ctx, uploaded)
		h.resp.Error(ctx, w, err)
		return
	}
	h.resp.SuccessStatus(w, http.StatusCreated, member, "Miembro agregado exitosamente")
}

func (h *Handler) create(r *http.Request, uploaded string) (*Member, error) {
	fields, err := readFields(r)
	if err != nil {
		return nil, err
	}
	in, err := createInput(fields, uploaded)
	if err != nil {
		return nil, err
	}
	return h.store.CreateMember(r.Context(), in)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uploaded := uploads.FilenameFromContext(ctx)

	previous, member, err := h.update(r, uploaded)
	if err != nil {
		h.assets.Discard(ctx, uploaded)
		h.resp.Error(ctx, w, err)
		return
	}
	h.assets.AfterUpdate(ctx, previous, uploaded)
	h.resp.SuccessStatus(w, http.StatusOK, member, "Miembro actualizado exitosamente")
}

// update returns the snapshot taken before the write along with the result.
func (h *Handler) update(r *http.Request, uploaded string) (*Member, *Member, error) {
	id, err := memberID(r)
	if err != nil {
		return nil, nil, err
	}
	fields, err := readFields(r)
	if err != nil {
		return nil, nil, err
	}
	previous, err := h.store.GetMember(r.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	updated, err := h.store.UpdateMember(r.Context(), id, updatePatch(fields, uploaded))
	if err != nil {
		return nil, nil, err
	}
	return previous, updated, nil
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := memberID(r)
	if err != nil {
		h.resp.Error(ctx, w, err)
		return
	}

	snapshot, err := h.store.GetMember(ctx, id)
	if err != nil {
		h.resp.Error(ctx, w, err)
		return
	}
	if err := h.store.DeleteMember(ctx, id); err != nil {
		h.resp.Error(ctx, w, err)
		return
	}
	h.assets.AfterDelete(ctx, snapshot)
	h.resp.Message(w, "Miembro eliminado exitosamente")
}

func (h *Handler) handleToggleActive(w http.ResponseWriter, r *http.Request) {
	id, err := memberID(r)
	if err != nil {
		h.resp.Error(r.Context(), w, err)
		return
	}

	member, err := h.store.ToggleActive(r.Context(), id)
	if err != nil {
		h.resp.Error(r.Context(), w, err)
		return
	}
	h.resp.SuccessStatus(w, http.StatusOK, member, toggleMessage(member.Active))
}

func (h *Handler) handleReorder(w http.ResponseWriter, r *http.Request) {
	assignments, err := parseReorder(r.Body)
	if err != nil {
		h.resp.Error(r.Context(), w, err)
		return
	}
	if err := h.store.Reorder(r.Context(), assignments); err != nil {
		h.resp.Error(r.Context(), w, err)
		return
	}
	h.resp.Message(w, "Orden actualizado exitosamente")
}

func toggleMessage(active bool) string {
	if active {
		return "Miembro activado exitosamente"
	}
	return "Miembro desactivado exitosamente"
}

func memberID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "ID de miembro inválido")
	}
	return id, nil
}
