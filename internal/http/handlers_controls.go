package httpx

import (
	"net/http"

	"github.com/t3eHawk/rapo/internal/domain/model"
	apperrors "github.com/t3eHawk/rapo/internal/errors"
	"github.com/t3eHawk/rapo/internal/service"
)

// ControlHandlers provides HTTP handlers for control configuration.
type ControlHandlers struct {
	Controls *service.ControlService
	Reader   *service.ReaderService
}

// SaveControl inserts or updates a control configuration. Presence of
// control_id in the body selects update.
func (h *ControlHandlers) SaveControl(w http.ResponseWriter, r *http.Request) {
	var req model.SaveControlRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	cfg, err := h.Controls.Save(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, cfg)
}

// DeleteControl removes a control configuration row. The audit table
// keeps its history.
func (h *ControlHandlers) DeleteControl(w http.ResponseWriter, r *http.Request) {
	controlID, err := parseIDQuery(r, "control_id")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	deleted, err := h.Controls.Delete(r.Context(), controlID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !deleted {
		writeServiceError(w, apperrors.NotFoundf("control %d not found", controlID))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// DeleteControlOutputTables drops every result table of the named
// control. Used when decommissioning a control.
func (h *ControlHandlers) DeleteControlOutputTables(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeServiceError(w, apperrors.Validation("name is required"))
		return
	}
	cfg, err := h.Controls.GetByName(r.Context(), name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dropped, err := h.Controls.DeleteOutputTables(r.Context(), cfg.ControlID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"dropped": dropped})
}

const (
	defaultControlsLimit = 100
	maxControlsLimit     = 500
)

// GetAllControls lists control configurations, most recently updated
// first.
func (h *ControlHandlers) GetAllControls(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, defaultControlsLimit, maxControlsLimit)
	opts := model.ControlsListOptions{
		Limit:  limit,
		Offset: offset,
		Sort:   "updated_date",
		Dir:    "desc",
	}
	if q := r.URL.Query().Get("q"); q != "" {
		opts.Q = &q
	}
	if group := r.URL.Query().Get("control_group"); group != "" {
		opts.Group = &group
	}
	if typ := r.URL.Query().Get("control_type"); typ != "" {
		t := model.ControlType(typ)
		opts.Type = &t
	}
	if status := r.URL.Query().Get("status"); status != "" {
		f := model.Flag(status)
		opts.Status = &f
	}

	controls, err := h.Reader.AllControls(r.Context(), opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, controls)
}

// GetControlVersions lists the archived revisions of one control.
func (h *ControlHandlers) GetControlVersions(w http.ResponseWriter, r *http.Request) {
	controlID, err := parseIDQuery(r, "control_id")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	limit, offset := ParseLimitOffset(r, defaultControlsLimit, maxControlsLimit)
	versions, err := h.Reader.ControlVersions(r.Context(), controlID, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, versions)
}

// GetDatasources lists the tables and views a control may read from.
func (h *ControlHandlers) GetDatasources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.Reader.Datasources(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, sources)
}

// GetDatasourceColumns describes the columns of one datasource.
func (h *ControlHandlers) GetDatasourceColumns(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("datasource_name")
	columns, err := h.Reader.DatasourceColumns(r.Context(), name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, columns)
}
