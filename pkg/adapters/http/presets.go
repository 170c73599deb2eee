package http

import (
	"errors"
	"net/http"

	"github.com/aretw0/relaykit/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// ListPresets handles GET /api/presets.
func (s *Server) ListPresets(w http.ResponseWriter, r *http.Request) {
	names, err := s.Presets.List(r.Context())
	if err != nil {
		s.fail(w, "ListPresets", err)
		return
	}
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"presets": names})
}

// GetPreset handles GET /api/presets/{name}.
func (s *Server) GetPreset(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Presets.Load(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, "GetPreset", err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// SavePreset handles PUT /api/presets/{name}: it captures the current parameter values.
func (s *Server) SavePreset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !validPresetName(name) {
		http.Error(w, "invalid preset name", http.StatusBadRequest)
		return
	}
	snap, err := s.Snapshots.Capture(r.Context(), name)
	if err != nil {
		s.fail(w, "SavePreset", err)
		return
	}
	if err := s.Presets.Save(r.Context(), snap); err != nil {
		s.fail(w, "SavePreset", err)
		return
	}
	s.Logger.Info("Preset saved", "preset", name, "values", len(snap.Values))
	s.writeJSON(w, http.StatusCreated, snap)
}

// LoadPreset handles POST /api/presets/{name}/load.
func (s *Server) LoadPreset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snap, err := s.Presets.Load(r.Context(), name)
	if err != nil {
		s.fail(w, "LoadPreset", err)
		return
	}
	applied, err := s.Snapshots.Restore(r.Context(), snap)
	if err != nil {
		s.fail(w, "LoadPreset", err)
		return
	}
	s.Logger.Info("Preset loaded", "preset", name, "applied", applied)
	s.writeJSON(w, http.StatusOK, map[string]any{"preset": name, "applied": applied})
}

// DeletePreset handles DELETE /api/presets/{name}.
func (s *Server) DeletePreset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := s.Presets.Load(r.Context(), name); errors.Is(err, domain.ErrSnapshotNotFound) {
		s.fail(w, "DeletePreset", err)
		return
	}
	if err := s.Presets.Delete(r.Context(), name); err != nil {
		s.fail(w, "DeletePreset", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// validPresetName accepts names that are safe as file names and Redis key suffixes.
func validPresetName(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return name != "." && name != ".."
}
