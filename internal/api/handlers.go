package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lolmeida/kstack/internal/manifest"
	"github.com/lolmeida/kstack/internal/model"
)

const yamlContentType = "application/x-yaml"

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEnvironments(w http.ResponseWriter, r *http.Request) {
	envs, err := s.backend.Environments(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, envs)
}

// handleValues returns the values document itself, without an envelope,
// so the body can be fed to helm as is.
func (s *Server) handleValues(w http.ResponseWriter, r *http.Request) {
	envID, err := environmentID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := s.backend.Values(r.Context(), envID, chi.URLParam(r, "stack"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if wantsYAML(r) {
		data, err := manifest.EncodeYAML(doc)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", yamlContentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleDeploy always answers with a deployment result body; the status
// code reflects the error kind.
func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	envID, err := environmentID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	stack := chi.URLParam(r, "stack")

	res := s.backend.Deploy(r.Context(), envID, stack)
	status := statusFor(res.Err)
	if res.Err != nil && status == http.StatusInternalServerError {
		s.logger(r).Error("deploy failed", zap.String("stack", stack), zap.Error(res.Err))
	}
	writeJSON(w, status, res)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.backend.ClearCache(r.Context())
	writeData(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleInvalidateCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	s.backend.InvalidateCategory(r.Context(), category)
	writeData(w, http.StatusOK, map[string]string{"status": "invalidated", "category": category})
}

func environmentID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "envID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid environment id %q", model.ErrBadRequest, raw)
	}
	return id, nil
}

func wantsYAML(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "yaml", "yml":
		return true
	case "json":
		return false
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, yamlContentType) || strings.Contains(accept, "application/yaml")
}
