package server

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/tributary-ai/llm-router/internal/config"
	"github.com/tributary-ai/llm-router/internal/handler"
)

func (s *Server) handleOpenAIRoute(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, config.FormatOpenAI)
}

func (s *Server) handleClaudeRoute(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, config.FormatClaude)
}

func (s *Server) handleAutoRoute(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, "")
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, sourceFormat config.WireFormat) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeErrorText(w, http.StatusRequestEntityTooLarge, "request body too large or unreadable")
		return
	}

	req := handler.Request{
		Path:         r.URL.Path,
		Body:         body,
		Header:       r.Header,
		SourceFormat: sourceFormat,
	}
	res := s.handler.ServeRequest(r.Context(), req)
	s.writeResult(w, res)
}

func (s *Server) writeResult(w http.ResponseWriter, res *handler.Result) {
	for k, vs := range res.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	writeDebugHeaders(w, res.DebugFields)

	if res.Stream != nil {
		defer res.Stream.Body.Close()
		w.Header().Set("Content-Type", res.Stream.ContentType)
		w.WriteHeader(res.Status)
		flusher, canFlush := w.(http.Flusher)
		reader := bufio.NewReader(res.Stream.Body)
		buf := make([]byte, 4096)
		for {
			n, err := reader.Read(buf)
			if n > 0 {
				if _, werr := w.Write(buf[:n]); werr != nil {
					return
				}
				if canFlush {
					flusher.Flush()
				}
			}
			if err != nil {
				return
			}
		}
	}

	w.WriteHeader(res.Status)
	_, _ = w.Write(res.Body)
}

func writeDebugHeaders(w http.ResponseWriter, d handler.DebugFields) {
	if !d.Enabled {
		return
	}
	h := w.Header()
	h.Set("x-llm-router-requested-model", d.RequestedModel)
	h.Set("x-llm-router-route-type", d.RouteType)
	h.Set("x-llm-router-route-ref", d.RouteRef)
	h.Set("x-llm-router-route-strategy", d.RouteStrategy)
	h.Set("x-llm-router-selected-candidate", d.SelectedCandidate)
	if len(d.SkippedCandidates) > 0 {
		h.Set("x-llm-router-skipped-candidates", strings.Join(d.SkippedCandidates, ","))
	}
	if len(d.Attempts) > 0 {
		h.Set("x-llm-router-attempts", strings.Join(d.Attempts, ","))
	}
}

// handleModels lists configured models in the shape the requested wire
// format expects: OpenAI's {object:"list", data:[...]} or Claude's
// {data:[...]}.
func (s *Server) handleModels(format config.WireFormat) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type entry struct {
			ID      string `json:"id"`
			Object  string `json:"object"`
			Type    string `json:"type,omitempty"`
			OwnedBy string `json:"owned_by,omitempty"`
		}
		var entries []entry
		for _, p := range s.cfg.Providers {
			if !p.Enabled {
				continue
			}
			for _, m := range p.Models {
				if !m.Enabled {
					continue
				}
				ref := p.ID + "/" + m.ID
				if format == config.FormatClaude {
					entries = append(entries, entry{ID: ref, Type: "model"})
				} else {
					entries = append(entries, entry{ID: ref, Object: "model", OwnedBy: p.ID})
				}
			}
		}
		for alias := range s.cfg.ModelAliases {
			if format == config.FormatClaude {
				entries = append(entries, entry{ID: alias, Type: "model"})
			} else {
				entries = append(entries, entry{ID: alias, Object: "model", OwnedBy: "alias"})
			}
		}

		if format == config.FormatClaude {
			writeJSON(w, http.StatusOK, map[string]interface{}{"data": entries})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"object": "list", "data": entries})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
