/*
File: server_api.go
Version: 1.0.0
Description: HTTP handlers for the URL guard API, plus the client filter (ACL and rate limit)
             that fronts every route.
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"
)

const (
	maxAPIBodySize = 1 << 20
	maxScanLinks   = 1000
)

type apiServer struct {
	checker *Checker
	handle  *ClassifierHandle
	rules   *BlockRuleTable
	history *BlockHistory
	events  *EventHub
	acl     *ClientACL
	limiter *Limiter
	timeout time.Duration
}

type urlRequest struct {
	URL    string `json:"url"`
	Reason string `json:"reason,omitempty"`
}

type scanRequest struct {
	URLs []string `json:"urls"`
}

// checkResponse is the verdict plus the rule installed for it, if any.
type checkResponse struct {
	Verdict
	Blocked bool       `json:"blocked"`
	Rule    *BlockRule `json:"rule,omitempty"`
}

func newAPIServer(cfg *Config, checker *Checker, handle *ClassifierHandle, rules *BlockRuleTable, history *BlockHistory, events *EventHub, limiter *Limiter) *apiServer {
	timeout := cfg.Server.parsedTimeout
	if timeout <= 0 {
		timeout = defaultServerTimeout
	}
	return &apiServer{
		checker: checker,
		handle:  handle,
		rules:   rules,
		history: history,
		events:  events,
		acl:     NewClientACL(cfg.Server.parsedAllowedClients),
		limiter: limiter,
		timeout: timeout,
	}
}

// routes builds the mux. Every route sits behind the client filter.
func (s *apiServer) routes(robotsTxt bool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/check", s.handleCheck)
	mux.HandleFunc("POST /api/check", s.handleCheck)
	mux.HandleFunc("POST /api/navigate", s.handleNavigate)
	mux.HandleFunc("POST /api/scan", s.handleScan)
	mux.HandleFunc("GET /api/features", s.handleFeatures)
	mux.HandleFunc("GET /api/model", s.handleModel)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/rules", s.handleListRules)
	mux.HandleFunc("DELETE /api/rules", s.handleClearRules)
	mux.HandleFunc("DELETE /api/rules/{id}", s.handleDeleteRule)
	mux.HandleFunc("POST /api/block", s.handleBlock)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("DELETE /api/history", s.handleClearHistory)
	mux.HandleFunc("GET /api/events", s.events.ServeWS)

	if robotsTxt {
		mux.HandleFunc("GET /robots.txt", handleRobotsTxt)
	}
	return s.filterClients(mux)
}

func (s *apiServer) filterClients(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIPFromRequest(r)
		if !s.acl.Allowed(ip) {
			LogWarn("[API] Client %s not allowed (%s %s)", r.RemoteAddr, r.Method, r.URL.Path)
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		action, delay, reason := s.limiter.Check(ip)
		switch action {
		case LimitDrop:
			LogDebug("[API] %s", reason)
			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		case LimitDelay:
			t := time.NewTimer(delay)
			select {
			case <-t.C:
			case <-r.Context().Done():
				t.Stop()
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func handleRobotsTxt(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("User-agent: *\nDisallow: /\n"))
}

// --- Handlers ---

func (s *apiServer) handleCheck(w http.ResponseWriter, r *http.Request) {
	req, ok := readURLRequest(w, r)
	if !ok {
		return
	}
	v, rule := s.checker.CheckURL(req.URL)
	writeJSON(w, http.StatusOK, checkResponse{Verdict: v, Blocked: rule != nil, Rule: rule})
}

func (s *apiServer) handleNavigate(w http.ResponseWriter, r *http.Request) {
	req, ok := readURLRequest(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	writeJSON(w, http.StatusOK, s.checker.CheckNavigation(ctx, req.URL))
}

func (s *apiServer) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.URLs) > maxScanLinks {
		writeError(w, http.StatusRequestEntityTooLarge, "too many links (max "+strconv.Itoa(maxScanLinks)+")")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	results, err := s.checker.ScanLinks(ctx, req.URLs)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *apiServer) handleFeatures(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "missing url")
		return
	}
	report, err := s.handle.Current().InspectFeatures(rawURL)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *apiServer) handleModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.handle.Current().Status())
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.checker.Stats())
}

func (s *apiServer) handleListRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rules": s.rules.List()})
}

func (s *apiServer) handleClearRules(w http.ResponseWriter, r *http.Request) {
	n := s.checker.ClearRules()
	LogInfo("[API] Cleared %d block rules", n)
	writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

func (s *apiServer) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	if !s.rules.Remove(id) {
		writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleBlock(w http.ResponseWriter, r *http.Request) {
	req, ok := readURLRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, s.checker.Block(req.URL, req.Reason))
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"blocked": s.history.Entries()})
}

func (s *apiServer) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	s.history.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

// readURLRequest takes the URL from a JSON body on POST and from the query string otherwise.
func readURLRequest(w http.ResponseWriter, r *http.Request) (urlRequest, bool) {
	var req urlRequest
	if r.Method == http.MethodPost {
		if !decodeBody(w, r, &req) {
			return req, false
		}
	} else {
		req.URL = r.URL.Query().Get("url")
		req.Reason = r.URL.Query().Get("reason")
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "missing url")
		return req, false
	}
	return req, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxAPIBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		LogDebug("[API] Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
