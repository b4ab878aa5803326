// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/ttbt-io/scorecard/backend/scorecard"
)

// Options represent server options.
type Options struct {
	Addr        string
	Cert        *tls.Certificate
	DataDir     string
	UseMockAuth bool
	Debug       bool
	Storage     *storage.Storage
	Listener    net.Listener

	// Optional collaborators, created from Storage when nil.
	EventLog      *EventLog
	Hubs          *HubManager
	AccessControl *AccessControl
	Monitor       *Monitor

	// Auth Options
	AuthCookieName string
	AuthJWKSURL    string

	// Access Control Options
	BootstrapAdmin string
}

// Server represents the running server instance.
type Server struct {
	httpServer *http.Server
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	return nil
}

// StartServer starts the web server and registers the API handlers.
func StartServer(opts Options) (*Server, error) {
	handler, err := NewServerHandler(opts)
	if err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if opts.Cert != nil {
		httpServer.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{*opts.Cert},
		}
	}

	go func() {
		var err error
		switch {
		case opts.Listener != nil && httpServer.TLSConfig != nil:
			log.Printf("Starting HTTPS server on provided listener %s...", opts.Listener.Addr())
			err = httpServer.ServeTLS(opts.Listener, "", "")
		case opts.Listener != nil:
			log.Printf("Starting HTTP server on provided listener %s...", opts.Listener.Addr())
			err = httpServer.Serve(opts.Listener)
		case httpServer.TLSConfig != nil:
			log.Printf("Starting HTTPS server on %s...", opts.Addr)
			err = httpServer.ListenAndServeTLS("", "")
		default:
			log.Printf("Starting HTTP server on %s...", opts.Addr)
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Server error: %v", err)
		}
	}()

	return &Server{httpServer: httpServer}, nil
}

// NewServerHandler creates and configures the HTTP handler for the server.
func NewServerHandler(opts Options) (http.Handler, error) {
	if opts.DataDir == "" {
		opts.DataDir = "data"
	}
	if opts.Storage == nil {
		opts.Storage = storage.New(opts.DataDir, nil)
	}
	eventLog := opts.EventLog
	if eventLog == nil {
		eventLog = NewEventLog(opts.Storage, opts.Debug)
	}
	hm := opts.Hubs
	if hm == nil {
		hm = NewHubManager()
	}
	accessControl := opts.AccessControl
	if accessControl == nil {
		accessControl = NewAccessControl(opts.Storage, opts.BootstrapAdmin)
		if err := accessControl.Load(); err != nil {
			return nil, fmt.Errorf("load access policy: %w", err)
		}
	}

	monitor := opts.Monitor
	if monitor == nil {
		monitor = NewMonitor()
	}

	debugf := func(string, ...any) {}
	if opts.Debug {
		debugf = func(f string, a ...any) {
			log.Printf("[DEBUG BACKEND] "+f, a...)
		}
	}

	// authorize resolves the user and checks account membership. It writes
	// the error response and returns false when the request may not proceed.
	authorize := func(w http.ResponseWriter, r *http.Request, accountID string) (string, bool) {
		userID := getUserID(r)
		if userID == "" || !isValidEmail(userID) {
			http.Error(w, "Unauthenticated", http.StatusForbidden)
			return "", false
		}
		if ok, msg := accessControl.CanScore(userID, accountID); !ok {
			log.Printf("[AUTH] Denied %s on account %s: %s", maskEmail(userID), accountID, msg)
			http.Error(w, "Forbidden: "+msg, http.StatusForbidden)
			return "", false
		}
		return userID, true
	}

	pathIDs := func(w http.ResponseWriter, r *http.Request) (string, string, bool) {
		accountID, gameID := r.PathValue("accountId"), r.PathValue("gameId")
		for _, check := range []error{validateID(accountID, "accountId"), validateID(gameID, "gameId")} {
			if check != nil {
				http.Error(w, "Bad Request: "+check.Error(), http.StatusBadRequest)
				return "", "", false
			}
		}
		return accountID, gameID, true
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/accounts/{accountId}/games/{gameId}/score-events", func(w http.ResponseWriter, r *http.Request) {
		accountID, gameID, ok := pathIDs(w, r)
		if !ok {
			return
		}
		userID, ok := authorize(w, r, accountID)
		if !ok {
			return
		}

		var req SubmitRequest
		start := time.Now()
		status := http.StatusOK
		defer func() { monitor.RecordSubmission(req.Type, status, time.Since(start)) }()
		fail := func(msg string, code int) {
			status = code
			http.Error(w, msg, code)
		}

		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
			fail("Bad Request: Malformed JSON", http.StatusBadRequest)
			return
		}
		if err := ValidateSubmission(req); err != nil {
			fail("Bad Request: "+err.Error(), http.StatusBadRequest)
			return
		}

		out, err := eventLog.Submit(r.Context(), accountID, gameID, userID, req)
		switch {
		case errors.Is(err, ErrSubmissionConflict):
			fail(err.Error(), http.StatusConflict)
			return
		case errors.Is(err, ErrInvalidSubmission):
			fail("Bad Request: "+err.Error(), http.StatusBadRequest)
			return
		case err != nil:
			log.Printf("[STORE] Submit %s %s for %s/%s failed: %v", req.Type, req.ClientEventID, accountID, gameID, err)
			fail("Internal Server Error", http.StatusInternalServerError)
			return
		}
		if out.Broadcast != nil {
			hm.Broadcast(accountID, gameID, *out.Broadcast)
		}
		debugf("%s %s -> %s (sequence %d) by %s", req.Type, req.ClientEventID, out.Result.ServerEventID, out.Result.Sequence, maskEmail(userID))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out.Result)
	})

	mux.HandleFunc("GET /api/accounts/{accountId}/games/{gameId}/score-events", func(w http.ResponseWriter, r *http.Request) {
		accountID, gameID, ok := pathIDs(w, r)
		if !ok {
			return
		}
		if _, ok := authorize(w, r, accountID); !ok {
			return
		}
		events, err := eventLog.Events(r.Context(), accountID, gameID)
		if err != nil {
			log.Printf("[STORE] Load events for %s/%s failed: %v", accountID, gameID, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if events == nil {
			events = []scorecard.ScoreEvent{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"events": events})
	})

	mux.HandleFunc("GET /api/ws", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authorize(w, r, r.URL.Query().Get("accountId")); !ok {
			return
		}
		ServeWS(hm, w, r, debugf)
	})

	mux.HandleFunc("GET /api/me", func(w http.ResponseWriter, r *http.Request) {
		userID := getUserID(r)
		if userID == "" {
			http.Error(w, "Unauthenticated", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":    userID,
			"admin": accessControl.IsAdmin(userID),
		})
	})

	mux.HandleFunc("GET /api/admin/metrics", func(w http.ResponseWriter, r *http.Request) {
		if !accessControl.IsAdmin(getUserID(r)) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(monitor.Report(hm))
	})

	mux.HandleFunc("/api/admin/policy", func(w http.ResponseWriter, r *http.Request) {
		userID := getUserID(r)
		if !accessControl.IsAdmin(userID) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		switch r.Method {
		case http.MethodGet:
			policy := accessControl.Policy()
			if policy == nil {
				policy = &AccessPolicy{DefaultPolicy: "allow", Admins: []string{}, Accounts: map[string][]string{}}
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(policy)
		case http.MethodPost:
			var p AccessPolicy
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&p); err != nil {
				http.Error(w, "Bad Request", http.StatusBadRequest)
				return
			}
			if err := accessControl.SetPolicy(p); err != nil {
				http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
				return
			}
			log.Printf("[AUTH] Access policy updated by %s", maskEmail(userID))
			w.WriteHeader(http.StatusOK)
		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		}
	})

	if opts.UseMockAuth {
		mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
			user := r.URL.Query().Get("user")
			if user == "" {
				user = "test@example.com"
			}
			http.SetCookie(w, &http.Cookie{Name: mockAuthCookie, Value: user, Path: "/"})
			w.WriteHeader(http.StatusOK)
		})
		mux.HandleFunc("POST /api/logout", func(w http.ResponseWriter, r *http.Request) {
			http.SetCookie(w, &http.Cookie{Name: mockAuthCookie, Value: "", Path: "/", Expires: time.Unix(0, 0), MaxAge: -1})
			w.WriteHeader(http.StatusOK)
		})
	}

	handler := http.Handler(mux)
	if opts.UseMockAuth {
		handler = mockAuthMiddleware(handler)
	} else {
		handler = jwtAuthMiddleware(opts, handler)
	}
	if opts.Debug {
		handler = loggingMiddleware(handler)
	}
	handler = securityMiddleware(handler)
	handler = cacheControlMiddleware(handler)
	return handler, nil
}

// cacheControlMiddleware keeps API responses out of shared caches.
func cacheControlMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Cache-Control", "private, no-cache, no-transform")
		}
		next.ServeHTTP(w, r)
	})
}

// securityMiddleware adds HTTP security headers to responses.
func securityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs the method and URL path of every incoming HTTP request.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("Received request: %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
