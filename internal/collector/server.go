package collector

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/playwatch/playwatch/internal/logging"
	"github.com/playwatch/playwatch/internal/wire"
)

// Server handles agent submissions. One route, three outcomes: 401 when the
// shared secret doesn't match, 500 when storage fails, 201 otherwise.
type Server struct {
	store  *Store
	secret string
	logger *logrus.Entry
}

// NewServer wires the submission handler to a store. An empty secret
// disables authentication.
func NewServer(store *Store, secret string) *Server {
	return &Server{
		store:  store,
		secret: secret,
		logger: logging.NewLogger("collector"),
	}
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/submit", s.handleSubmit)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.authenticated(r) {
		writeStatus(w, http.StatusUnauthorized, wire.StatusUnauthenticated)
		return
	}

	var sub wire.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		s.logger.Warnf("Rejecting unparsable submission: %v", err)
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if err := s.store.RecordSubmission(r.Context(), sub, time.Now()); err != nil {
		s.logger.Errorf("Could not save event for %s: %v", sub.Display(), err)
		writeStatus(w, http.StatusInternalServerError, wire.StatusDatabaseError)
		return
	}

	s.logger.Infof("Process %s saved", sub.Display())
	writeStatus(w, http.StatusCreated, wire.StatusOK)
}

// authenticated checks the shared secret header. No configured secret means
// open submission.
func (s *Server) authenticated(r *http.Request) bool {
	if s.secret == "" {
		return true
	}
	provided := r.Header.Get(wire.SecretHeader)
	if provided == "" {
		s.logger.Debugf("Authentication error: %s not provided", wire.SecretHeader)
		return false
	}
	return provided == s.secret
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(wire.SubmissionResponse{Status: status})
}
