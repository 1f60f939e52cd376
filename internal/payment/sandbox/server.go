package sandbox

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/payment/provider"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	intentRequiresPaymentMethod = "requires_payment_method"
	intentSucceeded             = "succeeded"
)

type intent struct {
	provider.Intent
	ref string
}

// Server is an in-process payment provider implementing the API that
// provider.Client consumes. It honours Idempotency-Key on every write.
type Server struct {
	decider Decider
	log     *zap.Logger

	mu          sync.Mutex
	seq         int
	intents     map[string]*intent
	intentByKey map[string]string
	transfers   map[string]provider.Transfer
	prompts     map[string]provider.Prompt
	unavailable map[string]bool
}

func NewServer(d Decider, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		decider:     d,
		log:         log,
		intents:     make(map[string]*intent),
		intentByKey: make(map[string]string),
		transfers:   make(map[string]provider.Transfer),
		prompts:     make(map[string]provider.Prompt),
		unavailable: make(map[string]bool),
	}
}

// SetAvailable toggles what the availability check reports for method.
func (s *Server) SetAvailable(method string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable[method] = !ok
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/availability/{method}", s.availability)
	r.Post("/v1/intents", s.createIntent)
	r.Post("/v1/intents/{id}/confirm", s.confirmIntent)
	r.Post("/v1/wallets/{method}/prompts", s.openPrompt)
	r.Post("/v1/transfers", s.transfer)
	return r
}

func (s *Server) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s_%d", prefix, s.seq)
}

func (s *Server) availability(w http.ResponseWriter, r *http.Request) {
	method := chi.URLParam(r, "method")
	s.mu.Lock()
	down := s.unavailable[method]
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, provider.Availability{Method: method, Available: !down})
}

func (s *Server) createIntent(w http.ResponseWriter, r *http.Request) {
	var req provider.IntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.AmountMinor <= 0 || req.Currency == "" {
		respondError(w, http.StatusBadRequest, "invalid_amount", "amount and currency are required")
		return
	}
	key := r.Header.Get("Idempotency-Key")

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.intentByKey[key]; ok && key != "" {
		respondJSON(w, http.StatusOK, s.intents[id].Intent)
		return
	}
	in := &intent{Intent: provider.Intent{
		ID:          s.nextID("pi"),
		Status:      intentRequiresPaymentMethod,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
	}}
	s.intents[in.ID] = in
	if key != "" {
		s.intentByKey[key] = in.ID
	}
	respondJSON(w, http.StatusCreated, in.Intent)
}

func (s *Server) confirmIntent(w http.ResponseWriter, r *http.Request) {
	var req provider.ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.intents[chi.URLParam(r, "id")]
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "no such intent")
		return
	}
	if in.Status == intentSucceeded {
		respondJSON(w, http.StatusOK, provider.Confirmation{IntentID: in.ID, Ref: in.ref, Status: in.Status})
		return
	}

	d := s.decider.Decide("intent", req.PaymentMethodToken)
	if !d.Approve {
		s.log.Info("sandbox declined intent", zap.String("intent_id", in.ID), zap.String("code", d.Code))
		respondDecline(w, d)
		return
	}
	in.Status = intentSucceeded
	in.ref = s.nextID("ch")
	respondJSON(w, http.StatusOK, provider.Confirmation{IntentID: in.ID, Ref: in.ref, Status: in.Status})
}

func (s *Server) openPrompt(w http.ResponseWriter, r *http.Request) {
	method := chi.URLParam(r, "method")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable[method] {
		respondDecline(w, Decision{Code: "wallet_unavailable", Message: "wallet is not available on this device"})
		return
	}
	p := provider.Prompt{ID: s.nextID("wp"), Method: method}
	s.prompts[p.ID] = p
	respondJSON(w, http.StatusCreated, p)
}

func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	var req provider.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	key := r.Header.Get("Idempotency-Key")

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.transfers[key]; ok && key != "" {
		respondJSON(w, http.StatusOK, t)
		return
	}

	d := s.decider.Decide("local_transfer", req.Payer)
	if !d.Approve {
		respondDecline(w, d)
		return
	}
	t := provider.Transfer{Ref: s.nextID("trf"), Status: "completed"}
	if key != "" {
		s.transfers[key] = t
	}
	respondJSON(w, http.StatusOK, t)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{"error": message, "code": code, "message": message})
}

func respondDecline(w http.ResponseWriter, d Decision) {
	respondJSON(w, http.StatusPaymentRequired, map[string]string{"error": "declined", "code": d.Code, "message": d.Message})
}
