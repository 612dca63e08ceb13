package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/lta97/junkpool/internal/core/domain"
	"github.com/lta97/junkpool/internal/core/service"
	"github.com/lta97/junkpool/internal/port"
)

type HTTPHandler struct {
	marketService *service.MarketService
	journal       port.EventJournal
}

func NewHTTPHandler(marketService *service.MarketService, journal port.EventJournal) *HTTPHandler {
	return &HTTPHandler{marketService: marketService, journal: journal}
}

// Register installs every route on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/api/quote", h.Quote)
	mux.HandleFunc("/api/preview", h.Preview)
	mux.HandleFunc("/api/events", h.Events)
	mux.HandleFunc("/api/deposit", h.Deposit)
	mux.HandleFunc("/api/purchase", h.Purchase)
	mux.HandleFunc("/api/fund", h.Fund)
	mux.HandleFunc("/api/withdraw", h.Withdraw)
	mux.HandleFunc("/api/admin/flat-price", h.SetFlatPrice)
	mux.HandleFunc("/api/admin/auction", h.SetAuctionParams)
	mux.HandleFunc("/api/admin/bundle-size", h.SetBundleSize)
	mux.HandleFunc("/api/admin/register", h.RegisterAssets)
	mux.HandleFunc("/api/admin/controller", h.SetController)
	mux.HandleFunc("/api/admin/refresh", h.Refresh)
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type quoteResponse struct {
	Now         int64  `json:"now"`
	WindowStart int64  `json:"window_start"`
	Price       string `json:"price"`
	Seed        string `json:"seed"`
	Available   int    `json:"available"`
	TotalItems  int    `json:"total_items"`
	WindowOpen  bool   `json:"window_open"`
}

type drawnItemJSON struct {
	Class    string `json:"class"`
	Kind     string `json:"kind"`
	ID       string `json:"id"`
	Quantity string `json:"quantity"`
}

type pairJSON struct {
	ID       string `json:"id"`
	Quantity string `json:"quantity"`
}

type depositRequest struct {
	ReceiptID string     `json:"receipt_id"`
	Class     string     `json:"class"`
	Depositor string     `json:"depositor"`
	Pairs     []pairJSON `json:"pairs"`
}

type purchaseRequest struct {
	Buyer   string `json:"buyer"`
	Payment string `json:"payment"`
	Seed    string `json:"seed"`
}

type purchaseResponse struct {
	Success     bool            `json:"success"`
	WindowStart int64           `json:"window_start"`
	PricePaid   string          `json:"price_paid"`
	Items       []drawnItemJSON `json:"items"`
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) Quote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q, err := h.marketService.Quote()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{
		Now:         q.Now,
		WindowStart: q.WindowStart,
		Price:       q.Price.String(),
		Seed:        "0x" + q.Seed.Text(16),
		Available:   q.Available,
		TotalItems:  q.TotalItems,
		WindowOpen:  q.WindowOpen,
	})
}

func (h *HTTPHandler) Preview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	items, err := h.marketService.Preview(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]drawnItemJSON, 0, len(items))
	for _, it := range items {
		out = append(out, drawnItemJSON{
			Class:    string(it.Class),
			Kind:     it.Kind.String(),
			ID:       it.ID.String(),
			Quantity: it.Quantity.String(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *HTTPHandler) Events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid limit"})
			return
		}
		limit = n
	}
	events, err := h.journal.RecentEvents(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *HTTPHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !decodePost(w, r, &req) {
		return
	}
	pairs := make([]domain.IDQuantity, 0, len(req.Pairs))
	for _, p := range req.Pairs {
		id, err := parseBig(p.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		qty, err := parseBig(p.Quantity)
		if err != nil {
			writeError(w, err)
			return
		}
		pairs = append(pairs, domain.IDQuantity{ID: id, Quantity: qty})
	}
	ack, err := h.marketService.Deposit(r.Context(), req.ReceiptID, domain.Deposit{
		Class:     domain.Address(req.Class),
		Depositor: domain.Address(req.Depositor),
		Pairs:     pairs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ack": ack})
}

func (h *HTTPHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !decodePost(w, r, &req) {
		return
	}
	payment, err := parseBig(req.Payment)
	if err != nil {
		writeError(w, err)
		return
	}
	seed, err := parseBig(req.Seed)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.marketService.Purchase(r.Context(), domain.Address(req.Buyer), payment, seed)
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]drawnItemJSON, 0, len(res.Items))
	for _, it := range res.Items {
		items = append(items, drawnItemJSON{
			Class:    string(it.Class),
			Kind:     it.Kind.String(),
			ID:       it.ID.String(),
			Quantity: it.Quantity.String(),
		})
	}
	writeJSON(w, http.StatusOK, purchaseResponse{
		Success:     true,
		WindowStart: res.WindowStart,
		PricePaid:   res.PricePaid.String(),
		Items:       items,
	})
}

func (h *HTTPHandler) Fund(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From   string `json:"from"`
		Amount string `json:"amount"`
	}
	if !decodePost(w, r, &req) {
		return
	}
	h.simple(w, func() error {
		amount, err := parseBig(req.Amount)
		if err != nil {
			return err
		}
		return h.marketService.Fund(domain.Address(req.From), amount)
	})
}

func (h *HTTPHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
		Amount string `json:"amount"`
	}
	if !decodePost(w, r, &req) {
		return
	}
	h.simple(w, func() error {
		amount, err := parseBig(req.Amount)
		if err != nil {
			return err
		}
		return h.marketService.Withdraw(r.Context(), domain.Address(req.Caller), amount)
	})
}

func (h *HTTPHandler) SetFlatPrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
		Price  string `json:"price"`
	}
	if !decodePost(w, r, &req) {
		return
	}
	h.simple(w, func() error {
		price, err := parseBig(req.Price)
		if err != nil {
			return err
		}
		return h.marketService.SetFlatPrice(domain.Address(req.Caller), price)
	})
}

func (h *HTTPHandler) SetAuctionParams(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller   string `json:"caller"`
		Min      string `json:"min"`
		Max      string `json:"max"`
		Duration int64  `json:"duration"`
	}
	if !decodePost(w, r, &req) {
		return
	}
	h.simple(w, func() error {
		min, err := parseBig(req.Min)
		if err != nil {
			return err
		}
		max, err := parseBig(req.Max)
		if err != nil {
			return err
		}
		return h.marketService.SetAuctionParams(domain.Address(req.Caller), min, max, req.Duration)
	})
}

func (h *HTTPHandler) SetBundleSize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
		Size   int    `json:"size"`
	}
	if !decodePost(w, r, &req) {
		return
	}
	h.simple(w, func() error {
		return h.marketService.SetBundleSize(domain.Address(req.Caller), req.Size)
	})
}

func (h *HTTPHandler) RegisterAssets(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller  string `json:"caller"`
		Entries []struct {
			Class string `json:"class"`
			Kind  string `json:"kind"`
		} `json:"entries"`
	}
	if !decodePost(w, r, &req) {
		return
	}
	h.simple(w, func() error {
		entries := make([]domain.RegistryEntry, 0, len(req.Entries))
		for _, e := range req.Entries {
			kind, err := parseKind(e.Kind)
			if err != nil {
				return err
			}
			entries = append(entries, domain.RegistryEntry{Class: domain.Address(e.Class), Kind: kind})
		}
		return h.marketService.Register(r.Context(), domain.Address(req.Caller), entries)
	})
}

func (h *HTTPHandler) SetController(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller     string `json:"caller"`
		Controller string `json:"controller"`
	}
	if !decodePost(w, r, &req) {
		return
	}
	h.simple(w, func() error {
		return h.marketService.SetController(domain.Address(req.Caller), domain.Address(req.Controller))
	})
}

func (h *HTTPHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
	}
	if !decodePost(w, r, &req) {
		return
	}
	h.simple(w, func() error {
		return h.marketService.Refresh(domain.Address(req.Caller))
	})
}

func (h *HTTPHandler) simple(w http.ResponseWriter, op func() error) {
	if err := op(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func decodePost(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return false
	}
	return true
}

func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: missing numeric field", domain.ErrInvalidInput)
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("%w: bad numeric value %q", domain.ErrInvalidInput, s)
	}
	return v, nil
}

func parseKind(s string) (domain.AssetKind, error) {
	switch s {
	case "unique":
		return domain.KindUnique, nil
	case "multi":
		return domain.KindMulti, nil
	case "unclassified":
		return domain.KindUnclassified, nil
	}
	return 0, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidInput, s)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrUnknownAsset):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientPayment), errors.Is(err, domain.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, service.ErrDuplicateRequest),
		errors.Is(err, domain.ErrAlreadyPurchased),
		errors.Is(err, domain.ErrStaleTransaction):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientInventory):
		status = http.StatusGone
	case errors.Is(err, domain.ErrTransferFailed):
		status = http.StatusBadGateway
	case errors.Is(err, domain.ErrReentrantCall):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, errorResponse{Success: false, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
