package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/diewo77/go-quotes/auth"
	"github.com/diewo77/go-quotes/gate"
	"github.com/diewo77/go-quotes/httpx"
	"github.com/diewo77/go-quotes/internal/models"
	"github.com/diewo77/go-quotes/internal/policy"
	"github.com/diewo77/go-quotes/internal/services"
	"github.com/diewo77/go-quotes/internal/workflow"
)

// QuoteHandler serves quote CRUD and workflow actions. Route middleware checks
// role permissions; record-level checks happen here.
type QuoteHandler struct {
	quotes  *services.QuoteService
	actions *services.ActionService
	authz   Authorizer
	log     *zap.Logger
}

func NewQuoteHandler(quotes *services.QuoteService, actions *services.ActionService, authz Authorizer, log *zap.Logger) *QuoteHandler {
	return &QuoteHandler{quotes: quotes, actions: actions, authz: authz, log: log}
}

// quoteView is a quote plus the explicit events its status allows.
type quoteView struct {
	*models.Quote
	AllowedEvents []workflow.Event `json:"allowed_events"`
}

func newQuoteView(q *models.Quote) quoteView {
	return quoteView{Quote: q, AllowedEvents: workflow.Allowed(q.Status)}
}

func (h *QuoteHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := services.ListQuotesFilter{Status: models.QuoteStatus(q.Get("status"))}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	page, err := h.quotes.List(r.Context(), f)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *QuoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.CreateQuoteInput
	if err := httpx.Decode(r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())
	quote, err := h.quotes.Create(r.Context(), uid, in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newQuoteView(quote))
}

func (h *QuoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	quote, err := h.quotes.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newQuoteView(quote))
}

func (h *QuoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.quotes.Delete(r.Context(), id); err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.NoContent(w)
}

type pricesRequest struct {
	Items []services.ItemPrices `json:"items"`
}

// Prices replaces item prices; the body lists one entry per requested part.
func (h *QuoteHandler) Prices(w http.ResponseWriter, r *http.Request) {
	var req pricesRequest
	h.mutate(w, r, &req, func(uid, id uint) (*models.Quote, error) {
		return h.quotes.UpdatePrices(r.Context(), uid, id, req.Items)
	})
}

type partsRequest struct {
	Parts []models.QuotePartItem `json:"parts"`
}

// Parts replaces the requested items. Quote creators may only edit their own
// quotes.
func (h *QuoteHandler) Parts(w http.ResponseWriter, r *http.Request) {
	var req partsRequest
	h.mutate(w, r, &req, func(uid, id uint) (*models.Quote, error) {
		quote, err := h.quotes.Get(r.Context(), id)
		if err != nil {
			return nil, err
		}
		if err := h.authz.Authorize(r.Context(), policy.ActionEditParts, policy.ResourceQuote, quote); err != nil {
			return nil, err
		}
		return h.quotes.UpdateParts(r.Context(), uid, id, req.Parts)
	})
}

func (h *QuoteHandler) Verify(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, nil, func(uid, id uint) (*models.Quote, error) {
		return h.quotes.Verify(r.Context(), uid, id)
	})
}

func (h *QuoteHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, nil, func(uid, id uint) (*models.Quote, error) {
		return h.quotes.Complete(r.Context(), uid, id)
	})
}

type orderRequest struct {
	TaxInvoiceNumber string `json:"tax_invoice_number"`
}

func (h *QuoteHandler) Order(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	h.mutate(w, r, &req, func(uid, id uint) (*models.Quote, error) {
		return h.quotes.Order(r.Context(), uid, id, req.TaxInvoiceNumber)
	})
}

func (h *QuoteHandler) MarkWrong(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, nil, func(uid, id uint) (*models.Quote, error) {
		return h.quotes.MarkWrong(r.Context(), uid, id)
	})
}

type deliverRequest struct {
	IDs []uint `json:"ids"`
}

// Deliver moves every listed ordered quote to delivered.
func (h *QuoteHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	var req deliverRequest
	if err := httpx.Decode(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())
	res, err := h.quotes.Deliver(r.Context(), uid, req.IDs)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

// Actions returns the quote's audit trail.
func (h *QuoteHandler) Actions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if _, err := h.quotes.Get(r.Context(), id); err != nil {
		writeError(w, h.log, err)
		return
	}
	actions, err := h.actions.ForQuote(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, actions)
}

// mutate parses the id and optional body, runs fn and writes the quote.
func (h *QuoteHandler) mutate(w http.ResponseWriter, r *http.Request, body any, fn func(uid, id uint) (*models.Quote, error)) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if body != nil {
		if err := httpx.Decode(r, body); err != nil {
			writeError(w, h.log, err)
			return
		}
	}
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.log, gate.ErrUnauthorized)
		return
	}
	quote, err := fn(uid, id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newQuoteView(quote))
}
