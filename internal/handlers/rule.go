package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/diewo77/go-quotes/auth"
	"github.com/diewo77/go-quotes/httpx"
	"github.com/diewo77/go-quotes/internal/services"
	"github.com/diewo77/go-quotes/validation"
)

// RuleHandler manages brand eligibility rules and answers part lookups.
type RuleHandler struct {
	svc *services.RuleService
	log *zap.Logger
}

func NewRuleHandler(svc *services.RuleService, log *zap.Logger) *RuleHandler {
	return &RuleHandler{svc: svc, log: log}
}

func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	rules, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rules)
}

func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	rule, err := h.svc.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rule)
}

// Create stores a rule from the body; an existing rule for the part is
// replaced.
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.RuleInput
	if err := httpx.Decode(r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	h.upsert(w, r, in)
}

// Update stores the rule named in the path. A body part_name must match it.
func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in services.RuleInput
	if err := httpx.Decode(r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	name := strings.TrimSpace(r.PathValue("name"))
	if in.PartName != "" && strings.TrimSpace(in.PartName) != name {
		writeError(w, h.log, validation.Field("part_name", "mismatch"))
		return
	}
	in.PartName = name
	h.upsert(w, r, in)
}

func (h *RuleHandler) upsert(w http.ResponseWriter, r *http.Request, in services.RuleInput) {
	uid, _ := auth.UserIDFromContext(r.Context())
	rule, created, err := h.svc.Upsert(r.Context(), uid, in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, rule)
}

func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("name")); err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.NoContent(w)
}

// Parts lists the catalog split by availability for ?brand=.
// An empty brand is allowed; only brand-restricted parts are left out.
func (h *RuleHandler) Parts(w http.ResponseWriter, r *http.Request) {
	brand := strings.TrimSpace(r.URL.Query().Get("brand"))
	res, err := h.svc.Parts(r.Context(), brand)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

// Availability answers a single part/brand lookup.
func (h *RuleHandler) Availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	part, brand := strings.TrimSpace(q.Get("part")), strings.TrimSpace(q.Get("brand"))
	if part == "" {
		writeError(w, h.log, validation.Field("part", "required"))
		return
	}
	ok, err := h.svc.IsAvailable(r.Context(), part, brand)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"part": part, "brand": brand, "available": ok})
}
