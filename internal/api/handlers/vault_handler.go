package handlers

import (
	"errors"
	"net/http"
	"strings"

	"yearn-vaults/internal/logger"
	"yearn-vaults/internal/repository"
	"yearn-vaults/internal/vault"
)

// VaultHandler serves stored vault views.
type VaultHandler struct {
	repo  repository.VaultRepository
	cache *ViewCache
	log   *logger.Logger
}

func NewVaultHandler(repo repository.VaultRepository, cache *ViewCache, log *logger.Logger) *VaultHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &VaultHandler{repo: repo, cache: cache, log: log}
}

type VaultListResponse struct {
	Vaults []vault.View `json:"vaults"`
	Total  int64        `json:"total"`
	Page   int          `json:"page"`
	Limit  int          `json:"limit"`
}

type StrategiesResponse struct {
	Strategies  []vault.Strategy `json:"strategies"`
	Unallocated int64            `json:"unallocated"`
}

// ListVaults returns one page of filtered vault views.
func (h *VaultHandler) ListVaults(w http.ResponseWriter, r *http.Request) {
	filter := repository.VaultFilter{
		Categories:     parseListQuery(r, "category"),
		Kind:           r.URL.Query().Get("kind"),
		Type:           r.URL.Query().Get("type"),
		Search:         strings.TrimSpace(r.URL.Query().Get("search")),
		IncludeRetired: parseBoolQuery(r, "retired"),
		IncludeHidden:  parseBoolQuery(r, "hidden"),
		IncludeStale:   parseBoolQuery(r, "stale"),
		Sort:           r.URL.Query().Get("sort"),
		Order:          r.URL.Query().Get("order"),
		Page:           parseIntQuery(r, "page", 1),
		Limit:          parseIntQuery(r, "limit", repository.DefaultPageSize),
	}
	for _, raw := range parseListQuery(r, "chain") {
		chainID, err := parseChainID(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.ChainIDs = append(filter.ChainIDs, chainID)
	}
	filter.Normalize()

	records, total, err := h.repo.List(filter)
	if err != nil {
		h.log.Error("❌ List vaults: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch vaults")
		return
	}

	views := make([]vault.View, 0, len(records))
	for _, record := range records {
		view, err := record.ToView()
		if err != nil {
			h.log.Warn("⚠️ Skipping %s: %v", record.Key(), err)
			continue
		}
		views = append(views, view)
	}

	respondJSON(w, http.StatusOK, VaultListResponse{
		Vaults: views,
		Total:  total,
		Page:   filter.Page,
		Limit:  filter.Limit,
	})
}

func (h *VaultHandler) Chains(w http.ResponseWriter, r *http.Request) {
	chains, err := h.repo.Chains()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch chains")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"chains": chains})
}

func (h *VaultHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.repo.Categories()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch categories")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

func (h *VaultHandler) GetVault(w http.ResponseWriter, r *http.Request) {
	view, ok := h.viewFromRequest(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *VaultHandler) Strategies(w http.ResponseWriter, r *http.Request) {
	view, ok := h.viewFromRequest(w, r)
	if !ok {
		return
	}

	strategies := view.Strategies
	if strategies == nil {
		strategies = []vault.Strategy{}
	}
	respondJSON(w, http.StatusOK, StrategiesResponse{
		Strategies:  strategies,
		Unallocated: view.Unallocated(),
	})
}

// LoadView returns a stored view, from cache when possible.
func (h *VaultHandler) LoadView(chainID uint64, address string) (vault.View, error) {
	if view, ok := h.cache.Get(chainID, address); ok {
		return view, nil
	}

	record, err := h.repo.GetByKey(chainID, address)
	if err != nil {
		return vault.View{}, err
	}
	view, err := record.ToView()
	if err != nil {
		return vault.View{}, err
	}
	h.cache.Set(view)
	return view, nil
}

// viewFromRequest writes the error response itself and reports false on
// failure.
func (h *VaultHandler) viewFromRequest(w http.ResponseWriter, r *http.Request) (vault.View, bool) {
	chainID, address, err := vaultKey(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return vault.View{}, false
	}

	view, err := h.LoadView(chainID, address)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Vault not found")
			return vault.View{}, false
		}
		h.log.Error("❌ Load vault %d/%s: %v", chainID, address, err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch vault")
		return vault.View{}, false
	}
	return view, true
}
