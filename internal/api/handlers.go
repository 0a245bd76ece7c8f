package api

import (
	"net/http"
	"strings"

	"github.com/Veraticus/spiceflow/internal/common"
	"github.com/Veraticus/spiceflow/internal/dashboard"
	"github.com/Veraticus/spiceflow/internal/model"
	"github.com/Veraticus/spiceflow/internal/syncer"
)

type itemResponse struct {
	ExternalID string `json:"item_id"`
	ID         int64  `json:"id"`
}

type itemSyncResponse struct {
	Result *syncer.SyncResult `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
	Kind   string             `json:"kind,omitempty"`
	ItemID int64              `json:"item_id"`
}

type seedItemResponse struct {
	Sync    *syncer.SyncResult `json:"sync,omitempty"`
	Error   string             `json:"error,omitempty"`
	Kind    string             `json:"kind,omitempty"`
	ItemID  int64              `json:"item_id"`
	Created int                `json:"created"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := dashboard.Query{
		Month:      params.Get("month"),
		Account:    params.Get("account"),
		Tripartite: params.Get("shape") == "tripartite",
	}
	for _, v := range params["exclude"] {
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				q.ExcludeCategories = append(q.ExcludeCategories, c)
			}
		}
	}

	resp, err := s.deps.Dashboard.Query(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	outcome, err := s.deps.Resolver.SetOverride(r.Context(), req.TransactionID, req.Category)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"cleared":  outcome.Cleared,
		"category": outcome.Category,
	})
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.deps.Resolver.Rules(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rules == nil {
		rules = []model.Rule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	outcome, err := s.deps.Resolver.CreateRule(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":      true,
		"rule":    outcome.Rule,
		"applied": outcome.Applied,
	})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	outcomes, err := s.deps.Syncer.SyncAll(r.Context(), req.ItemID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// A failed pass may still have written rows before giving up.
	s.deps.Dashboard.Invalidate()

	// A single requested item reports its failure as the response status.
	if req.ItemID != nil && len(outcomes) == 1 && outcomes[0].Err != nil {
		s.writeError(w, r, outcomes[0].Err)
		return
	}

	results := make([]itemSyncResponse, 0, len(outcomes))
	for _, o := range outcomes {
		res := itemSyncResponse{ItemID: o.ItemID, Result: o.Result}
		if o.Err != nil {
			res.Error = o.Err.Error()
			res.Kind = string(common.KindOf(o.Err))
		}
		results = append(results, res)
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleLinkToken(w http.ResponseWriter, r *http.Request) {
	token, err := s.deps.Linker.LinkToken(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"link_token": token})
}

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	item, err := s.deps.Linker.Exchange(r.Context(), req.PublicToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"item": itemResponse{ID: item.ID, ExternalID: item.ExternalID},
	})
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	var req seedRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	count := 0
	if req.Count != nil {
		count = *req.Count
	}

	outcomes, err := s.deps.Seeder.Seed(r.Context(), req.ItemID, count)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	results := make([]seedItemResponse, 0, len(outcomes))
	for _, o := range outcomes {
		res := seedItemResponse{ItemID: o.ItemID, Created: o.Created, Sync: o.Sync}
		if o.Err != nil {
			res.Error = o.Err.Error()
			res.Kind = string(common.KindOf(o.Err))
		}
		results = append(results, res)
	}
	s.deps.Dashboard.Invalidate()

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
