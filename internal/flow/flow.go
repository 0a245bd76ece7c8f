// Package flow aggregates categorized spending into a weighted
// account-to-category flow graph and ranked totals.
package flow

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spiceflow/internal/model"
)

// DefaultHubLabel names the middle node of a tripartite graph.
const DefaultHubLabel = "Spending"

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Includes reports whether a stored transaction counts as spend in the
// window: posted, strictly positive, dated inside the window, not an
// internal transfer, and on accountID unless accountID is empty.
func Includes(view *model.TransactionView, w Window, accountID string) bool {
	switch {
	case view == nil:
		return false
	case view.Pending:
		return false
	case !view.Amount.IsPositive():
		return false
	case !w.Contains(view.Date):
		return false
	case model.IsExcludedPrimary(view.CategoryPrimary):
		return false
	case accountID != "" && view.Account.ExternalID != accountID:
		return false
	}
	return true
}

// Entry is one categorized transaction amount.
type Entry struct {
	AccountLabel string
	Category     string
	Amount       decimal.Decimal
}

// Options shapes the graph.
type Options struct {
	// HubLabel overrides DefaultHubLabel in tripartite mode.
	HubLabel string
	// ExcludeCategories drops entries whose category is listed.
	ExcludeCategories []string
	// Tripartite routes every account through a single hub node before
	// fanning out to categories.
	Tripartite bool
}

// NodeKind distinguishes the columns of the graph.
type NodeKind string

// Node kinds.
const (
	NodeAccount  NodeKind = "account"
	NodeHub      NodeKind = "hub"
	NodeCategory NodeKind = "category"
)

// Node is a vertex of the flow graph. IDs are prefixed by kind so an
// account and a category with the same label never collide.
type Node struct {
	ID    string   `json:"id"`
	Label string   `json:"label"`
	Kind  NodeKind `json:"kind"`
}

// Edge is a weighted flow between two nodes.
type Edge struct {
	Source string          `json:"source"`
	Target string          `json:"target"`
	Value  decimal.Decimal `json:"value"`
}

// Total is one ranked row of a totals table.
type Total struct {
	Label string          `json:"label"`
	Total decimal.Decimal `json:"total"`
}

// Totals summarizes spend along both dimensions.
type Totals struct {
	Spending   decimal.Decimal `json:"spending"`
	ByCategory []Total         `json:"by_category"`
	ByAccount  []Total         `json:"by_account"`
}

// Result is the aggregated graph and totals.
type Result struct {
	Nodes  []Node `json:"nodes"`
	Edges  []Edge `json:"edges"`
	Totals Totals `json:"totals"`
}

type pair struct {
	account  string
	category string
}

// NodeID returns the graph id for a label of the given kind.
func NodeID(kind NodeKind, label string) string {
	return string(kind) + ":" + label
}

// Build aggregates entries. Sums are exact; every value is rounded to
// cents, half away from zero, only when written into the result.
func Build(entries []Entry, opts Options) *Result {
	excluded := make(map[string]bool, len(opts.ExcludeCategories))
	for _, c := range opts.ExcludeCategories {
		excluded[c] = true
	}

	byPair := make(map[pair]decimal.Decimal)
	byCategory := make(map[string]decimal.Decimal)
	byAccount := make(map[string]decimal.Decimal)

	for _, e := range entries {
		if excluded[e.Category] {
			continue
		}
		k := pair{account: e.AccountLabel, category: e.Category}
		byPair[k] = byPair[k].Add(e.Amount)
		byCategory[e.Category] = byCategory[e.Category].Add(e.Amount)
		byAccount[e.AccountLabel] = byAccount[e.AccountLabel].Add(e.Amount)
	}

	accounts := sortedKeys(byAccount)
	categories := sortedKeys(byCategory)

	result := &Result{
		Nodes: make([]Node, 0, len(accounts)+len(categories)+1),
		Edges: []Edge{},
	}

	for _, a := range accounts {
		result.Nodes = append(result.Nodes, Node{ID: NodeID(NodeAccount, a), Label: a, Kind: NodeAccount})
	}

	if opts.Tripartite && len(byPair) > 0 {
		hub := opts.HubLabel
		if hub == "" {
			hub = DefaultHubLabel
		}
		hubID := NodeID(NodeHub, hub)
		result.Nodes = append(result.Nodes, Node{ID: hubID, Label: hub, Kind: NodeHub})

		for _, a := range accounts {
			result.Edges = append(result.Edges, Edge{
				Source: NodeID(NodeAccount, a),
				Target: hubID,
				Value:  byAccount[a].Round(2),
			})
		}
		for _, c := range categories {
			result.Edges = append(result.Edges, Edge{
				Source: hubID,
				Target: NodeID(NodeCategory, c),
				Value:  byCategory[c].Round(2),
			})
		}
	} else {
		pairs := make([]pair, 0, len(byPair))
		for k := range byPair {
			pairs = append(pairs, k)
		}
		sort.Slice(pairs, func(i, j int) bool {
			if pairs[i].account != pairs[j].account {
				return pairs[i].account < pairs[j].account
			}
			return pairs[i].category < pairs[j].category
		})
		for _, k := range pairs {
			result.Edges = append(result.Edges, Edge{
				Source: NodeID(NodeAccount, k.account),
				Target: NodeID(NodeCategory, k.category),
				Value:  byPair[k].Round(2),
			})
		}
	}

	for _, c := range categories {
		result.Nodes = append(result.Nodes, Node{ID: NodeID(NodeCategory, c), Label: c, Kind: NodeCategory})
	}

	result.Totals.ByCategory = sortTotals(byCategory)
	result.Totals.ByAccount = sortTotals(byAccount)
	result.Totals.Spending = decimal.Zero
	for _, t := range result.Totals.ByCategory {
		result.Totals.Spending = result.Totals.Spending.Add(t.Total)
	}

	return result
}

// sortTotals rounds each sum and orders rows by total descending, then
// label ascending.
func sortTotals(sums map[string]decimal.Decimal) []Total {
	totals := make([]Total, 0, len(sums))
	for label, sum := range sums {
		totals = append(totals, Total{Label: label, Total: sum.Round(2)})
	}
	sort.Slice(totals, func(i, j int) bool {
		if c := totals[i].Total.Cmp(totals[j].Total); c != 0 {
			return c > 0
		}
		return totals[i].Label < totals[j].Label
	})
	return totals
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
