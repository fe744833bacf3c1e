// Package rules loads the declarative rule file and evaluates canonical
// orders against it. The engine keeps an immutable snapshot of the rule list
// behind an atomic pointer so poll loops never observe a half-written list
// while an editor replaces the file.
package rules

import (
	"encoding/json"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bidflow/internal/apperrors"
	"bidflow/internal/model"
	"bidflow/logger"
)

// compiledRule is a rule with its matching fields pre-normalized: lowercase,
// trimmed, and the hall list flattened into a fragment set.
type compiledRule struct {
	rule          model.Rule
	city          string
	keywords      []string
	mode          model.HallMode
	hallFragments map[string]struct{}
}

type snapshot struct {
	rules    []compiledRule
	loadedAt time.Time
}

// Engine evaluates orders against the currently loaded rule snapshot.
type Engine struct {
	file string
	log  *logger.Log
	snap atomic.Pointer[snapshot]
}

// NewEngine creates an engine bound to the given rule file and performs the
// initial load. A missing or invalid file is not fatal: the engine starts
// with an empty list and matches nothing.
func NewEngine(file string) *Engine {
	e := &Engine{
		file: file,
		log:  logger.GetLogger(),
	}
	if err := e.Reload(); err != nil {
		e.log.WithComponent("rule_engine").WithError(err).Error("initial rule load failed; starting with empty rule list")
	}
	return e
}

// Reload re-reads the rule file and atomically swaps in the new snapshot.
// On failure the engine falls back to an empty list so a broken edit can
// never crash the pollers.
func (e *Engine) Reload() error {
	log := e.log.WithComponent("rule_engine")

	data, err := os.ReadFile(e.file)
	if err != nil {
		e.snap.Store(&snapshot{loadedAt: time.Now()})
		return apperrors.NewConfig("failed to read rule file "+e.file, err)
	}

	var rules []model.Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		e.snap.Store(&snapshot{loadedAt: time.Now()})
		return apperrors.NewConfig("rule file is not valid JSON", err)
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		compiled = append(compiled, compile(r, log))
	}

	e.snap.Store(&snapshot{rules: compiled, loadedAt: time.Now()})
	log.WithFields(logger.Fields{"rules": len(compiled), "file": e.file}).Info("rule snapshot loaded")
	return nil
}

// RuleCount returns the number of rules in the current snapshot.
func (e *Engine) RuleCount() int {
	if s := e.snap.Load(); s != nil {
		return len(s.rules)
	}
	return 0
}

// LoadedAt returns when the current snapshot was installed.
func (e *Engine) LoadedAt() time.Time {
	if s := e.snap.Load(); s != nil {
		return s.loadedAt
	}
	return time.Time{}
}

func compile(r model.Rule, log *logger.Entry) compiledRule {
	c := compiledRule{
		rule:          r,
		city:          norm(r.MatchConditions.City),
		hallFragments: make(map[string]struct{}, len(r.HallLogic.HallList)),
	}

	for _, kw := range r.MatchConditions.CinemaKeywords {
		if kw = norm(kw); kw != "" {
			c.keywords = append(c.keywords, kw)
		}
	}

	for _, hall := range r.HallLogic.HallList {
		if hall = norm(hall); hall != "" {
			c.hallFragments[hall] = struct{}{}
		}
	}

	switch model.HallMode(strings.ToUpper(strings.TrimSpace(r.HallLogic.Mode))) {
	case model.HallModeInclude:
		c.mode = model.HallModeInclude
	case model.HallModeExclude:
		c.mode = model.HallModeExclude
	case model.HallModeAll, "":
		c.mode = model.HallModeAll
	default:
		log.WithFields(logger.Fields{"rule": r.RuleName, "mode": r.HallLogic.Mode}).Warn("unknown hall mode, treating as ALL")
		c.mode = model.HallModeAll
	}

	return c
}

// Evaluate checks the order against the current snapshot in load order and
// returns a Decision for the first enabled rule whose conditions match and
// whose profit threshold is met. A nil result is the normal "not
// interesting" outcome.
func (e *Engine) Evaluate(order model.Order) *model.Decision {
	s := e.snap.Load()
	if s == nil {
		return nil
	}

	orderCity := norm(order.City)
	orderCinema := norm(order.CinemaName)
	orderHall := norm(order.HallType)

	for _, c := range s.rules {
		if !c.rule.IsEnabled() {
			continue
		}

		if c.city != "" && c.city != orderCity {
			continue
		}

		if !keywordsMatch(c.keywords, orderCinema) {
			continue
		}

		if !hallMatch(c.mode, c.hallFragments, orderHall) {
			continue
		}

		perSeat := order.BiddingPrice.Sub(c.rule.HallLogic.Cost)
		totalProfit := perSeat.Mul(decimalFromSeats(order.SeatCount))
		if totalProfit.LessThan(c.rule.ProfitLogic.MinProfitThreshold) {
			continue
		}

		return &model.Decision{
			DecisionID:  uuid.NewString(),
			TotalProfit: totalProfit,
			SeatCount:   order.SeatCount,
			RuleName:    c.rule.RuleName,
			Order:       order,
			MatchedAt:   time.Now().UTC(),
		}
	}

	return nil
}

func keywordsMatch(keywords []string, cinema string) bool {
	for _, kw := range keywords {
		if !strings.Contains(cinema, kw) {
			return false
		}
	}
	return true
}

// hallMatch applies the bidirectional fuzzy containment test: a fragment
// matches when it contains the order's hall type or is contained by it.
func hallMatch(mode model.HallMode, fragments map[string]struct{}, hall string) bool {
	switch mode {
	case model.HallModeInclude:
		for frag := range fragments {
			if strings.Contains(hall, frag) || strings.Contains(frag, hall) {
				return true
			}
		}
		return false
	case model.HallModeExclude:
		for frag := range fragments {
			if strings.Contains(hall, frag) || strings.Contains(frag, hall) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func decimalFromSeats(n int) decimal.Decimal {
	if n < 1 {
		n = 1
	}
	return decimal.NewFromInt(int64(n))
}

func norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
