package model

import "github.com/shopspring/decimal"

// HallMode controls how a rule's hall list is applied.
type HallMode string

const (
	HallModeAll     HallMode = "ALL"
	HallModeInclude HallMode = "INCLUDE"
	HallModeExclude HallMode = "EXCLUDE"
)

// Rule is one entry of the user-editable rule file. Rules are evaluated in
// file order; the first enabled rule that matches and clears its profit
// threshold wins.
type Rule struct {
	RuleID          string          `json:"rule_id"`
	RuleName        string          `json:"rule_name"`
	Enabled         *bool           `json:"enabled,omitempty"`
	MatchConditions MatchConditions `json:"match_conditions"`
	HallLogic       HallLogic       `json:"hall_logic"`
	ProfitLogic     ProfitLogic     `json:"profit_logic"`
}

// IsEnabled treats a missing enabled field as true.
func (r Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

type MatchConditions struct {
	City           string   `json:"city"`
	CinemaKeywords []string `json:"cinema_keywords"`
}

type HallLogic struct {
	Mode     string          `json:"mode"`
	HallList []string        `json:"hall_list"`
	Cost     decimal.Decimal `json:"cost"`
}

type ProfitLogic struct {
	MinProfitThreshold decimal.Decimal `json:"min_profit_threshold"`
}
