package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/carepoint/booking-engine/generic"
	"github.com/carepoint/booking-engine/surge"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// SurgeRuleJSON represents a scheduled surge rule.
//
//	{
//	  "id": "xmas",
//	  "name": "Christmas Day",
//	  "enabled": true,
//	  "multiplier": 1.5,
//	  "start_date": "2025-12-25",
//	  "end_date": "2025-12-25",
//	  "start_time": "00:00",
//	  "end_time": "23:59",
//	  "days_of_week": [0, 6],
//	  "stackable": false
//	}
type SurgeRuleJSON struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Enabled    bool    `json:"enabled"`
	Multiplier float64 `json:"multiplier"`
	StartDate  string  `json:"start_date,omitempty"`
	EndDate    string  `json:"end_date,omitempty"`
	StartTime  string  `json:"start_time,omitempty"`
	EndTime    string  `json:"end_time,omitempty"`
	DaysOfWeek []int   `json:"days_of_week,omitempty"`
	Stackable  bool    `json:"stackable"`
}

// SurgeRuleFromJSON converts the schema type. Single-digit hours are padded
// ("9:00" becomes "09:00") so string comparison stays correct.
func SurgeRuleFromJSON(rj SurgeRuleJSON) surge.Rule {
	days := make([]time.Weekday, 0, len(rj.DaysOfWeek))
	for _, d := range rj.DaysOfWeek {
		days = append(days, time.Weekday(d))
	}
	if len(days) == 0 {
		days = nil
	}
	return surge.Rule{
		ID:         rj.ID,
		Name:       rj.Name,
		Enabled:    rj.Enabled,
		Multiplier: decimal.NewFromFloat(rj.Multiplier),
		StartDate:  rj.StartDate,
		EndDate:    rj.EndDate,
		StartTime:  padClock(rj.StartTime),
		EndTime:    padClock(rj.EndTime),
		DaysOfWeek: days,
		Stackable:  rj.Stackable,
	}
}

func SurgeRuleToJSON(r surge.Rule) SurgeRuleJSON {
	days := make([]int, 0, len(r.DaysOfWeek))
	for _, d := range r.DaysOfWeek {
		days = append(days, int(d))
	}
	return SurgeRuleJSON{
		ID:         r.ID,
		Name:       r.Name,
		Enabled:    r.Enabled,
		Multiplier: toFloat(r.Multiplier),
		StartDate:  r.StartDate,
		EndDate:    r.EndDate,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		DaysOfWeek: days,
		Stackable:  r.Stackable,
	}
}

// ParseSurgeRules parses a posted rule list.
func ParseSurgeRules(data []byte) ([]surge.Rule, error) {
	var rjs []SurgeRuleJSON
	if err := json.Unmarshal(data, &rjs); err != nil {
		return nil, generic.NewValidationError("rules", fmt.Sprintf("failed to parse JSON: %v", err))
	}
	rules := make([]surge.Rule, 0, len(rjs))
	for _, rj := range rjs {
		rules = append(rules, SurgeRuleFromJSON(rj))
	}
	return rules, nil
}

// ParseSurgeRule parses a single posted rule.
func ParseSurgeRule(data []byte) (surge.Rule, error) {
	var rj SurgeRuleJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return surge.Rule{}, generic.NewValidationError("rule", fmt.Sprintf("failed to parse JSON: %v", err))
	}
	return SurgeRuleFromJSON(rj), nil
}

func padClock(s string) string {
	if s == "" {
		return ""
	}
	c, err := generic.ParseClockTime(s)
	if err != nil {
		return s // left for Rule.Validate to reject
	}
	return c.String()
}

// =============================================================================
// SURGE RULE REPOSITORY - Rule list blob in a key-value store
// =============================================================================

// SurgeRuleRepository implements surge.RuleLoader and surge.RuleSaver.
type SurgeRuleRepository struct {
	store  generic.KeyValueStore
	logger zerolog.Logger
	mu     sync.Mutex
}

func NewSurgeRuleRepository(store generic.KeyValueStore) *SurgeRuleRepository {
	return &SurgeRuleRepository{store: store, logger: log.Logger}
}

func (r *SurgeRuleRepository) WithLogger(l zerolog.Logger) *SurgeRuleRepository {
	r.logger = l
	return r
}

// LoadRules returns the stored rules. A missing or malformed blob is no rules.
func (r *SurgeRuleRepository) LoadRules(ctx context.Context) ([]surge.Rule, error) {
	data, found, err := r.store.Get(ctx, generic.KeySurgeRules)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", generic.ErrSourceUnavailable, err)
	}
	if !found || len(data) == 0 {
		return nil, nil
	}
	var rjs []SurgeRuleJSON
	if err := json.Unmarshal(data, &rjs); err != nil {
		r.logger.Warn().Err(err).Str("key", generic.KeySurgeRules).Msg("stored surge rules are malformed, ignoring")
		return nil, nil
	}
	rules := make([]surge.Rule, 0, len(rjs))
	for _, rj := range rjs {
		rules = append(rules, SurgeRuleFromJSON(rj))
	}
	return rules, nil
}

// SaveRules replaces the stored rule list.
func (r *SurgeRuleRepository) SaveRules(ctx context.Context, rules []surge.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]SurgeRuleJSON, 0, len(rules))
	for _, rule := range rules {
		out = append(out, SurgeRuleToJSON(rule))
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to encode surge rules: %w", err)
	}
	return r.store.Put(ctx, generic.KeySurgeRules, data)
}
