package surge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/carepoint/booking-engine/generic"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// RuleLoader reads the configured rules. No stored rules is (nil, nil).
type RuleLoader interface {
	LoadRules(ctx context.Context) ([]Rule, error)
}

// RuleSaver replaces the stored rule set.
type RuleSaver interface {
	SaveRules(ctx context.Context, rules []Rule) error
}

// Result is the combined effect of the active rules.
type Result struct {
	Multiplier         decimal.Decimal
	ActiveRules        []Rule
	SurgeAmountPercent decimal.Decimal // (Multiplier - 1) x 100
}

// RuleNames lists the active rules' names.
func (r Result) RuleNames() []string {
	names := make([]string, 0, len(r.ActiveRules))
	for _, rule := range r.ActiveRules {
		names = append(names, rule.Name)
	}
	return names
}

// =============================================================================
// ACTIVITY PREDICATES
// =============================================================================

// IsRuleActive evaluates rule at the instant at, in at's location.
func IsRuleActive(rule Rule, at time.Time) bool {
	return rule.matches(generic.FormatDate(at), generic.ClockOf(at).String(), true, at.Weekday())
}

// IsRuleActiveForBooking evaluates rule against a booking slot. date and
// clock come from the booking; either may be empty. An empty date means
// today (taken from today). An empty clock means time-windowed rules don't
// apply. The weekday is the booking date's weekday.
func IsRuleActiveForBooking(rule Rule, date, clock string, today time.Time) bool {
	day := today
	if date != "" {
		parsed, err := generic.ParseDate(date, today.Location())
		if err != nil {
			return false
		}
		day = parsed
	}
	if clock != "" {
		c, err := generic.ParseClockTime(clock)
		if err != nil {
			return false
		}
		clock = c.String()
	}
	return rule.matches(generic.FormatDate(day), clock, clock != "", day.Weekday())
}

// =============================================================================
// COMBINATION
// =============================================================================

var one = decimal.NewFromInt(1)

// Combine folds active rules into one multiplier: stackables multiply,
// non-stackables act as a floor. No rules gives 1.
func Combine(active []Rule) Result {
	stacked := one
	floor := decimal.Zero
	for _, r := range active {
		if r.Stackable {
			stacked = stacked.Mul(r.Multiplier)
		} else {
			floor = generic.MaxDecimal(floor, r.Multiplier)
		}
	}
	multiplier := generic.MaxDecimal(stacked, floor)
	return Result{
		Multiplier:         multiplier,
		ActiveRules:        active,
		SurgeAmountPercent: generic.MultiplierToPercent(multiplier),
	}
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine evaluates the stored rules.
type Engine struct {
	rules  RuleLoader
	now    func() time.Time
	loc    *time.Location
	logger zerolog.Logger
}

type Option func(*Engine)

// WithClock injects the time source for "now" evaluation.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the business time zone rules are written in.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(rules RuleLoader, opts ...Option) *Engine {
	e := &Engine{
		rules:  rules,
		now:    time.Now,
		loc:    time.Local,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CalculateActiveSurgeMultiplier combines the rules active for a slot. With
// both date and clock empty it evaluates the current instant; otherwise it
// evaluates the booking slot. Invalid date or clock strings are rejected.
func (e *Engine) CalculateActiveSurgeMultiplier(ctx context.Context, date, clock string) (Result, error) {
	if date == "" && clock == "" {
		return e.Now(ctx), nil
	}
	return e.ForBooking(ctx, date, clock)
}

// Now combines the rules active at the current instant.
func (e *Engine) Now(ctx context.Context) Result {
	at := e.now().In(e.loc)
	var active []Rule
	for _, r := range e.load(ctx) {
		if IsRuleActive(r, at) {
			active = append(active, r)
		}
	}
	return Combine(active)
}

// ForBooking combines the rules active for a booking slot.
func (e *Engine) ForBooking(ctx context.Context, date, clock string) (Result, error) {
	if date != "" {
		if _, err := generic.ParseDate(date, e.loc); err != nil {
			return Result{}, err
		}
	}
	if clock != "" {
		if _, err := generic.ParseClockTime(clock); err != nil {
			return Result{}, err
		}
	}

	today := e.now().In(e.loc)
	var active []Rule
	for _, r := range e.load(ctx) {
		if IsRuleActiveForBooking(r, date, clock, today) {
			active = append(active, r)
		}
	}
	return Combine(active), nil
}

// load treats an unreadable rule store as "no rules".
func (e *Engine) load(ctx context.Context) []Rule {
	if e.rules == nil {
		return nil
	}
	rules, err := e.rules.LoadRules(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("surge rules unavailable, no scheduled surge applied")
		return nil
	}
	return rules
}

// =============================================================================
// RULE MANAGEMENT
// =============================================================================

// Rules returns the stored rules.
func (e *Engine) Rules(ctx context.Context) ([]Rule, error) {
	if e.rules == nil {
		return nil, nil
	}
	return e.rules.LoadRules(ctx)
}

// SaveRule inserts or replaces a rule by id. A rule without an id gets one.
func (e *Engine) SaveRule(ctx context.Context, rule Rule) (Rule, error) {
	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	if strings.TrimSpace(rule.Name) == "" {
		return Rule{}, generic.NewValidationError("name", "required")
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	saver, err := e.saver()
	if err != nil {
		return Rule{}, err
	}
	rules, err := e.Rules(ctx)
	if err != nil {
		return Rule{}, err
	}

	replaced := false
	for i := range rules {
		if rules[i].ID == rule.ID {
			rules[i] = rule
			replaced = true
			break
		}
	}
	if !replaced {
		rules = append(rules, rule)
	}
	if err := saver.SaveRules(ctx, rules); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

// ReplaceRules validates and stores a whole rule set.
func (e *Engine) ReplaceRules(ctx context.Context, rules []Rule) ([]Rule, error) {
	saver, err := e.saver()
	if err != nil {
		return nil, err
	}
	out := make([]Rule, len(rules))
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		out[i] = r
	}
	if err := saver.SaveRules(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) DeleteRule(ctx context.Context, id string) error {
	saver, err := e.saver()
	if err != nil {
		return err
	}
	rules, err := e.Rules(ctx)
	if err != nil {
		return err
	}
	kept := rules[:0]
	for _, r := range rules {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(rules) {
		return fmt.Errorf("%w: %s", generic.ErrRuleNotFound, id)
	}
	return saver.SaveRules(ctx, kept)
}

func (e *Engine) saver() (RuleSaver, error) {
	s, ok := e.rules.(RuleSaver)
	if !ok {
		return nil, generic.ErrReadOnlySource
	}
	return s, nil
}
