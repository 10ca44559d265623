package permission

import (
	"context"
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/gencode-labs/gencode/internal/config"
	"github.com/gencode-labs/gencode/internal/log"
	"github.com/gencode-labs/gencode/internal/risk"
)

// Effect is what a Rule resolves to when it matches.
type Effect int

const (
	EffectAllow Effect = iota
	EffectAsk
	EffectDeny
)

// Rule is a fine-grained permission rule over a tool+action pattern,
// richer than the plain "Tool(pattern)" strings in config.PermissionSettings:
// it carries an explicit Effect and an optional human-readable reason shown
// when a request is denied or asked about.
type Rule struct {
	ToolPattern   string
	ActionPattern string
	Effect        Effect
	Reason        string
}

// specificity is used to break ties between multiple matching rules: a
// longer, more literal pattern wins over a broader one.
func (r Rule) specificity() int {
	n := len(r.ToolPattern) + len(r.ActionPattern)
	for _, c := range r.ActionPattern {
		if c == '*' {
			n--
		}
	}
	return n
}

// MatchActionPattern matches target against pattern using doublestar glob
// semantics ("*" within a segment, "**" across segments), falling back to
// an exact match when pattern contains no wildcard.
func MatchActionPattern(target, pattern string) bool {
	if pattern == "" || pattern == "**" {
		return true
	}
	ok, err := doublestar.Match(pattern, target)
	if err != nil {
		return target == pattern
	}
	if ok {
		return true
	}
	// doublestar.Match is path-segment aware; also try a plain suffix/
	// prefix check so patterns like "npm:*" work for non-path targets
	// (command strings) the way config.MatchRule's glob does.
	return config.MatchRule("X("+target+")", "X("+pattern+")")
}

func matchesRule(toolName string, action Action, r Rule) bool {
	if !MatchActionPattern(toolName, r.ToolPattern) {
		return false
	}
	return MatchActionPattern(action.Target, r.ActionPattern)
}

// Response is the outcome of an Engine.Check or Engine.Request call.
type Response struct {
	Effect Effect
	Reason string
	Risk   risk.Score
}

func (r Response) Allowed() bool { return r.Effect == EffectAllow }

// Delegate is consulted for Ask-band decisions; it is the interactive (or
// scripted, in tests) authority that turns an ask into a grant.
type Delegate interface {
	// RequestApproval presents the action to the user/caller and returns
	// the scope they approved it at (and whether they approved at all).
	RequestApproval(ctx context.Context, toolName string, action Action, score risk.Score) (approved bool, scope GrantScope, err error)
}

// Engine is the spec-compliant permission engine: Allow/Ask/Deny rules,
// risk-banded auto-approval thresholds, and a per-session grant store.
// It is additive to the lightweight Checker interface core.Loop already
// depends on; Adapt wraps an Engine to satisfy Checker for callers that
// only need a coarse Permit/Reject/Prompt verdict.
type Engine struct {
	Rules      []Rule
	Grants     *GrantStore
	AutoApprove int // risk <= AutoApprove: allowed without asking
	AskBelow    int // AutoApprove < risk < AskBelow: ask; risk >= AskBelow: deny unless an Ask rule matches
}

// NewEngine builds an Engine seeded from settings' Allow/Deny/Ask pattern
// lists (reusing BuildRule's per-tool argument extraction) plus the
// common deny patterns already shipped with the settings package.
func NewEngine(settings *config.Settings) *Engine {
	e := &Engine{
		Grants:      NewGrantStore(),
		AutoApprove: 2,
		AskBelow:    7,
	}
	if settings == nil {
		return e
	}
	for _, p := range settings.Permissions.Deny {
		tool, action := splitToolPattern(p)
		e.Rules = append(e.Rules, Rule{ToolPattern: tool, ActionPattern: action, Effect: EffectDeny})
	}
	for _, p := range settings.Permissions.Allow {
		tool, action := splitToolPattern(p)
		e.Rules = append(e.Rules, Rule{ToolPattern: tool, ActionPattern: action, Effect: EffectAllow})
	}
	for _, p := range settings.Permissions.Ask {
		tool, action := splitToolPattern(p)
		e.Rules = append(e.Rules, Rule{ToolPattern: tool, ActionPattern: action, Effect: EffectAsk})
	}
	return e
}

func splitToolPattern(rule string) (tool, action string) {
	tool, action, found := cut(rule, "(")
	if !found {
		return rule, "**"
	}
	if len(action) > 0 && action[len(action)-1] == ')' {
		action = action[:len(action)-1]
	}
	return tool, action
}

func cut(s, sep string) (before, after string, found bool) {
	for i := 0; i+len(sep) <= len(s); i++ {
		if s[i:i+len(sep)] == sep {
			return s[:i], s[i+len(sep):], true
		}
	}
	return s, "", false
}

// bestMatch returns the most specific matching rule for tool+action, or
// nil if none match.
func (e *Engine) bestMatch(toolName string, action Action) *Rule {
	var best *Rule
	for i := range e.Rules {
		r := &e.Rules[i]
		if !matchesRule(toolName, action, *r) {
			continue
		}
		if best == nil || r.specificity() > best.specificity() {
			best = r
		}
	}
	return best
}

// Check runs the spec's deterministic 7-step decision order:
//  1. a matching Deny rule always wins
//  2. a Forbidden risk category always denies, rule or not
//  3. a matching Allow rule allows
//  4. an unexpired SessionGrant allows
//  5. risk <= AutoApprove allows without asking
//  6. a matching Ask rule, or risk in the ask band, asks
//  7. otherwise, deny
func (e *Engine) Check(toolName string, action Action) Response {
	score := scoreAction(toolName, action)

	if rule := e.bestMatch(toolName, action); rule != nil && rule.Effect == EffectDeny {
		return Response{Effect: EffectDeny, Reason: rule.Reason, Risk: score}
	}

	if score.Category == risk.Forbidden {
		return Response{Effect: EffectDeny, Reason: score.Reason, Risk: score}
	}

	if rule := e.bestMatch(toolName, action); rule != nil && rule.Effect == EffectAllow {
		return Response{Effect: EffectAllow, Reason: rule.Reason, Risk: score}
	}

	if e.Grants != nil && e.Grants.Match(toolName, action.Target, time.Now()) {
		return Response{Effect: EffectAllow, Reason: "session grant", Risk: score}
	}

	if score.Value <= e.AutoApprove {
		return Response{Effect: EffectAllow, Reason: "low risk", Risk: score}
	}

	if rule := e.bestMatch(toolName, action); rule != nil && rule.Effect == EffectAsk {
		return Response{Effect: EffectAsk, Reason: rule.Reason, Risk: score}
	}
	if score.Value < e.AskBelow {
		return Response{Effect: EffectAsk, Reason: score.Reason, Risk: score}
	}

	return Response{Effect: EffectDeny, Reason: "risk at or above the ask limit: " + score.Reason, Risk: score}
}

func scoreAction(toolName string, action Action) risk.Score {
	switch action.Kind {
	case ActionExecute:
		return risk.AnalyzeCommand(action.Target)
	case ActionFileWrite, ActionFileDelete:
		return risk.AnalyzePath(action.Target, true)
	case ActionFileReadSensitive:
		return risk.AnalyzePath(action.Target, false)
	default:
		return risk.Score{Value: 3, Category: risk.Caution, Reason: "unclassified action"}
	}
}

// Request performs a Check and, for an Ask verdict, invokes the delegate.
// A delegate approval at Permanent scope is persisted and appended to
// Rules as an Allow rule; if persist returns an error, the failure is
// logged as a warning and a Session grant is recorded instead, so the
// approval still holds for the rest of the run. Session scope records a
// Session grant, and any other scope a Once grant.
func (e *Engine) Request(ctx context.Context, delegate Delegate, toolName string, action Action,
	persist func(Rule) error) (Response, error) {
	resp := e.Check(toolName, action)
	if resp.Effect != EffectAsk {
		return resp, nil
	}
	if delegate == nil {
		return Response{Effect: EffectDeny, Reason: "no delegate available to ask", Risk: resp.Risk}, nil
	}

	approved, scope, err := delegate.RequestApproval(ctx, toolName, action, resp.Risk)
	if err != nil {
		return Response{Effect: EffectDeny, Reason: err.Error(), Risk: resp.Risk}, err
	}
	if !approved {
		return Response{Effect: EffectDeny, Reason: "denied by delegate", Risk: resp.Risk}, nil
	}

	switch scope {
	case ScopePermanent:
		rule := Rule{ToolPattern: toolName, ActionPattern: action.Target, Effect: EffectAllow, Reason: "user-approved (permanent)"}
		if persist != nil {
			if perr := persist(rule); perr != nil {
				log.Logger().Warn("failed to persist permanent grant, keeping session-scoped",
					zap.String("tool", toolName), zap.Error(perr))
				e.Grants.Add(SessionGrant{Tool: toolName, ActionPattern: action.Target, Scope: ScopeSession})
				return Response{Effect: EffectAllow, Reason: "approved (session only, persistence failed)", Risk: resp.Risk}, nil
			}
		}
		e.Rules = append(e.Rules, rule)
	case ScopeSession:
		e.Grants.Add(SessionGrant{Tool: toolName, ActionPattern: action.Target, Scope: ScopeSession})
	default:
		e.Grants.Add(SessionGrant{Tool: toolName, ActionPattern: action.Target, Scope: ScopeOnce})
	}

	return Response{Effect: EffectAllow, Reason: "user-approved", Risk: resp.Risk}, nil
}

// Adapt wraps an Engine so it satisfies the legacy Checker interface
// (Permit/Reject/Prompt) that core.Loop.Permission already expects,
// letting the richer Engine sit behind the existing TUI wiring.
type Adapt struct{ Engine *Engine }

func (a Adapt) Check(name string, params map[string]any) Decision {
	action := DeriveAction(name, params)
	switch a.Engine.Check(name, action).Effect {
	case EffectAllow:
		return Permit
	case EffectDeny:
		return Reject
	default:
		return Prompt
	}
}

var _ fmt.Stringer = Effect(0)

func (e Effect) String() string {
	switch e {
	case EffectAllow:
		return "allow"
	case EffectDeny:
		return "deny"
	default:
		return "ask"
	}
}
