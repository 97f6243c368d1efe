// Package flow is the pure reply engine of the chat widget: FAQ matching plus
// the two-step callback request dialogue.
package flow

import (
	"fmt"
	"regexp"
	"strings"

	"coursemart/internal/domain"
)

type EffectKind string

const (
	// EffectHandoff asks the orchestrator to record a human handoff.
	EffectHandoff EffectKind = "handoff"
	// EffectCallbackRequested reports a completed callback request.
	EffectCallbackRequested EffectKind = "callback_requested"
)

type Effect struct {
	Kind     EffectKind
	Reason   string
	Language string
	Number   string
}

// Result is the outcome of one Reply call.
type Result struct {
	Reply   string
	State   domain.CallFlowState
	Rule    string
	Effects []Effect
}

const (
	minPhoneDigits = 10
	maxPhoneDigits = 15
)

var (
	handoffPattern = regexp.MustCompile(`(?i)\b(human|agent|counsell?ors?|representative|executive)\b`)
	endPattern     = regexp.MustCompile(`(?i)^\s*(end|close|quit|exit|stop)(\s+(the\s+|this\s+)?chat)?\s*[.!]*\s*$`)
)

type Engine struct {
	rules []Rule
}

// New builds an engine over rules. Nil rules means DefaultRules.
func New(rules []Rule) *Engine {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Engine{rules: rules}
}

// Rules returns the table in evaluation order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Reply maps an incoming message and the sender's call-flow state to a reply
// and the next state. It performs no I/O.
func (e *Engine) Reply(text string, st domain.CallFlowState) Result {
	var res Result
	switch st.Step {
	case domain.StepAwaitingLanguage:
		res = e.captureLanguage(text, st)
	case domain.StepAwaitingPhone:
		res = e.capturePhone(text, st)
	default:
		res = e.match(text, st)
	}
	if handoffPattern.MatchString(res.Reply) {
		res.Effects = append(res.Effects, Effect{Kind: EffectHandoff, Reason: handoffReason(res)})
	}
	return res
}

func (e *Engine) match(text string, st domain.CallFlowState) Result {
	for _, r := range e.rules {
		if !r.Pattern.MatchString(text) {
			continue
		}
		next := st
		if r.Effect == RuleBeginCallFlow {
			next.Step = domain.StepAwaitingLanguage
		}
		return Result{Reply: r.Reply, State: next, Rule: r.Name}
	}
	return Result{Reply: FallbackReply, State: st}
}

func (e *Engine) captureLanguage(text string, st domain.CallFlowState) Result {
	next := st
	next.Language = strings.TrimSpace(text)
	next.Step = domain.StepAwaitingPhone
	return Result{Reply: fmt.Sprintf(LanguageReply, next.Language), State: next}
}

func (e *Engine) capturePhone(text string, st domain.CallFlowState) Result {
	number, ok := NormalizePhone(text)
	if !ok {
		return Result{Reply: InvalidPhoneReply, State: st}
	}
	next := st
	next.Number = number
	next.Step = domain.StepIdle
	return Result{
		Reply: fmt.Sprintf(ConfirmReply, number, next.Language),
		State: next,
		Effects: []Effect{{
			Kind:     EffectCallbackRequested,
			Language: next.Language,
			Number:   number,
		}},
	}
}

func handoffReason(res Result) string {
	for _, eff := range res.Effects {
		if eff.Kind == EffectCallbackRequested {
			return fmt.Sprintf("callback requested: language=%s number=%s", eff.Language, eff.Number)
		}
	}
	if res.Rule != "" {
		return "bot offered a human agent (rule " + res.Rule + ")"
	}
	return "bot offered a human agent"
}

// NormalizePhone strips everything but digits, keeping a leading '+'. It
// reports false unless 10 to 15 digits remain.
func NormalizePhone(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	var b strings.Builder
	if strings.HasPrefix(trimmed, "+") {
		b.WriteByte('+')
	}
	digits := 0
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			digits++
		}
	}
	if digits < minPhoneDigits || digits > maxPhoneDigits {
		return "", false
	}
	return b.String(), true
}

// IsEndCommand reports whether text asks to end the conversation.
func IsEndCommand(text string) bool {
	return endPattern.MatchString(text)
}
