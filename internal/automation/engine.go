// Package automation evaluates the rule table against newly ingested
// inbound messages and fires auto-replies.
package automation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	waLog "go.mau.fi/whatsmeow/util/log"

	"zapdesk/internal/data/store"
	"zapdesk/internal/dispatch"
)

// Sender dispatches a rule's templated reply. Implemented by
// dispatch.Dispatcher; stubbed in tests.
type Sender interface {
	Send(ctx context.Context, number, content string) dispatch.Result
}

// Engine evaluates active automation rules against ingested messages.
type Engine struct {
	rules  *store.AutomationStore
	msgs   *store.MessageStore
	sender Sender
	now    func() time.Time
	log    waLog.Logger
}

// NewEngine creates an Engine using the local wall clock.
func NewEngine(rules *store.AutomationStore, msgs *store.MessageStore, sender Sender, log waLog.Logger) *Engine {
	return &Engine{
		rules:  rules,
		msgs:   msgs,
		sender: sender,
		now:    time.Now,
		log:    log.Sub("Automation"),
	}
}

// SetClock overrides the engine's wall clock. Used by tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Evaluate runs every active rule against a message, in store order.
// Rules are independent: one rule's failure is logged and the next still
// runs. Multiple rules may trigger for the same message.
func (e *Engine) Evaluate(ctx context.Context, conv *store.Conversation, msg *store.Message) {
	rules, err := e.rules.ListActiveRules()
	if err != nil {
		e.log.Errorf("Failed to load automation rules: %v", err)
		return
	}

	for _, rule := range rules {
		if err := e.evaluateRule(ctx, rule, conv, msg); err != nil {
			e.log.Errorf("Rule %q (%d) failed: %v", rule.Name, rule.ID, err)
		}
	}
}

func (e *Engine) evaluateRule(ctx context.Context, rule *store.AutomationRule, conv *store.Conversation, msg *store.Message) error {
	triggered, err := e.triggered(rule, conv, msg)
	if err != nil {
		return err
	}
	if !triggered {
		return nil
	}

	e.log.Infof("Rule %q triggered for conversation %d", rule.Name, conv.ID)

	if rule.Action == store.ActionSendMessage {
		res := e.sender.Send(ctx, conv.ContactNumber, rule.Template)
		if !res.Success {
			e.log.Warnf("Rule %q reply failed: %s", rule.Name, res.Error)
		}
	}

	return e.rules.InsertLog(&store.AutomationLog{
		RuleID:         rule.ID,
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		Status:         store.LogStatusExecuted,
	})
}

func (e *Engine) triggered(rule *store.AutomationRule, conv *store.Conversation, msg *store.Message) (bool, error) {
	switch rule.Trigger {
	case store.TriggerKeyword:
		if rule.Keyword == "" {
			return false, nil
		}
		return strings.Contains(strings.ToLower(msg.Content), strings.ToLower(rule.Keyword)), nil

	case store.TriggerFirstMessage:
		others, err := e.msgs.CountInConversationExcluding(conv.ID, msg.ID)
		if err != nil {
			return false, err
		}
		return others == 0, nil

	case store.TriggerTimeWindow:
		start, err := parseMinuteOfDay(rule.WindowStart)
		if err != nil {
			return false, fmt.Errorf("bad window start: %w", err)
		}
		end, err := parseMinuteOfDay(rule.WindowEnd)
		if err != nil {
			return false, fmt.Errorf("bad window end: %w", err)
		}
		now := e.now()
		minute := now.Hour()*60 + now.Minute()
		return minute >= start && minute <= end, nil

	default:
		return false, fmt.Errorf("unknown trigger %q", rule.Trigger)
	}
}

// parseMinuteOfDay parses "HH:MM" into minutes since midnight.
func parseMinuteOfDay(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return hour*60 + minute, nil
}
