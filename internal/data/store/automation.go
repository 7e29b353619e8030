package store

import (
	"database/sql"
	"time"
)

// Automation rule triggers.
const (
	TriggerKeyword      = "keyword"
	TriggerFirstMessage = "first_message"
	TriggerTimeWindow   = "time_window"
)

// Automation rule actions.
const (
	ActionSendMessage = "send_message"
)

// LogStatusExecuted is the outcome recorded for a triggered rule.
const LogStatusExecuted = "executada"

// AutomationRule is an admin-managed (trigger, action) pair evaluated
// against every newly ingested inbound message. Read-only to the engine.
type AutomationRule struct {
	ID          int64
	Name        string
	Trigger     string
	Keyword     string
	WindowStart string
	WindowEnd   string
	Action      string
	Template    string
	Active      bool
	CreatedAt   time.Time
}

// AutomationLog records a rule evaluation that triggered.
type AutomationLog struct {
	ID             int64
	RuleID         int64
	ConversationID int64
	MessageID      int64
	Status         string
	CreatedAt      time.Time
}

// AutomationStore handles rule and log operations.
type AutomationStore struct {
	store *Store
}

// NewAutomationStore creates a new AutomationStore.
func NewAutomationStore(s *Store) *AutomationStore {
	return &AutomationStore{store: s}
}

// ListActiveRules returns all active rules in store order.
func (s *AutomationStore) ListActiveRules() ([]*AutomationRule, error) {
	rows, err := s.store.Query(`
		SELECT id, name, trigger_type, keyword, window_start, window_end,
			action, template, active, created_at
		FROM zapdesk_automation_rules
		WHERE active = 1
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*AutomationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// InsertRule persists a rule. Rule lifecycle is an admin concern; this
// exists for the surrounding application and test fixtures.
func (s *AutomationStore) InsertRule(r *AutomationRule) error {
	now := time.Now()
	res, err := s.store.Exec(`
		INSERT INTO zapdesk_automation_rules (
			name, trigger_type, keyword, window_start, window_end,
			action, template, active, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.Name, r.Trigger, nullString(r.Keyword), nullString(r.WindowStart),
		nullString(r.WindowEnd), r.Action, nullString(r.Template),
		boolToInt(r.Active), now.Unix(),
	)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = id
	r.CreatedAt = now
	return nil
}

// InsertLog appends a log row for a triggered rule.
func (s *AutomationStore) InsertLog(l *AutomationLog) error {
	now := time.Now()
	res, err := s.store.Exec(`
		INSERT INTO zapdesk_automation_logs (
			rule_id, conversation_id, message_id, status, created_at
		) VALUES (?, ?, ?, ?, ?)
	`, l.RuleID, l.ConversationID, l.MessageID, l.Status, now.Unix())
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = id
	l.CreatedAt = now
	return nil
}

// ListLogsByMessage returns logs recorded for a message, oldest first.
func (s *AutomationStore) ListLogsByMessage(messageID int64) ([]*AutomationLog, error) {
	rows, err := s.store.Query(`
		SELECT id, rule_id, conversation_id, message_id, status, created_at
		FROM zapdesk_automation_logs
		WHERE message_id = ?
		ORDER BY id
	`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*AutomationLog
	for rows.Next() {
		var l AutomationLog
		var createdAt int64
		if err := rows.Scan(&l.ID, &l.RuleID, &l.ConversationID, &l.MessageID, &l.Status, &createdAt); err != nil {
			return nil, err
		}
		l.CreatedAt = time.Unix(createdAt, 0)
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

func scanRule(rows *sql.Rows) (*AutomationRule, error) {
	var r AutomationRule
	var keyword, windowStart, windowEnd, template sql.NullString
	var active int
	var createdAt int64

	err := rows.Scan(&r.ID, &r.Name, &r.Trigger, &keyword, &windowStart,
		&windowEnd, &r.Action, &template, &active, &createdAt)
	if err != nil {
		return nil, err
	}

	r.Keyword = keyword.String
	r.WindowStart = windowStart.String
	r.WindowEnd = windowEnd.String
	r.Template = template.String
	r.Active = active != 0
	r.CreatedAt = time.Unix(createdAt, 0)
	return &r, nil
}
