package store

import (
	"path/filepath"
	"testing"
	"time"

	waLog "go.mau.fi/whatsmeow/util/log"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"), waLog.Noop)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConversationCreateAndFind(t *testing.T) {
	s := newTestStore(t)
	convs := NewConversationStore(s)

	if conv, err := convs.FindByNumber("5511999999999"); err != nil || conv != nil {
		t.Fatalf("FindByNumber on empty store = (%v, %v), want (nil, nil)", conv, err)
	}

	created, err := convs.Create("5511999999999", "Maria")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == 0 {
		t.Error("Create should assign an ID")
	}

	found, err := convs.FindByNumber("5511999999999")
	if err != nil {
		t.Fatalf("FindByNumber() error = %v", err)
	}
	if found == nil || found.ID != created.ID || found.ContactName != "Maria" {
		t.Errorf("FindByNumber = %+v, want id %d name Maria", found, created.ID)
	}
}

func TestConversationNumberUnique(t *testing.T) {
	s := newTestStore(t)
	convs := NewConversationStore(s)

	if _, err := convs.Create("5511999999999", "A"); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}
	if _, err := convs.Create("5511999999999", "B"); err == nil {
		t.Error("duplicate contact number should be rejected")
	}
}

func TestConversationUpdateLastMessage(t *testing.T) {
	s := newTestStore(t)
	convs := NewConversationStore(s)

	conv, _ := convs.Create("5511999999999", "Maria")
	at := time.Unix(1700000000, 0)
	if err := convs.UpdateLastMessage(conv.ID, "Hi", at); err != nil {
		t.Fatalf("UpdateLastMessage() error = %v", err)
	}

	found, _ := convs.FindByNumber("5511999999999")
	if found.LastMessage != "Hi" {
		t.Errorf("LastMessage = %q, want Hi", found.LastMessage)
	}
	if !found.LastMessageAt.Equal(at) {
		t.Errorf("LastMessageAt = %v, want %v", found.LastMessageAt, at)
	}
}

func TestPurgeWithoutNumber(t *testing.T) {
	s := newTestStore(t)
	convs := NewConversationStore(s)

	convs.Create("5511999999999", "Maria")
	// Legacy rows created before number validation existed.
	s.Exec(`INSERT INTO zapdesk_conversations (contact_number, created_at) VALUES ('', 0)`)

	n, err := convs.PurgeWithoutNumber()
	if err != nil {
		t.Fatalf("PurgeWithoutNumber() error = %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d rows, want 1", n)
	}
	if conv, _ := convs.FindByNumber("5511999999999"); conv == nil {
		t.Error("valid conversation should survive the purge")
	}
}

func TestMessageInsertAndLookups(t *testing.T) {
	s := newTestStore(t)
	convs := NewConversationStore(s)
	msgs := NewMessageStore(s)

	conv, _ := convs.Create("5511999999999", "Maria")
	at := time.Unix(1700000000, 0)

	m := &Message{
		ConversationID: conv.ID,
		WAMessageID:    "3EB0ABCDEF",
		Content:        "Hi",
		Kind:           KindText,
		Timestamp:      at,
		Status:         StatusReceived,
	}
	if err := msgs.Insert(m); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if m.ID == 0 {
		t.Fatal("Insert should assign an ID")
	}

	byID, err := msgs.GetByID(m.ID)
	if err != nil || byID == nil {
		t.Fatalf("GetByID = (%v, %v)", byID, err)
	}
	if byID.Content != "Hi" || byID.Status != StatusReceived || !byID.Timestamp.Equal(at) {
		t.Errorf("GetByID = %+v", byID)
	}

	byWAID, err := msgs.FindByWAID(conv.ID, "3EB0ABCDEF")
	if err != nil || byWAID == nil || byWAID.ID != m.ID {
		t.Errorf("FindByWAID = (%v, %v), want id %d", byWAID, err, m.ID)
	}
	if got, _ := msgs.FindByWAID(conv.ID, "missing"); got != nil {
		t.Errorf("FindByWAID(missing) = %+v, want nil", got)
	}

	byTS, err := msgs.FindByConversationAndTimestamp(conv.ID, "Hi", at)
	if err != nil || byTS == nil || byTS.ID != m.ID {
		t.Errorf("FindByConversationAndTimestamp = (%v, %v)", byTS, err)
	}
	if got, _ := msgs.FindByConversationAndTimestamp(conv.ID, "Hi", at.Add(time.Second)); got != nil {
		t.Error("timestamp must match exactly")
	}
}

func TestMessageCountExcluding(t *testing.T) {
	s := newTestStore(t)
	convs := NewConversationStore(s)
	msgs := NewMessageStore(s)

	conv, _ := convs.Create("5511999999999", "Maria")
	first := &Message{ConversationID: conv.ID, Content: "a", Kind: KindText, Timestamp: time.Now(), Status: StatusReceived}
	msgs.Insert(first)

	n, err := msgs.CountInConversationExcluding(conv.ID, first.ID)
	if err != nil || n != 0 {
		t.Errorf("count excluding only message = (%d, %v), want 0", n, err)
	}

	second := &Message{ConversationID: conv.ID, Content: "b", Kind: KindText, Timestamp: time.Now(), Status: StatusSent}
	msgs.Insert(second)

	n, _ = msgs.CountInConversationExcluding(conv.ID, second.ID)
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestMessageListRecentOrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	convs := NewConversationStore(s)
	msgs := NewMessageStore(s)

	conv, _ := convs.Create("5511999999999", "Maria")
	base := time.Unix(1700000000, 0)
	for i := 0; i < 5; i++ {
		msgs.Insert(&Message{
			ConversationID: conv.ID,
			Content:        "m",
			Kind:           KindText,
			Timestamp:      base.Add(time.Duration(i) * time.Minute),
			Status:         StatusReceived,
		})
	}

	recent, err := msgs.ListRecent(conv.ID, 3)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("len = %d, want 3", len(recent))
	}
	if !recent[0].Timestamp.After(recent[1].Timestamp) {
		t.Error("ListRecent should be newest first")
	}
}

func TestAutomationRulesActiveFilterAndOrder(t *testing.T) {
	s := newTestStore(t)
	rules := NewAutomationStore(s)

	active := &AutomationRule{Name: "greet", Trigger: TriggerFirstMessage, Action: ActionSendMessage, Template: "hello", Active: true}
	inactive := &AutomationRule{Name: "off", Trigger: TriggerKeyword, Keyword: "x", Action: ActionSendMessage, Active: false}
	second := &AutomationRule{Name: "price", Trigger: TriggerKeyword, Keyword: "price", Action: ActionSendMessage, Template: "list", Active: true}

	for _, r := range []*AutomationRule{active, inactive, second} {
		if err := rules.InsertRule(r); err != nil {
			t.Fatalf("InsertRule(%s) error = %v", r.Name, err)
		}
	}

	got, err := rules.ListActiveRules()
	if err != nil {
		t.Fatalf("ListActiveRules() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Name != "greet" || got[1].Name != "price" {
		t.Errorf("rule order = %s, %s", got[0].Name, got[1].Name)
	}
}

func TestAutomationLogs(t *testing.T) {
	s := newTestStore(t)
	convs := NewConversationStore(s)
	msgs := NewMessageStore(s)
	rules := NewAutomationStore(s)

	conv, _ := convs.Create("5511999999999", "Maria")
	msg := &Message{ConversationID: conv.ID, Content: "hi", Kind: KindText, Timestamp: time.Now(), Status: StatusReceived}
	msgs.Insert(msg)
	rule := &AutomationRule{Name: "greet", Trigger: TriggerFirstMessage, Action: ActionSendMessage, Active: true}
	rules.InsertRule(rule)

	err := rules.InsertLog(&AutomationLog{
		RuleID:         rule.ID,
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		Status:         LogStatusExecuted,
	})
	if err != nil {
		t.Fatalf("InsertLog() error = %v", err)
	}

	logs, err := rules.ListLogsByMessage(msg.ID)
	if err != nil {
		t.Fatalf("ListLogsByMessage() error = %v", err)
	}
	if len(logs) != 1 || logs[0].Status != LogStatusExecuted || logs[0].RuleID != rule.ID {
		t.Errorf("logs = %+v", logs)
	}
}
