package automation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	waLog "go.mau.fi/whatsmeow/util/log"

	"zapdesk/internal/data/store"
	"zapdesk/internal/dispatch"
)

type sentReply struct {
	number  string
	content string
}

type stubSender struct {
	sent []sentReply
	fail bool
}

func (s *stubSender) Send(ctx context.Context, number, content string) dispatch.Result {
	s.sent = append(s.sent, sentReply{number, content})
	if s.fail {
		return dispatch.Result{Success: false, Error: "not connected"}
	}
	return dispatch.Result{Success: true}
}

type engineFixture struct {
	engine *Engine
	rules  *store.AutomationStore
	msgs   *store.MessageStore
	convs  *store.ConversationStore
	sender *stubSender
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"), waLog.Noop)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	f := &engineFixture{
		rules:  store.NewAutomationStore(s),
		msgs:   store.NewMessageStore(s),
		convs:  store.NewConversationStore(s),
		sender: &stubSender{},
	}
	f.engine = NewEngine(f.rules, f.msgs, f.sender, waLog.Noop)
	return f
}

func (f *engineFixture) conversation(t *testing.T) *store.Conversation {
	t.Helper()
	conv, err := f.convs.Create("5511999998888", "Maria")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return conv
}

func (f *engineFixture) message(t *testing.T, conv *store.Conversation, content string) *store.Message {
	t.Helper()
	msg := &store.Message{
		ConversationID: conv.ID,
		Content:        content,
		Kind:           store.KindText,
		Timestamp:      time.Now(),
		Status:         store.StatusReceived,
	}
	if err := f.msgs.Insert(msg); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	return msg
}

func TestKeywordRuleCaseInsensitive(t *testing.T) {
	f := newEngineFixture(t)
	conv := f.conversation(t)
	f.rules.InsertRule(&store.AutomationRule{
		Name: "price", Trigger: store.TriggerKeyword, Keyword: "PREÇO",
		Action: store.ActionSendMessage, Template: "Tabela de preços: ...", Active: true,
	})

	msg := f.message(t, conv, "qual o preço do plano?")
	f.engine.Evaluate(context.Background(), conv, msg)

	if len(f.sender.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(f.sender.sent))
	}
	if f.sender.sent[0].number != "5511999998888" || f.sender.sent[0].content != "Tabela de preços: ..." {
		t.Errorf("sent = %+v", f.sender.sent[0])
	}

	logs, _ := f.rules.ListLogsByMessage(msg.ID)
	if len(logs) != 1 || logs[0].Status != store.LogStatusExecuted {
		t.Errorf("logs = %+v, want one executada entry", logs)
	}
}

func TestKeywordRuleNoMatch(t *testing.T) {
	f := newEngineFixture(t)
	conv := f.conversation(t)
	f.rules.InsertRule(&store.AutomationRule{
		Name: "price", Trigger: store.TriggerKeyword, Keyword: "preço",
		Action: store.ActionSendMessage, Template: "x", Active: true,
	})

	msg := f.message(t, conv, "bom dia")
	f.engine.Evaluate(context.Background(), conv, msg)

	if len(f.sender.sent) != 0 {
		t.Errorf("sent = %d, want 0", len(f.sender.sent))
	}
	if logs, _ := f.rules.ListLogsByMessage(msg.ID); len(logs) != 0 {
		t.Errorf("logs = %+v, want none", logs)
	}
}

func TestFirstMessageRule(t *testing.T) {
	f := newEngineFixture(t)
	conv := f.conversation(t)
	f.rules.InsertRule(&store.AutomationRule{
		Name: "welcome", Trigger: store.TriggerFirstMessage,
		Action: store.ActionSendMessage, Template: "Bem-vindo!", Active: true,
	})

	first := f.message(t, conv, "oi")
	f.engine.Evaluate(context.Background(), conv, first)
	if len(f.sender.sent) != 1 {
		t.Fatalf("first message: sent = %d, want 1", len(f.sender.sent))
	}

	second := f.message(t, conv, "oi de novo")
	f.engine.Evaluate(context.Background(), conv, second)
	if len(f.sender.sent) != 1 {
		t.Errorf("second message: sent = %d, want still 1", len(f.sender.sent))
	}
}

func TestTimeWindowRuleBoundaries(t *testing.T) {
	tests := []struct {
		clock string
		want  bool
	}{
		{"08:59", false},
		{"09:00", true},
		{"13:30", true},
		{"18:00", true},
		{"18:01", false},
	}
	for _, tt := range tests {
		t.Run(tt.clock, func(t *testing.T) {
			f := newEngineFixture(t)
			conv := f.conversation(t)
			f.rules.InsertRule(&store.AutomationRule{
				Name: "hours", Trigger: store.TriggerTimeWindow,
				WindowStart: "09:00", WindowEnd: "18:00",
				Action: store.ActionSendMessage, Template: "Estamos online", Active: true,
			})

			at, err := time.Parse("15:04", tt.clock)
			if err != nil {
				t.Fatal(err)
			}
			f.engine.SetClock(func() time.Time { return at })

			msg := f.message(t, conv, "oi")
			f.engine.Evaluate(context.Background(), conv, msg)

			triggered := len(f.sender.sent) == 1
			if triggered != tt.want {
				t.Errorf("at %s triggered = %v, want %v", tt.clock, triggered, tt.want)
			}
		})
	}
}

func TestTimeWindowRuleBadConfig(t *testing.T) {
	f := newEngineFixture(t)
	conv := f.conversation(t)
	f.rules.InsertRule(&store.AutomationRule{
		Name: "broken", Trigger: store.TriggerTimeWindow,
		WindowStart: "nine", WindowEnd: "18:00",
		Action: store.ActionSendMessage, Template: "x", Active: true,
	})
	f.rules.InsertRule(&store.AutomationRule{
		Name: "welcome", Trigger: store.TriggerFirstMessage,
		Action: store.ActionSendMessage, Template: "Bem-vindo!", Active: true,
	})

	// The broken rule fails; the next rule must still run.
	msg := f.message(t, conv, "oi")
	f.engine.Evaluate(context.Background(), conv, msg)

	if len(f.sender.sent) != 1 || f.sender.sent[0].content != "Bem-vindo!" {
		t.Errorf("sent = %+v, want only the welcome reply", f.sender.sent)
	}
}

func TestMultipleRulesAllTrigger(t *testing.T) {
	f := newEngineFixture(t)
	conv := f.conversation(t)
	f.rules.InsertRule(&store.AutomationRule{
		Name: "greet", Trigger: store.TriggerKeyword, Keyword: "oi",
		Action: store.ActionSendMessage, Template: "Olá!", Active: true,
	})
	f.rules.InsertRule(&store.AutomationRule{
		Name: "welcome", Trigger: store.TriggerFirstMessage,
		Action: store.ActionSendMessage, Template: "Bem-vindo!", Active: true,
	})

	msg := f.message(t, conv, "oi")
	f.engine.Evaluate(context.Background(), conv, msg)

	if len(f.sender.sent) != 2 {
		t.Fatalf("sent = %d, want 2", len(f.sender.sent))
	}
	if f.sender.sent[0].content != "Olá!" || f.sender.sent[1].content != "Bem-vindo!" {
		t.Errorf("sends out of store order: %+v", f.sender.sent)
	}
	if logs, _ := f.rules.ListLogsByMessage(msg.ID); len(logs) != 2 {
		t.Errorf("logs = %d, want 2", len(logs))
	}
}

func TestSendFailureStillLogged(t *testing.T) {
	f := newEngineFixture(t)
	f.sender.fail = true
	conv := f.conversation(t)
	f.rules.InsertRule(&store.AutomationRule{
		Name: "welcome", Trigger: store.TriggerFirstMessage,
		Action: store.ActionSendMessage, Template: "Bem-vindo!", Active: true,
	})

	msg := f.message(t, conv, "oi")
	f.engine.Evaluate(context.Background(), conv, msg)

	logs, _ := f.rules.ListLogsByMessage(msg.ID)
	if len(logs) != 1 || logs[0].Status != store.LogStatusExecuted {
		t.Errorf("logs = %+v, trigger outcome should be recorded even when the send fails", logs)
	}
}

func TestParseMinuteOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:00", 540, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"09:60", 0, true},
		{"nine", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseMinuteOfDay(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseMinuteOfDay(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseMinuteOfDay(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
