// Package ingest normalizes raw session message events into domain
// messages: it applies the filter policy, deduplicates self-echoed sends,
// resolves media and reply threading, and writes through the store.
package ingest

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	"zapdesk/internal/data/store"
	"zapdesk/internal/session"
	"zapdesk/internal/utils/phone"
)

// Direction of a message event.
type Direction int

const (
	Inbound Direction = iota
	Outbound
)

// fallbackContactName labels conversations whose contact has no profile name.
const fallbackContactName = "WhatsApp contact"

// MediaProcessor persists a message's media payload. Implemented by
// MediaHandler; stubbed in tests.
type MediaProcessor interface {
	Process(ctx context.Context, msg *waE2E.Message) MediaResult
}

// Evaluator runs automation rules against a newly ingested inbound
// message. Implemented by automation.Engine; stubbed in tests.
type Evaluator interface {
	Evaluate(ctx context.Context, conv *store.Conversation, msg *store.Message)
}

// Ingestor turns session message events into persisted Messages.
type Ingestor struct {
	convs      *store.ConversationStore
	msgs       *store.MessageStore
	media      MediaProcessor
	threads    *ThreadResolver
	dedup      *session.DedupGuard
	automation Evaluator
	log        waLog.Logger
}

// NewIngestor creates an Ingestor.
func NewIngestor(
	convs *store.ConversationStore,
	msgs *store.MessageStore,
	media MediaProcessor,
	threads *ThreadResolver,
	dedup *session.DedupGuard,
	automation Evaluator,
	log waLog.Logger,
) *Ingestor {
	return &Ingestor{
		convs:      convs,
		msgs:       msgs,
		media:      media,
		threads:    threads,
		dedup:      dedup,
		automation: automation,
		log:        log.Sub("Ingestor"),
	}
}

// HandleMessage implements session.MessageHandler.
func (i *Ingestor) HandleMessage(evt *events.Message, outbound bool) {
	dir := Inbound
	if outbound {
		dir = Outbound
	}
	i.Ingest(context.Background(), evt, dir)
}

// Ingest applies the filter policy to one raw message event and persists
// the result. Filtered messages are dropped silently; persistence errors
// are logged and stop processing for this message only.
func (i *Ingestor) Ingest(ctx context.Context, evt *events.Message, dir Direction) {
	if evt == nil || evt.Message == nil {
		return
	}

	// 1. Group chats are a different product surface; skip entirely.
	if evt.Info.IsGroup || evt.Info.Chat.Server == types.GroupServer {
		return
	}

	// 2. Nothing to persist without text or media.
	text := extractText(evt.Message)
	hasMedia := mediaPayload(evt.Message) != nil
	if text == "" && !hasMedia {
		return
	}

	// 3. Status/broadcast channel.
	if evt.Info.Chat == types.StatusBroadcastJID || evt.Info.Chat.Server == types.BroadcastServer {
		return
	}

	// 4. Direction / self-origin consistency.
	if dir == Inbound && evt.Info.IsFromMe {
		return
	}
	if dir == Outbound && !evt.Info.IsFromMe {
		return
	}

	// 5. Resolve the contact side of the chat.
	contact := evt.Info.Chat
	if dir == Inbound {
		contact = evt.Info.Sender
	}
	if contact.IsEmpty() || contact.User == "" {
		return
	}

	// 6. Normalize and validate the number.
	number := phone.Normalize(contact.User)
	if !phone.Valid(number) {
		return
	}

	// Outbound events echo back for every connected device; process each
	// serialized id at most once.
	if dir == Outbound {
		echoID := fmt.Sprintf("%s:%s", evt.Info.Chat.String(), evt.Info.ID)
		if i.dedup.CheckAndMark(echoID) {
			i.log.Debugf("Skipping duplicate outbound event %s", echoID)
			return
		}
	}

	conv, err := i.findOrCreateConversation(number, evt.Info.PushName)
	if err != nil {
		i.log.Errorf("Failed to resolve conversation for %s: %v", number, err)
		return
	}

	msg := &store.Message{
		ConversationID: conv.ID,
		WAMessageID:    string(evt.Info.ID),
		Content:        text,
		Kind:           store.KindText,
		Timestamp:      evt.Info.Timestamp,
		Status:         store.StatusReceived,
	}
	if dir == Outbound {
		msg.Status = store.StatusSent
	}

	if hasMedia {
		res := i.media.Process(ctx, evt.Message)
		msg.Kind = res.Kind
		msg.FileRef = res.FileRef
		if msg.Content == "" {
			msg.Content = res.DisplayText
		}
	}

	if thread := i.threads.Resolve(evt, conv); thread != nil {
		msg.ParentID = thread.ParentID
		msg.ParentContent = thread.ParentContent
		msg.ParentAuthor = thread.ParentAuthor
	}

	if err := i.msgs.Insert(msg); err != nil {
		i.log.Errorf("Failed to insert message %s: %v", evt.Info.ID, err)
		return
	}

	if err := i.convs.UpdateLastMessage(conv.ID, msg.Content, msg.Timestamp); err != nil {
		i.log.Errorf("Failed to update conversation %d: %v", conv.ID, err)
		return
	}

	i.log.Debugf("Ingested %s message %s in conversation %d", msg.Status, evt.Info.ID, conv.ID)

	if dir == Inbound && i.automation != nil {
		i.automation.Evaluate(ctx, conv, msg)
	}
}

func (i *Ingestor) findOrCreateConversation(number, pushName string) (*store.Conversation, error) {
	conv, err := i.convs.FindByNumber(number)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}

	name := pushName
	if name == "" {
		name = fallbackContactName
	}
	return i.convs.Create(number, name)
}

// extractText pulls the plain text body out of a message payload,
// including media captions.
func extractText(msg *waE2E.Message) string {
	if txt := msg.GetConversation(); txt != "" {
		return txt
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	if img := msg.GetImageMessage(); img != nil {
		return img.GetCaption()
	}
	if vid := msg.GetVideoMessage(); vid != nil {
		return vid.GetCaption()
	}
	if doc := msg.GetDocumentMessage(); doc != nil {
		return doc.GetCaption()
	}
	return ""
}
