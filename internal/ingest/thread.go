package ingest

import (
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	"zapdesk/internal/data/store"
	"zapdesk/internal/utils/phone"
)

// Parent author labels.
const (
	AuthorSelf    = "self"
	AuthorContact = "contact"
)

// ThreadInfo is the denormalized snapshot of a quoted parent message.
// ParentID is only set when the parent was found in the store; the
// content/author snapshot is returned regardless.
type ThreadInfo struct {
	ParentID      int64
	ParentContent string
	ParentAuthor  string
}

// ThreadResolver links a reply message to its quoted parent.
type ThreadResolver struct {
	msgs *store.MessageStore
	log  waLog.Logger
}

// NewThreadResolver creates a ThreadResolver.
func NewThreadResolver(msgs *store.MessageStore, log waLog.Logger) *ThreadResolver {
	return &ThreadResolver{msgs: msgs, log: log.Sub("ThreadResolver")}
}

// Resolve returns the quoted-parent snapshot for a message, or nil when
// the message quotes nothing. Linking prefers the session's native message
// id carried in the quote context; matching by content is the fallback,
// and a miss still yields the snapshot without a ParentID.
func (r *ThreadResolver) Resolve(evt *events.Message, conv *store.Conversation) *ThreadInfo {
	ctx := contextInfoOf(evt.Message)
	if ctx == nil || ctx.GetStanzaID() == "" {
		return nil
	}

	info := &ThreadInfo{
		ParentContent: quotedContent(ctx.GetQuotedMessage()),
		ParentAuthor:  quotedAuthor(ctx.GetParticipant(), conv),
	}

	parent, err := r.msgs.FindByWAID(conv.ID, ctx.GetStanzaID())
	if err != nil {
		r.log.Errorf("Failed to look up quoted message %s: %v", ctx.GetStanzaID(), err)
		return info
	}
	if parent == nil && info.ParentContent != "" {
		parent, err = r.msgs.FindLatestByContent(conv.ID, info.ParentContent)
		if err != nil {
			r.log.Errorf("Failed content match for quoted message: %v", err)
			return info
		}
	}
	if parent != nil {
		info.ParentID = parent.ID
	}
	return info
}

// contextInfoOf returns the quote context of whichever payload carries it.
func contextInfoOf(msg *waE2E.Message) *waE2E.ContextInfo {
	if msg == nil {
		return nil
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetContextInfo()
	}
	if img := msg.GetImageMessage(); img != nil {
		return img.GetContextInfo()
	}
	if vid := msg.GetVideoMessage(); vid != nil {
		return vid.GetContextInfo()
	}
	if aud := msg.GetAudioMessage(); aud != nil {
		return aud.GetContextInfo()
	}
	if doc := msg.GetDocumentMessage(); doc != nil {
		return doc.GetContextInfo()
	}
	return nil
}

// quotedContent returns the quoted message's text, or a media placeholder.
func quotedContent(q *waE2E.Message) string {
	if q == nil {
		return ""
	}
	if txt := extractText(q); txt != "" {
		return txt
	}
	if p := mediaPayload(q); p != nil {
		return "Media: " + classifyKind(p.mime)
	}
	return ""
}

// quotedAuthor labels the quoted author relative to the conversation's
// contact: the participant JID matching the contact number means the
// contact wrote it, anything else was our own send.
func quotedAuthor(participant string, conv *store.Conversation) string {
	if participant == "" {
		return AuthorSelf
	}
	jid, err := types.ParseJID(participant)
	if err != nil {
		return AuthorSelf
	}
	if phone.Normalize(jid.User) == conv.ContactNumber {
		return AuthorContact
	}
	return AuthorSelf
}
