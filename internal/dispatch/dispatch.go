// Package dispatch sends text and media through the live session,
// including reply-aware sends. Every operation returns a uniform Result;
// callers branch on it instead of handling errors.
package dispatch

import (
	"context"
	"fmt"
	"strings"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"zapdesk/internal/data/store"
	"zapdesk/internal/session"
	"zapdesk/internal/utils/phone"
)

// replyWindow bounds how many recent stored messages are scanned when the
// quoted parent has no native id.
const replyWindow = 100

// Result is the uniform outcome of a dispatch operation.
type Result struct {
	Success bool   `json:"success"`
	Data    string `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(data string) Result {
	return Result{Success: true, Data: data}
}

func fail(format string, args ...interface{}) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Connection is the slice of the connection manager the dispatcher needs.
type Connection interface {
	State() session.State
	Session() session.Session
}

// File is an outbound media payload.
type File struct {
	Data     []byte
	MimeType string
	Filename string
}

// Dispatcher sends messages through the session.
type Dispatcher struct {
	conn Connection
	msgs *store.MessageStore
	log  waLog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(conn Connection, msgs *store.MessageStore, log waLog.Logger) *Dispatcher {
	return &Dispatcher{conn: conn, msgs: msgs, log: log.Sub("Dispatcher")}
}

// Send dispatches plain text to a contact number.
func (d *Dispatcher) Send(ctx context.Context, number, content string) Result {
	sess, res := d.connected()
	if sess == nil {
		return res
	}

	msg := &waE2E.Message{Conversation: proto.String(content)}
	resp, err := sess.SendMessage(ctx, phone.ToJID(number), msg)
	if err != nil {
		d.log.Errorf("Failed to send to %s: %v", number, err)
		return fail("send failed: %v", err)
	}
	return ok(string(resp.ID))
}

// SendReply dispatches text as a native reply to a stored parent message.
// An unresolvable parent degrades to a plain send, never a failure.
func (d *Dispatcher) SendReply(ctx context.Context, number, content string, parentMessageID int64) Result {
	sess, res := d.connected()
	if sess == nil {
		return res
	}

	parent := d.resolveParent(parentMessageID)
	if parent == nil {
		return d.Send(ctx, number, content)
	}

	participant := phone.ToJID(number)
	if parent.Status == store.StatusSent {
		participant = sess.OwnJID()
	}

	msg := &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text: proto.String(content),
			ContextInfo: &waE2E.ContextInfo{
				StanzaID:      proto.String(parent.WAMessageID),
				Participant:   proto.String(participant.String()),
				QuotedMessage: &waE2E.Message{Conversation: proto.String(parent.Content)},
			},
		},
	}

	resp, err := sess.SendMessage(ctx, phone.ToJID(number), msg)
	if err != nil {
		d.log.Errorf("Failed to send reply to %s: %v", number, err)
		return fail("send failed: %v", err)
	}
	return ok(string(resp.ID))
}

// SendMedia uploads a file and dispatches it with an optional caption.
func (d *Dispatcher) SendMedia(ctx context.Context, number string, file File, caption string) Result {
	sess, res := d.connected()
	if sess == nil {
		return res
	}
	if len(file.Data) == 0 {
		return fail("empty media payload")
	}

	uploaded, err := sess.Upload(ctx, file.Data, uploadType(file.MimeType))
	if err != nil {
		d.log.Errorf("Failed to upload media for %s: %v", number, err)
		return fail("upload failed: %v", err)
	}

	msg := buildMediaMessage(file, caption, &uploaded)
	resp, err := sess.SendMessage(ctx, phone.ToJID(number), msg)
	if err != nil {
		d.log.Errorf("Failed to send media to %s: %v", number, err)
		return fail("send failed: %v", err)
	}
	return ok(string(resp.ID))
}

// connected enforces the send precondition. Returns the session when the
// manager reports connected, otherwise a nil session plus a failure.
func (d *Dispatcher) connected() (session.Session, Result) {
	if d.conn.State() != session.StateConnected {
		return nil, fail("not connected")
	}
	sess := d.conn.Session()
	if sess == nil {
		return nil, fail("not connected")
	}
	return sess, Result{}
}

// resolveParent loads a parent message usable for a native reply. A
// parent whose native id is missing is searched for in a bounded window
// of the conversation's recent history by content and timestamp.
func (d *Dispatcher) resolveParent(parentMessageID int64) *store.Message {
	if parentMessageID == 0 {
		return nil
	}
	parent, err := d.msgs.GetByID(parentMessageID)
	if err != nil {
		d.log.Errorf("Failed to load parent message %d: %v", parentMessageID, err)
		return nil
	}
	if parent == nil {
		return nil
	}
	if parent.WAMessageID != "" {
		return parent
	}

	recent, err := d.msgs.ListRecent(parent.ConversationID, replyWindow)
	if err != nil {
		d.log.Errorf("Failed to scan reply window: %v", err)
		return nil
	}
	for _, m := range recent {
		if m.WAMessageID != "" && m.Content == parent.Content && m.Timestamp.Equal(parent.Timestamp) {
			return m
		}
	}
	return nil
}

func uploadType(mime string) whatsmeow.MediaType {
	switch classifyKind(mime) {
	case store.KindImage:
		return whatsmeow.MediaImage
	case store.KindVideo:
		return whatsmeow.MediaVideo
	case store.KindAudio:
		return whatsmeow.MediaAudio
	default:
		return whatsmeow.MediaDocument
	}
}

func buildMediaMessage(file File, caption string, up *whatsmeow.UploadResponse) *waE2E.Message {
	switch classifyKind(file.MimeType) {
	case store.KindImage:
		img := &waE2E.ImageMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(file.MimeType),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}
		if caption != "" {
			img.Caption = proto.String(caption)
		}
		return &waE2E.Message{ImageMessage: img}

	case store.KindVideo:
		vid := &waE2E.VideoMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(file.MimeType),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}
		if caption != "" {
			vid.Caption = proto.String(caption)
		}
		return &waE2E.Message{VideoMessage: vid}

	case store.KindAudio:
		return &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(file.MimeType),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}}

	default:
		doc := &waE2E.DocumentMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(file.MimeType),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			FileName:      proto.String(file.Filename),
		}
		if caption != "" {
			doc.Caption = proto.String(caption)
		}
		return &waE2E.Message{DocumentMessage: doc}
	}
}

// classifyKind mirrors the ingest-side MIME classification for outbound
// payloads.
func classifyKind(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return store.KindImage
	case strings.HasPrefix(mime, "video/"):
		return store.KindVideo
	case strings.HasPrefix(mime, "audio/"):
		return store.KindAudio
	case mime == "application/pdf":
		return store.KindDocument
	default:
		return store.KindFile
	}
}
