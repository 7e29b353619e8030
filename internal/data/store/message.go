package store

import (
	"database/sql"
	"errors"
	"time"
)

// Message kinds.
const (
	KindText     = "text"
	KindImage    = "image"
	KindVideo    = "video"
	KindAudio    = "audio"
	KindDocument = "document"
	KindFile     = "file"
)

// Message direction/status.
const (
	StatusReceived = "received"
	StatusSent     = "sent"
)

// Message is a persisted message. Immutable once inserted except for the
// conversation-level last-message denormalization held elsewhere.
type Message struct {
	ID             int64
	ConversationID int64
	WAMessageID    string
	Content        string
	Kind           string
	FileRef        string
	Timestamp      time.Time
	Status         string
	ParentID       int64
	ParentContent  string
	ParentAuthor   string
	CreatedAt      time.Time
}

// MessageStore handles message operations.
type MessageStore struct {
	store *Store
}

// NewMessageStore creates a new MessageStore.
func NewMessageStore(s *Store) *MessageStore {
	return &MessageStore{store: s}
}

// Insert persists a message and fills in its assigned ID.
func (s *MessageStore) Insert(m *Message) error {
	now := time.Now()
	res, err := s.store.Exec(`
		INSERT INTO zapdesk_messages (
			conversation_id, wa_message_id, content, kind, file_ref,
			timestamp, status, parent_id, parent_content, parent_author, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.ConversationID, nullString(m.WAMessageID), nullString(m.Content), m.Kind,
		nullString(m.FileRef), m.Timestamp.Unix(), m.Status,
		nullInt64(m.ParentID), nullString(m.ParentContent), nullString(m.ParentAuthor),
		now.Unix(),
	)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = id
	m.CreatedAt = now
	return nil
}

// GetByID returns a message by its row ID, or nil when not found.
func (s *MessageStore) GetByID(id int64) (*Message, error) {
	row := s.store.QueryRow(selectMessage+` WHERE id = ?`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return msg, err
}

// FindByWAID returns the message in a conversation carrying the session's
// native message id, or nil when not found.
func (s *MessageStore) FindByWAID(conversationID int64, waID string) (*Message, error) {
	if waID == "" {
		return nil, nil
	}
	row := s.store.QueryRow(selectMessage+`
		WHERE conversation_id = ? AND wa_message_id = ?
		ORDER BY timestamp DESC LIMIT 1
	`, conversationID, waID)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return msg, err
}

// FindByConversationAndTimestamp returns the message in a conversation
// matching both content and timestamp exactly, or nil when not found.
func (s *MessageStore) FindByConversationAndTimestamp(conversationID int64, content string, at time.Time) (*Message, error) {
	row := s.store.QueryRow(selectMessage+`
		WHERE conversation_id = ? AND content = ? AND timestamp = ?
		ORDER BY id DESC LIMIT 1
	`, conversationID, content, at.Unix())
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return msg, err
}

// FindLatestByContent returns the most recent message in a conversation
// with exactly the given content, or nil when not found.
func (s *MessageStore) FindLatestByContent(conversationID int64, content string) (*Message, error) {
	row := s.store.QueryRow(selectMessage+`
		WHERE conversation_id = ? AND content = ?
		ORDER BY timestamp DESC, id DESC LIMIT 1
	`, conversationID, content)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return msg, err
}

// ListRecent returns up to limit messages of a conversation, newest first.
func (s *MessageStore) ListRecent(conversationID int64, limit int) ([]*Message, error) {
	rows, err := s.store.Query(selectMessage+`
		WHERE conversation_id = ?
		ORDER BY timestamp DESC, id DESC LIMIT ?
	`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// CountInConversationExcluding counts a conversation's messages other than
// the given one. Used for first-message rule evaluation.
func (s *MessageStore) CountInConversationExcluding(conversationID, messageID int64) (int, error) {
	var n int
	err := s.store.QueryRow(`
		SELECT COUNT(*) FROM zapdesk_messages
		WHERE conversation_id = ? AND id != ?
	`, conversationID, messageID).Scan(&n)
	return n, err
}

const selectMessage = `
	SELECT id, conversation_id, wa_message_id, content, kind, file_ref,
		timestamp, status, parent_id, parent_content, parent_author, created_at
	FROM zapdesk_messages
`

func scanMessage(row rowScanner) (*Message, error) {
	var m Message
	var waID, content, fileRef, parentContent, parentAuthor sql.NullString
	var parentID sql.NullInt64
	var ts, createdAt int64

	err := row.Scan(&m.ID, &m.ConversationID, &waID, &content, &m.Kind, &fileRef,
		&ts, &m.Status, &parentID, &parentContent, &parentAuthor, &createdAt)
	if err != nil {
		return nil, err
	}

	m.WAMessageID = waID.String
	m.Content = content.String
	m.FileRef = fileRef.String
	m.Timestamp = time.Unix(ts, 0)
	m.ParentID = parentID.Int64
	m.ParentContent = parentContent.String
	m.ParentAuthor = parentAuthor.String
	m.CreatedAt = time.Unix(createdAt, 0)
	return &m, nil
}
