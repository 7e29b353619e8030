package store

import (
	"database/sql"
	"errors"
	"time"
)

// Conversation is a persisted thread of messages with a single contact,
// keyed by normalized phone number.
type Conversation struct {
	ID            int64
	ContactNumber string
	ContactName   string
	LastMessage   string
	LastMessageAt time.Time
	CreatedAt     time.Time
}

// ConversationStore handles conversation operations.
type ConversationStore struct {
	store *Store
}

// NewConversationStore creates a new ConversationStore.
func NewConversationStore(s *Store) *ConversationStore {
	return &ConversationStore{store: s}
}

// FindByNumber returns the conversation for a normalized contact number,
// or nil when none exists.
func (s *ConversationStore) FindByNumber(number string) (*Conversation, error) {
	row := s.store.QueryRow(`
		SELECT id, contact_number, contact_name, last_message, last_message_at, created_at
		FROM zapdesk_conversations WHERE contact_number = ?
	`, number)

	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return conv, err
}

// Create inserts a new conversation for a contact number.
func (s *ConversationStore) Create(number, name string) (*Conversation, error) {
	now := time.Now()
	res, err := s.store.Exec(`
		INSERT INTO zapdesk_conversations (contact_number, contact_name, created_at)
		VALUES (?, ?, ?)
	`, number, nullString(name), now.Unix())
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &Conversation{
		ID:            id,
		ContactNumber: number,
		ContactName:   name,
		CreatedAt:     now,
	}, nil
}

// UpdateLastMessage denormalizes the latest message onto the conversation.
func (s *ConversationStore) UpdateLastMessage(id int64, content string, at time.Time) error {
	_, err := s.store.Exec(`
		UPDATE zapdesk_conversations SET last_message = ?, last_message_at = ?
		WHERE id = ?
	`, nullString(content), at.Unix(), id)
	return err
}

// List returns all conversations ordered by most recent activity.
func (s *ConversationStore) List() ([]*Conversation, error) {
	rows, err := s.store.Query(`
		SELECT id, contact_number, contact_name, last_message, last_message_at, created_at
		FROM zapdesk_conversations
		ORDER BY last_message_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// PurgeWithoutNumber removes conversations with an empty contact number.
// Run as startup hygiene before the session initializes.
func (s *ConversationStore) PurgeWithoutNumber() (int64, error) {
	res, err := s.store.Exec(`
		DELETE FROM zapdesk_conversations
		WHERE contact_number IS NULL OR contact_number = ''
	`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var conv Conversation
	var name, lastMsg sql.NullString
	var lastMsgAt sql.NullInt64
	var createdAt int64

	err := row.Scan(&conv.ID, &conv.ContactNumber, &name, &lastMsg, &lastMsgAt, &createdAt)
	if err != nil {
		return nil, err
	}

	conv.ContactName = name.String
	conv.LastMessage = lastMsg.String
	if lastMsgAt.Valid {
		conv.LastMessageAt = time.Unix(lastMsgAt.Int64, 0)
	}
	conv.CreatedAt = time.Unix(createdAt, 0)
	return &conv, nil
}
