package store

// schema contains the app-specific table definitions.
//
// Tables:
//   - zapdesk_conversations - one row per contact number
//   - zapdesk_messages - all ingested messages, both directions
//   - zapdesk_automation_rules - admin-managed auto-reply rules
//   - zapdesk_automation_logs - one row per triggered rule evaluation
const schema = `
CREATE TABLE IF NOT EXISTS zapdesk_conversations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    contact_number TEXT NOT NULL UNIQUE,
    contact_name TEXT,
    last_message TEXT,
    last_message_at INTEGER,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_zapdesk_conversations_number
    ON zapdesk_conversations(contact_number);

CREATE TABLE IF NOT EXISTS zapdesk_messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id INTEGER NOT NULL REFERENCES zapdesk_conversations(id),
    wa_message_id TEXT,
    content TEXT,
    kind TEXT NOT NULL,
    file_ref TEXT,
    timestamp INTEGER NOT NULL,
    status TEXT NOT NULL,
    parent_id INTEGER,
    parent_content TEXT,
    parent_author TEXT,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_zapdesk_messages_conversation
    ON zapdesk_messages(conversation_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_zapdesk_messages_wa_id
    ON zapdesk_messages(conversation_id, wa_message_id);

CREATE TABLE IF NOT EXISTS zapdesk_automation_rules (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    trigger_type TEXT NOT NULL,
    keyword TEXT,
    window_start TEXT,
    window_end TEXT,
    action TEXT NOT NULL,
    template TEXT,
    active INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS zapdesk_automation_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    rule_id INTEGER NOT NULL REFERENCES zapdesk_automation_rules(id),
    conversation_id INTEGER NOT NULL REFERENCES zapdesk_conversations(id),
    message_id INTEGER NOT NULL REFERENCES zapdesk_messages(id),
    status TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_zapdesk_automation_logs_message
    ON zapdesk_automation_logs(message_id);
`
