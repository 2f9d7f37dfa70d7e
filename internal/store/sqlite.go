package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore is the console's local mirror: thread snapshots, summaries,
// reviewer comments, department routings and generated project titles.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	// :memory: databases are per connection
	db.SetMaxOpenConns(1)

	store := NewSQLiteStoreFromDB(db)
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// NewSQLiteStoreFromDB wraps an already opened handle without touching the schema.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS thread_messages (
        session_id TEXT NOT NULL,
        message_id TEXT NOT NULL,
        position INTEGER NOT NULL,
        sender TEXT NOT NULL CHECK (sender IN ('assistant', 'respondent')),
        text TEXT NOT NULL,
        input_json TEXT, -- nil for respondent messages
        selected_option TEXT,
        custom_response TEXT,
        display_time TEXT,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        PRIMARY KEY (session_id, message_id)
    );

    CREATE TABLE IF NOT EXISTS summaries (
        session_id TEXT PRIMARY KEY,
        summary TEXT NOT NULL,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS summary_comments (
        id TEXT PRIMARY KEY, -- UUID
        session_id TEXT NOT NULL,
        position INTEGER NOT NULL,
        highlighted_text TEXT NOT NULL,
        comment TEXT NOT NULL,
        start_offset INTEGER NOT NULL,
        end_offset INTEGER NOT NULL
    );

    CREATE TABLE IF NOT EXISTS routings (
        id TEXT PRIMARY KEY, -- UUID
        session_id TEXT UNIQUE NOT NULL,
        departments_json TEXT NOT NULL,
        notes TEXT,
        routed_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS session_titles (
        session_id TEXT PRIMARY KEY,
        title TEXT NOT NULL,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// Thread methods

// SaveThread replaces the mirrored thread of a session with msgs.
func (s *SQLiteStore) SaveThread(sessionID string, msgs []Message) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin thread save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM thread_messages WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to clear thread: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO thread_messages
        (session_id, message_id, position, sender, text, input_json, selected_option, custom_response, display_time, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare thread insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range msgs {
		inputJSON, err := encodeInput(m.Input)
		if err != nil {
			return fmt.Errorf("failed to encode input of message %s: %w", m.ID, err)
		}
		if _, err := stmt.Exec(sessionID, m.ID, i, string(m.Sender), m.Text, inputJSON,
			nullString(m.SelectedOption), nullString(m.CustomResponse), m.Timestamp, m.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert message %s: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

// GetThread returns the mirrored thread in its original order; nil when nothing is stored.
func (s *SQLiteStore) GetThread(sessionID string) ([]Message, error) {
	rows, err := s.db.Query(`SELECT message_id, sender, text, input_json, selected_option, custom_response, display_time, created_at
        FROM thread_messages WHERE session_id = ? ORDER BY position ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query thread: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var sender string
		var inputJSON, selected, custom, display sql.NullString
		if err := rows.Scan(&m.ID, &sender, &m.Text, &inputJSON, &selected, &custom, &display, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan thread message: %w", err)
		}
		m.Sender = Sender(sender)
		m.SelectedOption = selected.String
		m.CustomResponse = custom.String
		m.Timestamp = display.String
		if inputJSON.Valid {
			in, err := decodeInput(inputJSON.String)
			if err != nil {
				return nil, fmt.Errorf("failed to decode input of message %s: %w", m.ID, err)
			}
			m.Input = in
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Summary methods

func (s *SQLiteStore) SaveSummary(sessionID, summary string) error {
	_, err := s.db.Exec(`INSERT INTO summaries (session_id, summary, updated_at) VALUES (?, ?, ?)
        ON CONFLICT(session_id) DO UPDATE SET summary = excluded.summary, updated_at = excluded.updated_at`,
		sessionID, summary, s.now())
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSummary(sessionID string) (*StoredSummary, error) {
	sum := StoredSummary{SessionID: sessionID}
	err := s.db.QueryRow("SELECT summary, updated_at FROM summaries WHERE session_id = ?", sessionID).Scan(&sum.Summary, &sum.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}
	return &sum, nil
}

// SummarizedSessionIDs lists every session with a stored summary.
func (s *SQLiteStore) SummarizedSessionIDs() ([]string, error) {
	rows, err := s.db.Query("SELECT session_id FROM summaries")
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan summary id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Comment methods

// ReplaceComments stores comments as the full comment list of a session.
func (s *SQLiteStore) ReplaceComments(sessionID string, comments []Comment) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin comment save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM summary_comments WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to clear comments: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO summary_comments
        (id, session_id, position, highlighted_text, comment, start_offset, end_offset) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare comment insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range comments {
		if _, err := stmt.Exec(c.ID, sessionID, i, c.HighlightedText, c.Comment, c.StartOffset, c.EndOffset); err != nil {
			return fmt.Errorf("failed to insert comment %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetComments(sessionID string) ([]Comment, error) {
	rows, err := s.db.Query(`SELECT id, highlighted_text, comment, start_offset, end_offset
        FROM summary_comments WHERE session_id = ? ORDER BY position ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.HighlightedText, &c.Comment, &c.StartOffset, &c.EndOffset); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// Routing methods

// SaveRouting upserts the routing record of r.SessionID.
func (s *SQLiteStore) SaveRouting(r Routing) error {
	deps, err := json.Marshal(r.Departments)
	if err != nil {
		return fmt.Errorf("failed to marshal departments: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO routings (id, session_id, departments_json, notes, routed_at) VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(session_id) DO UPDATE SET departments_json = excluded.departments_json, notes = excluded.notes, routed_at = excluded.routed_at`,
		r.ID, r.SessionID, string(deps), r.Notes, r.RoutedAt)
	if err != nil {
		return fmt.Errorf("failed to save routing: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetRouting(sessionID string) (*Routing, error) {
	var r Routing
	var deps string
	var notes sql.NullString
	err := s.db.QueryRow("SELECT id, session_id, departments_json, notes, routed_at FROM routings WHERE session_id = ?", sessionID).
		Scan(&r.ID, &r.SessionID, &deps, &notes, &r.RoutedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get routing: %w", err)
	}
	if err := json.Unmarshal([]byte(deps), &r.Departments); err != nil {
		return nil, fmt.Errorf("failed to unmarshal departments: %w", err)
	}
	r.Notes = notes.String
	return &r, nil
}

func (s *SQLiteStore) ListRoutings() ([]Routing, error) {
	rows, err := s.db.Query("SELECT id, session_id, departments_json, notes, routed_at FROM routings ORDER BY routed_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query routings: %w", err)
	}
	defer rows.Close()

	var routings []Routing
	for rows.Next() {
		var r Routing
		var deps string
		var notes sql.NullString
		if err := rows.Scan(&r.ID, &r.SessionID, &deps, &notes, &r.RoutedAt); err != nil {
			return nil, fmt.Errorf("failed to scan routing: %w", err)
		}
		if err := json.Unmarshal([]byte(deps), &r.Departments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal departments: %w", err)
		}
		r.Notes = notes.String
		routings = append(routings, r)
	}
	return routings, rows.Err()
}

// Title methods

func (s *SQLiteStore) SaveTitle(sessionID, title string) error {
	stmt, err := s.db.Prepare(`INSERT INTO session_titles (session_id, title, updated_at) VALUES (?, ?, ?)
        ON CONFLICT(session_id) DO UPDATE SET title = excluded.title, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare title upsert: %w", err)
	}
	defer stmt.Close()

	if _, err = stmt.Exec(sessionID, title, s.now()); err != nil {
		return fmt.Errorf("failed to execute title upsert: %w", err)
	}
	return nil
}

// GetTitle returns the generated title of a session, or nil if none was stored.
func (s *SQLiteStore) GetTitle(sessionID string) (*string, error) {
	var title string
	err := s.db.QueryRow("SELECT title FROM session_titles WHERE session_id = ?", sessionID).Scan(&title)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get title: %w", err)
	}
	return &title, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
