package store

import (
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestGetTitleQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := NewSQLiteStoreFromDB(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT title FROM session_titles WHERE session_id = ?")).
		WithArgs("s1").
		WillReturnError(errors.New("disk I/O error"))

	if _, err := st.GetTitle("s1"); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveTitleUsesClock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	st := NewSQLiteStoreFromDB(db)
	st.now = func() time.Time { return at }

	mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO session_titles (session_id, title, updated_at)")).
		ExpectExec().
		WithArgs("s1", "Parking App", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.SaveTitle("s1", "Parking App"); err != nil {
		t.Fatalf("SaveTitle: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveThreadRollsBackOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := NewSQLiteStoreFromDB(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM thread_messages WHERE session_id = ?")).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO thread_messages")).
		ExpectExec().
		WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	err = st.SaveThread("s1", []Message{{ID: "1", Sender: SenderAssistant, Text: "hi", Input: TextInput{}}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetRoutingBadDepartments(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := NewSQLiteStoreFromDB(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, session_id, departments_json, notes, routed_at FROM routings WHERE session_id = ?")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "departments_json", "notes", "routed_at"}).
			AddRow("r1", "s1", "not-json", "", time.Now()))

	if _, err := st.GetRouting("s1"); err == nil {
		t.Fatalf("expected unmarshal error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
