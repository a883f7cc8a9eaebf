package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ignite/mailflow/internal/domain"
	"github.com/ignite/mailflow/internal/service/schedule"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return db, mock, func() { db.Close() }
}

func campaignRows(id string, status string, at *time.Time) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "subject", "from_name", "from_email",
		"html_content", "plain_content",
		"status", "scheduled_at", "last_error", "started_at", "completed_at",
		"created_at", "updated_at",
	}).AddRow(id, "Launch", "Hello", "Acme", "news@acme.test",
		"<p>hi</p>", "hi",
		status, at, nil, nil, nil, now, now)
}

func TestCampaignRepo_Schedule(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	at := time.Now().Add(time.Hour)
	mock.ExpectExec("UPDATE mailing_campaigns").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT(.|\n)*FROM mailing_campaigns").
		WillReturnRows(campaignRows("c1", "scheduled", &at))

	repo := NewCampaignRepo(db)
	c, err := repo.Schedule(context.Background(), "c1", at, domain.CampaignDraft, domain.CampaignScheduled)
	if err != nil {
		t.Fatalf("Schedule() error: %v", err)
	}
	if c.Status != domain.CampaignScheduled {
		t.Errorf("status = %s, want scheduled", c.Status)
	}
}

func TestCampaignRepo_Schedule_WrongState(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	// Conditional update touches nothing; the status probe explains why.
	mock.ExpectExec("UPDATE mailing_campaigns").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM mailing_campaigns").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("sending"))

	repo := NewCampaignRepo(db)
	_, err := repo.Schedule(context.Background(), "c1", time.Now().Add(time.Hour), domain.CampaignDraft, domain.CampaignScheduled)
	if !errors.Is(err, schedule.ErrInvalidState) {
		t.Errorf("error = %v, want ErrInvalidState", err)
	}
}

func TestCampaignRepo_Schedule_NotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE mailing_campaigns").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM mailing_campaigns").
		WillReturnError(sql.ErrNoRows)

	repo := NewCampaignRepo(db)
	_, err := repo.Schedule(context.Background(), "missing", time.Now().Add(time.Hour), domain.CampaignDraft)
	if !errors.Is(err, schedule.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestCampaignRepo_Cancel(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE mailing_campaigns").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT(.|\n)*FROM mailing_campaigns").
		WillReturnRows(campaignRows("c1", "draft", nil))

	repo := NewCampaignRepo(db)
	c, err := repo.Cancel(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	if c.Status != domain.CampaignDraft {
		t.Errorf("status = %s, want draft", c.Status)
	}
	if c.ScheduledAt != nil {
		t.Errorf("ScheduledAt = %v, want nil", c.ScheduledAt)
	}
}

func TestCampaignRepo_Get_NotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT(.|\n)*FROM mailing_campaigns").
		WillReturnError(sql.ErrNoRows)

	repo := NewCampaignRepo(db)
	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, schedule.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
