package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"offboarding-workflow/internal/domain"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const submissionColumns = `
	id, employee_name, employee_email, team_leader,
	joining_date, submission_date, last_working_day, in_probation, notice_period_days,
	resignation_status, exit_interview_status,
	team_leader_reply, team_leader_notes, chinese_head_reply, chinese_head_notes,
	exit_interview_notes, it_support_reply, it_support_notes,
	medical_card_collected, vendor_mail_sent, last_reminded_at, created_at, updated_at,
	interview_scheduled_at, interview_location, interview_interviewer, interview_type,
	interview_feedback, interview_rating, interview_completed_at,
	asset_laptop, asset_mouse, asset_headphones, asset_others`

func (s *PostgresStore) Create(ctx context.Context, sub domain.Submission) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (`+submissionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23,
		        $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34)
	`,
		sub.ID, sub.EmployeeName, sub.EmployeeEmail, sub.TeamLeader,
		nullDate(sub.JoiningDate), sub.SubmissionDate, nullDate(sub.LastWorkingDay), sub.InProbation, sub.NoticePeriodDays,
		sub.ResignationStatus, sub.ExitInterviewStatus,
		replyValue(sub.TeamLeaderReply), sub.TeamLeaderNotes, replyValue(sub.ChineseHeadReply), sub.ChineseHeadNotes,
		sub.ExitInterviewNotes, replyValue(sub.ITSupportReply), sub.ITSupportNotes,
		sub.MedicalCardCollected, sub.VendorMailSent, sub.LastRemindedAt, sub.CreatedAt, sub.UpdatedAt,
		sub.ExitInterview.ScheduledAt, sub.ExitInterview.Location, sub.ExitInterview.Interviewer, string(sub.ExitInterview.Type),
		sub.ExitInterview.Feedback, sub.ExitInterview.Rating, sub.ExitInterview.CompletedAt,
		sub.Assets.Laptop, sub.Assets.Mouse, sub.Assets.Headphones, sub.Assets.Others,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (domain.Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Submission{}, fmt.Errorf("get %s: %w", id, domain.ErrSubmissionNotFound)
	}
	if err != nil {
		return domain.Submission{}, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

// CompareAndSetStatus writes the mutable workflow columns of next only while the
// row still shows the expected statuses. It reports whether the row changed.
func (s *PostgresStore) CompareAndSetStatus(ctx context.Context, expect domain.Precondition, next domain.Submission) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE submissions
		SET resignation_status = $4,
		    exit_interview_status = $5,
		    team_leader_reply = $6,
		    team_leader_notes = $7,
		    chinese_head_reply = $8,
		    chinese_head_notes = $9,
		    exit_interview_notes = $10,
		    it_support_reply = $11,
		    it_support_notes = $12,
		    medical_card_collected = $13,
		    vendor_mail_sent = $14,
		    updated_at = $15,
		    interview_scheduled_at = $16,
		    interview_location = $17,
		    interview_interviewer = $18,
		    interview_type = $19,
		    interview_feedback = $20,
		    interview_rating = $21,
		    interview_completed_at = $22,
		    asset_laptop = $23,
		    asset_mouse = $24,
		    asset_headphones = $25,
		    asset_others = $26
		WHERE id = $1 AND resignation_status = $2 AND exit_interview_status = $3
	`,
		expect.ID, expect.ResignationStatus, expect.ExitInterviewStatus,
		next.ResignationStatus, next.ExitInterviewStatus,
		replyValue(next.TeamLeaderReply), next.TeamLeaderNotes,
		replyValue(next.ChineseHeadReply), next.ChineseHeadNotes,
		next.ExitInterviewNotes,
		replyValue(next.ITSupportReply), next.ITSupportNotes,
		next.MedicalCardCollected, next.VendorMailSent, next.UpdatedAt,
		next.ExitInterview.ScheduledAt, next.ExitInterview.Location, next.ExitInterview.Interviewer, string(next.ExitInterview.Type),
		next.ExitInterview.Feedback, next.ExitInterview.Rating, next.ExitInterview.CompletedAt,
		next.Assets.Laptop, next.Assets.Mouse, next.Assets.Headphones, next.Assets.Others,
	)
	if err != nil {
		return false, fmt.Errorf("compare and set status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("compare and set status: %w", err)
	}
	return n == 1, nil
}

func (s *PostgresStore) List(ctx context.Context, filter domain.SubmissionFilter) ([]domain.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions`
	args := make([]any, 0, 2)
	if len(filter.Statuses) > 0 {
		args = append(args, pq.Array(statusStrings(filter.Statuses)))
		query += fmt.Sprintf(` WHERE resignation_status = ANY($%d)`, len(args))
	}
	query += ` ORDER BY created_at DESC, id ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	return s.querySubmissions(ctx, query, args...)
}

func (s *PostgresStore) ScanWaiting(ctx context.Context, statuses []domain.ResignationStatus) ([]domain.Submission, error) {
	return s.querySubmissions(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		WHERE resignation_status = ANY($1)
		ORDER BY updated_at ASC
	`, pq.Array(statusStrings(statuses)))
}

// ConditionalSetLastReminded claims the reminder slot for id. Concurrent
// schedulers race on the same row and only one sees an affected row.
func (s *PostgresStore) ConditionalSetLastReminded(ctx context.Context, id string, status domain.ResignationStatus, now time.Time, threshold time.Duration) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE submissions
		SET last_reminded_at = $3
		WHERE id = $1
		  AND resignation_status = $2
		  AND (last_reminded_at IS NULL OR last_reminded_at <= $4)
	`, id, status, now, now.Add(-threshold))
	if err != nil {
		return false, fmt.Errorf("set last reminded: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set last reminded: %w", err)
	}
	return n == 1, nil
}

func (s *PostgresStore) ReplaceLeaderMappings(ctx context.Context, mappings []domain.LeaderMapping) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM leader_mappings`); err != nil {
		return fmt.Errorf("clear leader mappings: %w", err)
	}
	for _, m := range mappings {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO leader_mappings (team_leader_name, team_leader_email, chinese_head_name, chinese_head_email, crm)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (team_leader_name) DO UPDATE SET
				team_leader_email = EXCLUDED.team_leader_email,
				chinese_head_name = EXCLUDED.chinese_head_name,
				chinese_head_email = EXCLUDED.chinese_head_email,
				crm = EXCLUDED.crm
		`, m.TeamLeaderName, m.TeamLeaderEmail, m.ChineseHeadName, m.ChineseHeadEmail, m.CRM)
		if err != nil {
			return fmt.Errorf("insert leader mapping %q: %w", m.TeamLeaderName, err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) LeaderMappings(ctx context.Context) ([]domain.LeaderMapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT team_leader_name, team_leader_email, chinese_head_name, chinese_head_email, crm
		FROM leader_mappings
		ORDER BY team_leader_name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.LeaderMapping, 0)
	for rows.Next() {
		var m domain.LeaderMapping
		if err := rows.Scan(&m.TeamLeaderName, &m.TeamLeaderEmail, &m.ChineseHeadName, &m.ChineseHeadEmail, &m.CRM); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RecordEmail(ctx context.Context, entry domain.EmailLogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO email_log (submission_id, template, recipient, subject, status, error, created_at)
		VALUES (NULLIF($1, ''), $2, $3, $4, $5, $6, $7)
	`, entry.SubmissionID, entry.Template, entry.Recipient, entry.Subject, entry.Status, entry.Error, entry.CreatedAt)
	return err
}

func (s *PostgresStore) EmailLog(ctx context.Context, submissionID string) ([]domain.EmailLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(submission_id, ''), template, recipient, subject, status, error, created_at
		FROM email_log
		WHERE $1 = '' OR submission_id = $1
		ORDER BY created_at ASC, id ASC
	`, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.EmailLogEntry, 0)
	for rows.Next() {
		var e domain.EmailLogEntry
		var status string
		if err := rows.Scan(&e.SubmissionID, &e.Template, &e.Recipient, &e.Subject, &status, &e.Error, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Status = domain.DeliveryStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) querySubmissions(ctx context.Context, query string, args ...any) ([]domain.Submission, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Submission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (domain.Submission, error) {
	var sub domain.Submission
	var joining, lastDay, lastReminded, interviewAt, interviewDone sql.NullTime
	var interviewType string
	var leaderReply, headReply, itReply sql.NullBool
	if err := row.Scan(
		&sub.ID,
		&sub.EmployeeName,
		&sub.EmployeeEmail,
		&sub.TeamLeader,
		&joining,
		&sub.SubmissionDate,
		&lastDay,
		&sub.InProbation,
		&sub.NoticePeriodDays,
		&sub.ResignationStatus,
		&sub.ExitInterviewStatus,
		&leaderReply,
		&sub.TeamLeaderNotes,
		&headReply,
		&sub.ChineseHeadNotes,
		&sub.ExitInterviewNotes,
		&itReply,
		&sub.ITSupportNotes,
		&sub.MedicalCardCollected,
		&sub.VendorMailSent,
		&lastReminded,
		&sub.CreatedAt,
		&sub.UpdatedAt,
		&interviewAt,
		&sub.ExitInterview.Location,
		&sub.ExitInterview.Interviewer,
		&interviewType,
		&sub.ExitInterview.Feedback,
		&sub.ExitInterview.Rating,
		&interviewDone,
		&sub.Assets.Laptop,
		&sub.Assets.Mouse,
		&sub.Assets.Headphones,
		&sub.Assets.Others,
	); err != nil {
		return domain.Submission{}, err
	}
	sub.JoiningDate = joining.Time
	sub.LastWorkingDay = lastDay.Time
	sub.TeamLeaderReply = domain.ReplyFromBool(leaderReply.Valid, leaderReply.Bool)
	sub.ChineseHeadReply = domain.ReplyFromBool(headReply.Valid, headReply.Bool)
	sub.ITSupportReply = domain.ReplyFromBool(itReply.Valid, itReply.Bool)
	sub.LastRemindedAt = timePtr(lastReminded)
	sub.ExitInterview.ScheduledAt = timePtr(interviewAt)
	sub.ExitInterview.CompletedAt = timePtr(interviewDone)
	kind, err := domain.ParseInterviewType(interviewType)
	if err != nil {
		return domain.Submission{}, err
	}
	sub.ExitInterview.Type = kind
	return sub, nil
}

func replyValue(r domain.Reply) sql.NullBool {
	approved, valid := r.Bool()
	return sql.NullBool{Bool: approved, Valid: valid}
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullDate(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func statusStrings(statuses []domain.ResignationStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, strings.TrimSpace(string(s)))
	}
	return out
}
