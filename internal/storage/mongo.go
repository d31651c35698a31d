package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"offboarding-workflow/internal/domain"
)

type MongoStore struct {
	client      *mongo.Client
	submissions *mongo.Collection
	mappings    *mongo.Collection
	emails      *mongo.Collection
}

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:      client,
		submissions: db.Collection("submissions"),
		mappings:    db.Collection("leader_mappings"),
		emails:      db.Collection("email_log"),
	}
	if _, err := s.submissions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "resignation_status", Value: 1}, {Key: "updated_at", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}); err != nil {
		return nil, fmt.Errorf("create submission indexes: %w", err)
	}
	if _, err := s.emails.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "submission_id", Value: 1}, {Key: "created_at", Value: 1}},
	}); err != nil {
		return nil, fmt.Errorf("create email log index: %w", err)
	}
	return s, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

type submissionDoc struct {
	ID                   string       `bson:"_id"`
	EmployeeName         string       `bson:"employee_name"`
	EmployeeEmail        string       `bson:"employee_email"`
	TeamLeader           string       `bson:"team_leader"`
	JoiningDate          time.Time    `bson:"joining_date"`
	SubmissionDate       time.Time    `bson:"submission_date"`
	LastWorkingDay       time.Time    `bson:"last_working_day"`
	InProbation          bool         `bson:"in_probation"`
	NoticePeriodDays     int          `bson:"notice_period_days"`
	ResignationStatus    string       `bson:"resignation_status"`
	ExitInterviewStatus  string       `bson:"exit_interview_status"`
	TeamLeaderReply      *bool        `bson:"team_leader_reply"`
	TeamLeaderNotes      string       `bson:"team_leader_notes"`
	ChineseHeadReply     *bool        `bson:"chinese_head_reply"`
	ChineseHeadNotes     string       `bson:"chinese_head_notes"`
	ExitInterviewNotes   string       `bson:"exit_interview_notes"`
	ExitInterview        interviewDoc `bson:"exit_interview"`
	ITSupportReply       *bool        `bson:"it_support_reply"`
	ITSupportNotes       string       `bson:"it_support_notes"`
	Assets               assetsDoc    `bson:"assets"`
	MedicalCardCollected bool         `bson:"medical_card_collected"`
	VendorMailSent       bool         `bson:"vendor_mail_sent"`
	LastRemindedAt       *time.Time   `bson:"last_reminded_at"`
	CreatedAt            time.Time    `bson:"created_at"`
	UpdatedAt            time.Time    `bson:"updated_at"`
}

type interviewDoc struct {
	ScheduledAt *time.Time `bson:"scheduled_at"`
	Location    string     `bson:"location,omitempty"`
	Interviewer string     `bson:"interviewer,omitempty"`
	Type        string     `bson:"type,omitempty"`
	Feedback    string     `bson:"feedback,omitempty"`
	Rating      int        `bson:"rating,omitempty"`
	CompletedAt *time.Time `bson:"completed_at"`
}

type assetsDoc struct {
	Laptop     bool   `bson:"laptop"`
	Mouse      bool   `bson:"mouse"`
	Headphones bool   `bson:"headphones"`
	Others     string `bson:"others,omitempty"`
}

func toDoc(sub domain.Submission) submissionDoc {
	return submissionDoc{
		ID:                  sub.ID,
		EmployeeName:        sub.EmployeeName,
		EmployeeEmail:       sub.EmployeeEmail,
		TeamLeader:          sub.TeamLeader,
		JoiningDate:         sub.JoiningDate,
		SubmissionDate:      sub.SubmissionDate,
		LastWorkingDay:      sub.LastWorkingDay,
		InProbation:         sub.InProbation,
		NoticePeriodDays:    sub.NoticePeriodDays,
		ResignationStatus:   string(sub.ResignationStatus),
		ExitInterviewStatus: string(sub.ExitInterviewStatus),
		TeamLeaderReply:     replyPtr(sub.TeamLeaderReply),
		TeamLeaderNotes:     sub.TeamLeaderNotes,
		ChineseHeadReply:    replyPtr(sub.ChineseHeadReply),
		ChineseHeadNotes:    sub.ChineseHeadNotes,
		ExitInterviewNotes:  sub.ExitInterviewNotes,
		ExitInterview: interviewDoc{
			ScheduledAt: sub.ExitInterview.ScheduledAt,
			Location:    sub.ExitInterview.Location,
			Interviewer: sub.ExitInterview.Interviewer,
			Type:        string(sub.ExitInterview.Type),
			Feedback:    sub.ExitInterview.Feedback,
			Rating:      sub.ExitInterview.Rating,
			CompletedAt: sub.ExitInterview.CompletedAt,
		},
		ITSupportReply:       replyPtr(sub.ITSupportReply),
		ITSupportNotes:       sub.ITSupportNotes,
		Assets:               assetsDoc(sub.Assets),
		MedicalCardCollected: sub.MedicalCardCollected,
		VendorMailSent:       sub.VendorMailSent,
		LastRemindedAt:       sub.LastRemindedAt,
		CreatedAt:            sub.CreatedAt,
		UpdatedAt:            sub.UpdatedAt,
	}
}

func (d submissionDoc) toDomain() (domain.Submission, error) {
	status, err := domain.ParseResignationStatus(d.ResignationStatus)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("decode submission %s: %w", d.ID, err)
	}
	interview, err := domain.ParseExitInterviewStatus(d.ExitInterviewStatus)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("decode submission %s: %w", d.ID, err)
	}
	kind, err := domain.ParseInterviewType(d.ExitInterview.Type)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("decode submission %s: %w", d.ID, err)
	}
	return domain.Submission{
		ID:                  d.ID,
		EmployeeName:        d.EmployeeName,
		EmployeeEmail:       d.EmployeeEmail,
		TeamLeader:          d.TeamLeader,
		JoiningDate:         d.JoiningDate,
		SubmissionDate:      d.SubmissionDate,
		LastWorkingDay:      d.LastWorkingDay,
		InProbation:         d.InProbation,
		NoticePeriodDays:    d.NoticePeriodDays,
		ResignationStatus:   status,
		ExitInterviewStatus: interview,
		TeamLeaderReply:     replyFromPtr(d.TeamLeaderReply),
		TeamLeaderNotes:     d.TeamLeaderNotes,
		ChineseHeadReply:    replyFromPtr(d.ChineseHeadReply),
		ChineseHeadNotes:    d.ChineseHeadNotes,
		ExitInterviewNotes:  d.ExitInterviewNotes,
		ExitInterview: domain.ExitInterview{
			ScheduledAt: d.ExitInterview.ScheduledAt,
			Location:    d.ExitInterview.Location,
			Interviewer: d.ExitInterview.Interviewer,
			Type:        kind,
			Feedback:    d.ExitInterview.Feedback,
			Rating:      d.ExitInterview.Rating,
			CompletedAt: d.ExitInterview.CompletedAt,
		},
		ITSupportReply:       replyFromPtr(d.ITSupportReply),
		ITSupportNotes:       d.ITSupportNotes,
		Assets:               domain.AssetChecklist(d.Assets),
		MedicalCardCollected: d.MedicalCardCollected,
		VendorMailSent:       d.VendorMailSent,
		LastRemindedAt:       d.LastRemindedAt,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}, nil
}

func (s *MongoStore) Create(ctx context.Context, sub domain.Submission) error {
	if _, err := s.submissions.InsertOne(ctx, toDoc(sub)); err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (domain.Submission, error) {
	var doc submissionDoc
	err := s.submissions.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Submission{}, fmt.Errorf("get %s: %w", id, domain.ErrSubmissionNotFound)
	}
	if err != nil {
		return domain.Submission{}, fmt.Errorf("find submission: %w", err)
	}
	return doc.toDomain()
}

func (s *MongoStore) CompareAndSetStatus(ctx context.Context, expect domain.Precondition, next domain.Submission) (bool, error) {
	doc := toDoc(next)
	res, err := s.submissions.UpdateOne(ctx,
		bson.M{
			"_id":                   expect.ID,
			"resignation_status":    string(expect.ResignationStatus),
			"exit_interview_status": string(expect.ExitInterviewStatus),
		},
		bson.M{"$set": bson.M{
			"resignation_status":     doc.ResignationStatus,
			"exit_interview_status":  doc.ExitInterviewStatus,
			"team_leader_reply":      doc.TeamLeaderReply,
			"team_leader_notes":      doc.TeamLeaderNotes,
			"chinese_head_reply":     doc.ChineseHeadReply,
			"chinese_head_notes":     doc.ChineseHeadNotes,
			"exit_interview_notes":   doc.ExitInterviewNotes,
			"exit_interview":         doc.ExitInterview,
			"assets":                 doc.Assets,
			"it_support_reply":       doc.ITSupportReply,
			"it_support_notes":       doc.ITSupportNotes,
			"medical_card_collected": doc.MedicalCardCollected,
			"vendor_mail_sent":       doc.VendorMailSent,
			"updated_at":             doc.UpdatedAt,
		}},
	)
	if err != nil {
		return false, fmt.Errorf("compare and set status: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (s *MongoStore) List(ctx context.Context, filter domain.SubmissionFilter) ([]domain.Submission, error) {
	query := bson.M{}
	if len(filter.Statuses) > 0 {
		query["resignation_status"] = bson.M{"$in": statusStrings(filter.Statuses)}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	return s.find(ctx, query, opts)
}

func (s *MongoStore) ScanWaiting(ctx context.Context, statuses []domain.ResignationStatus) ([]domain.Submission, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}})
	return s.find(ctx, bson.M{"resignation_status": bson.M{"$in": statusStrings(statuses)}}, opts)
}

func (s *MongoStore) ConditionalSetLastReminded(ctx context.Context, id string, status domain.ResignationStatus, now time.Time, threshold time.Duration) (bool, error) {
	res, err := s.submissions.UpdateOne(ctx,
		bson.M{
			"_id":                id,
			"resignation_status": string(status),
			"$or": bson.A{
				bson.M{"last_reminded_at": nil},
				bson.M{"last_reminded_at": bson.M{"$lte": now.Add(-threshold)}},
			},
		},
		bson.M{"$set": bson.M{"last_reminded_at": now}},
	)
	if err != nil {
		return false, fmt.Errorf("set last reminded: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (s *MongoStore) find(ctx context.Context, query bson.M, opts *options.FindOptionsBuilder) ([]domain.Submission, error) {
	cur, err := s.submissions.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("find submissions: %w", err)
	}
	defer cur.Close(ctx)

	var docs []submissionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode submissions: %w", err)
	}
	out := make([]domain.Submission, 0, len(docs))
	for _, d := range docs {
		sub, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

type leaderMappingDoc struct {
	TeamLeaderName   string `bson:"_id"`
	TeamLeaderEmail  string `bson:"team_leader_email"`
	ChineseHeadName  string `bson:"chinese_head_name"`
	ChineseHeadEmail string `bson:"chinese_head_email"`
	CRM              string `bson:"crm"`
}

func (s *MongoStore) ReplaceLeaderMappings(ctx context.Context, mappings []domain.LeaderMapping) error {
	if _, err := s.mappings.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("clear leader mappings: %w", err)
	}
	if len(mappings) == 0 {
		return nil
	}
	docs := make([]any, 0, len(mappings))
	seen := make(map[string]struct{}, len(mappings))
	for _, m := range mappings {
		if _, dup := seen[m.TeamLeaderName]; dup {
			continue
		}
		seen[m.TeamLeaderName] = struct{}{}
		docs = append(docs, leaderMappingDoc(m))
	}
	if _, err := s.mappings.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert leader mappings: %w", err)
	}
	return nil
}

func (s *MongoStore) LeaderMappings(ctx context.Context) ([]domain.LeaderMapping, error) {
	cur, err := s.mappings.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find leader mappings: %w", err)
	}
	defer cur.Close(ctx)

	var docs []leaderMappingDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode leader mappings: %w", err)
	}
	out := make([]domain.LeaderMapping, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.LeaderMapping(d))
	}
	return out, nil
}

type emailLogDoc struct {
	SubmissionID string    `bson:"submission_id,omitempty"`
	Template     string    `bson:"template"`
	Recipient    string    `bson:"recipient"`
	Subject      string    `bson:"subject"`
	Status       string    `bson:"status"`
	Error        string    `bson:"error,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
}

func (s *MongoStore) RecordEmail(ctx context.Context, entry domain.EmailLogEntry) error {
	_, err := s.emails.InsertOne(ctx, emailLogDoc{
		SubmissionID: entry.SubmissionID,
		Template:     entry.Template,
		Recipient:    entry.Recipient,
		Subject:      entry.Subject,
		Status:       string(entry.Status),
		Error:        entry.Error,
		CreatedAt:    entry.CreatedAt,
	})
	return err
}

func (s *MongoStore) EmailLog(ctx context.Context, submissionID string) ([]domain.EmailLogEntry, error) {
	query := bson.M{}
	if submissionID != "" {
		query["submission_id"] = submissionID
	}
	cur, err := s.emails.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find email log: %w", err)
	}
	defer cur.Close(ctx)

	var docs []emailLogDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode email log: %w", err)
	}
	out := make([]domain.EmailLogEntry, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.EmailLogEntry{
			SubmissionID: d.SubmissionID,
			Template:     d.Template,
			Recipient:    d.Recipient,
			Subject:      d.Subject,
			Status:       domain.DeliveryStatus(d.Status),
			Error:        d.Error,
			CreatedAt:    d.CreatedAt,
		})
	}
	return out, nil
}

func replyPtr(r domain.Reply) *bool {
	approved, valid := r.Bool()
	if !valid {
		return nil
	}
	return &approved
}

func replyFromPtr(v *bool) domain.Reply {
	if v == nil {
		return domain.ReplyUnset
	}
	return domain.ReplyFromBool(true, *v)
}
