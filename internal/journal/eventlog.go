package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/quizpractice/internal/logging"
	"github.com/mind-engage/quizpractice/internal/quiz"
)

type Event struct {
	Seq       int64  `json:"seq"`
	SiteID    string `json:"siteId"`
	Type      string `json:"type"`
	Ref       string `json:"ref"`
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"createdAt"`
}

type EventRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db, now: time.Now} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	if e.SiteID == "" {
		e.SiteID = "local"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, ref, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.SiteID, e.Type, e.Ref, e.DataJSON, r.now().Unix())
	return err
}

// Since returns up to limit events with seq > after, oldest first.
func (r *EventRepo) Since(ctx context.Context, after int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, site_id, typ, ref, data, created_at
		   FROM event_log WHERE seq > $1 ORDER BY seq LIMIT $2`, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Ref, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Notifier appends every session notice to the event log. Failures are logged
// and never reach the session.
type Notifier struct {
	Repo    *EventRepo
	SiteID  string
	Timeout time.Duration
	Log     *zap.Logger
}

func (n Notifier) Notify(ctx context.Context, notice quiz.Notice) {
	data, err := json.Marshal(notice)
	if err != nil {
		return
	}
	if n.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), n.Timeout)
		defer cancel()
	}
	err = n.Repo.Append(ctx, Event{
		SiteID:   n.SiteID,
		Type:     string(notice.Kind),
		Ref:      string(notice.ExamType),
		DataJSON: string(data),
	})
	if err != nil {
		logging.OrNop(n.Log).Warn("journal append failed", zap.String("kind", string(notice.Kind)), zap.Error(err))
	}
}
