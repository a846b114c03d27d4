package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

const (
	QuestionSetCreated = "QuestionSetCreated"
	QuestionSetUpdated = "QuestionSetUpdated"
	QuestionSetDeleted = "QuestionSetDeleted"
	ScoreRecorded      = "ScoreRecorded"
)

type Event struct {
	Seq       int64
	SiteID    string
	Type      string
	Key       string // natural key, e.g. question set id
	DataJSON  string
	CreatedAt time.Time
}

type Repo struct {
	db     *sql.DB
	siteID string
}

func NewRepo(db *sql.DB, siteID string) *Repo {
	if siteID == "" {
		siteID = "local"
	}
	return &Repo{db: db, siteID: siteID}
}

// Append records typ for key with data encoded as JSON.
func (r *Repo) Append(ctx context.Context, typ, key string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		r.siteID, typ, key, string(b), time.Now().Unix())
	return err
}

// List returns events for key in append order.
func (r *Repo) List(ctx context.Context, key string) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, site_id, typ, key, data, created_at FROM event_log WHERE key=$1 ORDER BY seq`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var (
			e Event
			c int64
		)
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Key, &e.DataJSON, &c); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(c, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
