package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"jericho/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// on runs against tx when given, else the pool.
func (r Repo) on(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

func scanGoal(row interface{ Scan(...any) error }) (domain.Goal, error) {
	var g domain.Goal
	var deadline sql.NullString
	err := row.Scan(&g.ID, &g.Text, &deadline, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return g, ErrNotFound
	}
	g.Deadline = deadline.String
	return g, err
}

func (r Repo) InsertGoal(ctx context.Context, tx *sql.Tx, g domain.Goal) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO goals(id,text,deadline,created_at) VALUES (?,?,?,?)
ON CONFLICT(id) DO UPDATE SET text=excluded.text, deadline=excluded.deadline`,
		g.ID, g.Text, nullable(g.Deadline), g.CreatedAt)
	return err
}

func (r Repo) GetGoal(ctx context.Context, id string) (domain.Goal, error) {
	return scanGoal(r.DB.QueryRowContext(ctx, `SELECT id,text,deadline,created_at FROM goals WHERE id=?`, id))
}

func (r Repo) ListGoals(ctx context.Context) ([]domain.Goal, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,text,deadline,created_at FROM goals ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

const blockColumns = `id,COALESCE(goal_id,''),start_at,end_at,COALESCE(practice,''),COALESCE(category,''),status,COALESCE(label,'')`

func scanBlock(row interface{ Scan(...any) error }) (domain.Block, error) {
	var b domain.Block
	err := row.Scan(&b.ID, &b.GoalID, &b.Start, &b.End, &b.Practice, &b.Category, &b.Status, &b.Label)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	return b, err
}

func (r Repo) InsertBlock(ctx context.Context, tx *sql.Tx, b domain.Block, createdAt string) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO blocks(id,goal_id,start_at,end_at,practice,category,status,label,created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		b.ID, nullable(b.GoalID), b.Start, b.End, nullable(b.Practice), nullable(b.Category), b.Status, nullable(b.Label), createdAt)
	return err
}

func (r Repo) GetBlock(ctx context.Context, id string) (domain.Block, error) {
	return scanBlock(r.DB.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE id=?`, id))
}

// BlockUpdate changes only the non-nil fields.
type BlockUpdate struct {
	Status   *string
	Practice *string
	Label    *string
}

func (r Repo) UpdateBlock(ctx context.Context, tx *sql.Tx, id string, u BlockUpdate) error {
	var (
		fields []string
		args   []any
	)
	if u.Status != nil {
		fields = append(fields, "status=?")
		args = append(args, *u.Status)
	}
	if u.Practice != nil {
		fields = append(fields, "practice=?")
		args = append(args, nullable(*u.Practice))
	}
	if u.Label != nil {
		fields = append(fields, "label=?")
		args = append(args, nullable(*u.Label))
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := r.on(tx).ExecContext(ctx, fmt.Sprintf(`UPDATE blocks SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// BlockFilters narrow ListBlocks. Times compare as stored RFC3339 strings.
type BlockFilters struct {
	GoalID      string
	StartsFrom  string
	StartsUntil string
	Status      string
}

func (r Repo) ListBlocks(ctx context.Context, f BlockFilters) ([]domain.Block, error) {
	var (
		clauses []string
		args    []any
	)
	if f.GoalID != "" {
		clauses = append(clauses, "goal_id=?")
		args = append(args, f.GoalID)
	}
	if f.StartsFrom != "" {
		clauses = append(clauses, "start_at>=?")
		args = append(args, f.StartsFrom)
	}
	if f.StartsUntil != "" {
		clauses = append(clauses, "start_at<?")
		args = append(args, f.StartsUntil)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	query := `SELECT ` + blockColumns + ` FROM blocks`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY start_at, id"
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

// Workspace state keys.
const (
	StateActiveGoal  = "active_goal_id"
	StateActiveCycle = "active_cycle_id"
	StateDirective   = "active_directive"
)

// PlanStartKey is the state key holding the first day of a goal's
// suggestion plan.
func PlanStartKey(goalID string) string {
	return "plan_start:" + goalID
}

func (r Repo) SetState(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO workspace_state(key,value) VALUES (?,?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}

func (r Repo) GetState(ctx context.Context, key string) (string, error) {
	var v string
	err := r.DB.QueryRowContext(ctx, `SELECT value FROM workspace_state WHERE key=?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return v, err
}

func (r Repo) ClearState(ctx context.Context, tx *sql.Tx, key string) error {
	_, err := r.on(tx).ExecContext(ctx, `DELETE FROM workspace_state WHERE key=?`, key)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
