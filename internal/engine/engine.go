package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jericho/internal/config"
	"jericho/internal/daykey"
	"jericho/internal/domain"
	"jericho/internal/events"
	"jericho/internal/goalprofile"
	"jericho/internal/metrics"
	"jericho/internal/repo"
	"jericho/internal/snapshot"
)

var (
	ErrInvalid      = errors.New("invalid input")
	ErrNoActiveGoal = errors.New("no active goal; run jr goal set or jr goal use")
)

type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Config    *config.Config
	Log       *zap.Logger
	Snapshots *snapshot.Store
	Now       func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:        db,
		Repo:      repo.Repo{DB: db},
		Events:    events.Writer{DB: db},
		Config:    cfg,
		Log:       zap.NewNop(),
		Snapshots: snapshot.NewStore(cfg.Snapshots.Cap),
		Now:       time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) log() *zap.Logger {
	if e.Log != nil {
		return e.Log
	}
	return zap.NewNop()
}

func (e Engine) timeZone() string {
	return e.Config.Planner.TimeZone
}

func (e Engine) location() *time.Location {
	return e.Config.Location()
}

// Today is the current day key in the planner time zone.
func (e Engine) Today() string {
	return daykey.FromTime(e.now(), e.location())
}

func (e Engine) dayOrToday(day string) (string, error) {
	if day == "" {
		return e.Today(), nil
	}
	k, err := daykey.FromISO(day, e.timeZone())
	if err != nil {
		return "", fmt.Errorf("%w: day %q", ErrInvalid, day)
	}
	return k, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// GoalOptions are parameters for SetGoal.
type GoalOptions struct {
	ID       string
	Text     string
	Deadline string
	Activate bool
}

// SetGoal creates or updates a goal. The first goal, or any goal set with
// Activate, becomes the active goal.
func (e Engine) SetGoal(ctx context.Context, opts GoalOptions) (domain.Goal, error) {
	if opts.Text == "" {
		return domain.Goal{}, invalid("goal text is required")
	}
	now := e.now().UTC().Format(time.RFC3339)
	g := domain.Goal{ID: opts.ID, Text: opts.Text, CreatedAt: now}
	if g.ID == "" {
		g.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(opts.Text+"|"+now)).String()
	}
	if opts.Deadline != "" {
		k, err := daykey.FromISO(opts.Deadline, e.timeZone())
		if err != nil {
			return domain.Goal{}, invalid("deadline %q is not a date", opts.Deadline)
		}
		g.Deadline = k
	}
	if existing, err := e.Repo.GetGoal(ctx, g.ID); err == nil {
		g.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Goal{}, err
	}

	activate := opts.Activate
	if !activate {
		if _, err := e.Repo.GetState(ctx, repo.StateActiveGoal); errors.Is(err, repo.ErrNotFound) {
			activate = true
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Goal{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertGoal(ctx, tx, g); err != nil {
		return domain.Goal{}, fmt.Errorf("insert goal: %w", err)
	}
	if activate {
		if err := e.Repo.SetState(ctx, tx, repo.StateActiveGoal, g.ID); err != nil {
			return domain.Goal{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Goal{}, err
	}
	e.log().Info("goal set", zap.String("goal_id", g.ID), zap.String("deadline", g.Deadline), zap.Bool("active", activate))
	return g, nil
}

// ActivateGoal points the workspace at an existing goal.
func (e Engine) ActivateGoal(ctx context.Context, id string) (domain.Goal, error) {
	g, err := e.Repo.GetGoal(ctx, id)
	if err != nil {
		return domain.Goal{}, err
	}
	if err := e.Repo.SetState(ctx, nil, repo.StateActiveGoal, id); err != nil {
		return domain.Goal{}, err
	}
	return g, nil
}

// ActiveGoal returns the active goal.
func (e Engine) ActiveGoal(ctx context.Context) (domain.Goal, error) {
	id, err := e.Repo.GetState(ctx, repo.StateActiveGoal)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Goal{}, ErrNoActiveGoal
	}
	if err != nil {
		return domain.Goal{}, err
	}
	return e.Repo.GetGoal(ctx, id)
}

// goalOrActive resolves an explicit goal id or falls back to the active one.
func (e Engine) goalOrActive(ctx context.Context, id string) (domain.Goal, error) {
	if id == "" {
		return e.ActiveGoal(ctx)
	}
	return e.Repo.GetGoal(ctx, id)
}

// Profile classifies a goal with the configured strategy.
func (e Engine) Profile(g domain.Goal, dayKey string) (goalprofile.Profile, error) {
	c, err := goalprofile.New(goalprofile.Strategy(e.Config.Planner.Classifier))
	if err != nil {
		return goalprofile.Profile{}, err
	}
	return c.Classify(goalprofile.Input{
		Text:     g.Text,
		Deadline: g.Deadline,
		Today:    dayKey,
		TimeZone: e.timeZone(),
	}), nil
}

// BlockOptions are parameters for AddBlock.
type BlockOptions struct {
	ID       string
	GoalID   string
	Start    string
	End      string
	Practice string
	Label    string
	Status   string
}

// AddBlock schedules a block. Start and end must parse and end may not be
// before start. Unknown practices are stored as given and count as
// unclassified.
func (e Engine) AddBlock(ctx context.Context, opts BlockOptions) (domain.Block, error) {
	loc := e.location()
	start, err := daykey.ParseInstant(opts.Start, loc)
	if err != nil {
		return domain.Block{}, fmt.Errorf("%w: start: %v", ErrInvalid, err)
	}
	end, err := daykey.ParseInstant(opts.End, loc)
	if err != nil {
		return domain.Block{}, fmt.Errorf("%w: end: %v", ErrInvalid, err)
	}
	if end.Before(start) {
		return domain.Block{}, invalid("block ends before it starts")
	}
	if opts.GoalID != "" {
		if _, err := e.Repo.GetGoal(ctx, opts.GoalID); err != nil {
			return domain.Block{}, fmt.Errorf("goal %s: %w", opts.GoalID, err)
		}
	}
	status := opts.Status
	switch status {
	case "":
		status = domain.BlockPending
	case domain.BlockPending, domain.BlockCompleted, domain.BlockSkipped:
	default:
		return domain.Block{}, invalid("unknown block status %q", status)
	}
	practice := opts.Practice
	if p := metrics.PracticeOf(practice); p != metrics.PracticeUnknown {
		practice = string(p)
	}
	now := e.now().UTC().Format(time.RFC3339)
	b := domain.Block{
		ID:       opts.ID,
		GoalID:   opts.GoalID,
		Start:    start.UTC().Format(time.RFC3339),
		End:      end.UTC().Format(time.RFC3339),
		Practice: practice,
		Status:   status,
		Label:    opts.Label,
	}
	if b.ID == "" {
		b.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(b.Start+"|"+b.End+"|"+b.Label+"|"+now)).String()
	}
	if err := e.Repo.InsertBlock(ctx, nil, b, now); err != nil {
		return domain.Block{}, fmt.Errorf("insert block: %w", err)
	}
	return b, nil
}

// CompleteBlock marks a block completed.
func (e Engine) CompleteBlock(ctx context.Context, id string) (domain.Block, error) {
	status := domain.BlockCompleted
	if err := e.Repo.UpdateBlock(ctx, nil, id, repo.BlockUpdate{Status: &status}); err != nil {
		return domain.Block{}, err
	}
	return e.Repo.GetBlock(ctx, id)
}

// ReclassifyBlock moves a block to another domain. Blocks are never deleted.
func (e Engine) ReclassifyBlock(ctx context.Context, id, practice string) (domain.Block, error) {
	d, ok := domain.ParseDomain(practice)
	if !ok {
		return domain.Block{}, invalid("unknown domain %q", practice)
	}
	p := d.Title()
	if err := e.Repo.UpdateBlock(ctx, nil, id, repo.BlockUpdate{Practice: &p}); err != nil {
		return domain.Block{}, err
	}
	return e.Repo.GetBlock(ctx, id)
}

// BlockQuery narrows ListBlocks. DayKey keeps only blocks on that local day.
type BlockQuery struct {
	GoalID string
	DayKey string
}

// ListBlocks loads and normalizes blocks. Unparseable instants are logged
// and the block is kept with zero duration.
func (e Engine) ListBlocks(ctx context.Context, q BlockQuery) ([]metrics.NormalizedBlock, error) {
	raw, err := e.Repo.ListBlocks(ctx, repo.BlockFilters{GoalID: q.GoalID})
	if err != nil {
		return nil, err
	}
	nbs, diags := metrics.NormalizeBlocks(raw, e.timeZone())
	for _, d := range diags {
		e.log().Warn("unparseable block instant", zap.String("block_id", d.BlockID), zap.String("source", d.Source), zap.String("value", d.Value))
	}
	if q.DayKey == "" {
		return nbs, nil
	}
	out := make([]metrics.NormalizedBlock, 0, len(nbs))
	for _, b := range nbs {
		if b.DayKey == q.DayKey {
			out = append(out, b)
		}
	}
	return out, nil
}
