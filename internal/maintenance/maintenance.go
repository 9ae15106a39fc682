package maintenance

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

const (
	sampleSize       = 5
	defaultBatchSize = 100
	defaultRate      = 10
)

const (
	duplicateFriendshipsSQL = `SELECT id FROM (
        SELECT id, row_number() OVER (
            PARTITION BY least(requester_id, addressee_id), greatest(requester_id, addressee_id)
            ORDER BY created_at, id) AS rn
        FROM friendships) d
        WHERE d.rn > 1`
	duplicateParticipantsSQL = `SELECT id FROM (
        SELECT id, row_number() OVER (PARTITION BY room_id, user_id ORDER BY joined_at, id) AS rn
        FROM chat_participants) d
        WHERE d.rn > 1`
	profilesMissingEmailSQL = `SELECT id FROM profiles WHERE email IS NULL OR btrim(email) = ''`
	profilesMissingNameSQL  = `SELECT id FROM profiles WHERE display_name IS NULL OR btrim(display_name) = ''`
	selfFriendshipsSQL      = `SELECT id FROM friendships WHERE requester_id = addressee_id`
	emptyMessagesSQL        = `SELECT id FROM messages WHERE content IS NULL OR btrim(content) = ''`
	orphanFriendshipsSQL    = `SELECT f.id FROM friendships f
        WHERE NOT EXISTS (SELECT 1 FROM profiles p WHERE p.user_id = f.requester_id)
        OR NOT EXISTS (SELECT 1 FROM profiles p WHERE p.user_id = f.addressee_id)`
	orphanParticipantsSQL = `SELECT cp.id FROM chat_participants cp
        WHERE NOT EXISTS (SELECT 1 FROM chat_rooms r WHERE r.id = cp.room_id)
        OR NOT EXISTS (SELECT 1 FROM profiles p WHERE p.user_id = cp.user_id)`
	orphanMessagesSQL = `SELECT m.id FROM messages m
        WHERE NOT EXISTS (SELECT 1 FROM chat_rooms r WHERE r.id = m.room_id)
        OR NOT EXISTS (SELECT 1 FROM profiles p WHERE p.user_id = m.sender_id)`
	emptyRoomsSQL = `SELECT r.id FROM chat_rooms r
        WHERE NOT EXISTS (SELECT 1 FROM chat_participants cp WHERE cp.room_id = r.id)`
)

// Service runs the maintenance queries.
type Service struct {
	pool      PgxPool
	limiter   ratelimit.Limiter
	batchSize int
	logger    *zap.Logger
}

type Option func(*Service)

// WithBatchSize sets how many rows a single cleanup DELETE removes.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithRate limits cleanup to n DELETE batches per second.
func WithRate(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limiter = ratelimit.New(n)
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(pool PgxPool, opts ...Option) *Service {
	s := &Service{
		pool:      pool,
		limiter:   ratelimit.New(defaultRate),
		batchSize: defaultBatchSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("maintenance")
	return s
}

// TableStatus returns the row count and a small sample of every table.
func (s *Service) TableStatus(ctx context.Context) ([]TableReport, error) {
	reports := make([]TableReport, 0, len(Tables))
	for _, table := range Tables {
		report := TableReport{Table: table, Sample: []json.RawMessage{}}
		if err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, table)).Scan(&report.Rows); err != nil {
			return nil, errors.Wrapf(err, "count %s", table)
		}

		rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT row_to_json(t)::text FROM %s t LIMIT %d`, table, sampleSize))
		if err != nil {
			return nil, errors.Wrapf(err, "sample %s", table)
		}
		samples, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return nil, errors.Wrapf(err, "sample %s", table)
		}
		for _, sample := range samples {
			report.Sample = append(report.Sample, json.RawMessage(sample))
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// FindDuplicates returns every friendship and participant row beyond the
// oldest one of its pair.
func (s *Service) FindDuplicates(ctx context.Context) (DuplicateReport, error) {
	var (
		report DuplicateReport
		err    error
	)
	if report.Friendships, err = s.ids(ctx, duplicateFriendshipsSQL); err != nil {
		return DuplicateReport{}, errors.Wrap(err, "duplicate friendships")
	}
	if report.Participants, err = s.ids(ctx, duplicateParticipantsSQL); err != nil {
		return DuplicateReport{}, errors.Wrap(err, "duplicate participants")
	}
	return report, nil
}

func (s *Service) FindInvalid(ctx context.Context) (InvalidReport, error) {
	var (
		report InvalidReport
		err    error
	)
	if report.ProfilesMissingEmail, err = s.ids(ctx, profilesMissingEmailSQL); err != nil {
		return InvalidReport{}, errors.Wrap(err, "profiles missing email")
	}
	if report.ProfilesMissingName, err = s.ids(ctx, profilesMissingNameSQL); err != nil {
		return InvalidReport{}, errors.Wrap(err, "profiles missing name")
	}
	if report.SelfFriendships, err = s.ids(ctx, selfFriendshipsSQL); err != nil {
		return InvalidReport{}, errors.Wrap(err, "self friendships")
	}
	if report.EmptyMessages, err = s.ids(ctx, emptyMessagesSQL); err != nil {
		return InvalidReport{}, errors.Wrap(err, "empty messages")
	}
	return report, nil
}

func (s *Service) FindOrphans(ctx context.Context) (OrphanReport, error) {
	var (
		report OrphanReport
		err    error
	)
	if report.Friendships, err = s.ids(ctx, orphanFriendshipsSQL); err != nil {
		return OrphanReport{}, errors.Wrap(err, "orphan friendships")
	}
	if report.Participants, err = s.ids(ctx, orphanParticipantsSQL); err != nil {
		return OrphanReport{}, errors.Wrap(err, "orphan participants")
	}
	if report.Messages, err = s.ids(ctx, orphanMessagesSQL); err != nil {
		return OrphanReport{}, errors.Wrap(err, "orphan messages")
	}
	if report.EmptyRooms, err = s.ids(ctx, emptyRoomsSQL); err != nil {
		return OrphanReport{}, errors.Wrap(err, "empty rooms")
	}
	return report, nil
}

type cleanupStep struct {
	category string
	table    string
	ids      []string
}

// Cleanup removes orphaned, duplicate and invalid rows. Profiles are only
// reported, never deleted. With dryRun set nothing is deleted and the
// result carries the counts that would have been removed.
func (s *Service) Cleanup(ctx context.Context, dryRun bool) (CleanupResult, error) {
	orphans, err := s.FindOrphans(ctx)
	if err != nil {
		return CleanupResult{}, err
	}
	dups, err := s.FindDuplicates(ctx)
	if err != nil {
		return CleanupResult{}, err
	}
	invalid, err := s.FindInvalid(ctx)
	if err != nil {
		return CleanupResult{}, err
	}

	steps := []cleanupStep{
		{"orphan_messages", "messages", orphans.Messages},
		{"empty_messages", "messages", invalid.EmptyMessages},
		{"orphan_participants", "chat_participants", orphans.Participants},
		{"duplicate_participants", "chat_participants", dups.Participants},
		{"empty_rooms", "chat_rooms", orphans.EmptyRooms},
		{"orphan_friendships", "friendships", orphans.Friendships},
		{"duplicate_friendships", "friendships", dups.Friendships},
		{"self_friendships", "friendships", invalid.SelfFriendships},
	}

	result := CleanupResult{DryRun: dryRun, Deleted: map[string]int{}}
	deleted := map[string]map[string]struct{}{}
	for _, step := range steps {
		ids := pending(deleted, step.table, step.ids)
		if dryRun {
			result.Deleted[step.category] = len(ids)
			continue
		}
		n, err := s.deleteBatches(ctx, step.table, ids)
		result.Deleted[step.category] = n
		if err != nil {
			return result, errors.Wrapf(err, "cleanup %s", step.category)
		}
		if n > 0 {
			s.logger.Info("cleanup", zap.String("category", step.category), zap.Int("deleted", n))
		}
	}
	return result, nil
}

// pending drops ids already handled by an earlier step for the same table.
func pending(done map[string]map[string]struct{}, table string, ids []string) []string {
	seen, ok := done[table]
	if !ok {
		seen = map[string]struct{}{}
		done[table] = seen
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *Service) deleteBatches(ctx context.Context, table string, ids []string) (int, error) {
	deleted := 0
	for start := 0; start < len(ids); start += s.batchSize {
		end := start + s.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		s.limiter.Take()
		tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1::uuid[])`, table), ids[start:end])
		if err != nil {
			return deleted, err
		}
		deleted += int(tag.RowsAffected())
	}
	return deleted, nil
}

func (s *Service) ids(ctx context.Context, query string) ([]string, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
