package postgresadapter

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pentarchy/contexts/governance/proposal-voting/domain/entities"
	domainerrors "pentarchy/contexts/governance/proposal-voting/domain/errors"
	"pentarchy/contexts/governance/proposal-voting/domain/policy"
	"pentarchy/contexts/governance/proposal-voting/ports"
	"pentarchy/internal/shared/outbox"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates or updates the proposal, vote and outbox tables.
func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&proposalModel{}, &voteModel{}, &outboxModel{}); err != nil {
		return r.logError("governance_repo_migrate_failed", err)
	}
	return nil
}

func (r *Repository) CreateProposal(ctx context.Context, input entities.NewProposal) (entities.Proposal, error) {
	if err := policy.ValidateNewProposal(input); err != nil {
		return entities.Proposal{}, err
	}
	createdAt := input.CreatedAt.UTC()
	if input.CreatedAt.IsZero() {
		createdAt = r.Now()
	}
	initiatedBy := strings.TrimSpace(input.InitiatedBy)
	if initiatedBy == "" {
		initiatedBy = "anonymous"
	}
	proposal := entities.Proposal{
		ProposalID:  uuid.NewString(),
		Title:       input.Title,
		Description: input.Description,
		Cost:        input.Cost,
		RiskLevel:   input.RiskLevel,
		Status:      entities.ProposalStatusPending,
		Votes:       []entities.Vote{},
		Context:     input.Context,
		AutoExecute: input.AutoExecute,
		InitiatedBy: initiatedBy,
		CreatedAt:   createdAt,
	}
	if input.Override != nil {
		if !input.Override.Status.Terminal() {
			return entities.Proposal{}, fmt.Errorf("%w: override must be terminal", domainerrors.ErrValidation)
		}
		applyResolution(&proposal, *input.Override, createdAt)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := proposalModelFromEntity(proposal)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if proposal.Pending() {
			return nil
		}
		envelope, err := ports.NewResolvedEnvelope(uuid.NewString(), proposal)
		if err != nil {
			return err
		}
		return insertOutbox(tx, envelope)
	})
	if err != nil {
		return entities.Proposal{}, r.logError("governance_repo_create_proposal_failed", err,
			"proposal_id", proposal.ProposalID,
		)
	}
	return proposal.Clone(), nil
}

func (r *Repository) GetProposal(ctx context.Context, proposalID string) (entities.Proposal, error) {
	proposalID = strings.TrimSpace(proposalID)
	var row proposalModel
	err := r.db.WithContext(ctx).
		Where("proposal_id = ?", proposalID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Proposal{}, domainerrors.ErrNotFound
		}
		return entities.Proposal{}, r.logError("governance_repo_get_proposal_failed", err, "proposal_id", proposalID)
	}
	votes, err := loadVotes(r.db.WithContext(ctx), proposalID)
	if err != nil {
		return entities.Proposal{}, r.logError("governance_repo_load_votes_failed", err, "proposal_id", proposalID)
	}
	return row.toEntity(votes), nil
}

// AppendVote locks the proposal row for the duration of the transaction so
// concurrent appends and resolutions of the same proposal are serialized.
func (r *Repository) AppendVote(ctx context.Context, proposalID string, vote entities.Vote) (entities.Proposal, error) {
	if err := policy.ValidateStoredVote(vote); err != nil {
		return entities.Proposal{}, err
	}
	proposalID = strings.TrimSpace(proposalID)
	if vote.Timestamp.IsZero() {
		vote.Timestamp = r.Now()
	}
	vote.Timestamp = vote.Timestamp.UTC()

	var updated entities.Proposal
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := lockProposal(tx, proposalID)
		if err != nil {
			return err
		}
		if row.Status != string(entities.ProposalStatusPending) {
			return domainerrors.ErrConflict
		}
		votes, err := loadVotes(tx, proposalID)
		if err != nil {
			return err
		}
		for _, existing := range votes {
			if existing.Agent == string(vote.Agent) {
				return domainerrors.ErrDuplicateVoter
			}
		}
		if len(votes) >= entities.CommitteeSize {
			return domainerrors.ErrConflict
		}

		voteRow := voteModelFromEntity(proposalID, len(votes), vote)
		if err := tx.Create(&voteRow).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrDuplicateVoter
			}
			return err
		}
		updated = row.toEntity(append(votes, voteRow))
		envelope, err := ports.NewVoteEnvelope(uuid.NewString(), updated, voteRow.toEntity())
		if err != nil {
			return err
		}
		return insertOutbox(tx, envelope)
	})
	if err != nil {
		if isDomainError(err) {
			return entities.Proposal{}, err
		}
		return entities.Proposal{}, r.logError("governance_repo_append_vote_failed", err,
			"proposal_id", proposalID,
			"agent", string(vote.Agent),
		)
	}
	return updated, nil
}

func (r *Repository) ResolveProposal(
	ctx context.Context,
	proposalID string,
	resolution entities.Resolution,
) (entities.Proposal, bool, error) {
	if !resolution.Status.Terminal() {
		return entities.Proposal{}, false, fmt.Errorf("%w: resolution status %q is not terminal", domainerrors.ErrValidation, resolution.Status)
	}
	proposalID = strings.TrimSpace(proposalID)

	var (
		resolved     entities.Proposal
		transitioned bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := lockProposal(tx, proposalID)
		if err != nil {
			return err
		}
		votes, err := loadVotes(tx, proposalID)
		if err != nil {
			return err
		}
		current := row.toEntity(votes)
		if !current.Pending() {
			if resolution.SameOutcome(current) {
				resolved = current
				return nil
			}
			return domainerrors.ErrConflict
		}

		applyResolution(&current, resolution, r.Now())
		update := tx.Model(&proposalModel{}).
			Where("proposal_id = ? AND status = ?", proposalID, string(entities.ProposalStatusPending)).
			Updates(map[string]any{
				"status":             string(current.Status),
				"final_score":        *current.FinalScore,
				"threshold":          current.Threshold,
				"resolution":         current.Resolution,
				"resolution_trigger": string(current.ResolutionTrigger),
				"resolved_at":        current.ResolvedAt.UTC(),
			})
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			return domainerrors.ErrConflict
		}
		envelope, err := ports.NewResolvedEnvelope(uuid.NewString(), current)
		if err != nil {
			return err
		}
		if err := insertOutbox(tx, envelope); err != nil {
			return err
		}
		resolved = current
		transitioned = true
		return nil
	})
	if err != nil {
		if isDomainError(err) {
			return entities.Proposal{}, false, err
		}
		return entities.Proposal{}, false, r.logError("governance_repo_resolve_proposal_failed", err,
			"proposal_id", proposalID,
			"status", string(resolution.Status),
		)
	}
	return resolved, transitioned, nil
}

func (r *Repository) ListProposals(ctx context.Context, filter entities.ProposalFilter) ([]entities.ProposalSummary, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domainerrors.ErrInvalidListFilter
	}
	if filter.Offset < 0 {
		return nil, domainerrors.ErrInvalidListFilter
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	tx := r.db.WithContext(ctx).Model(&proposalModel{})
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}
	var rows []proposalModel
	if err := tx.Order("created_at ASC").Order("proposal_id ASC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&rows).Error; err != nil {
		return nil, r.logError("governance_repo_list_proposals_failed", err,
			"status", string(filter.Status),
			"limit", limit,
			"offset", filter.Offset,
		)
	}

	counts, err := r.voteCounts(ctx, rows)
	if err != nil {
		return nil, err
	}
	items := make([]entities.ProposalSummary, 0, len(rows))
	for _, row := range rows {
		summary := entities.ProposalSummary{
			ProposalID: row.ProposalID,
			Title:      row.Title,
			Status:     entities.ProposalStatus(row.Status),
			VoteCount:  counts[row.ProposalID],
			CreatedAt:  row.CreatedAt.UTC(),
		}
		if row.FinalScore != nil {
			score := *row.FinalScore
			summary.FinalScore = &score
		}
		items = append(items, summary)
	}
	return items, nil
}

func (r *Repository) ListPendingProposals(ctx context.Context, createdBefore time.Time, limit int) ([]entities.Proposal, error) {
	tx := r.db.WithContext(ctx).
		Where("status = ?", string(entities.ProposalStatusPending))
	if !createdBefore.IsZero() {
		tx = tx.Where("created_at < ?", createdBefore.UTC())
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var rows []proposalModel
	if err := tx.Order("created_at ASC").Order("proposal_id ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("governance_repo_list_pending_failed", err, "limit", limit)
	}
	if len(rows) == 0 {
		return []entities.Proposal{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ProposalID)
	}
	var voteRows []voteModel
	if err := r.db.WithContext(ctx).
		Where("proposal_id IN ?", ids).
		Order("position ASC").
		Find(&voteRows).Error; err != nil {
		return nil, r.logError("governance_repo_list_pending_votes_failed", err)
	}
	byProposal := make(map[string][]voteModel, len(rows))
	for _, vote := range voteRows {
		byProposal[vote.ProposalID] = append(byProposal[vote.ProposalID], vote)
	}

	items := make([]entities.Proposal, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity(byProposal[row.ProposalID]))
	}
	return items, nil
}

func (r *Repository) Stats(ctx context.Context) (entities.VotingStats, error) {
	stats := entities.NewVotingStats()

	var buckets []struct {
		Status string
		Total  int
	}
	if err := r.db.WithContext(ctx).Model(&proposalModel{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&buckets).Error; err != nil {
		return entities.VotingStats{}, r.logError("governance_repo_stats_status_failed", err)
	}
	for _, bucket := range buckets {
		stats.ByStatus[entities.ProposalStatus(bucket.Status)] = bucket.Total
		stats.TotalProposals += bucket.Total
	}

	var average sql.NullFloat64
	if err := r.db.WithContext(ctx).Model(&proposalModel{}).
		Select("AVG(final_score)").
		Where("final_score IS NOT NULL").
		Scan(&average).Error; err != nil {
		return entities.VotingStats{}, r.logError("governance_repo_stats_average_failed", err)
	}
	if average.Valid {
		stats.AverageScore = average.Float64
	}

	var votes int64
	if err := r.db.WithContext(ctx).Model(&voteModel{}).Count(&votes).Error; err != nil {
		return entities.VotingStats{}, r.logError("governance_repo_stats_votes_failed", err)
	}
	stats.TotalVotes = int(votes)
	return stats, nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = outbox.DefaultBatchSize
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outbox.StatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("governance_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ? AND status = ?", strings.TrimSpace(outboxID), outbox.StatusPending).
		Updates(map[string]any{
			"status":       outbox.StatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("governance_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) Now() time.Time {
	return time.Now().UTC()
}

func (r *Repository) voteCounts(ctx context.Context, rows []proposalModel) (map[string]int, error) {
	counts := make(map[string]int, len(rows))
	if len(rows) == 0 {
		return counts, nil
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ProposalID)
	}
	var tallies []struct {
		ProposalID string
		Total      int
	}
	if err := r.db.WithContext(ctx).Model(&voteModel{}).
		Select("proposal_id, COUNT(*) AS total").
		Where("proposal_id IN ?", ids).
		Group("proposal_id").
		Scan(&tallies).Error; err != nil {
		return nil, r.logError("governance_repo_vote_counts_failed", err)
	}
	for _, tally := range tallies {
		counts[tally.ProposalID] = tally.Total
	}
	return counts, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "governance/proposal-voting",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("governance repository operation failed", fields...)
	return err
}

func lockProposal(tx *gorm.DB, proposalID string) (proposalModel, error) {
	var row proposalModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("proposal_id = ?", proposalID).
		First(&row).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return proposalModel{}, domainerrors.ErrNotFound
	}
	return row, err
}

func loadVotes(tx *gorm.DB, proposalID string) ([]voteModel, error) {
	var rows []voteModel
	err := tx.Where("proposal_id = ?", proposalID).
		Order("position ASC").
		Find(&rows).
		Error
	return rows, err
}

func insertOutbox(tx *gorm.DB, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     envelope.EventID,
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		Status:       outbox.StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	return tx.Create(&row).Error
}

func applyResolution(proposal *entities.Proposal, resolution entities.Resolution, now time.Time) {
	resolvedAt := resolution.ResolvedAt.UTC()
	if resolution.ResolvedAt.IsZero() {
		resolvedAt = now.UTC()
	}
	score := resolution.FinalScore
	proposal.Status = resolution.Status
	proposal.FinalScore = &score
	proposal.Threshold = resolution.Threshold
	proposal.Resolution = resolution.Reason
	proposal.ResolutionTrigger = resolution.Trigger
	proposal.ResolvedAt = &resolvedAt
}

func isDomainError(err error) bool {
	return errors.Is(err, domainerrors.ErrNotFound) ||
		errors.Is(err, domainerrors.ErrConflict) ||
		errors.Is(err, domainerrors.ErrDuplicateVoter) ||
		errors.Is(err, domainerrors.ErrValidation)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.ProposalRepository = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.Clock = (*Repository)(nil)
