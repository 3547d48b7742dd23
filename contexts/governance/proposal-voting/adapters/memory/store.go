package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"pentarchy/contexts/governance/proposal-voting/domain/entities"
	domainerrors "pentarchy/contexts/governance/proposal-voting/domain/errors"
	"pentarchy/contexts/governance/proposal-voting/domain/policy"
	"pentarchy/contexts/governance/proposal-voting/ports"

	"github.com/google/uuid"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// proposalRecord serializes every mutation of one proposal. Records are never
// removed, so a pointer obtained under Store.mu stays valid.
type proposalRecord struct {
	mu       sync.Mutex
	proposal entities.Proposal
}

type outboxRecord struct {
	message ports.OutboxMessage
	seq     int64
}

// Store is the in-memory ProposalRepository and OutboxRepository. Store.mu
// only guards the index; mutations lock the proposal's own record so unrelated
// proposals never contend.
type Store struct {
	mu        sync.RWMutex
	proposals map[string]*proposalRecord
	order     []*proposalRecord

	outboxMu  sync.Mutex
	outbox    map[string]outboxRecord
	outboxSeq int64
}

func NewStore(seed []entities.Proposal) *Store {
	store := &Store{
		proposals: make(map[string]*proposalRecord, len(seed)),
		outbox:    make(map[string]outboxRecord),
	}
	items := append([]entities.Proposal(nil), seed...)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	for _, item := range items {
		record := &proposalRecord{proposal: item.Clone()}
		store.proposals[item.ProposalID] = record
		store.order = append(store.order, record)
	}
	return store
}

func (s *Store) CreateProposal(_ context.Context, input entities.NewProposal) (entities.Proposal, error) {
	if err := policy.ValidateNewProposal(input); err != nil {
		return entities.Proposal{}, err
	}
	createdAt := input.CreatedAt.UTC()
	if input.CreatedAt.IsZero() {
		createdAt = s.Now()
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
	record := &proposalRecord{proposal: proposal.Clone()}

	// Lock the record before publishing it in the index so the resolved
	// event of an override is queued before anyone can observe the proposal.
	record.mu.Lock()
	defer record.mu.Unlock()

	s.mu.Lock()
	s.proposals[proposal.ProposalID] = record
	s.order = append(s.order, record)
	s.mu.Unlock()

	if !proposal.Pending() {
		if err := s.queueResolved(record.proposal); err != nil {
			return entities.Proposal{}, err
		}
	}
	return record.proposal.Clone(), nil
}

func (s *Store) GetProposal(_ context.Context, proposalID string) (entities.Proposal, error) {
	record, err := s.record(proposalID)
	if err != nil {
		return entities.Proposal{}, err
	}
	record.mu.Lock()
	defer record.mu.Unlock()
	return record.proposal.Clone(), nil
}

func (s *Store) AppendVote(_ context.Context, proposalID string, vote entities.Vote) (entities.Proposal, error) {
	if err := policy.ValidateStoredVote(vote); err != nil {
		return entities.Proposal{}, err
	}
	record, err := s.record(proposalID)
	if err != nil {
		return entities.Proposal{}, err
	}
	record.mu.Lock()
	defer record.mu.Unlock()

	if !record.proposal.Pending() {
		return entities.Proposal{}, domainerrors.ErrConflict
	}
	if record.proposal.HasVoteFrom(vote.Agent) {
		return entities.Proposal{}, domainerrors.ErrDuplicateVoter
	}
	if len(record.proposal.Votes) >= entities.CommitteeSize {
		return entities.Proposal{}, domainerrors.ErrConflict
	}
	if vote.Timestamp.IsZero() {
		vote.Timestamp = s.Now()
	}
	vote.Timestamp = vote.Timestamp.UTC()
	vote.Reasoning = append([]string{}, vote.Reasoning...)

	next := record.proposal.Clone()
	next.Votes = append(next.Votes, vote)
	envelope, err := ports.NewVoteEnvelope(uuid.NewString(), next, vote)
	if err != nil {
		return entities.Proposal{}, err
	}
	if err := s.appendOutbox(envelope); err != nil {
		return entities.Proposal{}, err
	}
	record.proposal = next
	return next.Clone(), nil
}

func (s *Store) ResolveProposal(
	_ context.Context,
	proposalID string,
	resolution entities.Resolution,
) (entities.Proposal, bool, error) {
	if !resolution.Status.Terminal() {
		return entities.Proposal{}, false, fmt.Errorf("%w: resolution status %q is not terminal", domainerrors.ErrValidation, resolution.Status)
	}
	record, err := s.record(proposalID)
	if err != nil {
		return entities.Proposal{}, false, err
	}
	record.mu.Lock()
	defer record.mu.Unlock()

	if !record.proposal.Pending() {
		if resolution.SameOutcome(record.proposal) {
			return record.proposal.Clone(), false, nil
		}
		return entities.Proposal{}, false, domainerrors.ErrConflict
	}

	next := record.proposal.Clone()
	applyResolution(&next, resolution, s.Now())
	if err := s.queueResolved(next); err != nil {
		return entities.Proposal{}, false, err
	}
	record.proposal = next
	return next.Clone(), true, nil
}

func (s *Store) ListProposals(_ context.Context, filter entities.ProposalFilter) ([]entities.ProposalSummary, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domainerrors.ErrInvalidListFilter
	}
	if filter.Offset < 0 {
		return nil, domainerrors.ErrInvalidListFilter
	}
	limit := normalizeLimit(filter.Limit)

	items := make([]entities.ProposalSummary, 0, limit)
	skipped := 0
	for _, record := range s.snapshot() {
		record.mu.Lock()
		proposal := record.proposal
		matches := filter.Status == "" || proposal.Status == filter.Status
		var summary entities.ProposalSummary
		if matches {
			summary = proposal.Summary()
		}
		record.mu.Unlock()

		if !matches {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		items = append(items, summary)
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

func (s *Store) ListPendingProposals(_ context.Context, createdBefore time.Time, limit int) ([]entities.Proposal, error) {
	items := make([]entities.Proposal, 0)
	for _, record := range s.snapshot() {
		record.mu.Lock()
		proposal := record.proposal
		eligible := proposal.Pending() && (createdBefore.IsZero() || proposal.CreatedAt.Before(createdBefore))
		if eligible {
			items = append(items, proposal.Clone())
		}
		record.mu.Unlock()
		if limit > 0 && len(items) == limit {
			break
		}
	}
	return items, nil
}

func (s *Store) Stats(_ context.Context) (entities.VotingStats, error) {
	stats := entities.NewVotingStats()
	scored := 0
	total := 0.0
	for _, record := range s.snapshot() {
		record.mu.Lock()
		proposal := record.proposal
		stats.TotalProposals++
		stats.ByStatus[proposal.Status]++
		stats.TotalVotes += len(proposal.Votes)
		if proposal.FinalScore != nil {
			scored++
			total += *proposal.FinalScore
		}
		record.mu.Unlock()
	}
	if scored > 0 {
		stats.AverageScore = total / float64(scored)
	}
	return stats, nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.outboxMu.Lock()
	defer s.outboxMu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	rows := make([]outboxRecord, 0, len(s.outbox))
	for _, row := range s.outbox {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].seq < rows[j].seq
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.message)
	}
	return items, nil
}

// MarkOutboxPublished drops the row; the in-memory outbox only holds
// undelivered events.
func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.outboxMu.Lock()
	defer s.outboxMu.Unlock()
	key := strings.TrimSpace(outboxID)
	if _, ok := s.outbox[key]; !ok {
		return domainerrors.ErrConflict
	}
	delete(s.outbox, key)
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) record(proposalID string) (*proposalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.proposals[strings.TrimSpace(proposalID)]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	return record, nil
}

func (s *Store) snapshot() []*proposalRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*proposalRecord(nil), s.order...)
}

func (s *Store) queueResolved(proposal entities.Proposal) error {
	envelope, err := ports.NewResolvedEnvelope(uuid.NewString(), proposal)
	if err != nil {
		return err
	}
	return s.appendOutbox(envelope)
}

func (s *Store) appendOutbox(envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	s.outboxMu.Lock()
	defer s.outboxMu.Unlock()
	s.outboxSeq++
	s.outbox[envelope.EventID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     envelope.EventID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
			CreatedAt:    envelope.OccurredAt,
		},
		seq: s.outboxSeq,
	}
	return nil
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

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
