package postgresadapter

import (
	"time"

	"pentarchy/contexts/governance/proposal-voting/domain/entities"
)

type proposalModel struct {
	ProposalID        string         `gorm:"column:proposal_id;primaryKey"`
	Title             string         `gorm:"column:title;not null"`
	Description       string         `gorm:"column:description;not null"`
	Cost              float64        `gorm:"column:cost;not null"`
	RiskLevel         string         `gorm:"column:risk_level;not null"`
	Status            string         `gorm:"column:status;not null;index:idx_governance_proposals_status_created,priority:1"`
	FinalScore        *float64       `gorm:"column:final_score"`
	Threshold         float64        `gorm:"column:threshold;not null"`
	Resolution        string         `gorm:"column:resolution;not null"`
	ResolutionTrigger string         `gorm:"column:resolution_trigger;not null"`
	Context           map[string]any `gorm:"column:context;type:jsonb;serializer:json"`
	AutoExecute       bool           `gorm:"column:auto_execute;not null"`
	InitiatedBy       string         `gorm:"column:initiated_by;not null"`
	CreatedAt         time.Time      `gorm:"column:created_at;not null;index:idx_governance_proposals_status_created,priority:2"`
	ResolvedAt        *time.Time     `gorm:"column:resolved_at"`
}

func (proposalModel) TableName() string {
	return "governance_proposals"
}

// voteModel rows are unique per (proposal_id, agent); the primary key is the
// duplicate-voter guard of last resort.
type voteModel struct {
	ProposalID string    `gorm:"column:proposal_id;primaryKey"`
	Agent      string    `gorm:"column:agent;primaryKey"`
	Position   int       `gorm:"column:position;not null"`
	Decision   string    `gorm:"column:decision;not null"`
	Score      float64   `gorm:"column:score;not null"`
	Reasoning  []string  `gorm:"column:reasoning;type:jsonb;serializer:json"`
	VotedAt    time.Time `gorm:"column:voted_at;not null"`
}

func (voteModel) TableName() string {
	return "governance_votes"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type;not null"`
	PartitionKey string     `gorm:"column:partition_key;not null"`
	Payload      []byte     `gorm:"column:payload;not null"`
	Status       string     `gorm:"column:status;not null;index"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "governance_outbox"
}

func proposalModelFromEntity(proposal entities.Proposal) proposalModel {
	return proposalModel{
		ProposalID:        proposal.ProposalID,
		Title:             proposal.Title,
		Description:       proposal.Description,
		Cost:              proposal.Cost,
		RiskLevel:         string(proposal.RiskLevel),
		Status:            string(proposal.Status),
		FinalScore:        proposal.FinalScore,
		Threshold:         proposal.Threshold,
		Resolution:        proposal.Resolution,
		ResolutionTrigger: string(proposal.ResolutionTrigger),
		Context:           proposal.Context,
		AutoExecute:       proposal.AutoExecute,
		InitiatedBy:       proposal.InitiatedBy,
		CreatedAt:         proposal.CreatedAt.UTC(),
		ResolvedAt:        normalizeOptionalTime(proposal.ResolvedAt),
	}
}

func (m proposalModel) toEntity(votes []voteModel) entities.Proposal {
	proposal := entities.Proposal{
		ProposalID:        m.ProposalID,
		Title:             m.Title,
		Description:       m.Description,
		Cost:              m.Cost,
		RiskLevel:         entities.RiskLevel(m.RiskLevel),
		Status:            entities.ProposalStatus(m.Status),
		FinalScore:        m.FinalScore,
		Threshold:         m.Threshold,
		Resolution:        m.Resolution,
		ResolutionTrigger: entities.ResolutionTrigger(m.ResolutionTrigger),
		Context:           m.Context,
		AutoExecute:       m.AutoExecute,
		InitiatedBy:       m.InitiatedBy,
		CreatedAt:         m.CreatedAt.UTC(),
		ResolvedAt:        normalizeOptionalTime(m.ResolvedAt),
		Votes:             make([]entities.Vote, 0, len(votes)),
	}
	for _, vote := range votes {
		proposal.Votes = append(proposal.Votes, vote.toEntity())
	}
	return proposal.Clone()
}

func voteModelFromEntity(proposalID string, position int, vote entities.Vote) voteModel {
	reasoning := vote.Reasoning
	if reasoning == nil {
		reasoning = []string{}
	}
	return voteModel{
		ProposalID: proposalID,
		Agent:      string(vote.Agent),
		Position:   position,
		Decision:   string(vote.Decision),
		Score:      vote.Score,
		Reasoning:  reasoning,
		VotedAt:    vote.Timestamp.UTC(),
	}
}

func (m voteModel) toEntity() entities.Vote {
	return entities.Vote{
		Agent:     entities.VoterID(m.Agent),
		Decision:  entities.Decision(m.Decision),
		Score:     m.Score,
		Reasoning: append([]string{}, m.Reasoning...),
		Timestamp: m.VotedAt.UTC(),
	}
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}
