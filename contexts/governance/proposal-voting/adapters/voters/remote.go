package voters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pentarchy/contexts/governance/proposal-voting/domain/entities"
	domainerrors "pentarchy/contexts/governance/proposal-voting/domain/errors"
	"pentarchy/contexts/governance/proposal-voting/ports"
)

const maxRemoteResponseBytes = 64 << 10

type evaluationRequest struct {
	ProposalID  string         `json:"proposal_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Cost        float64        `json:"cost"`
	RiskLevel   string         `json:"risk_level"`
	Context     map[string]any `json:"context,omitempty"`
}

type evaluationResponse struct {
	Vote      string   `json:"vote"`
	Score     float64  `json:"score"`
	Reasoning []string `json:"reasoning"`
}

// RemoteVoter delegates evaluation to an agent service that accepts a
// proposal on POST and answers {"vote", "score", "reasoning"}. It is called
// once per proposal; failures surface as errors and are never retried.
type RemoteVoter struct {
	id       entities.VoterID
	endpoint string
	client   *http.Client
}

func NewRemoteVoter(id entities.VoterID, endpoint string, client *http.Client) (RemoteVoter, error) {
	if !id.Valid() {
		return RemoteVoter{}, fmt.Errorf("%w %q", domainerrors.ErrUnknownVoter, id)
	}
	endpoint = strings.TrimSpace(endpoint)
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return RemoteVoter{}, fmt.Errorf("%w: voter %q endpoint %q must be an http(s) URL", domainerrors.ErrConfiguration, id, endpoint)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return RemoteVoter{id: id, endpoint: endpoint, client: client}, nil
}

func (v RemoteVoter) ID() entities.VoterID {
	return v.id
}

func (v RemoteVoter) Evaluate(ctx context.Context, proposal entities.Proposal) (ports.VoteDraft, error) {
	body, err := json.Marshal(evaluationRequest{
		ProposalID:  proposal.ProposalID,
		Title:       proposal.Title,
		Description: proposal.Description,
		Cost:        proposal.Cost,
		RiskLevel:   string(proposal.RiskLevel),
		Context:     proposal.Context,
	})
	if err != nil {
		return ports.VoteDraft{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.VoteDraft{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return ports.VoteDraft{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ports.VoteDraft{}, fmt.Errorf("voter %s answered %s", v.id, resp.Status)
	}
	var decoded evaluationResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRemoteResponseBytes)).Decode(&decoded); err != nil {
		return ports.VoteDraft{}, fmt.Errorf("decode voter %s response: %w", v.id, err)
	}
	return ports.VoteDraft{
		Decision:  entities.Decision(strings.ToUpper(strings.TrimSpace(decoded.Vote))),
		Score:     decoded.Score,
		Reasoning: decoded.Reasoning,
	}, nil
}

// Committee builds the voter set: seats with a configured endpoint use a
// RemoteVoter, the rest fall back to the heuristic rules.
func Committee(endpoints map[entities.VoterID]string, client *http.Client) ([]ports.Voter, error) {
	committee := make([]ports.Voter, 0, entities.CommitteeSize)
	for id := range endpoints {
		if !id.Valid() {
			return nil, fmt.Errorf("%w: %w %q", domainerrors.ErrConfiguration, domainerrors.ErrUnknownVoter, id)
		}
	}
	for _, id := range entities.Committee() {
		if endpoint, ok := endpoints[id]; ok && strings.TrimSpace(endpoint) != "" {
			voter, err := NewRemoteVoter(id, endpoint, client)
			if err != nil {
				return nil, err
			}
			committee = append(committee, voter)
			continue
		}
		voter, err := NewHeuristicVoter(id)
		if err != nil {
			return nil, err
		}
		committee = append(committee, voter)
	}
	return committee, nil
}
