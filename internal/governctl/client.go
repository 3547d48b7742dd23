package governctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	governancehttp "pentarchy/contexts/governance/proposal-voting/transport/http"
)

const apiPrefix = "/api/v1/votes"

// APIError is a non-2xx answer from the governance API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("governance api returned %d", e.Status)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// Client talks to the governance HTTP API.
type Client struct {
	BaseURL string
	User    string
	HTTP    *http.Client
}

func NewClient(baseURL string, user string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		User:    user,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) CreateProposal(ctx context.Context, req governancehttp.CreateProposalRequest) (governancehttp.ProposalResponse, error) {
	var out governancehttp.ProposalResponse
	err := c.do(ctx, http.MethodPost, "/proposals", req, &out)
	return out, err
}

func (c *Client) GetProposal(ctx context.Context, proposalID string) (governancehttp.ProposalResponse, error) {
	var out governancehttp.ProposalResponse
	err := c.do(ctx, http.MethodGet, "/proposals/"+url.PathEscape(proposalID), nil, &out)
	return out, err
}

func (c *Client) ListProposals(ctx context.Context, status string, limit int, offset int) (governancehttp.ListProposalsResponse, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}
	path := "/proposals"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var out governancehttp.ListProposalsResponse
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) PendingProposals(ctx context.Context) (governancehttp.PendingProposalsResponse, error) {
	var out governancehttp.PendingProposalsResponse
	err := c.do(ctx, http.MethodGet, "/pending", nil, &out)
	return out, err
}

func (c *Client) SubmitVote(ctx context.Context, proposalID string, req governancehttp.SubmitVoteRequest) (governancehttp.ProposalResponse, error) {
	var out governancehttp.ProposalResponse
	err := c.do(ctx, http.MethodPost, "/proposals/"+url.PathEscape(proposalID)+"/vote", req, &out)
	return out, err
}

func (c *Client) ResolveProposal(ctx context.Context, proposalID string) (governancehttp.ProposalResponse, error) {
	var out governancehttp.ProposalResponse
	err := c.do(ctx, http.MethodPost, "/proposals/"+url.PathEscape(proposalID)+"/resolve", nil, &out)
	return out, err
}

func (c *Client) Stats(ctx context.Context) (governancehttp.StatsResponse, error) {
	var out governancehttp.StatsResponse
	err := c.do(ctx, http.MethodGet, "/stats", nil, &out)
	return out, err
}

func (c *Client) Thresholds(ctx context.Context) (governancehttp.ThresholdsResponse, error) {
	var out governancehttp.ThresholdsResponse
	err := c.do(ctx, http.MethodGet, "/thresholds", nil, &out)
	return out, err
}

func (c *Client) AnalyzeAction(ctx context.Context, message string) (governancehttp.ActionAnalysisResponse, error) {
	var out governancehttp.ActionAnalysisResponse
	err := c.do(ctx, http.MethodPost, "/analyze-action", governancehttp.AnalyzeActionRequest{Message: message}, &out)
	return out, err
}

func (c *Client) AutoProposal(ctx context.Context, req governancehttp.AutoProposalRequest) (governancehttp.AutoProposalResponse, error) {
	var out governancehttp.AutoProposalResponse
	err := c.do(ctx, http.MethodPost, "/auto-proposal", req, &out)
	return out, err
}

// WaitForResolution polls the proposal until it leaves pending or ctx ends.
func (c *Client) WaitForResolution(ctx context.Context, proposalID string, interval time.Duration) (governancehttp.ProposalResponse, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		proposal, err := c.GetProposal(ctx, proposalID)
		if err != nil {
			return governancehttp.ProposalResponse{}, err
		}
		if proposal.Status != "pending" {
			return proposal, nil
		}
		select {
		case <-ctx.Done():
			return proposal, fmt.Errorf("proposal %s still pending: %w", proposalID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method string, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+apiPrefix+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.User != "" {
		req.Header.Set("X-User-Id", c.User)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload governancehttp.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&payload) == nil {
			apiErr.Code = payload.Code
			apiErr.Message = payload.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
