package governctl

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	governancehttp "pentarchy/contexts/governance/proposal-voting/transport/http"

	"github.com/spf13/cobra"
)

type options struct {
	server  string
	user    string
	timeout time.Duration
	json    bool
	client  *Client
}

// NewRootCmd builds the governctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "governctl",
		Short: "Drive the five-voter governance API",
		Long: `governctl creates proposals, casts and inspects votes and reads the
governance rules of a running pentarchy API.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.client = NewClient(opts.server, opts.user, opts.timeout)
		},
	}

	defaultServer := os.Getenv("GOVERNCTL_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}
	root.PersistentFlags().StringVarP(&opts.server, "server", "s", defaultServer, "Governance API base URL")
	root.PersistentFlags().StringVarP(&opts.user, "user", "u", os.Getenv("USER"), "Initiator sent as X-User-Id")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "HTTP request timeout")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "Print raw JSON responses")

	root.AddCommand(
		proposeCmd(opts),
		getCmd(opts),
		waitCmd(opts),
		listCmd(opts),
		pendingCmd(opts),
		voteCmd(opts),
		resolveCmd(opts),
		statsCmd(opts),
		thresholdsCmd(opts),
		analyzeCmd(opts),
	)
	return root
}

func (o *options) render(w io.Writer, value any, human func(io.Writer)) error {
	if o.json {
		return printJSON(w, value)
	}
	human(w)
	return nil
}

func (o *options) renderProposal(w io.Writer, proposal governancehttp.ProposalResponse) error {
	return o.render(w, proposal, func(w io.Writer) { printProposal(w, proposal) })
}

func proposeCmd(opts *options) *cobra.Command {
	var (
		req          governancehttp.CreateProposalRequest
		contextPairs map[string]string
		wait         bool
		pollInterval time.Duration
		waitTimeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "propose",
		Short: "Create a proposal and dispatch it to the committee",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(contextPairs) > 0 {
				req.Context = make(map[string]any, len(contextPairs))
				for key, value := range contextPairs {
					req.Context[key] = value
				}
			}
			req.RiskLevel = strings.ToLower(req.RiskLevel)
			proposal, err := opts.client.CreateProposal(cmd.Context(), req)
			if err != nil {
				return err
			}
			if wait && proposal.Status == "pending" {
				ctx, cancel := context.WithTimeout(cmd.Context(), waitTimeout)
				defer cancel()
				proposal, err = opts.client.WaitForResolution(ctx, proposal.ProposalID, pollInterval)
				if err != nil {
					return err
				}
			}
			return opts.renderProposal(cmd.OutOrStdout(), proposal)
		},
	}
	cmd.Flags().StringVarP(&req.Title, "title", "t", "", "Proposal title (required)")
	cmd.Flags().StringVarP(&req.Description, "description", "d", "", "Proposal description")
	cmd.Flags().Float64VarP(&req.Cost, "cost", "c", 0, "Estimated cost")
	cmd.Flags().StringVarP(&req.RiskLevel, "risk", "r", "medium", "Risk level: low, medium, high or critical")
	cmd.Flags().StringToStringVar(&contextPairs, "context", nil, "Context entries as key=value")
	cmd.Flags().BoolVar(&req.AutoExecute, "auto-execute", false, "Mark the proposal for automatic execution")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait until the proposal is resolved")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", time.Second, "Polling interval for --wait")
	cmd.Flags().DurationVar(&waitTimeout, "wait-timeout", 2*time.Minute, "Maximum time to wait with --wait")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func getCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get PROPOSAL_ID",
		Short: "Show a proposal with its votes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proposal, err := opts.client.GetProposal(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return opts.renderProposal(cmd.OutOrStdout(), proposal)
		},
	}
}

func waitCmd(opts *options) *cobra.Command {
	var (
		pollInterval time.Duration
		waitTimeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "wait PROPOSAL_ID",
		Short: "Poll a proposal until it is resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), waitTimeout)
			defer cancel()
			proposal, err := opts.client.WaitForResolution(ctx, args[0], pollInterval)
			if err != nil {
				return err
			}
			return opts.renderProposal(cmd.OutOrStdout(), proposal)
		},
	}
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", time.Second, "Polling interval")
	cmd.Flags().DurationVar(&waitTimeout, "wait-timeout", 2*time.Minute, "Maximum time to wait")
	return cmd
}

func listCmd(opts *options) *cobra.Command {
	var (
		status string
		limit  int
		offset int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proposals, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.client.ListProposals(cmd.Context(), status, limit, offset)
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), resp, func(w io.Writer) { printSummaries(w, resp.Items) })
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of proposals (1-100)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of proposals to skip")
	return cmd
}

func pendingCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List proposals still collecting votes",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.client.PendingProposals(cmd.Context())
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), resp, func(w io.Writer) { printPending(w, resp.Items) })
		},
	}
}

func voteCmd(opts *options) *cobra.Command {
	var (
		agent     string
		decision  string
		score     float64
		reasoning []string
	)
	cmd := &cobra.Command{
		Use:   "vote PROPOSAL_ID",
		Short: "Cast a vote on behalf of a committee member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proposal, err := opts.client.SubmitVote(cmd.Context(), args[0], governancehttp.SubmitVoteRequest{
				Agent:     agent,
				Vote:      strings.ToUpper(decision),
				Score:     &score,
				Reasoning: reasoning,
			})
			if err != nil {
				return err
			}
			return opts.renderProposal(cmd.OutOrStdout(), proposal)
		},
	}
	cmd.Flags().StringVarP(&agent, "agent", "a", "", "Voter id (required)")
	cmd.Flags().StringVar(&decision, "decision", "", "APPROVE, REJECT or ABSTAIN (required)")
	cmd.Flags().Float64Var(&score, "score", 0, "Vote score")
	cmd.Flags().StringArrayVar(&reasoning, "reason", nil, "Reasoning line, repeatable")
	_ = cmd.MarkFlagRequired("agent")
	_ = cmd.MarkFlagRequired("decision")
	return cmd
}

func resolveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve PROPOSAL_ID",
		Short: "Force resolution on the votes collected so far",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proposal, err := opts.client.ResolveProposal(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return opts.renderProposal(cmd.OutOrStdout(), proposal)
		},
	}
}

func statsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate voting statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := opts.client.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), stats, func(w io.Writer) { printStats(w, stats) })
		},
	}
}

func thresholdsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "thresholds",
		Short: "Show thresholds, committee and cost bands",
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := opts.client.Thresholds(cmd.Context())
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), rules, func(w io.Writer) { printThresholds(w, rules) })
		},
	}
}

func analyzeCmd(opts *options) *cobra.Command {
	var (
		create         bool
		conversationID string
	)
	cmd := &cobra.Command{
		Use:   "analyze MESSAGE...",
		Short: "Estimate cost and risk of a free-text action",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")
			if !create {
				analysis, err := opts.client.AnalyzeAction(cmd.Context(), message)
				if err != nil {
					return err
				}
				return opts.render(cmd.OutOrStdout(), analysis, func(w io.Writer) { printAnalysis(w, analysis) })
			}

			resp, err := opts.client.AutoProposal(cmd.Context(), governancehttp.AutoProposalRequest{
				Message:        message,
				ConversationID: conversationID,
			})
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), resp, func(w io.Writer) {
				printAnalysis(w, resp.Analysis)
				if resp.Proposal != nil {
					printProposal(w, *resp.Proposal)
					return
				}
				fmt.Fprintf(w, "no proposal created: %s\n", resp.Reason)
			})
		},
	}
	cmd.Flags().BoolVar(&create, "create", false, "Open a proposal when the action needs a vote")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "Conversation id recorded on the proposal")
	return cmd
}
