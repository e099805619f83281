package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/defi-academy/navigator/internal/domain/risk"
	"github.com/defi-academy/navigator/internal/domain/shared"
)

func newAssessCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Score a risk subject offline and print the result as JSON",
	}

	var amount float64
	transaction := &cobra.Command{
		Use:   "transaction <protocol>",
		Short: "Assess a transaction by protocol and USD amount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.assessOne(cmd.OutOrStdout(), risk.TransactionSubject(args[0], amount), risk.Inputs{})
		},
	}
	transaction.Flags().Float64Var(&amount, "amount", 0, "transaction amount in USD")

	var positions []string
	portfolio := &cobra.Command{
		Use:     "portfolio <wallet>",
		Short:   "Assess a portfolio from its positions",
		Example: "  navigatorctl assess portfolio 0xabc --position protocol:uniswap=1000 --position token:0xdead=250",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := parsePositions(positions)
			if err != nil {
				return err
			}
			return c.assessOne(cmd.OutOrStdout(), risk.PortfolioSubject(args[0]), inputs)
		},
	}
	portfolio.Flags().StringArrayVar(&positions, "position", nil, "position as kind:ref=value_usd (repeatable)")

	var file string
	batch := &cobra.Command{
		Use:   "batch",
		Short: "Assess a JSON array of {subject, inputs} items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return c.assessBatch(cmd.OutOrStdout(), in)
		},
	}
	batch.Flags().StringVarP(&file, "file", "f", "-", "input file, - for stdin")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "protocol <name>",
			Short: "Assess a protocol by name",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.assessOne(cmd.OutOrStdout(), risk.ProtocolSubject(args[0]), risk.Inputs{})
			},
		},
		&cobra.Command{
			Use:   "token <address>",
			Short: "Assess a token by contract address",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.assessOne(cmd.OutOrStdout(), risk.TokenSubject(args[0]), risk.Inputs{})
			},
		},
		transaction,
		portfolio,
		batch,
	)
	return cmd
}

func (c *cli) scorer() (*risk.Scorer, error) {
	cat, err := c.loadCatalog()
	if err != nil {
		return nil, err
	}
	return risk.NewScorer(c.cfg.Engine.Risk, cat.RiskTables())
}

func (c *cli) assessOne(w io.Writer, subject risk.Subject, inputs risk.Inputs) error {
	scorer, err := c.scorer()
	if err != nil {
		return err
	}
	result, err := scorer.Assess(subject, inputs)
	if err != nil {
		return err
	}
	return printJSON(w, result)
}

type batchItem struct {
	Subject risk.Subject `json:"subject"`
	Inputs  risk.Inputs  `json:"inputs"`
}

type batchOutcome struct {
	Result *risk.Result `json:"result,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// assessBatch scores every item. A failing item is reported in place and
// does not stop the batch.
func (c *cli) assessBatch(w io.Writer, r io.Reader) error {
	var items []batchItem
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return shared.WrapError("navigatorctl", "assess batch", shared.ErrValidation, "invalid batch JSON", err)
	}

	scorer, err := c.scorer()
	if err != nil {
		return err
	}

	out := make([]batchOutcome, len(items))
	for i, item := range items {
		result, err := scorer.Assess(item.Subject, item.Inputs)
		if err != nil {
			out[i].Error = err.Error()
			continue
		}
		out[i].Result = &result
	}
	return printJSON(w, out)
}

// parsePositions parses "kind:ref=value" specs.
func parsePositions(specs []string) (risk.Inputs, error) {
	inputs := risk.Inputs{Positions: make([]risk.Position, 0, len(specs))}
	for _, spec := range specs {
		kindRef, value, ok := strings.Cut(spec, "=")
		if !ok {
			return risk.Inputs{}, invalidPosition(spec)
		}
		kind, ref, ok := strings.Cut(kindRef, ":")
		if !ok || ref == "" {
			return risk.Inputs{}, invalidPosition(spec)
		}
		usd, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return risk.Inputs{}, invalidPosition(spec)
		}
		inputs.Positions = append(inputs.Positions, risk.Position{
			Kind:     risk.PositionKind(strings.ToLower(kind)),
			Ref:      ref,
			ValueUSD: usd,
		})
	}
	return inputs, nil
}

func invalidPosition(spec string) error {
	return shared.NewValidationError("navigatorctl", "parsePositions",
		fmt.Sprintf("position %q must look like kind:ref=value_usd", spec))
}
