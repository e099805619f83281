// Package risk computes five-dimension risk scores for protocols, tokens,
// portfolios and transactions, classifies them into levels and selects
// warnings and recommendations from reference tables.
//
// Scoring is a pure function of (subject, inputs, tables). Caching and
// persistence of results live in the application layer.
package risk

import (
	"fmt"
	"math"
	"strings"

	"github.com/defi-academy/navigator/internal/domain/shared"
)

// SubjectType discriminates risk subjects.
type SubjectType string

const (
	SubjectProtocol    SubjectType = "protocol"
	SubjectToken       SubjectType = "token"
	SubjectPortfolio   SubjectType = "portfolio"
	SubjectTransaction SubjectType = "transaction"
)

// AllSubjectTypes lists every subject type.
var AllSubjectTypes = []SubjectType{SubjectProtocol, SubjectToken, SubjectPortfolio, SubjectTransaction}

// IsValid checks if the type is known.
func (t SubjectType) IsValid() bool {
	switch t {
	case SubjectProtocol, SubjectToken, SubjectPortfolio, SubjectTransaction:
		return true
	}
	return false
}

// ParseSubjectType parses a case-insensitive subject type.
func ParseSubjectType(s string) (SubjectType, error) {
	t := SubjectType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", shared.WrapError("risk", "ParseSubjectType", shared.ErrInvalidInput,
			fmt.Sprintf("unknown subject type %q", s), shared.ErrUnknownSubjectType)
	}
	return t, nil
}

// Subject identifies what is being assessed. Only the fields for Type are used.
type Subject struct {
	Type          SubjectType `json:"type"`
	ProtocolName  string      `json:"protocol_name,omitempty"`
	TokenAddress  string      `json:"token_address,omitempty"`
	WalletAddress string      `json:"wallet_address,omitempty"`
	Amount        float64     `json:"amount,omitempty"`
}

// ProtocolSubject builds a protocol subject.
func ProtocolSubject(name string) Subject {
	return Subject{Type: SubjectProtocol, ProtocolName: name}
}

// TokenSubject builds a token subject.
func TokenSubject(address string) Subject {
	return Subject{Type: SubjectToken, TokenAddress: address}
}

// PortfolioSubject builds a portfolio subject.
func PortfolioSubject(wallet string) Subject {
	return Subject{Type: SubjectPortfolio, WalletAddress: wallet}
}

// TransactionSubject builds a transaction subject.
func TransactionSubject(protocol string, amount float64) Subject {
	return Subject{Type: SubjectTransaction, ProtocolName: protocol, Amount: amount}
}

// Normalize returns the subject with identifiers trimmed and lower-cased and
// unused fields cleared.
func (s Subject) Normalize() Subject {
	out := Subject{Type: s.Type}
	switch s.Type {
	case SubjectProtocol:
		out.ProtocolName = NormalizeKey(s.ProtocolName)
	case SubjectToken:
		out.TokenAddress = NormalizeKey(s.TokenAddress)
	case SubjectPortfolio:
		out.WalletAddress = NormalizeKey(s.WalletAddress)
	case SubjectTransaction:
		out.ProtocolName = NormalizeKey(s.ProtocolName)
		out.Amount = s.Amount
	}
	return out
}

// Key returns the identifying key for the subject type.
func (s Subject) Key() string {
	n := s.Normalize()
	switch n.Type {
	case SubjectProtocol, SubjectTransaction:
		return n.ProtocolName
	case SubjectToken:
		return n.TokenAddress
	case SubjectPortfolio:
		return n.WalletAddress
	default:
		return ""
	}
}

// Validate checks that the identifying fields for Type are present.
func (s Subject) Validate() error {
	const op = "ValidateSubject"

	if !s.Type.IsValid() {
		return shared.WrapError("risk", op, shared.ErrInvalidInput,
			fmt.Sprintf("unknown subject type %q", s.Type), shared.ErrUnknownSubjectType)
	}
	if s.Key() == "" {
		return shared.NewValidationError("risk", op,
			fmt.Sprintf("%s subject requires an identifier", s.Type))
	}
	if s.Type == SubjectTransaction {
		if math.IsNaN(s.Amount) || math.IsInf(s.Amount, 0) || s.Amount < 0 {
			return shared.WrapError("risk", op, shared.ErrValidation,
				"transaction amount must be a finite non-negative number", shared.ErrNegativeValue)
		}
	}
	return nil
}

// PositionKind is what a portfolio position refers to.
type PositionKind string

const (
	PositionProtocol PositionKind = "protocol"
	PositionToken    PositionKind = "token"
)

// Position is one holding of a portfolio.
type Position struct {
	Kind     PositionKind `json:"kind"`
	Ref      string       `json:"ref"`
	ValueUSD float64      `json:"value_usd"`
}

// Inputs is the per-type data bundle. Only portfolios use it today.
type Inputs struct {
	Positions []Position `json:"positions,omitempty"`
}

// Validate checks the inputs for subject type t.
func (in Inputs) Validate(t SubjectType) error {
	if t != SubjectPortfolio {
		return nil
	}
	total := 0.0
	for i, p := range in.Positions {
		if p.Kind != PositionProtocol && p.Kind != PositionToken {
			return shared.NewValidationError("risk", "ValidateInputs",
				fmt.Sprintf("position %d: unknown kind %q", i, p.Kind))
		}
		if NormalizeKey(p.Ref) == "" {
			return shared.NewValidationError("risk", "ValidateInputs",
				fmt.Sprintf("position %d: ref is required", i))
		}
		if math.IsNaN(p.ValueUSD) || math.IsInf(p.ValueUSD, 0) || p.ValueUSD <= 0 {
			return shared.NewValidationError("risk", "ValidateInputs",
				fmt.Sprintf("position %d: value must be positive", i))
		}
		total += p.ValueUSD
		if math.IsInf(total, 0) {
			return shared.NewValidationError("risk", "ValidateInputs", "portfolio total value overflows")
		}
	}
	return nil
}

// NormalizeKey trims and lower-cases a protocol name, address or wallet.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
