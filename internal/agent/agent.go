// Package agent layers optional model-backed checks on top of detected
// opportunities. Implementations of the analyzer interfaces may call external
// services; the bundled ones are deterministic heuristics so the pipeline
// works without any model configured.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"polyedge/internal/domain"
)

// SentimentAnalyzer scores how strongly independent coverage supports the
// event outcome an opportunity is built on. Score is in 0..1.
type SentimentAnalyzer interface {
	AnalyzeSentiment(ctx context.Context, opp domain.Opportunity) (float64, error)
}

// RiskAssessor estimates the residual risk of entering a position. Score is
// in 0..1 where 0 is no identified risk.
type RiskAssessor interface {
	AssessRisk(ctx context.Context, opp domain.Opportunity) (float64, error)
}

// Verdict is the combined result of validating one opportunity.
type Verdict struct {
	Approved  bool
	Sentiment float64
	Risk      float64
	Reasoning string
}

// Thresholds applied by the validator.
const (
	minSentiment = 0.6
	maxRisk      = 0.5
)

// Validator runs an opportunity through sentiment and risk checks before it
// is surfaced or paper-traded.
type Validator struct {
	sentiment SentimentAnalyzer
	risk      RiskAssessor
	logger    *slog.Logger
}

// NewValidator creates a Validator. Either analyzer may be nil, in which case
// that check auto-passes.
func NewValidator(sentiment SentimentAnalyzer, risk RiskAssessor, logger *slog.Logger) *Validator {
	return &Validator{
		sentiment: sentiment,
		risk:      risk,
		logger:    logger.With(slog.String("component", "agent_validator")),
	}
}

// Validate runs both checks and combines them into a verdict. An analyzer
// error fails the validation rather than silently approving.
func (v *Validator) Validate(ctx context.Context, opp domain.Opportunity) (Verdict, error) {
	verdict := Verdict{Sentiment: 1.0, Risk: 0.0}

	if v.sentiment != nil {
		score, err := v.sentiment.AnalyzeSentiment(ctx, opp)
		if err != nil {
			return Verdict{}, fmt.Errorf("agent: sentiment analysis: %w", err)
		}
		verdict.Sentiment = score
	}
	if v.risk != nil {
		score, err := v.risk.AssessRisk(ctx, opp)
		if err != nil {
			return Verdict{}, fmt.Errorf("agent: risk assessment: %w", err)
		}
		verdict.Risk = score
	}

	switch {
	case verdict.Sentiment < minSentiment:
		verdict.Reasoning = fmt.Sprintf("sentiment %.2f below %.2f", verdict.Sentiment, minSentiment)
	case verdict.Risk > maxRisk:
		verdict.Reasoning = fmt.Sprintf("risk %.2f above %.2f", verdict.Risk, maxRisk)
	default:
		verdict.Approved = true
		verdict.Reasoning = fmt.Sprintf("sentiment %.2f, risk %.2f", verdict.Sentiment, verdict.Risk)
	}

	if !verdict.Approved {
		v.logger.Info("opportunity rejected by agent checks",
			slog.String("market", opp.Slug),
			slog.String("reason", verdict.Reasoning),
		)
	}
	return verdict, nil
}

// HeuristicSentiment approximates sentiment from the certainty evidence
// already attached to the opportunity. It stands in when no model-backed
// analyzer is configured.
type HeuristicSentiment struct{}

func (HeuristicSentiment) AnalyzeSentiment(ctx context.Context, opp domain.Opportunity) (float64, error) {
	return opp.CertaintyScore, nil
}

// HeuristicRisk flags positions close to the size cap and entries far from
// the historical sweet spot as riskier.
type HeuristicRisk struct {
	MaxPositionUSD float64
}

func (h HeuristicRisk) AssessRisk(ctx context.Context, opp domain.Opportunity) (float64, error) {
	maxPos := h.MaxPositionUSD
	if maxPos <= 0 {
		maxPos = 5000
	}

	risk := 0.1
	if opp.PositionSizeUSD >= maxPos {
		risk += 0.2
	}
	if opp.EntryPrice < 0.3 {
		// Deep long shots priced this low rarely reflect genuinely certain
		// outcomes even when a source claims finality.
		risk += 0.3
	}
	if strings.TrimSpace(opp.Reasoning) == "" {
		risk += 0.1
	}
	return risk, nil
}
