package sms

import (
	"github.com/Veraticus/spice-sms/internal/common"
	"github.com/Veraticus/spice-sms/internal/merchant"
	"github.com/Veraticus/spice-sms/internal/model"
)

// ParseResult holds exactly one of Candidate or Rejection.
type ParseResult struct {
	Candidate *model.Candidate
	Rejection *model.Rejection
}

// Accepted reports whether a candidate was produced.
func (r ParseResult) Accepted() bool {
	return r.Candidate != nil
}

// Parser runs validation, extraction, direction and scoring for one message.
type Parser struct {
	validator *Validator
	extractor *Extractor
}

// NewParser builds a parser around extractor. A nil extractor uses the built-in cascades.
func NewParser(extractor *Extractor) *Parser {
	if extractor == nil {
		extractor = NewDefaultExtractor()
	}
	return &Parser{
		validator: NewValidator(extractor),
		extractor: extractor,
	}
}

// Validator returns the validator the parser gates on.
func (p *Parser) Validator() *Validator {
	return p.validator
}

// Parse turns msg into a candidate or a rejection with a single reason.
func (p *Parser) Parse(msg model.RawMessage) ParseResult {
	verdict := p.validator.Validate(msg)
	if !verdict.Accepted {
		return reject(msg, verdict.Reason)
	}

	amount, ok := p.extractor.ExtractAmount(msg.Body)
	if !ok {
		return reject(msg, ReasonParseFailed)
	}

	raw := p.extractor.ExtractMerchant(msg.Body)
	normalized := merchant.Normalize(raw)
	if raw == model.UnknownMerchant || normalized == "" {
		return reject(msg, ReasonParseFailed)
	}

	direction := ClassifyDirection(msg.Body)
	if direction.Uncertain {
		common.LogDebug("direction defaulted to debit", common.Fields{
			"message_id": msg.ID,
			"sender":     msg.Sender,
		})
	}

	return ParseResult{Candidate: &model.Candidate{
		Timestamp:          msg.Timestamp,
		Amount:             amount,
		MerchantRaw:        raw,
		MerchantNormalized: normalized,
		BankName:           ExtractBank(msg.Sender),
		MessageID:          msg.ID,
		RawBody:            msg.Body,
		Confidence:         Score(msg.Body),
		IsDebit:            direction.IsDebit,
		DirectionUncertain: direction.Uncertain,
	}}
}

func reject(msg model.RawMessage, reason string) ParseResult {
	common.LogDebug("message rejected", common.Fields{
		"message_id": msg.ID,
		"sender":     msg.Sender,
		"reason":     reason,
	})
	rejection := model.NewRejection(msg, reason)
	return ParseResult{Rejection: &rejection}
}
