package service

import (
	"context"

	"github.com/Rishie123/billprocessor/model"
)

// JSON keys the classification prompt instructs the model to emit.
const (
	keyBillType  = "bill_type"
	keyPartyName = "party_name"
)

// AnalysisService runs the two model stages over a bill image: the cheap
// classification pass and the detailed field extraction pass.
type AnalysisService struct {
	model ModelClient
}

func NewAnalysisService(model ModelClient) *AnalysisService {
	return &AnalysisService{model: model}
}

// ClassifyBill determines the bill category and the primary party name.
// Output that parses but lacks either key is a *ParseError, the same
// terminal outcome as output that does not parse at all. No retries.
func (s *AnalysisService) ClassifyBill(ctx context.Context, image []byte, mimeType string) (*model.Classification, error) {
	text, err := s.model.Generate(ctx, classifyPrompt, image, mimeType)
	if err != nil {
		return nil, err
	}

	rec, err := ParseRecord(text)
	if err != nil {
		return nil, err
	}

	cls := &model.Classification{
		BillType:  rec.Get(keyBillType, ""),
		PartyName: rec.Get(keyPartyName, ""),
	}
	if cls.BillType == "" || cls.PartyName == "" {
		return nil, &ParseError{Raw: text, Reason: `missing "bill_type" or "party_name"`}
	}
	return cls, nil
}

// ExtractBillDetails pulls the structured record out of the bill image.
// The record is open-ended: the model may emit fields beyond the nine the
// prompt names, and all of them flow through to the ledger.
func (s *AnalysisService) ExtractBillDetails(ctx context.Context, image []byte, mimeType string) (*model.BillRecord, error) {
	text, err := s.model.Generate(ctx, extractPrompt, image, mimeType)
	if err != nil {
		return nil, err
	}
	return ParseRecord(text)
}
