package tools

import (
	"context"
	"encoding/json"
)

// ClaimEvidence is one provenance record supporting a claim. Payload carries
// the raw source record and is stripped before reinjection into the LLM.
type ClaimEvidence struct {
	EvidenceType    string          `json:"evidence_type"`
	SourceRecordID  *string         `json:"source_record_id,omitempty"`
	SourceURL       *string         `json:"source_url,omitempty"`
	Dataset         *string         `json:"dataset,omitempty"`
	SupportStrength *float64        `json:"support_strength,omitempty"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	EvidenceKey     int64           `json:"evidence_key"`
}

// ClaimDetail is a claim with all its linked evidence. This is the audit
// backbone: every other tool result carries claim keys that drill down here.
type ClaimDetail struct {
	ClaimType     string          `json:"claim_type"`
	Strength      *float64        `json:"strength,omitempty"`
	Polarity      *int            `json:"polarity,omitempty"`
	Dataset       *string         `json:"dataset,omitempty"`
	Statement     json.RawMessage `json:"statement,omitempty"`
	ClaimKey      int64           `json:"claim_key"`
	Evidence      []ClaimEvidence `json:"evidence"`
}

// GetClaimEvidence returns the full evidence trail for a claim, or nil when
// the claim does not exist.
func (l *Library) GetClaimEvidence(ctx context.Context, claimKey int64) (*ClaimDetail, error) {
	claim, err := l.store.ClaimByKey(ctx, claimKey)
	if err != nil {
		return nil, upstream(err)
	}
	if claim == nil {
		return nil, nil
	}

	evidenceRows, err := l.store.ClaimEvidence(ctx, claimKey)
	if err != nil {
		return nil, upstream(err)
	}

	evidence := make([]ClaimEvidence, 0, len(evidenceRows))
	for _, e := range evidenceRows {
		evidence = append(evidence, ClaimEvidence{
			EvidenceType:    e.EvidenceType,
			SourceRecordID:  e.SourceRecordID,
			SourceURL:       e.SourceURL,
			Dataset:         e.DatasetKey,
			SupportStrength: e.SupportStrength,
			Payload:         json.RawMessage(e.PayloadJSON),
			EvidenceKey:     e.EvidenceKey,
		})
	}

	return &ClaimDetail{
		ClaimType: claim.ClaimType,
		Strength:  claim.StrengthScore,
		Polarity:  claim.Polarity,
		Dataset:   claim.DatasetKey,
		Statement: json.RawMessage(claim.StatementJSON),
		ClaimKey:  claim.ClaimKey,
		Evidence:  evidence,
	}, nil
}

var validEntityKinds = map[string]bool{
	"Drug":         true,
	"Gene":         true,
	"Disease":      true,
	"Pathway":      true,
	"AdverseEvent": true,
}

// GetEntityClaims returns claims attached to an entity with their evidence.
// entityKind must be one of Drug, Gene, Disease, Pathway, AdverseEvent.
func (l *Library) GetEntityClaims(ctx context.Context, entityKind string, entityKey int64, claimTypes []string, limit int) ([]ClaimDetail, error) {
	if !validEntityKinds[entityKind] {
		return nil, invalidArgs("unknown entity kind %q", entityKind)
	}
	if limit <= 0 {
		limit = 100
	}

	claims, err := l.store.EntityClaims(ctx, entityKind, entityKey, claimTypes, limit)
	if err != nil {
		return nil, upstream(err)
	}

	out := make([]ClaimDetail, 0, len(claims))
	for _, c := range claims {
		detail, err := l.GetClaimEvidence(ctx, c.ClaimKey)
		if err != nil {
			return nil, err
		}
		if detail != nil {
			out = append(out, *detail)
		}
	}
	return out, nil
}
