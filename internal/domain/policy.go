package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type PolicyStatus string

const (
	PolicyStatusPending PolicyStatus = "PENDING"
	PolicyStatusPass    PolicyStatus = "PASS"
	PolicyStatusWarn    PolicyStatus = "WARN"
	PolicyStatusReview  PolicyStatus = "REVIEW"
	PolicyStatusBlock   PolicyStatus = "BLOCK"
)

// Severity orders policy statuses for max-aggregation. PENDING sits below
// PASS so an unset stage never outranks an explicit verdict.
func (s PolicyStatus) Severity() int {
	switch s {
	case PolicyStatusPass:
		return 1
	case PolicyStatusWarn:
		return 2
	case PolicyStatusReview:
		return 3
	case PolicyStatusBlock:
		return 4
	default:
		return 0
	}
}

type PolicyStage string

const (
	PolicyStageScriptLight PolicyStage = "script-light"
	PolicyStageAssetStrong PolicyStage = "asset-strong"
)

// PolicyFinding is a single rule verdict with supporting evidence.
type PolicyFinding struct {
	RuleCode string       `json:"rule_code"`
	Status   PolicyStatus `json:"status"`
	Reason   string       `json:"reason"`
	Evidence []string     `json:"evidence,omitempty"`
}

// PolicyRun is one executed check for one stage. The latest run per stage is
// the stage's effective verdict.
type PolicyRun struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	VideoID     uint64         `gorm:"column:video_id;not null;index" json:"video_id"`
	Stage       PolicyStage    `gorm:"column:stage;not null;index" json:"stage"`
	StageStatus PolicyStatus   `gorm:"column:stage_status;not null" json:"stage_status"`
	Findings    datatypes.JSON `gorm:"column:findings;type:jsonb" json:"findings"`
	CreatedAt   time.Time      `gorm:"not null;default:now();index" json:"created_at"`
}

func (PolicyRun) TableName() string { return "policy_runs" }

func (r *PolicyRun) DecodeFindings() ([]PolicyFinding, error) {
	if len(r.Findings) == 0 {
		return nil, nil
	}
	var out []PolicyFinding
	if err := json.Unmarshal(r.Findings, &out); err != nil {
		return nil, fmt.Errorf("policy run %s: decode findings: %w", r.ID, err)
	}
	return out, nil
}

func (r *PolicyRun) SetFindings(findings []PolicyFinding) error {
	raw, err := json.Marshal(findings)
	if err != nil {
		return err
	}
	r.Findings = datatypes.JSON(raw)
	return nil
}
