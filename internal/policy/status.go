package policy

import (
	types "github.com/yungbote/newsreel-backend/internal/domain"
)

// PublishPrivacy is the irreversible publish decision derived from the
// overall policy verdict.
type PublishPrivacy string

const (
	// PublishNone: the publish workflow must not run at all.
	PublishNone PublishPrivacy = "none"
	// PublishPublic: fully public.
	PublishPublic PublishPrivacy = "public"
	// PublishPrivate: unlisted pending human review.
	PublishPrivate PublishPrivacy = "private"
)

// DeriveStageStatus aggregates heterogeneous findings into a stage verdict:
// the maximum-severity finding status. An empty finding set is a PASS.
func DeriveStageStatus(findings []types.PolicyFinding) types.PolicyStatus {
	status := types.PolicyStatusPass
	for _, f := range findings {
		if f.Status.Severity() > status.Severity() {
			status = f.Status
		}
	}
	return status
}

// DeriveOverallStatus combines the latest verdicts of both stages. An unset
// stage counts as PENDING, which sits below every explicit verdict.
func DeriveOverallStatus(scriptStage, assetStage types.PolicyStatus) types.PolicyStatus {
	script := normalize(scriptStage)
	asset := normalize(assetStage)
	if asset.Severity() > script.Severity() {
		return asset
	}
	return script
}

// DerivePublishPrivacy maps the overall verdict to a publish mode. The
// mapping is safety-biased: anything short of an explicit clean result
// defaults to the least-exposed mode.
func DerivePublishPrivacy(overall types.PolicyStatus) PublishPrivacy {
	switch normalize(overall) {
	case types.PolicyStatusBlock:
		return PublishNone
	case types.PolicyStatusPass:
		return PublishPublic
	default:
		return PublishPrivate
	}
}

func normalize(s types.PolicyStatus) types.PolicyStatus {
	if s == "" {
		return types.PolicyStatusPending
	}
	return s
}
