package types

import "fmt"

// Stage is a pipeline column.
type Stage string

// Stage constants, in pipeline order.
const (
	StageProspect    Stage = "prospect"
	StageLead        Stage = "lead"
	StageOpportunity Stage = "opportunity"
	StageDeal        Stage = "deal"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StageProspect, StageLead, StageOpportunity, StageDeal}

// DeriveStage maps the three facts that decide a lead's position to its stage.
func DeriveStage(applied bool, gotTheJob *bool, hasInterviews bool) Stage {
	switch {
	case !applied:
		return StageProspect
	case gotTheJob != nil && *gotTheJob:
		return StageDeal
	case hasInterviews:
		return StageOpportunity
	default:
		return StageLead
	}
}

// ParseStage parses a stage name.
func ParseStage(s string) (Stage, error) {
	for _, st := range Stages {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown stage %q", ErrInvalidInput, s)
}

// Index returns the position of the stage in the pipeline, or -1.
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Label returns the display name of the stage.
func (s Stage) Label() string {
	switch s {
	case StageProspect:
		return "Prospects"
	case StageLead:
		return "Lead"
	case StageOpportunity:
		return "Opportunity"
	case StageDeal:
		return "Deal"
	default:
		return string(s)
	}
}
