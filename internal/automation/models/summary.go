package models

import (
	"strings"
	"time"

	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
)

// Job names one batch operation.
type Job string

const (
	JobRecalculateScores     Job = "recalculate_scores"
	JobDowngradeInactive     Job = "downgrade_inactive"
	JobFlagSuspicious        Job = "flag_suspicious"
	JobRecalculateCompletion Job = "recalculate_completion"
)

// Jobs lists every job in the order RunAll reports them.
var Jobs = []Job{
	JobRecalculateScores,
	JobDowngradeInactive,
	JobFlagSuspicious,
	JobRecalculateCompletion,
}

func (j Job) IsValid() bool {
	switch j {
	case JobRecalculateScores, JobDowngradeInactive, JobFlagSuspicious, JobRecalculateCompletion:
		return true
	default:
		return false
	}
}

func ParseJob(raw string) (Job, error) {
	j := Job(strings.ToLower(strings.TrimSpace(raw)))
	if !j.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown automation job %q", raw)
	}
	return j, nil
}

// Fields a Delta can describe.
const (
	FieldTrustScore        = "trust_score"
	FieldProfileCompletion = "profile_completion"
	FieldReport            = "report"
)

// Delta is one persisted change made by a job.
type Delta struct {
	ProfileID id.ProfileID `json:"profile_id"`
	Field     string       `json:"field"`
	Before    float64      `json:"before"`
	After     float64      `json:"after"`
	Reason    string       `json:"reason,omitempty"`
	ReportID  string       `json:"report_id,omitempty"`
}

// Failure is an item the job could not process. It does not stop the run.
type Failure struct {
	ProfileID id.ProfileID `json:"profile_id"`
	Error     string       `json:"error"`
}

// Summary is the audit output of one job run.
type Summary struct {
	Job           Job       `json:"job"`
	Processed     int       `json:"processed"`
	Deltas        []Delta   `json:"deltas"`
	Failures      []Failure `json:"failures"`
	ThresholdDays int       `json:"threshold_days,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

func NewSummary(job Job, startedAt time.Time) *Summary {
	return &Summary{
		Job:       job,
		Deltas:    []Delta{},
		Failures:  []Failure{},
		StartedAt: startedAt,
	}
}

// Changed is the number of persisted changes.
func (s *Summary) Changed() int {
	return len(s.Deltas)
}

func (s *Summary) AddDelta(d Delta) {
	s.Deltas = append(s.Deltas, d)
}

func (s *Summary) AddFailure(profileID id.ProfileID, err error) {
	s.Failures = append(s.Failures, Failure{ProfileID: profileID, Error: err.Error()})
}
