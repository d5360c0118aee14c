package planner

import (
	"github.com/ritmo/agenda-engine/schedule"
)

// =============================================================================
// LOCAL VALIDATION - Blocks submission without any network call
// =============================================================================

// Validate checks every staged row and records per-row messages. A row
// needs a non-empty calendar date; time fields only need to be
// well-formed when present. An end time earlier than the start time is
// explicitly allowed: it represents an overnight span (23:00-02:00).
func (p *Planner) Validate() []error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, row := range p.rows {
		delete(p.rowErrors, row.LocalID)
		if err := validateRow(row); err != nil {
			errs = append(errs, err)
			p.rowErrors[row.LocalID] = err.Message
		}
	}
	return errs
}

// RowError returns the recorded validation message for a row, if any.
func (p *Planner) RowError(id schedule.LocalID) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg, ok := p.rowErrors[id]
	return msg, ok
}

func validateRow(row *schedule.StagedRow) *schedule.RowValidationError {
	if row.Date.IsZero() {
		return &schedule.RowValidationError{
			LocalID: row.LocalID,
			Field:   "calendarDate",
			Message: "calendar date is required",
		}
	}
	if row.StartTime != "" && !schedule.IsClockTime(row.StartTime) {
		return &schedule.RowValidationError{
			LocalID: row.LocalID,
			Field:   "startTime",
			Message: "start time must look like HH:MM",
		}
	}
	if row.EndTime != "" && !schedule.IsClockTime(row.EndTime) {
		return &schedule.RowValidationError{
			LocalID: row.LocalID,
			Field:   "endTime",
			Message: "end time must look like HH:MM",
		}
	}
	return nil
}
