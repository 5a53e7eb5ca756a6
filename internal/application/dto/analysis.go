package dto

import "github.com/google/uuid"

// SubmitBatchRequest represents a request to analyze a set of résumés
// against one vacancy. An empty ResumeRefs slice means "every résumé
// the source lists for the vacancy".
type SubmitBatchRequest struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	SessionID      uuid.UUID `json:"session_id"`
	VacancyRef     string    `json:"vacancy_ref"`
	VacancyText    string    `json:"vacancy_text"`
	ResumeRefs     []string  `json:"resume_refs"`
}

// BatchManifest is the immediate, transient result of one batch
// submission: which résumés became tasks and which were skipped because
// their text could not be resolved.
type BatchManifest struct {
	DispatchedTaskIDs []uuid.UUID `json:"dispatched_task_ids"`
	SkippedResumeRefs []string    `json:"skipped_resume_refs"`
	TaskCount         int         `json:"task_count"`
}

// SessionChannel names the progress channel for one session.
// Publishers and subscribers must agree on this scheme.
func SessionChannel(sessionID uuid.UUID) string {
	return "session:" + sessionID.String()
}

// ProgressEvent is the best-effort per-task progress notification
// published to the session channel after each terminal transition.
type ProgressEvent struct {
	TaskID     uuid.UUID `json:"task_id"`
	ResumeRef  string    `json:"resume_ref"`
	Status     string    `json:"status"`
	Current    int       `json:"current"`
	Total      int       `json:"total"`
	Percentage float64   `json:"percentage"`
}
