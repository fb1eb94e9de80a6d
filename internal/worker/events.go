package worker

import (
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/tts-job-service/internal/core"
	"github.com/google/uuid"
)

// JobEvent is the message published on the job subject.
type JobEvent struct {
	Header events.EventHeader `json:"header"`
	Input  core.JobRequest    `json:"input"`
}

// JobCompletedEvent is the reply to a JobEvent.
type JobCompletedEvent struct {
	Header events.EventHeader `json:"header"`
	Result core.JobResult     `json:"result"`
}

// jobID returns the workflow id of the header, or a fresh id when it is empty.
func jobID(header events.EventHeader) string {
	if header.WorkflowID != "" {
		return header.WorkflowID
	}

	return uuid.NewString()
}

// replyHeader derives the header of a completion event from the request header.
func replyHeader(request events.EventHeader, workflowID string) events.EventHeader {
	return events.EventHeader{
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		EventID:    uuid.NewString(),
		UserID:     request.UserID,
		TenantID:   request.TenantID,
	}
}
