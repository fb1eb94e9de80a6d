// Package worker provides a NATS worker that runs synthesis jobs.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-job-service/internal/core"
	"github.com/nats-io/nats.go"
)

const (
	pendingJobs  = 64
	flushTimeout = 5 * time.Second
)

// ErrShuttingDown is replied to jobs still queued when the worker stops.
var ErrShuttingDown = errors.New("worker is shutting down")

// NatsWorker listens for jobs on a NATS subject, runs them one at a time on
// the Run goroutine and replies with the result.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	processor      core.JobProcessor
	archive        core.ResultArchive
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker. archive may be nil.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	processor core.JobProcessor,
	archive core.ResultArchive,
	log *logger.Logger,
) *NatsWorker {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		processor:      processor,
		archive:        archive,
		log:            log,
	}
}

// Run subscribes and handles jobs until ctx is done. A job in flight when ctx
// ends runs to completion and is replied to before Run returns; jobs queued
// behind it get an ErrShuttingDown reply.
func (w *NatsWorker) Run(ctx context.Context) error {
	msgChan := make(chan *nats.Msg, pendingJobs)

	sub, err := w.natsConnection.ChanSubscribe(w.subject, msgChan)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.Info("Listening for jobs on subject: %s", w.subject)

	for {
		select {
		case <-ctx.Done():
			return w.shutdown(sub, msgChan)
		case msg := <-msgChan:
			if ctx.Err() != nil {
				w.reject(msg)

				return w.shutdown(sub, msgChan)
			}

			w.handleMessage(msg)
		}
	}
}

// shutdown unsubscribes, rejects what is still queued and flushes replies.
func (w *NatsWorker) shutdown(sub *nats.Subscription, msgChan chan *nats.Msg) error {
	unsubscribeErr := sub.Unsubscribe()

	for drained := false; !drained; {
		select {
		case msg := <-msgChan:
			w.reject(msg)
		default:
			drained = true
		}
	}

	flushErr := w.natsConnection.FlushTimeout(flushTimeout)
	if flushErr != nil {
		w.log.Warn("Failed to flush replies on shutdown: %v", flushErr)
	}

	if unsubscribeErr != nil {
		return fmt.Errorf("failed to unsubscribe from subject %s: %w", w.subject, unsubscribeErr)
	}

	w.log.Info("Stopped listening on subject: %s", w.subject)

	return nil
}

// reject replies with ErrShuttingDown to a job that was never started.
func (w *NatsWorker) reject(msg *nats.Msg) {
	var event JobEvent

	_ = json.Unmarshal(msg.Data, &event)

	id := jobID(event.Header)
	w.log.Warn("Rejecting job %s: %v", id, ErrShuttingDown)
	w.reply(msg, JobCompletedEvent{Header: replyHeader(event.Header, id), Result: core.ErrorResult(ErrShuttingDown)})
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx := context.Background()

	var event JobEvent

	event.Input = core.DefaultJobRequest()

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		w.log.Error("Failed to parse job event: %v", err)

		id := jobID(event.Header)
		w.reply(msg, JobCompletedEvent{
			Header: replyHeader(event.Header, id),
			Result: core.ErrorResult(fmt.Errorf("%w: malformed job event: %w", core.ErrValidation, err)),
		})

		return
	}

	id := jobID(event.Header)
	w.log.Info("Received job %s", id)

	result := w.processor.Process(ctx, id, event.Input)

	if w.archive != nil {
		archiveErr := w.archive.Put(ctx, id, result)
		if archiveErr != nil {
			w.log.Warn("Failed to archive result of job %s: %v", id, archiveErr)
		}
	}

	w.reply(msg, JobCompletedEvent{Header: replyHeader(event.Header, id), Result: result})
}

// reply responds when the message carries a reply subject.
func (w *NatsWorker) reply(msg *nats.Msg, completed JobCompletedEvent) {
	if msg.Reply == "" {
		return
	}

	replyData, err := json.Marshal(completed)
	if err != nil {
		w.log.Error("Failed to marshal reply for job %s: %v", completed.Header.WorkflowID, err)

		return
	}

	respondErr := msg.Respond(replyData)
	if respondErr != nil {
		w.log.Error("Failed to publish reply for job %s: %v", completed.Header.WorkflowID, respondErr)
	}
}
