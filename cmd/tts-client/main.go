// Command tts-client submits one synthesis job over NATS and prints the result.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/tts-job-service/internal/core"
	"github.com/book-expert/tts-job-service/internal/worker"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Flag names.
const (
	flagText       = "text"
	flagPromptText = "prompt-text"
	flagReference  = "reference"
	flagOutputName = "output-name"
	flagGender     = "gender"
	flagAlignment  = "alignment"
	flagSubtitles  = "subtitles"
	flagNATSURL    = "nats-url"
	flagSubject    = "subject"
	flagTimeout    = "timeout"
)

// Flag descriptions.
const (
	flagTextDesc       = "Text to convert to speech"
	flagPromptTextDesc = "Transcript of the reference audio"
	flagReferenceDesc  = "Reference audio locator (s3://bucket/key, https URL or bare key)"
	flagOutputNameDesc = "Base name of the uploaded audio file"
	flagGenderDesc     = "Speaker gender hint (male or female)"
	flagAlignmentDesc  = "Request segment timings"
	flagSubtitlesDesc  = "Request an ASS subtitle file (needs --alignment)"
	flagNATSURLDesc    = "NATS server URL"
	flagSubjectDesc    = "Job subject"
	flagTimeoutDesc    = "How long to wait for the job result"
)

const (
	defaultNATSURL = nats.DefaultURL
	defaultSubject = "tts.jobs"
	defaultTimeout = 10 * time.Minute
	clientName     = "tts-client"
)

var (
	errTextRequired = errors.New("--text must be provided")
	errJobFailed    = errors.New("job failed")
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	text       string
	promptText string
	reference  string
	outputName string
	gender     string
	alignment  bool
	subtitles  bool
	natsURL    string
	subject    string
	timeout    time.Duration
}

func main() {
	err := run(os.Args[1:], os.Stdout)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run(args []string, out io.Writer) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	event := buildEvent(flags, uuid.NewString(), time.Now().UTC())

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode job event: %w", err)
	}

	natsConnection, err := nats.Connect(flags.natsURL, nats.Name(clientName))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", flags.natsURL, err)
	}
	defer natsConnection.Close()

	msg, err := natsConnection.Request(flags.subject, payload, flags.timeout)
	if err != nil {
		return fmt.Errorf("job %s got no reply: %w", event.Header.WorkflowID, err)
	}

	return printResult(msg.Data, out)
}

// parseFlags parses args and checks the required flags.
func parseFlags(args []string) (appFlags, error) {
	var flags appFlags

	flagSet := flag.NewFlagSet(clientName, flag.ContinueOnError)
	flagSet.StringVar(&flags.text, flagText, "", flagTextDesc)
	flagSet.StringVar(&flags.promptText, flagPromptText, "", flagPromptTextDesc)
	flagSet.StringVar(&flags.reference, flagReference, "", flagReferenceDesc)
	flagSet.StringVar(&flags.outputName, flagOutputName, core.DefaultOutputName, flagOutputNameDesc)
	flagSet.StringVar(&flags.gender, flagGender, core.DefaultSpeakerGender, flagGenderDesc)
	flagSet.BoolVar(&flags.alignment, flagAlignment, false, flagAlignmentDesc)
	flagSet.BoolVar(&flags.subtitles, flagSubtitles, false, flagSubtitlesDesc)
	flagSet.StringVar(&flags.natsURL, flagNATSURL, defaultNATSURL, flagNATSURLDesc)
	flagSet.StringVar(&flags.subject, flagSubject, defaultSubject, flagSubjectDesc)
	flagSet.DurationVar(&flags.timeout, flagTimeout, defaultTimeout, flagTimeoutDesc)

	err := flagSet.Parse(args)
	if err != nil {
		return appFlags{}, fmt.Errorf("failed to parse flags: %w", err)
	}

	if flags.text == "" {
		flagSet.Usage()

		return appFlags{}, errTextRequired
	}

	return flags, nil
}

// buildEvent turns the flags into a job event with every other field at its default.
func buildEvent(flags appFlags, workflowID string, now time.Time) worker.JobEvent {
	input := core.DefaultJobRequest()
	input.Text = flags.text
	input.PromptText = flags.promptText
	input.ReferenceAudioLocator = flags.reference
	input.OutputName = flags.outputName
	input.SpeakerGender = flags.gender
	input.EnableAlignment = flags.alignment
	input.EnableSubtitles = flags.subtitles

	return worker.JobEvent{
		Header: events.EventHeader{
			Timestamp:  now,
			WorkflowID: workflowID,
			EventID:    uuid.NewString(),
		},
		Input: input,
	}
}

// printResult writes the indented result and fails when the job failed.
func printResult(data []byte, out io.Writer) error {
	var completed worker.JobCompletedEvent

	err := json.Unmarshal(data, &completed)
	if err != nil {
		return fmt.Errorf("failed to decode job reply: %w", err)
	}

	pretty, err := json.MarshalIndent(completed.Result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode job result: %w", err)
	}

	_, writeErr := fmt.Fprintln(out, string(pretty))
	if writeErr != nil {
		return fmt.Errorf("failed to print job result: %w", writeErr)
	}

	if !completed.Result.Succeeded() {
		return fmt.Errorf("%w: %s", errJobFailed, completed.Result.Error)
	}

	return nil
}
