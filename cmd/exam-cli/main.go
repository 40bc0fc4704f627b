package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/vocab-runner/internal/apiclient"
	"github.com/stemsi/vocab-runner/internal/capture"
	"github.com/stemsi/vocab-runner/internal/config"
	"github.com/stemsi/vocab-runner/internal/exam"
	"github.com/stemsi/vocab-runner/internal/logger"
	"github.com/stemsi/vocab-runner/internal/model"
	"github.com/stemsi/vocab-runner/internal/store"
	"golang.org/x/term"
)

const help = `Commands:
  n / p            next / previous question
  a <answer>       answer the current question
  f                flip the card
  k / u            mark the card known / unknown
  r / s            start / stop recording (audio from -audio)
  again            discard the recording
  submit           submit the exam
  done             finish a flip-card exam
  q                leave`

func main() {
	var trainerID, audioPath string
	flag.StringVar(&trainerID, "trainer", "", "Vocab trainer id")
	flag.StringVar(&audioPath, "audio", "", "Pre-recorded answer for translation-audio exams")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()
	log := logger.SetupTo(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	if trainerID == "" {
		fmt.Println("Error: -trainer is required")
		os.Exit(2)
	}

	// ─── Access Token ──────────────────────────────────────────────────
	token := os.Getenv("VOCAB_TOKEN")
	if token == "" {
		fmt.Print("Enter access token: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			fmt.Println("Error reading token")
			os.Exit(1)
		}
		token = strings.TrimSpace(string(raw))
	}

	ctx := context.Background()
	api := apiclient.NewClient(cfg.APIBaseURL, cfg.UploadURL, cfg.FetchTimeout, log)

	payload, err := api.FetchExam(ctx, token, trainerID)
	if err != nil {
		fmt.Println("Error:", apiclient.ErrorMessage(err, "failed to load exam"))
		os.Exit(1)
	}

	journal := store.NewTrainerState(store.NewMemoryStore(), "cli", cfg.GenerateCooldown, log)
	done := make(chan struct{})
	sess, err := exam.New(exam.Config{
		ID:            uuid.New(),
		TrainerID:     trainerID,
		Payload:       payload,
		Bridge:        api.NewBridge(token),
		Journal:       journal,
		Microphone:    capture.FileMicrophone{Path: audioPath},
		Log:           log,
		TimeBudget:    cfg.DefaultTimeBudget,
		PassThreshold: cfg.PassThreshold,
		MaxAudioBytes: int(cfg.MaxAudioBytes),
		Listener: func(e exam.Event) {
			if e.Type == exam.EventTick && e.Snapshot.TimeRemaining > 0 && e.Snapshot.TimeRemaining%60 == 0 {
				fmt.Printf("\n[%d min left]\n", e.Snapshot.TimeRemaining/60)
			}
			if e.Type == exam.EventState && e.Snapshot.State.Terminal() {
				select {
				case <-done:
				default:
					close(done)
				}
			}
		},
	})
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	defer sess.Abandon()

	if err := sess.Start(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	fmt.Printf("=== %s exam, %d questions ===\n%s\n", payload.QuestionType, len(payload.Questions), help)
	printSnapshot(sess.Snapshot())

	lines := make(chan string)
	go func() {
		reader := bufio.NewScanner(os.Stdin)
		for reader.Scan() {
			lines <- reader.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-done:
			finish(ctx, api, token, sess.Snapshot())
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := run(ctx, sess, strings.TrimSpace(line)); quit {
				return
			}
		}
	}
}

// run executes one command and reports whether the user left.
func run(ctx context.Context, sess *exam.Session, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	var err error
	switch cmd {
	case "":
		return false
	case "q":
		return true
	case "n":
		err = sess.Next()
	case "p":
		err = sess.Previous()
	case "a":
		err = sess.Answer(strings.TrimSpace(arg))
	case "f":
		err = sess.Flip()
	case "k":
		err = sess.Assess(model.AssessmentKnown)
	case "u":
		err = sess.Assess(model.AssessmentUnknown)
	case "r":
		err = sess.StartRecording(ctx)
	case "s":
		err = sess.StopRecording()
	case "again":
		err = sess.RecordAgain()
	case "submit":
		err = sess.Submit(ctx)
	case "done":
		err = sess.Complete()
	default:
		fmt.Println(help)
		return false
	}
	if err != nil {
		fmt.Println("Error:", err)
		return false
	}
	printSnapshot(sess.Snapshot())
	return false
}

func printSnapshot(snap *model.SessionSnapshot) {
	fmt.Printf("\n[%s] question %d/%d, %ds left\n", snap.State, snap.CurrentIndex+1, snap.Total, snap.TimeRemaining)
	if q := snap.Question; q != nil {
		switch {
		case q.FrontText != "":
			fmt.Println("  ", q.FrontText)
			if snap.Flipped {
				fmt.Println("  →", q.BackText)
			}
		case len(q.Dialogue) > 0:
			for _, d := range q.Dialogue {
				fmt.Printf("   %s: %s\n", d.Speaker, d.Text)
			}
		default:
			fmt.Println("  ", q.Content)
		}
		for _, o := range q.Options {
			fmt.Printf("   - %s (%s)\n", o.Label, o.Value)
		}
	}
	if ans, ok := snap.Answers[snap.CurrentIndex]; ok {
		fmt.Println("   answer:", ans)
	}
	if r := snap.Recorder; r != nil {
		fmt.Printf("   recording: %v, %d bytes\n", r.Recording, r.Bytes)
		if r.Truncated {
			fmt.Println("   recording is over the size limit; record again")
		}
	}
}

// finish prints the outcome and, for asynchronously graded exams, polls the
// job until it is evaluated.
func finish(ctx context.Context, api *apiclient.Client, token string, snap *model.SessionSnapshot) {
	switch {
	case snap.Error != "":
		fmt.Println("Submission failed:", snap.Error)
	case snap.Summary != nil:
		fmt.Printf("Known %d / %d in %ds\n", snap.Summary.Known, snap.Summary.Total, snap.Summary.TimeElapsed)
	case snap.Score != nil:
		fmt.Printf("Score %d / %d (%.0f%%), passed: %v\n", snap.Score.Correct, snap.Score.Total, snap.Score.Accuracy, snap.Score.Passed)
	case snap.JobID != "":
		fmt.Println("Evaluating, job", snap.JobID)
		for {
			time.Sleep(3 * time.Second)
			res, err := api.JobResult(ctx, token, snap.TrainerID, snap.JobID)
			if err != nil {
				fmt.Println("Error:", apiclient.ErrorMessage(err, "failed to poll result"))
				return
			}
			if res.Status.Done() {
				fmt.Printf("Result (%s): %s\n", res.Status, string(res.Result))
				return
			}
		}
	default:
		fmt.Println("Exam finished")
	}
}
