package exam

import (
	"context"

	"github.com/stemsi/vocab-runner/internal/apiclient"
	"github.com/stemsi/vocab-runner/internal/model"
)

const (
	triggerManual  = "manual"
	triggerTimeout = "timeout"
)

// Submit sends the exam once the variant's gate allows it. Failures of the
// upload or the remote call do not return an error; they move the session to
// the error state with a readable message.
func (s *Session) Submit(ctx context.Context) error {
	return s.submit(ctx, triggerManual)
}

// Complete finishes a flip-card exam on its last card.
func (s *Session) Complete() error {
	if _, ok := s.variant.(LocalEvaluator); !ok {
		return ErrUnsupported
	}
	return s.submit(s.baseCtx, triggerManual)
}

func (s *Session) submit(ctx context.Context, trigger string) error {
	// Leaving mid-submission does not cancel the remote call.
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	switch {
	case s.state == model.StateRecording && trigger == triggerTimeout:
		if err := s.recorder.Stop(); err != nil {
			s.log.Warn().Err(err).Msg("Closing microphone stream failed")
		}
	case s.state != model.StateTaking:
		s.mu.Unlock()
		return ErrInvalidState
	case trigger == triggerManual && !s.variant.CanSubmit(s.viewLocked()):
		err := s.gateErrLocked()
		s.mu.Unlock()
		return err
	}
	s.stopTimerLocked()
	in := s.inputLocked()

	if ev, ok := s.variant.(LocalEvaluator); ok {
		out := ev.Evaluate(in)
		s.applyLocked(out)
		var seq int
		var results []model.FlipResult
		if s.flip != nil {
			seq, results = s.flipLogLocked()
		}
		s.unlockAndFlush()
		if s.flip != nil {
			s.persistFlipLog(seq, results)
		}
		s.log.Info().Str("trigger", trigger).Msg("Exam completed locally")
		return nil
	}

	if s.bridge == nil {
		s.failLocked(ErrSubmitFailed, submitFallbackMessage)
		s.unlockAndFlush()
		return nil
	}

	var blob []byte
	var contentType string
	upload := false
	if up, ok := s.variant.(Uploader); ok && up.NeedsUpload() && in.FileID == "" {
		if s.recorder.Truncated() {
			s.failLocked(ErrRecordingTooLarge, tooLargeMessage)
			s.unlockAndFlush()
			return nil
		}
		blob, contentType = s.recorder.Blob()
		upload = true
		s.setStateLocked(model.StateUploading)
	} else {
		s.setStateLocked(model.StateSubmitting)
	}
	s.unlockAndFlush()

	s.log.Info().Str("trigger", trigger).Int("count_time", in.CountTime).Msg("Submitting exam")

	if upload {
		fileID, err := s.uploadAudio(ctx, blob, contentType)
		if err != nil {
			s.fail(err, apiclient.ErrorMessage(err, uploadFallbackMessage))
			return nil
		}
		in.FileID = fileID
		s.mu.Lock()
		s.fileID = fileID
		s.setStateLocked(model.StateSubmitting)
		s.unlockAndFlush()
	}

	submission, err := s.variant.BuildSubmission(in)
	if err != nil {
		s.fail(err, submitFallbackMessage)
		return nil
	}
	res, err := s.bridge.Submit(ctx, s.trainerID, submission)
	if err != nil {
		s.fail(err, apiclient.ErrorMessage(err, submitFallbackMessage))
		return nil
	}
	out, err := s.variant.ParseResult(res, in)
	if err != nil {
		s.fail(err, submitFallbackMessage)
		return nil
	}

	s.mu.Lock()
	s.applyLocked(out)
	s.unlockAndFlush()

	if out.JobID != "" {
		s.savePendingJob(ctx, model.PendingJob{
			JobID:       out.JobID,
			TimeElapsed: in.CountTime,
			Questions:   in.Questions,
			Answers:     in.Answers,
		})
	}
	s.log.Info().Str("state", string(out.State)).Str("job_id", out.JobID).Msg("Exam submitted")
	return nil
}

func (s *Session) uploadAudio(ctx context.Context, blob []byte, contentType string) (string, error) {
	if len(blob) == 0 {
		return "", ErrNoRecording
	}
	fileID, err := s.bridge.UploadAudio(ctx, blob, contentType)
	if err != nil {
		return "", err
	}
	if fileID == "" {
		return "", ErrUploadFailed
	}
	return fileID, nil
}

func (s *Session) inputLocked() Input {
	in := Input{
		ExamID:        s.examID,
		TrainerID:     s.trainerID,
		Questions:     s.questions,
		Answers:       copyAnswers(s.answers),
		CountTime:     s.elapsed,
		FileID:        s.fileID,
		PassThreshold: s.threshold,
	}
	if s.flip != nil {
		in.Assessments = make(map[int]model.Assessment, len(s.flip.assessments))
		for k, v := range s.flip.assessments {
			in.Assessments[k] = v
		}
		in.FlipLog = append([]model.FlipResult(nil), s.flip.log...)
	}
	return in
}

func (s *Session) applyLocked(out *Outcome) {
	s.score = out.Score
	s.summary = out.Summary
	s.jobID = out.JobID
	s.setStateLocked(out.State)
}

// fail moves the session to the error state. The session stays there; a new
// session is launched to retry.
func (s *Session) fail(err error, message string) {
	s.mu.Lock()
	s.failLocked(err, message)
	s.unlockAndFlush()
}

func (s *Session) failLocked(err error, message string) {
	s.stopTimerLocked()
	if s.recorder != nil {
		s.recorder.Release()
	}
	s.errMsg = message
	s.setStateLocked(model.StateError)
	s.log.Error().Err(err).Msg("Exam submission failed")
}

func (s *Session) savePendingJob(ctx context.Context, job model.PendingJob) {
	if s.journal == nil {
		return
	}
	if err := s.journal.SavePendingJob(ctx, s.trainerID, job); err != nil {
		s.log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to persist pending job")
	}
}
