package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/unclewu3242592726/tritalk/pkg/provider"
	"github.com/zeromicro/go-zero/core/logx"
)

// maxRecording matches the upload limit of the transcription endpoint.
const maxRecording = 25 << 20

var (
	ErrNotRecording     = errors.New("not recording")
	ErrAlreadyRecording = errors.New("already recording")
	ErrEmptyRecording   = errors.New("no audio captured")
	ErrEmptyTranscript  = errors.New("transcript is empty")
	ErrRecordingTooLong = errors.New("recording exceeds size limit")
)

// IngestionError reports a failed recording session. Nothing is appended
// to the conversation when it is returned.
type IngestionError struct {
	Op  string
	Err error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("speech %s: %v", e.Op, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// Recorder buffers one recording session and transcribes it on stop.
type Recorder struct {
	asr  provider.ASRProvider
	opts provider.ASROptions

	mu        sync.Mutex
	recording bool
	buf       bytes.Buffer
}

func NewRecorder(asr provider.ASRProvider, opts provider.ASROptions) *Recorder {
	if opts.Format == "" {
		opts.Format = "webm"
	}
	return &Recorder{asr: asr, opts: opts}
}

func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

func (r *Recorder) StartRecording() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return &IngestionError{Op: "start", Err: ErrAlreadyRecording}
	}
	r.recording = true
	r.buf.Reset()
	logx.Info("recording started")
	return nil
}

func (r *Recorder) AppendAudio(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return &IngestionError{Op: "append", Err: ErrNotRecording}
	}
	if r.buf.Len()+len(data) > maxRecording {
		return &IngestionError{Op: "append", Err: ErrRecordingTooLong}
	}
	r.buf.Write(data)
	return nil
}

// StopRecording ends the session and returns the transcript. The session
// is closed even when transcription fails.
func (r *Recorder) StopRecording(ctx context.Context) (string, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return "", &IngestionError{Op: "stop", Err: ErrNotRecording}
	}
	r.recording = false
	audio := bytes.Clone(r.buf.Bytes())
	r.buf.Reset()
	r.mu.Unlock()

	if len(audio) == 0 {
		return "", &IngestionError{Op: "stop", Err: ErrEmptyRecording}
	}
	if r.asr == nil {
		return "", &IngestionError{Op: "transcribe", Err: errors.New("no transcription provider configured")}
	}

	logx.WithContext(ctx).Infof("transcribing %d bytes with %s", len(audio), r.asr.Name())
	opts := r.opts
	res, err := r.asr.Recognize(ctx, audio, &opts)
	if err != nil {
		return "", &IngestionError{Op: "transcribe", Err: err}
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", &IngestionError{Op: "transcribe", Err: ErrEmptyTranscript}
	}
	return text, nil
}
