package speech

import (
	"context"
	"encoding/base64"
	"sync/atomic"
	"time"

	"github.com/unclewu3242592726/tritalk/internal/engine"
	"github.com/unclewu3242592726/tritalk/pkg/model"
	"github.com/unclewu3242592726/tritalk/pkg/provider"
	"github.com/zeromicro/go-zero/core/logx"
)

const defaultSpeakQueue = 16

// FrameSink receives tts frames for UI clients.
type FrameSink interface {
	Broadcast(frame model.WSFrame)
}

// Synthesizer voices agent replies one at a time. Speak never blocks; a
// full queue drops the request.
type Synthesizer struct {
	tts     provider.TTSProvider
	sink    FrameSink
	timeout time.Duration
	queue   chan engine.SpeakRequest
	seq     atomic.Int64
}

func NewSynthesizer(tts provider.TTSProvider, sink FrameSink, queueSize int, timeout time.Duration) *Synthesizer {
	if queueSize <= 0 {
		queueSize = defaultSpeakQueue
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Synthesizer{
		tts:     tts,
		sink:    sink,
		timeout: timeout,
		queue:   make(chan engine.SpeakRequest, queueSize),
	}
}

func (s *Synthesizer) Speak(req engine.SpeakRequest) {
	select {
	case s.queue <- req:
	default:
		logx.Errorf("speech queue full, dropping reply of agent %d", int(req.Agent))
		done(req)
	}
}

// Run serves the queue until ctx is done.
func (s *Synthesizer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.queue:
			s.synthesize(ctx, req)
		}
	}
}

func (s *Synthesizer) synthesize(ctx context.Context, req engine.SpeakRequest) {
	defer done(req)
	if req.Text == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	chunks, err := s.tts.SynthesizeStream(ctx, req.Text, &provider.TTSOptions{Voice: req.Voice, Speed: 1.0})
	if err != nil {
		logx.Errorf("tts for agent %d failed: %v", int(req.Agent), err)
		return
	}

	var sent int
	for chunk := range chunks {
		if chunk == nil {
			continue
		}
		seq := s.seq.Add(1)
		frame := model.AudioChunkFrame{
			Agent:    req.Agent,
			Format:   chunk.Format,
			Data:     base64.StdEncoding.EncodeToString(chunk.Data),
			Sequence: seq,
			Final:    chunk.IsFinal,
		}
		if sent == 0 {
			frame.Text = req.Text
		}
		s.sink.Broadcast(model.WSFrame{
			Type:      model.FrameTypeTTS,
			Seq:       seq,
			Content:   frame,
			Timestamp: time.Now().Unix(),
		})
		sent++
	}
	logx.Infof("tts for agent %d finished, %d chunks", int(req.Agent), sent)
}

func done(req engine.SpeakRequest) {
	if req.Done != nil {
		req.Done()
	}
}
