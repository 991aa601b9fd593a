package orchestrator

import (
	"context"
	"encoding/base64"
	"log"
	"strings"
	"time"

	"github.com/ImBetterThanYesterday/elder-voice-link/internal/fault"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/history"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/observability"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/protocol"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/recording"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/session"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/speech"

	"github.com/google/uuid"
)

// Stage is the voice interaction state visible to the page.
type Stage string

const (
	StageIdle         Stage = "idle"
	StageRecording    Stage = "recording"
	StageTranscribing Stage = "transcribing"
	StageDialoguing   Stage = "dialoguing"
	StageSynthesizing Stage = "synthesizing"
	StageSpeaking     Stage = "speaking"
)

// Status strings shown as subtitles at each transition.
const (
	SubtitleIdle         = "Pulsa el micrófono para hablar"
	SubtitleListening    = "Escuchando..."
	SubtitleTranscribing = "Procesando tu voz..."
	SubtitleThinking     = "Pensando..."
	SubtitleSynthesizing = "Preparando la respuesta..."
	SubtitleNotHeard     = "No te entendí. Inténtalo de nuevo."
	SubtitleAskMore      = "¿En qué más puedo ayudarte?"
)

// DialogueClient returns a reply for recognized text.
type DialogueClient interface {
	GetReply(ctx context.Context, query, elderID, overrideURL string) (string, error)
}

// SynthesizerPicker resolves the synthesis engine for one elder.
type SynthesizerPicker interface {
	Pick(ctx context.Context, elderID string) speech.Synthesizer
}

// CacheControl clears the asset cache on page request. Injected explicitly
// rather than reached through shared global state.
type CacheControl interface {
	Clear(ctx context.Context) error
}

// SourceFactory builds a capture source per connection. A nil factory (or a
// factory returning nil) selects remote-feed mode, where the page streams
// audio chunks over the websocket.
type SourceFactory func() recording.Source

// Orchestrator sequences one conversation turn at a time:
// record -> transcribe -> dialogue -> synthesize -> speak.
type Orchestrator struct {
	transcriber     speech.Transcriber
	dialogue        DialogueClient
	synths          SynthesizerPicker
	store           history.Store
	cache           CacheControl
	metrics         *observability.Metrics
	newSource       SourceFactory
	sampleRate      int
	turnTimeout     time.Duration
	webhookOverride string
}

func New(
	transcriber speech.Transcriber,
	dialogueClient DialogueClient,
	synths SynthesizerPicker,
	store history.Store,
	cache CacheControl,
	metrics *observability.Metrics,
	newSource SourceFactory,
	sampleRate int,
	turnTimeout time.Duration,
	webhookOverride string,
) *Orchestrator {
	if turnTimeout <= 0 {
		turnTimeout = 60 * time.Second
	}
	return &Orchestrator{
		transcriber:     transcriber,
		dialogue:        dialogueClient,
		synths:          synths,
		store:           store,
		cache:           cache,
		metrics:         metrics,
		newSource:       newSource,
		sampleRate:      sampleRate,
		turnTimeout:     turnTimeout,
		webhookOverride: webhookOverride,
	}
}

type conn struct {
	o        *Orchestrator
	sess     *session.Session
	ctx      context.Context
	outbound chan<- any
	recorder *recording.Controller
	stage    Stage
	payload  *recording.Payload
}

// RunConnection drives one page connection until the inbound channel closes
// or the context is canceled. Only one turn is in flight at a time: the
// pipeline runs synchronously in this loop, and chunks or controls arriving
// mid-turn are dropped or ignored.
func (o *Orchestrator) RunConnection(ctx context.Context, sess *session.Session, inbound <-chan any, outbound chan<- any) error {
	c := &conn{
		o:        o,
		sess:     sess,
		ctx:      ctx,
		outbound: outbound,
		stage:    StageIdle,
	}

	var source recording.Source
	if o.newSource != nil {
		source = o.newSource()
	}
	c.recorder = recording.NewController(source, o.sampleRate, func(p recording.Payload) {
		c.payload = &p
	})
	defer c.recorder.Stop()

	c.emitSubtitle(SubtitleIdle)
	c.emitState()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			c.handle(msg)
		}
	}
}

func (c *conn) handle(msg any) {
	switch m := msg.(type) {
	case protocol.ClientControl:
		c.handleControl(m)
	case protocol.ClientAudioChunk:
		chunk, err := base64.StdEncoding.DecodeString(m.PCM16Base64)
		if err != nil {
			return
		}
		c.recorder.AppendChunk(chunk)
	}
}

func (c *conn) handleControl(m protocol.ClientControl) {
	switch m.Action {
	case protocol.ActionStartRecording:
		c.startRecording()
	case protocol.ActionStopRecording:
		c.stopAndRunTurn()
	case protocol.ActionPlaybackDone:
		if c.stage == StageSpeaking {
			c.setStage(StageIdle)
			c.emitSubtitle(SubtitleAskMore)
		}
	case protocol.ActionClearCache:
		c.clearCache()
	}
}

func (c *conn) startRecording() {
	// The mic control is disabled while a turn is processing; ignore
	// defensively if a stale tap arrives anyway.
	if c.stage != StageIdle {
		return
	}
	if err := c.recorder.Start(c.ctx); err != nil {
		c.failTurn("recording", err)
		return
	}
	c.setStage(StageRecording)
	c.emitSubtitle(SubtitleListening)
}

func (c *conn) stopAndRunTurn() {
	if c.stage != StageRecording {
		return
	}

	c.payload = nil
	if err := c.recorder.Stop(); err != nil {
		log.Printf("session %s: release capture device: %v", c.sess.ID, err)
	}
	if c.payload == nil {
		// Nothing was buffered; stay usable.
		c.setStage(StageIdle)
		c.emitSubtitle(SubtitleNotHeard)
		return
	}

	payload := *c.payload
	c.payload = nil

	ctx, cancel := context.WithTimeout(c.ctx, c.o.turnTimeout)
	defer cancel()
	c.runTurn(ctx, payload)
}

func (c *conn) runTurn(ctx context.Context, payload recording.Payload) {
	turnID := uuid.NewString()

	c.setStage(StageTranscribing)
	c.emitSubtitle(SubtitleTranscribing)

	start := time.Now()
	text, err := c.o.transcriber.Transcribe(ctx, payload.Data, payload.MIME)
	if err != nil {
		c.failTurn("transcription", err)
		return
	}
	c.o.metrics.ObserveStage("transcribe", time.Since(start))

	if strings.TrimSpace(text) == "" {
		// Valid result, just nothing understood.
		c.setStage(StageIdle)
		c.emitSubtitle(SubtitleNotHeard)
		c.o.metrics.TurnOutcomes.WithLabelValues("nothing_understood").Inc()
		return
	}

	c.appendTurn(ctx, text, true)

	c.setStage(StageDialoguing)
	c.emitSubtitle(SubtitleThinking)

	start = time.Now()
	reply, err := c.o.dialogue.GetReply(ctx, text, c.sess.ElderID, c.o.webhookOverride)
	if err != nil {
		c.failTurn("dialogue", err)
		return
	}
	c.o.metrics.ObserveStage("dialogue", time.Since(start))

	c.appendTurn(ctx, reply, false)

	c.setStage(StageSynthesizing)
	c.emitSubtitle(SubtitleSynthesizing)

	start = time.Now()
	synth := c.o.synths.Pick(ctx, c.sess.ElderID)
	audio, err := synth.Synthesize(ctx, reply)
	if err != nil {
		c.failTurn("synthesis", err)
		return
	}
	c.o.metrics.ObserveStage("synthesize", time.Since(start))

	c.setStage(StageSpeaking)
	c.emitSubtitle(reply)
	c.emit(protocol.AssistantAudio{
		Type:        protocol.TypeAssistantAudio,
		SessionID:   c.sess.ID,
		TurnID:      turnID,
		MIME:        audio.MIME,
		AudioBase64: base64.StdEncoding.EncodeToString(audio.Data),
	})
	c.o.metrics.TurnOutcomes.WithLabelValues("ok").Inc()
}

func (c *conn) appendTurn(ctx context.Context, text string, isUser bool) {
	turn := history.Turn{
		ElderID:   c.sess.ElderID,
		SessionID: c.sess.ID,
		Text:      text,
		IsUser:    isUser,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.o.store.SaveTurn(ctx, turn); err != nil {
		log.Printf("session %s: save turn: %v", c.sess.ID, err)
	}
	c.emit(protocol.ChatTurn{
		Type:      protocol.TypeChatTurn,
		SessionID: c.sess.ID,
		Text:      text,
		IsUser:    isUser,
		TSMs:      turn.CreatedAt.UnixMilli(),
	})
}

// failTurn surfaces a failure as a toast plus subtitle and returns the
// state machine to idle. Failures are terminal for the turn only; the user
// may immediately retry.
func (c *conn) failTurn(stage string, err error) {
	kind := fault.KindOf(err)
	if kind == "" {
		kind = fault.Kind(stage + "_failed")
	}
	detail := fault.DetailOf(err)

	c.o.metrics.ProviderErrors.WithLabelValues(stage, string(kind)).Inc()
	c.o.metrics.TurnOutcomes.WithLabelValues("failed").Inc()

	c.emit(protocol.Toast{
		Type:      protocol.TypeToast,
		SessionID: c.sess.ID,
		Kind:      string(kind),
		Message:   toastMessage(kind),
		Detail:    detail,
	})
	c.setStage(StageIdle)
	c.emitSubtitle("Error: " + detail)
}

func toastMessage(kind fault.Kind) string {
	switch kind {
	case fault.KindMicrophone:
		return "Permite el acceso al micrófono para usar la voz"
	case fault.KindTranscription:
		return "La conversión de voz a texto falló"
	case fault.KindDialogue:
		return "No se pudo procesar tu mensaje"
	case fault.KindSynthesis:
		return "La conversión de texto a voz falló"
	default:
		return "Algo salió mal"
	}
}

func (c *conn) clearCache() {
	if c.o.cache == nil {
		return
	}
	if err := c.o.cache.Clear(c.ctx); err != nil {
		log.Printf("session %s: clear cache: %v", c.sess.ID, err)
	}
}

func (c *conn) setStage(stage Stage) {
	c.stage = stage
	c.emitState()
}

func (c *conn) emitState() {
	c.emit(protocol.StateUpdate{
		Type:         protocol.TypeStateUpdate,
		SessionID:    c.sess.ID,
		Stage:        string(c.stage),
		IsRecording:  c.stage == StageRecording,
		IsProcessing: c.stage == StageTranscribing || c.stage == StageDialoguing || c.stage == StageSynthesizing,
		IsSpeaking:   c.stage == StageSpeaking,
	})
}

func (c *conn) emitSubtitle(text string) {
	c.emit(protocol.SubtitleUpdate{
		Type:      protocol.TypeSubtitleUpdate,
		SessionID: c.sess.ID,
		Text:      text,
	})
}

func (c *conn) emit(msg any) {
	select {
	case <-c.ctx.Done():
	case c.outbound <- msg:
	}
}
