package tts

import (
	"context"
	"log"
)

// Callbacks receive the normalized synthesis stream. OnDone and OnError
// are mutually exclusive and OnError fires at most once per utterance.
type Callbacks struct {
	OnAudio func(pcm []byte)
	OnDone  func(totalBytes int, usedFallback bool)
	OnError func(code, detail string)
}

// Bridge tries the primary synthesizer first and falls back to the
// secondary when the primary produces no audio at all.
type Bridge struct {
	primary  Provider
	fallback Provider
}

func NewBridge(primary, fallback Provider) *Bridge {
	return &Bridge{primary: primary, fallback: fallback}
}

// Synthesize speaks one utterance through the provider chain. An
// utterance that produced at least one audio chunk ends with OnDone;
// only a fully silent utterance from both providers ends with OnError.
func (b *Bridge) Synthesize(ctx context.Context, text, language string, profile Profile, cb Callbacks) {
	if b.primary != nil {
		bytes, ok := b.run(ctx, b.primary, SpeakRequest{
			Text:     text,
			VoiceID:  profile.PrimaryVoice,
			Language: language,
		}, cb)
		if ok && bytes > 0 {
			if cb.OnDone != nil {
				cb.OnDone(bytes, false)
			}
			return
		}
		if bytes > 0 {
			// Partial audio then a mid-stream failure: falling back would
			// replay the utterance from the start, so accept what played.
			log.Printf("[tts] %s stream ended early after %d bytes, not falling back", b.primary.Name(), bytes)
			if cb.OnDone != nil {
				cb.OnDone(bytes, false)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		log.Printf("[tts] %s produced no audio, trying %s", b.primary.Name(), fallbackName(b.fallback))
	}

	if b.fallback == nil {
		if cb.OnError != nil {
			cb.OnError("synthesis_failed", "no synthesizer produced audio")
		}
		return
	}

	bytes, ok := b.run(ctx, b.fallback, SpeakRequest{
		Text:     text,
		VoiceID:  profile.EdgeVoice,
		Language: language,
	}, cb)
	if bytes > 0 {
		if !ok {
			log.Printf("[tts] %s stream ended early after %d bytes", b.fallback.Name(), bytes)
		}
		if cb.OnDone != nil {
			cb.OnDone(bytes, true)
		}
		return
	}
	if ctx.Err() != nil {
		return
	}
	if cb.OnError != nil {
		cb.OnError("synthesis_failed", "both synthesizers produced no audio")
	}
}

// run streams one provider to the callbacks and reports the audio byte
// count plus whether the stream terminated cleanly.
func (b *Bridge) run(ctx context.Context, p Provider, req SpeakRequest, cb Callbacks) (int, bool) {
	events, err := p.Speak(ctx, req)
	if err != nil {
		log.Printf("[tts] %s start failed: %v", p.Name(), err)
		return 0, false
	}

	total := 0
	for {
		select {
		case <-ctx.Done():
			return total, false
		case ev, open := <-events:
			if !open {
				// Channel closed without a final event; treat as an early end.
				return total, false
			}
			switch ev.Type {
			case EventAudio:
				total += len(ev.PCM)
				if cb.OnAudio != nil {
					cb.OnAudio(ev.PCM)
				}
			case EventFinal:
				return total, true
			case EventError:
				log.Printf("[tts] %s stream error: %s (%s)", p.Name(), ev.Code, ev.Detail)
				return total, false
			}
		}
	}
}

func fallbackName(p Provider) string {
	if p == nil {
		return "none"
	}
	return p.Name()
}
