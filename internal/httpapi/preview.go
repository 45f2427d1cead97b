package httpapi

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/voxprep/voxprep/internal/audio"
	"github.com/voxprep/voxprep/internal/tts"
)

const maxPreviewTextLen = 400

type previewRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Gender   string `json:"gender"`
}

// handlePreviewTTS synthesizes a short sample and returns it as a WAV
// file, so clients can audition the interviewer voice before starting.
func (s *Server) handlePreviewTTS(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "speech synthesis not configured")
		return
	}

	var req previewRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		req.Text = "Hello, I will be your interviewer today. Shall we begin?"
	}
	if len(req.Text) > maxPreviewTextLen {
		respondError(w, http.StatusBadRequest, "text_too_long", "preview text is limited to 400 characters")
		return
	}
	if req.Language == "" {
		req.Language = "en-US"
	}

	rng := s.newRand()
	profile := tts.SelectProfile(rng, req.Language)
	if g := strings.ToLower(strings.TrimSpace(req.Gender)); g == "male" || g == "female" {
		for attempts := 0; profile.Gender != g && attempts < 8; attempts++ {
			profile = tts.SelectProfile(rng, req.Language)
		}
	}

	var pcm bytes.Buffer
	var synthErr string
	s.bridge.Synthesize(r.Context(), req.Text, req.Language, profile, tts.Callbacks{
		OnAudio: func(chunk []byte) { pcm.Write(chunk) },
		OnDone:  func(int, bool) {},
		OnError: func(code, detail string) { synthErr = code },
	})
	if synthErr != "" || pcm.Len() == 0 {
		respondError(w, http.StatusBadGateway, "synthesis_failed", "no audio produced for preview")
		return
	}

	wav, err := audio.EncodeWAVPCM16LE(pcm.Bytes(), tts.TargetSampleRate)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "encode_failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}
