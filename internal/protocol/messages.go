package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	// Client to server.
	TypeClientAudioChunk MessageType = "client_audio_chunk"
	TypeClientControl    MessageType = "client_control"
	TypeHintSettings     MessageType = "hint_settings"

	// Server to client.
	TypeAvatarConfig      MessageType = "avatar_config"
	TypeTranscript        MessageType = "transcript"
	TypeInterviewQuestion MessageType = "interview_question"
	TypeEvaluation        MessageType = "evaluation"
	TypeSpeechAudio       MessageType = "speech_audio"
	TypeSpeechDone        MessageType = "speech_done"
	TypeSpeechFallback    MessageType = "speech_fallback"
	TypeInterviewComplete MessageType = "interview_complete"
	TypeProcessing        MessageType = "processing"
	TypeHint              MessageType = "hint"
	TypeAudioAck          MessageType = "audio_ack"
	TypeSystemEvent       MessageType = "system_event"
	TypeErrorEvent        MessageType = "error_event"
)

// Control actions accepted on client_control.
const (
	ActionEndTurn = "end_turn"
	ActionEnd     = "end"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type ClientAudioChunk struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Seq         int         `json:"seq"`
	PCM16Base64 string      `json:"pcm16_base64"`
	SampleRate  int         `json:"sample_rate"`
	TSMs        int64       `json:"ts_ms"`
}

type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
}

// HintSettings tunes live coaching output on the copilot socket.
type HintSettings struct {
	Type   MessageType `json:"type"`
	Length string      `json:"length"`
	Tone   string      `json:"tone"`
}

// AvatarConfig announces the interviewer profile chosen for the session.
type AvatarConfig struct {
	Type   MessageType `json:"type"`
	FaceID string      `json:"face_id"`
	Gender string      `json:"gender"`
}

type Transcript struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
	IsFinal   bool        `json:"is_final"`
	TSMs      int64       `json:"ts_ms"`
}

type InterviewQuestion struct {
	Type           MessageType `json:"type"`
	SessionID      string      `json:"session_id"`
	Text           string      `json:"text"`
	QuestionIndex  int         `json:"question_index"`
	TotalQuestions int         `json:"total_questions"`
	Phase          string      `json:"phase"`
	IsFollowUp     bool        `json:"is_follow_up"`
	IsComplete     bool        `json:"is_complete"`
}

type Evaluation struct {
	Type          MessageType `json:"type"`
	SessionID     string      `json:"session_id"`
	Score         int         `json:"score"`
	Feedback      string      `json:"feedback"`
	QuestionIndex int         `json:"question_index"`
}

type SpeechAudio struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Seq         int         `json:"seq"`
	Format      string      `json:"format"`
	AudioBase64 string      `json:"audio_base64"`
}

// SpeechDone closes one spoken utterance and tells the client how long
// playback is expected to run.
type SpeechDone struct {
	Type       MessageType `json:"type"`
	SessionID  string      `json:"session_id"`
	PlayMs     int64       `json:"play_ms"`
	TotalBytes int         `json:"total_bytes"`
}

// SpeechFallback asks the client to speak the text itself when both
// synthesizers failed.
type SpeechFallback struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
	Language  string      `json:"language"`
}

type InterviewComplete struct {
	Type           MessageType `json:"type"`
	SessionID      string      `json:"session_id"`
	TotalScore     float64     `json:"total_score"`
	TotalQuestions int         `json:"total_questions"`
	Verdict        string      `json:"verdict"`
}

type Processing struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

type Hint struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
	TSMs      int64       `json:"ts_ms"`
}

// AudioAck reports cumulative audio received on the copilot socket.
type AudioAck struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Chunks    int         `json:"chunks"`
	Bytes     int64       `json:"bytes"`
}

type SystemEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientAudioChunk:
		var msg ClientAudioChunk
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.PCM16Base64 == "" || msg.SampleRate <= 0 {
			return nil, errors.New("invalid client_audio_chunk")
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		switch msg.Action {
		case ActionEndTurn, ActionEnd:
		default:
			return nil, fmt.Errorf("unsupported control action %q", msg.Action)
		}
		return msg, nil
	case TypeHintSettings:
		var msg HintSettings
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
