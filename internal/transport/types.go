package transport

import (
	"bytes"
	"encoding/json"
	"strings"
)

// StartRequest carries the session setup form.
type StartRequest struct {
	Provider   string
	APIKey     string
	Domain     string
	Difficulty string
	Model      string
}

// StartResult is the service's reply to a start request.
type StartResult struct {
	SessionID string `json:"session_id"`
	Provider  string `json:"provider"`
	Domain    string `json:"domain"`
	Model     string `json:"model"`
}

// Question is a question body issued by the service.
type Question struct {
	Text string
}

// Feedback is the evaluation of one answer.
type Feedback struct {
	// Score is nil when the service sent no numeric score.
	Score         *float64
	Text          string
	CorrectAnswer string
	Verdict       string
	// Partial is set when the evaluation arrived on a non-2xx response.
	Partial bool
	Status  int
}

// Content renders the feedback the way it appears in the transcript.
func (f Feedback) Content() string {
	text := strings.TrimSpace(f.Text)
	if text == "" {
		text = "No feedback received"
	}
	if f.CorrectAnswer != "" {
		text += "\n\nCorrect answer:\n" + f.CorrectAnswer
	}
	return text
}

// QAPair is one evaluated exchange in an end-of-session summary.
type QAPair struct {
	Question      string  `json:"question"`
	UserAnswer    string  `json:"user_answer"`
	Score         float64 `json:"score"`
	Verdict       string  `json:"verdict,omitempty"`
	Feedback      string  `json:"feedback,omitempty"`
	CorrectAnswer string  `json:"correct_answer,omitempty"`
}

// WeakArea is a question the service flagged for improvement.
type WeakArea struct {
	Question        string `json:"question"`
	ImprovementTips string `json:"improvement_tips,omitempty"`
}

// WeakAreas groups weak areas by topic. The service sends either an object
// keyed by topic or an empty list; both decode.
type WeakAreas map[string][]WeakArea

func (w *WeakAreas) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []WeakArea
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		*w = WeakAreas{}
		if len(list) > 0 {
			(*w)["General"] = list
		}
		return nil
	}
	m := map[string][]WeakArea{}
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return err
	}
	*w = m
	return nil
}

// Summary is the service's end-of-session report.
type Summary struct {
	OverallScore float64   `json:"overall_score"`
	WeakAreas    WeakAreas `json:"weak_areas"`
	QAPairs      []QAPair  `json:"qa_pairs"`
	Subject      string    `json:"subject"`
}

// Ack acknowledges an end request. Summary is nil when the body carried none.
type Ack struct {
	Summary *Summary
}

// answerBody is decoded leniently: score may be absent or non-numeric.
type answerBody struct {
	Score         json.RawMessage `json:"score"`
	Feedback      string          `json:"feedback"`
	CorrectAnswer string          `json:"correct_answer"`
	Verdict       string          `json:"verdict"`
}

func (a answerBody) score() *float64 {
	if len(a.Score) == 0 {
		return nil
	}
	var v float64
	if err := json.Unmarshal(a.Score, &v); err != nil {
		return nil
	}
	return &v
}

func (a answerBody) evaluative() bool {
	return (len(a.Score) > 0 && string(a.Score) != "null") || a.Feedback != "" || a.CorrectAnswer != ""
}

// errorBody covers the detail/message/error shapes services return.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message json.RawMessage `json:"message"`
	Error   json.RawMessage `json:"error"`
}

// detail picks the first usable message, preferring detail, then message,
// then error (a string or an object with a message).
func (e errorBody) detail() string {
	for _, raw := range []json.RawMessage{e.Detail, e.Message, e.Error} {
		if s := rawMessageText(raw); s != "" {
			return s
		}
	}
	return ""
}

func rawMessageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(orDefault(obj.Message, obj.Msg))
	}
	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return strings.TrimSpace(list[0].Msg)
	}
	return ""
}
