package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"voicehub-platform/internal/config"
)

// Analysis is the structured classification of one call.
type Analysis struct {
	Intent           string `json:"intent"`
	Sentiment        string `json:"sentiment"`
	Outcome          string `json:"outcome"`
	AppointmentDate  string `json:"appointment_date"`
	AppointmentTime  string `json:"appointment_time"`
	AppointmentType  string `json:"appointment_type"`
	AppointmentNotes string `json:"appointment_notes"`
	CustomerName     string `json:"customer_name"`
	CustomerEmail    string `json:"customer_email"`
}

const classifySystemPrompt = `You analyze phone call transcripts for a business.
Return a single JSON object with these keys:
intent (one of: Scheduling, Support, Sales, Billing, Other),
sentiment (one of: Positive, Neutral, Negative),
outcome (short free text),
appointment_date (YYYY-MM-DD or empty string),
appointment_time (HH:MM or empty string),
appointment_type, appointment_notes, customer_name, customer_email
(empty string when not mentioned). No prose, JSON only.`

// Classifier turns a transcript into an Analysis using a
// chat-completions endpoint with a JSON response format.
type Classifier struct {
	baseURL string
	model   string
	http    *http.Client
}

func NewClassifier(cfg config.LLMConfig) *Classifier {
	return &Classifier{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat respFormat    `json:"response_format"`
	Temperature    float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Classify sends one structured-output completion request. apiKey is
// the tenant's own key; callers must not invoke this without one.
func (c *Classifier) Classify(ctx context.Context, apiKey, transcript, summary string) (Analysis, error) {
	user := "Summary:\n" + summary + "\n\nTranscript:\n" + transcript
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: classifySystemPrompt},
			{Role: "user", Content: user},
		},
		ResponseFormat: respFormat{Type: "json_object"},
	})
	if err != nil {
		return Analysis{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Analysis{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	res, err := c.http.Do(req)
	if err != nil {
		return Analysis{}, fmt.Errorf("completion request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return Analysis{}, err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg := raw
		if len(msg) > 256 {
			msg = msg[:256]
		}
		return Analysis{}, fmt.Errorf("completion status %d: %s", res.StatusCode, msg)
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return Analysis{}, fmt.Errorf("decode completion response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return Analysis{}, fmt.Errorf("completion returned no choices")
	}

	var a Analysis
	if err := json.Unmarshal([]byte(cr.Choices[0].Message.Content), &a); err != nil {
		return Analysis{}, fmt.Errorf("completion content is not the expected JSON: %w", err)
	}
	return a, nil
}
