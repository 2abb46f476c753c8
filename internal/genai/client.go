// Package genai adapts a Gemini-style generation API to the narrow
// contract the conversation flow needs: prompt plus history in, VBA code
// plus explanation out, with deterministic failure classification. The
// upstream response is coerced into a structured result on a best-effort
// basis even when it is not well-formed.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Turn is one prior message of the conversation, oldest first.
type Turn struct {
	Role    string `json:"role"` // "user" or "model"
	Content string `json:"content"`
}

// Request carries the new prompt and the transcript so far.
type Request struct {
	Prompt  string
	History []Turn
}

// Result is the structured generation outcome.
type Result struct {
	VBACode     string `json:"vbaCode"`
	Explanation string `json:"explanation"`
}

const promptTemplate = `You are an Excel VBA expert. Create VBA code for the following requirement: %s.
Provide your response in the following format:
{
  "vbaCode": "the complete VBA code",
  "explanation": "detailed explanation of how to use the code"
}`

const fallbackExplanation = "Here's the VBA code I generated based on your requirements. " +
	"You can copy this code into the VBA editor in Excel."

// Client calls the generation service. It is stateless; the secret key is
// supplied per call by the holder.
type Client struct {
	baseURL string
	model   string
	httpc   *http.Client
}

// NewClient creates a generation client against the given base URL.
func NewClient(baseURL, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpc:   &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Generate sends the prompt and history under the caller's key and
// coerces the answer into a Result.
func (c *Client) Generate(ctx context.Context, key string, req Request) (*Result, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	payload := generateRequest{
		GenerationConfig: &generationConfig{
			Temperature:     0.7,
			TopK:            40,
			TopP:            0.95,
			MaxOutputTokens: 2048,
		},
	}
	for _, turn := range req.History {
		payload.Contents = append(payload.Contents, content{
			Role:  turn.Role,
			Parts: []part{{Text: turn.Content}},
		})
	}
	payload.Contents = append(payload.Contents, content{
		Role:  "user",
		Parts: []part{{Text: fmt.Sprintf(promptTemplate, req.Prompt)}},
	})

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding generation request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, key)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building generation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	text := firstText(decoded)
	if text == "" {
		return nil, ErrMalformedResponse
	}

	return CoerceResult(text), nil
}

func classifyStatus(status int) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusTooManyRequests:
		return ErrQuotaExceeded
	case status == http.StatusBadRequest,
		status == http.StatusUnauthorized,
		status == http.StatusForbidden:
		return ErrInvalidKey
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrNetwork, status)
	}
}

func firstText(resp generateResponse) string {
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				return p.Text
			}
		}
	}
	return ""
}

var vbaFence = regexp.MustCompile("(?s)```vba\\s*(.*?)```")

// CoerceResult turns the model's raw text into a Result. Strict JSON is
// preferred; otherwise a fenced VBA block is extracted; failing both, the
// whole text is treated as code with a canned explanation.
func CoerceResult(text string) *Result {
	candidate := strings.TrimSpace(text)
	if stripped := stripJSONFence(candidate); stripped != "" {
		candidate = stripped
	}

	var res Result
	if err := json.Unmarshal([]byte(candidate), &res); err == nil && res.VBACode != "" {
		if res.Explanation == "" {
			res.Explanation = fallbackExplanation
		}
		return &res
	}

	if m := vbaFence.FindStringSubmatch(text); m != nil {
		return &Result{
			VBACode:     strings.TrimSpace(m[1]),
			Explanation: fallbackExplanation,
		}
	}

	return &Result{
		VBACode:     strings.TrimSpace(text),
		Explanation: fallbackExplanation,
	}
}

var jsonFence = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)```$")

func stripJSONFence(text string) string {
	if m := jsonFence.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
