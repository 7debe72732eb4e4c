// Package summarizer turns an assembled repository bundle into a structured
// summary through an OpenAI-compatible chat completions API.
package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// systemPrompt instructs the model to answer with the exact three-field JSON
// object the service returns to its own clients.
const systemPrompt = `You are a senior software engineer analyzing a GitHub repository.
You will be given: repository metadata, its directory tree, and contents of key files.

Respond with a JSON object containing exactly these fields:
- "summary": A 2-4 paragraph description of what this project does, its purpose, and how it works at a high level.
- "technologies": A list of programming languages, frameworks, libraries, and tools used in this project.
- "structure": A description of how the project is organized, its main directories, and the role of key files.

Respond ONLY with the JSON object. Do not wrap it in markdown code fences or add any text outside the JSON.`

const (
	defaultBaseURL        = "https://api.openai.com/v1"
	defaultModel          = "gpt-4o-mini"
	defaultRequestTimeout = 120 * time.Second
	requestTemperature    = 0.3
	chatCompletionsPath   = "/chat/completions"
	roleSystem            = "system"
	roleUser              = "user"
	codeFence             = "```"
	errorBodyLogLimit     = 500
)

// Client-facing failure messages carried by RequestError values.
const (
	missingAPIKeyMessage       = "Server misconfiguration: LLM API key not set"
	requestTimedOutMessage     = "LLM request timed out. Please try again."
	summarizationFailedFormat  = "LLM summarization failed: %s"
	noChoicesMessage           = "LLM returned no choices"
	emptyResponseMessage       = "LLM returned empty response"
	malformedResponseMessage   = "LLM returned malformed response. Please try again."
	missingFieldsMessageFormat = "LLM response missing fields: %s"
)

var requiredSummaryFields = []string{"summary", "technologies", "structure"}

// RequestError maps a summarization failure onto the HTTP status the service
// reports, keeping the client-facing message separate from wrapped detail.
type RequestError struct {
	statusCode int
	message    string
	err        error
}

// NewRequestError builds a RequestError carrying a client-facing message.
func NewRequestError(statusCode int, message string) RequestError {
	return RequestError{statusCode: statusCode, message: message}
}

// WrapRequestError attaches an underlying cause to a client-facing message.
func WrapRequestError(statusCode int, message string, err error) RequestError {
	return RequestError{statusCode: statusCode, message: message, err: err}
}

func (requestError RequestError) Error() string {
	if requestError.err != nil {
		return fmt.Sprintf("%s: %v", requestError.message, requestError.err)
	}
	return requestError.message
}

// Message returns the client-facing text without wrapped detail.
func (requestError RequestError) Message() string {
	return requestError.message
}

// Unwrap exposes the underlying cause for errors.Is and errors.As.
func (requestError RequestError) Unwrap() error {
	return requestError.err
}

// StatusCode reports the HTTP status associated with the failure.
func (requestError RequestError) StatusCode() int {
	if requestError.statusCode == 0 {
		return http.StatusBadGateway
	}
	return requestError.statusCode
}

// Summary is the structured result produced for a repository.
type Summary struct {
	Summary      string   `json:"summary"`
	Technologies []string `json:"technologies"`
	Structure    string   `json:"structure"`
}

type httpClient interface {
	Do(request *http.Request) (*http.Response, error)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	client  httpClient
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient returns a Client with production defaults. A nil client gets a
// standard http.Client; a nil logger is replaced with a no-op logger.
func NewClient(client httpClient, logger *zap.Logger) Client {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return Client{
		client:  client,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		timeout: defaultRequestTimeout,
		logger:  logger,
	}
}

// WithBaseURL points the client at an alternate API base URL.
func (summaryClient Client) WithBaseURL(baseURL string) Client {
	if baseURL == "" {
		return summaryClient
	}
	summaryClient.baseURL = strings.TrimRight(baseURL, "/")
	return summaryClient
}

// WithAPIKey sets the bearer token sent on every request.
func (summaryClient Client) WithAPIKey(apiKey string) Client {
	summaryClient.apiKey = apiKey
	return summaryClient
}

// WithModel overrides the completion model.
func (summaryClient Client) WithModel(model string) Client {
	if model == "" {
		return summaryClient
	}
	summaryClient.model = model
	return summaryClient
}

// WithTimeout bounds each summarization request.
func (summaryClient Client) WithTimeout(duration time.Duration) Client {
	if duration <= 0 {
		return summaryClient
	}
	summaryClient.timeout = duration
	return summaryClient
}

// Summarize sends the prompt with the fixed system instruction and parses
// the model output into a Summary. Failures carry the HTTP status the
// service reports: 500 for missing configuration, 504 for timeouts, and 502
// for upstream or malformed-output conditions.
func (summaryClient Client) Summarize(ctx context.Context, prompt string) (Summary, error) {
	if strings.TrimSpace(summaryClient.apiKey) == "" {
		return Summary{}, NewRequestError(http.StatusInternalServerError, missingAPIKeyMessage)
	}

	requestBody := chatRequest{
		Model: summaryClient.model,
		Messages: []chatMessage{
			{Role: roleSystem, Content: systemPrompt},
			{Role: roleUser, Content: prompt},
		},
		Temperature: requestTemperature,
	}
	bodyBytes, marshalErr := json.Marshal(requestBody)
	if marshalErr != nil {
		return Summary{}, WrapRequestError(http.StatusInternalServerError, "encode LLM request", marshalErr)
	}

	requestCtx := ctx
	if summaryClient.timeout > 0 {
		var cancel context.CancelFunc
		requestCtx, cancel = context.WithTimeout(ctx, summaryClient.timeout)
		defer cancel()
	}

	endpoint := summaryClient.baseURL + chatCompletionsPath
	request, requestErr := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if requestErr != nil {
		return Summary{}, WrapRequestError(http.StatusInternalServerError, "build LLM request", requestErr)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+summaryClient.apiKey)

	startTime := time.Now()
	response, responseErr := summaryClient.client.Do(request)
	if responseErr != nil {
		if errors.Is(responseErr, context.DeadlineExceeded) {
			return Summary{}, NewRequestError(http.StatusGatewayTimeout, requestTimedOutMessage)
		}
		return Summary{}, WrapRequestError(http.StatusBadGateway, fmt.Sprintf(summarizationFailedFormat, "request failed"), responseErr)
	}
	defer response.Body.Close()

	responseBytes, readErr := io.ReadAll(response.Body)
	if readErr != nil {
		return Summary{}, WrapRequestError(http.StatusBadGateway, fmt.Sprintf(summarizationFailedFormat, "unreadable response"), readErr)
	}

	if response.StatusCode != http.StatusOK {
		detail := fmt.Sprintf("status %d: %s", response.StatusCode, truncateForMessage(string(responseBytes), errorBodyLogLimit))
		return Summary{}, NewRequestError(http.StatusBadGateway, fmt.Sprintf(summarizationFailedFormat, detail))
	}

	var completion chatResponse
	if unmarshalErr := json.Unmarshal(responseBytes, &completion); unmarshalErr != nil {
		return Summary{}, WrapRequestError(http.StatusBadGateway, malformedResponseMessage, unmarshalErr)
	}
	if completion.Error != nil {
		return Summary{}, NewRequestError(http.StatusBadGateway, fmt.Sprintf(summarizationFailedFormat, completion.Error.Message))
	}
	if len(completion.Choices) == 0 {
		return Summary{}, NewRequestError(http.StatusBadGateway, noChoicesMessage)
	}
	rawContent := completion.Choices[0].Message.Content
	if strings.TrimSpace(rawContent) == "" {
		return Summary{}, NewRequestError(http.StatusBadGateway, emptyResponseMessage)
	}

	summaryClient.logger.Debug("chat completion finished",
		zap.String("model", summaryClient.model),
		zap.Duration("duration", time.Since(startTime)))

	return parseSummaryContent(rawContent)
}

func parseSummaryContent(rawContent string) (Summary, error) {
	content := stripMarkdownFences(rawContent)

	var rawFields map[string]json.RawMessage
	if unmarshalErr := json.Unmarshal([]byte(content), &rawFields); unmarshalErr != nil {
		return Summary{}, WrapRequestError(http.StatusBadGateway, malformedResponseMessage, unmarshalErr)
	}
	var missingFields []string
	for _, field := range requiredSummaryFields {
		if _, present := rawFields[field]; !present {
			missingFields = append(missingFields, field)
		}
	}
	if len(missingFields) > 0 {
		return Summary{}, NewRequestError(http.StatusBadGateway, fmt.Sprintf(missingFieldsMessageFormat, strings.Join(missingFields, ", ")))
	}

	var summary Summary
	if unmarshalErr := json.Unmarshal([]byte(content), &summary); unmarshalErr != nil {
		return Summary{}, WrapRequestError(http.StatusBadGateway, malformedResponseMessage, unmarshalErr)
	}
	return summary, nil
}

// stripMarkdownFences removes a surrounding code fence, including an optional
// language tag on the opening line, in case the model ignored the format
// instruction.
func stripMarkdownFences(rawContent string) string {
	content := strings.TrimSpace(rawContent)
	if strings.HasPrefix(content, codeFence) {
		if newlineIndex := strings.Index(content, "\n"); newlineIndex >= 0 {
			content = content[newlineIndex+1:]
		} else {
			content = content[len(codeFence):]
		}
	}
	if strings.HasSuffix(content, codeFence) {
		content = content[:len(content)-len(codeFence)]
	}
	return strings.TrimSpace(content)
}

func truncateForMessage(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
