package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/submission-vault/internal/core/domain"
	"github.com/kirillkom/submission-vault/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, model string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

// Analyzer asks the model for a secondary review of a submission's text.
type Analyzer struct {
	client *Client
}

func NewAnalyzer(client *Client) *Analyzer {
	return &Analyzer{client: client}
}

type analysisResponse struct {
	Status string   `json:"status"`
	Issues []string `json:"issues"`
}

func (a *Analyzer) Analyze(ctx context.Context, sub *domain.Submission, docType *domain.DocumentType, text string) (domain.AnalysisResult, error) {
	respText, err := a.client.generateJSON(ctx, buildAnalysisPrompt(sub, docType, text))
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	var parsed analysisResponse
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &parsed); err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("parse analysis json: %w", err)
	}
	return normalizeAnalysis(parsed), nil
}

// normalizeAnalysis maps loose model output onto the two statuses; any reported issue flags the file.
func normalizeAnalysis(parsed analysisResponse) domain.AnalysisResult {
	issues := make([]string, 0, len(parsed.Issues))
	for _, issue := range parsed.Issues {
		if trimmed := strings.TrimSpace(issue); trimmed != "" {
			issues = append(issues, trimmed)
		}
	}

	status := domain.AnalysisClean
	if len(issues) > 0 || strings.EqualFold(strings.TrimSpace(parsed.Status), string(domain.AnalysisFlagged)) {
		status = domain.AnalysisFlagged
	}
	return domain.AnalysisResult{Status: status, Issues: issues}
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}

	var response struct {
		Response string `json:"response"`
	}
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/api/generate", reqBody, &response, "generate")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama.generate", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("ollama generate", err)
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
