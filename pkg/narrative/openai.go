package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/trelay/trelay/pkg/analysis"
)

const openAIEndpoint = "https://api.openai.com/v1/chat/completions"
const openAIModel = "gpt-3.5-turbo"

// OpenAINarrator asks an OpenAI chat model for passenger-facing commentary on
// a delay report.
type OpenAINarrator struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

func NewOpenAINarrator(apiKey string) *OpenAINarrator {
	return &OpenAINarrator{
		apiKey:     apiKey,
		endpoint:   openAIEndpoint,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (n *OpenAINarrator) Narrate(ctx context.Context, report *analysis.Report) (string, error) {
	requestJSON, err := json.Marshal(chatRequest{
		Model: openAIModel,
		Messages: []chatMessage{
			{
				Role:    "system",
				Content: "You are an expert railway analyst providing travel advice based on historical performance data.",
			},
			{
				Role:    "user",
				Content: buildPrompt(report),
			},
		},
		MaxTokens:   600,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}

	request, err := http.NewRequestWithContext(ctx, "POST", n.endpoint, bytes.NewReader(requestJSON))
	if err != nil {
		return "", err
	}

	request.Header.Set("Authorization", "Bearer "+n.apiKey)
	request.Header.Set("Content-Type", "application/json")

	response, err := n.httpClient.Do(request)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	responseJSON, err := io.ReadAll(response.Body)
	if err != nil {
		return "", err
	}

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("narrative generation failed: HTTP %d", response.StatusCode)
	}

	var decoded chatResponse
	if err := json.Unmarshal(responseJSON, &decoded); err != nil {
		return "", err
	}

	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("narrative generation returned no choices")
	}

	return decoded.Choices[0].Message.Content, nil
}

func buildPrompt(report *analysis.Report) string {
	departure := report.DeparturePerformance
	arrival := report.ArrivalPerformance

	return fmt.Sprintf(`You are a railway performance analyst. Analyse the following delay data for the %s railway route and provide insights:

Route: %s
Date Range: %s
Time Window: %s
Days: %s
Total Services Analysed: %d

Departure Performance:
- Average Delay: %.1f minutes
- On-time Rate: %.1f%%
- Early Rate: %.1f%%
- Late Rate: %.1f%%
- Cancelled Rate: %.1f%%
- Reliability: %.1f%%

Arrival Performance:
- Average Delay: %.1f minutes
- On-time Rate: %.1f%%
- Early Rate: %.1f%%
- Late Rate: %.1f%%
- Cancelled Rate: %.1f%%
- Reliability: %.1f%%

Please provide:
1. Overall performance assessment (excellent/good/average/poor)
2. Key delay patterns and reliability insights
3. Probability of delays for future journeys (as a percentage)
4. Expected delay range for a typical journey
5. Recommendations for travellers
6. Best travel tips based on this route's performance

Keep your response concise but informative, suitable for a passenger planning their journey.`,
		report.Route,
		report.Route,
		report.DateRange,
		report.TimeRange,
		report.Days,
		report.AnalyzedServices,
		departure.Stats.AvgDelay,
		departure.Stats.OnTimePercentage,
		departure.Stats.EarlyPercentage,
		departure.Stats.LatePercentage,
		departure.Stats.CancelledPercentage,
		departure.Reliability,
		arrival.Stats.AvgDelay,
		arrival.Stats.OnTimePercentage,
		arrival.Stats.EarlyPercentage,
		arrival.Stats.LatePercentage,
		arrival.Stats.CancelledPercentage,
		arrival.Reliability,
	)
}
