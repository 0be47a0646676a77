package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Fixed results returned instead of errors: report generation is cosmetic and
// must never fail past this boundary.
const (
	FallbackNotConfigured = "Relatório indisponível: configuração incompleta."
	FallbackFailed        = "Relatório indisponível: falha na geração."
)

const requestTimeout = 20 * time.Second

// Generator turns an aggregated sales payload into a short Markdown summary
// by calling an external text-generation API. Every failure mode collapses
// into one of the two fallback strings.
type Generator struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewGenerator(endpoint, apiKey string) *Generator {
	return &Generator{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: requestTimeout},
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Text string `json:"text"`
}

// Summarize never returns an error; callers always get displayable text.
func (g *Generator) Summarize(ctx context.Context, payload any) string {
	if g.endpoint == "" || g.apiKey == "" {
		return FallbackNotConfigured
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).Warn("report payload not serializable")
		return FallbackFailed
	}

	prompt := fmt.Sprintf(
		"Você é o gerente de um restaurante. Escreva um resumo curto de vendas em Markdown a partir destes dados agregados:\n%s",
		data,
	)
	body, err := json.Marshal(generateRequest{Prompt: prompt})
	if err != nil {
		return FallbackFailed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		logrus.WithError(err).Warn("report request build failed")
		return FallbackFailed
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		logrus.WithError(err).Warn("report generation call failed")
		return FallbackFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logrus.WithField("status", resp.StatusCode).Warn("report generation rejected")
		return FallbackFailed
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Text == "" {
		logrus.WithError(err).Warn("report response unreadable")
		return FallbackFailed
	}
	return out.Text
}
