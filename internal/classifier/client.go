package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/olegsazonov/emergency-backend/internal/models"
)

// Client — шлюз к внешнему сервису классификации приоритета.
// Сервис принимает текст описания и возвращает метку приоритета;
// модель классификации для нас чёрный ящик.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

type classifyRequest struct {
	Description string `json:"description"`
}

type classifyResponse struct {
	Priority   string  `json:"priority"`
	Confidence float64 `json:"confidence"`
}

// NewClient создаёт шлюз классификатора.
// timeout ограничивает каждый запрос: приём вызова не должен висеть
// дольше этой границы из-за недоступного классификатора.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Classify запрашивает приоритет для описания происшествия.
// Возвращает ошибку при таймауте, сетевой ошибке или непонятном ответе —
// подстановкой запасного приоритета занимается вызывающая сторона.
func (c *Client) Classify(ctx context.Context, description string) (models.Priority, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("classifier: baseURL не задан")
	}

	body, err := json.Marshal(classifyRequest{Description: description})
	if err != nil {
		return "", fmt.Errorf("classifier: не удалось сериализовать запрос: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("classifier: запрос не выполнен: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("classifier: код ответа %d", resp.StatusCode)
	}

	var parsed classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("classifier: не удалось разобрать ответ: %w", err)
	}

	priority, err := models.NewPriority(strings.ToLower(strings.TrimSpace(parsed.Priority)))
	if err != nil {
		return "", fmt.Errorf("classifier: неизвестная метка приоритета %q", parsed.Priority)
	}

	return priority, nil
}
