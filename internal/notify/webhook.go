package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/hostpulse/hostpulse/internal/models"
)

// WebhookTarget defines one webhook delivery target. The URL is resolved
// from the environment so config files never carry secrets.
type WebhookTarget struct {
	// Name is the channel name rules refer to.
	Name string `yaml:"name"`

	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (t WebhookTarget) URL() string {
	if t.URLEnv == "" {
		return ""
	}
	return os.Getenv(t.URLEnv)
}

// Webhook posts alert notifications to one target. Errors are logged but
// never returned to the caller.
type Webhook struct {
	target WebhookTarget
	client *http.Client
}

// NewWebhook creates a dispatcher for one target.
func NewWebhook(target WebhookTarget) *Webhook {
	return &Webhook{
		target: target,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Dispatch delivers one event transition to the target.
func (w *Webhook) Dispatch(ctx context.Context, event *models.AlertEvent, rule *models.AlertRule) {
	url := w.target.URL()
	if url == "" {
		slog.Warn("notify: webhook URL not set — skipping",
			"channel", w.target.Name, "env", w.target.URLEnv)
		return
	}

	var err error
	switch w.target.Type {
	case "slack":
		err = w.sendSlack(ctx, url, event, rule)
	case "teams":
		err = w.sendTeams(ctx, url, event, rule)
	case "http":
		err = w.sendHTTP(ctx, url, event, rule)
	default:
		slog.Warn("notify: unknown webhook type — skipping",
			"channel", w.target.Name, "type", w.target.Type)
		return
	}

	if err != nil {
		slog.Error("notify: webhook delivery failed",
			"channel", w.target.Name,
			"rule", rule.Name,
			"err", err,
		)
	} else {
		slog.Debug("notify: webhook delivered",
			"channel", w.target.Name,
			"rule", rule.Name,
			"state", string(event.State()),
		)
	}
}

func (w *Webhook) sendSlack(ctx context.Context, url string, e *models.AlertEvent, r *models.AlertRule) error {
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s* %s", severityLabel(e.Severity), summarize(e, r)),
	})
	return w.post(ctx, url, body)
}

func (w *Webhook) sendTeams(ctx context.Context, url string, e *models.AlertEvent, r *models.AlertRule) error {
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": severityColor(e.Severity),
		"summary":    r.Name,
		"title":      fmt.Sprintf("HostPulse Alert: %s", r.Name),
		"text":       summarize(e, r),
	}
	body, _ := json.Marshal(payload)
	return w.post(ctx, url, body)
}

func (w *Webhook) sendHTTP(ctx context.Context, url string, e *models.AlertEvent, r *models.AlertRule) error {
	body, _ := json.Marshal(map[string]interface{}{
		"event":     e,
		"rule_name": r.Name,
		"metric":    fmt.Sprintf("%s.%s", r.MetricType, r.MetricName),
		"state":     e.State(),
	})
	return w.post(ctx, url, body)
}

func (w *Webhook) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// summarize renders a one-line human message for an event transition.
func summarize(e *models.AlertEvent, r *models.AlertRule) string {
	metric := fmt.Sprintf("%s.%s", r.MetricType, r.MetricName)
	if e.State() == models.EventResolved {
		return fmt.Sprintf("%s resolved on host %s: %s back within threshold",
			r.Name, e.HostID, metric)
	}
	return fmt.Sprintf("%s firing on host %s: %s = %.2f (threshold %s %.2f)",
		r.Name, e.HostID, metric, e.Value, operatorSymbol(r.Operator), e.Threshold)
}

func operatorSymbol(op models.Operator) string {
	switch op {
	case models.OpGT:
		return ">"
	case models.OpGTE:
		return ">="
	case models.OpLT:
		return "<"
	case models.OpLTE:
		return "<="
	case models.OpEQ:
		return "=="
	case models.OpNEQ:
		return "!="
	default:
		return string(op)
	}
}

func severityLabel(s models.Severity) string {
	switch s {
	case models.SeverityCritical:
		return "[CRITICAL]"
	case models.SeverityWarning:
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

func severityColor(s models.Severity) string {
	switch s {
	case models.SeverityCritical:
		return "FF4F6A"
	case models.SeverityWarning:
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
