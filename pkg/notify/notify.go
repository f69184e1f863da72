package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kyokomi/emoji"
	"github.com/pkg/errors"
	"github.com/slack-go/slack"

	"github.com/litmuschaos/chaos-advisor/pkg/types"
)

// Notification kinds besides the terminal run states
const (
	Started = "started"
	Update  = "update"
)

const (
	colorGood    = "#36a64f"
	colorWarning = "#ffa500"
	colorDanger  = "#ff0000"
	colorNeutral = "#808080"

	defaultTimeout = 10 * time.Second
)

// Notification is a point in a run's lifecycle worth telling a human about
type Notification struct {
	Kind    string
	RunID   string
	Title   string
	Action  types.Action
	Metrics map[string]float64
	// Reason is set for aborted and failed runs
	Reason string
	Time   time.Time
}

// Notifier delivers notifications. Delivery failures are reported, never retried.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Nop drops every notification
type Nop struct{}

// Notify implements Notifier
func (Nop) Notify(context.Context, Notification) error {
	return nil
}

// SlackNotifier posts notifications to a Slack incoming webhook
type SlackNotifier struct {
	webhookURL string
	timeout    time.Duration
}

// NewSlackNotifier returns a SlackNotifier, an empty webhook URL yields a Nop notifier
func NewSlackNotifier(webhookURL string, timeout time.Duration) Notifier {
	if webhookURL == "" {
		return Nop{}
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &SlackNotifier{webhookURL: webhookURL, timeout: timeout}
}

// Notify implements Notifier
func (s *SlackNotifier) Notify(ctx context.Context, n Notification) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := slack.PostWebhookContext(ctx, s.webhookURL, Message(n)); err != nil {
		return errors.Wrapf(err, "unable to post the %v notification of run %v", n.Kind, n.RunID)
	}
	return nil
}

// Message renders a notification as a Slack webhook message
func Message(n Notification) *slack.WebhookMessage {
	text, color := describe(n)
	ts := n.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	attachment := slack.Attachment{
		Color: color,
		Title: "Chaos Engineering Update",
		Text:  text,
		Fields: []slack.AttachmentField{
			{Title: "Run ID", Value: n.RunID, Short: true},
			{Title: "Action", Value: string(n.Action), Short: true},
		},
		Footer: "Chaos Advisor Agent",
		Ts:     jsonTimestamp(ts),
	}
	if n.Reason != "" {
		attachment.Fields = append(attachment.Fields, slack.AttachmentField{Title: "Reason", Value: n.Reason})
	}
	return &slack.WebhookMessage{Attachments: []slack.Attachment{attachment}}
}

func describe(n Notification) (string, string) {
	switch n.Kind {
	case Started:
		return icon(":rocket:") + fmt.Sprintf("Chaos experiment started: *%s* (%s)", n.Title, n.Action), colorGood
	case Update:
		if len(n.Metrics) == 0 {
			return icon(":bar_chart:") + fmt.Sprintf("Experiment update: *%s* - Running...", n.Title), colorWarning
		}
		return icon(":bar_chart:") + fmt.Sprintf("Experiment update: *%s* - Error rate: %.1f%%, Latency: %.0fms",
			n.Title, n.Metrics["error_rate"]*100, n.Metrics["latency_p95"]*1000), colorWarning
	case string(types.StateCompleted):
		return icon(":white_check_mark:") + fmt.Sprintf("Chaos experiment completed: *%s*", n.Title), colorGood
	case string(types.StateAborted):
		return icon(":no_entry:") + fmt.Sprintf("Chaos experiment aborted: *%s*", n.Title), colorDanger
	default:
		return icon(":question:") + fmt.Sprintf("Chaos experiment %s: *%s*", n.Kind, n.Title), colorNeutral
	}
}

// icon renders an emoji code followed by a single space
func icon(code string) string {
	return strings.TrimSpace(emoji.Sprint(code)) + " "
}

func jsonTimestamp(t time.Time) json.Number {
	return json.Number(strconv.FormatInt(t.Unix(), 10))
}
