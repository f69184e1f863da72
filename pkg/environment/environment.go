package environment

import (
	"strconv"
	"time"

	"github.com/litmuschaos/chaos-advisor/pkg/types"
)

//GetENV fetches all the env variables consumed by the advisor
func GetENV(advisorDetails *types.AdvisorDetails) {
	advisorDetails.KubeConfig = types.Getenv("KUBECONFIG", "")
	advisorDetails.PrometheusURL = types.Getenv("PROMETHEUS_URL", "http://localhost:9090")
	advisorDetails.SlackWebhookURL = types.Getenv("SLACK_WEBHOOK_URL", "")
	advisorDetails.MonitorInterval = getDuration("MONITOR_INTERVAL", 30*time.Second)
	advisorDetails.QueryTimeout = getDuration("QUERY_TIMEOUT", 10*time.Second)
	advisorDetails.ProgressEvery, _ = strconv.Atoi(types.Getenv("PROGRESS_EVERY", "10"))
	advisorDetails.RetryCount, _ = strconv.Atoi(types.Getenv("RETRY_COUNT", "3"))
	advisorDetails.RetryDelay = getDuration("RETRY_DELAY", 2*time.Second)
	advisorDetails.ChaosSvcAccount = types.Getenv("CHAOS_SERVICE_ACCOUNT", "litmus-admin")
	advisorDetails.LLMProvider = types.Getenv("LLM_PROVIDER", "mock")
	advisorDetails.OpenAIAPIKey = types.Getenv("OPENAI_API_KEY", "")
	advisorDetails.OpenAIModel = types.Getenv("OPENAI_MODEL", "gpt-4o-mini")
	advisorDetails.ReportsDir = types.Getenv("REPORTS_DIR", "reports")
	advisorDetails.OTelEndpoint = types.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	advisorDetails.PushgatewayURL = types.Getenv("PUSHGATEWAY_URL", "")
	advisorDetails.LogLevel = types.Getenv("LOG_LEVEL", "info")
}

// getDuration accepts both go durations ("30s") and plain seconds ("30")
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := types.Getenv(key, "")
	if value == "" {
		return defaultValue
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}
