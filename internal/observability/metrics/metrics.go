package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

type requestLabel struct {
	method string
	path   string
	status string
}

type webhookLabel struct {
	event   string
	outcome string
}

// Recorder aggregates in-memory counters for HTTP traffic, webhook
// processing, video host calls, live comment activity, and intent cache
// lookups. It renders Prometheus text exposition on demand.
type Recorder struct {
	mu                sync.RWMutex
	requestCount      map[requestLabel]uint64
	requestDuration   map[requestLabel]time.Duration
	webhookEvents     map[webhookLabel]uint64
	videohostAttempts map[string]uint64
	videohostFailures map[string]uint64
	liveCommentEvents map[string]uint64
	intentLookups     map[string]uint64
}

var defaultRecorder = New()

// New constructs an empty Recorder with initialized backing maps.
func New() *Recorder {
	return &Recorder{
		requestCount:      make(map[requestLabel]uint64),
		requestDuration:   make(map[requestLabel]time.Duration),
		webhookEvents:     make(map[webhookLabel]uint64),
		videohostAttempts: make(map[string]uint64),
		videohostFailures: make(map[string]uint64),
		liveCommentEvents: make(map[string]uint64),
		intentLookups:     make(map[string]uint64),
	}
}

// Default returns the singleton Recorder shared by the package-level helper
// functions.
func Default() *Recorder {
	return defaultRecorder
}

// ObserveRequest accumulates request count and cumulative duration by HTTP
// method, normalized path, and status code.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	label := requestLabel{
		method: strings.ToUpper(method),
		path:   normalizePath(path),
		status: fmt.Sprintf("%d", status),
	}
	r.mu.Lock()
	r.requestCount[label]++
	r.requestDuration[label] += duration
	r.mu.Unlock()
}

// ObserveWebhookEvent records a processed webhook delivery by event type and
// outcome ("processed", "invalid_signature", "failed", "ignored").
func (r *Recorder) ObserveWebhookEvent(event, outcome string) {
	label := webhookLabel{event: normalizeName(event), outcome: normalizeName(outcome)}
	r.mu.Lock()
	r.webhookEvents[label]++
	r.mu.Unlock()
}

// ObserveVideohostAttempt records an outbound video host operation by name
// (e.g. "create_upload", "delete_asset").
func (r *Recorder) ObserveVideohostAttempt(operation string) {
	op := normalizeName(operation)
	r.mu.Lock()
	r.videohostAttempts[op]++
	r.mu.Unlock()
}

// ObserveVideohostFailure records a failed outbound video host operation. The
// caller should also record the attempt separately.
func (r *Recorder) ObserveVideohostFailure(operation string) {
	op := normalizeName(operation)
	r.mu.Lock()
	r.videohostFailures[op]++
	r.mu.Unlock()
}

// ObserveLiveCommentEvent records a live comment event type for throughput
// monitoring.
func (r *Recorder) ObserveLiveCommentEvent(event string) {
	normalized := normalizeName(event)
	r.mu.Lock()
	r.liveCommentEvents[normalized]++
	r.mu.Unlock()
}

// ObserveIntentLookup records an intent cache lookup result ("hit" or
// "miss").
func (r *Recorder) ObserveIntentLookup(result string) {
	normalized := normalizeName(result)
	r.mu.Lock()
	r.intentLookups[normalized]++
	r.mu.Unlock()
}

// WebhookCounts returns copies of the webhook counters keyed as
// "event/outcome". Intended for tests and reporting.
func (r *Recorder) WebhookCounts() map[string]uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]uint64, len(r.webhookEvents))
	for label, count := range r.webhookEvents {
		out[label.event+"/"+label.outcome] = count
	}
	return out
}

// VideohostCounts returns copies of the attempt and failure counters.
func (r *Recorder) VideohostCounts() (attempts, failures map[string]uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	attempts = make(map[string]uint64, len(r.videohostAttempts))
	for k, v := range r.videohostAttempts {
		attempts[k] = v
	}
	failures = make(map[string]uint64, len(r.videohostFailures))
	for k, v := range r.videohostFailures {
		failures[k] = v
	}
	return attempts, failures
}

// Reset clears all counters on the recorder. Intended for test setups.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestCount = make(map[requestLabel]uint64)
	r.requestDuration = make(map[requestLabel]time.Duration)
	r.webhookEvents = make(map[webhookLabel]uint64)
	r.videohostAttempts = make(map[string]uint64)
	r.videohostFailures = make(map[string]uint64)
	r.liveCommentEvents = make(map[string]uint64)
	r.intentLookups = make(map[string]uint64)
}

// Handler exposes the Recorder as an http.Handler that writes Prometheus
// text exposition data.
func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.Write(w)
	})
}

// Write renders the metrics in Prometheus text format with sorted label sets
// so scrapes and tests see stable output.
func (r *Recorder) Write(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requestLabels := r.sortedRequestLabels()
	webhookLabels := r.sortedWebhookLabels()
	videohostOps := sortedKeys(r.videohostAttempts, r.videohostFailures)
	liveCommentEvents := sortedKeys(r.liveCommentEvents)
	intentResults := sortedKeys(r.intentLookups)

	fmt.Fprintln(w, "# HELP framecast_http_requests_total Total number of HTTP requests processed by the API")
	fmt.Fprintln(w, "# TYPE framecast_http_requests_total counter")
	for _, label := range requestLabels {
		fmt.Fprintf(w, "framecast_http_requests_total{method=%q,path=%q,status=%q} %d\n", label.method, label.path, label.status, r.requestCount[label])
	}

	fmt.Fprintln(w, "# HELP framecast_http_request_duration_seconds_sum Cumulative duration of HTTP requests in seconds")
	fmt.Fprintln(w, "# TYPE framecast_http_request_duration_seconds_sum counter")
	for _, label := range requestLabels {
		fmt.Fprintf(w, "framecast_http_request_duration_seconds_sum{method=%q,path=%q,status=%q} %f\n", label.method, label.path, label.status, r.requestDuration[label].Seconds())
	}

	fmt.Fprintln(w, "# HELP framecast_http_request_duration_seconds_count Total number of observations for request durations")
	fmt.Fprintln(w, "# TYPE framecast_http_request_duration_seconds_count counter")
	for _, label := range requestLabels {
		fmt.Fprintf(w, "framecast_http_request_duration_seconds_count{method=%q,path=%q,status=%q} %d\n", label.method, label.path, label.status, r.requestCount[label])
	}

	fmt.Fprintln(w, "# HELP framecast_webhook_events_total Webhook deliveries by event type and outcome")
	fmt.Fprintln(w, "# TYPE framecast_webhook_events_total counter")
	for _, label := range webhookLabels {
		fmt.Fprintf(w, "framecast_webhook_events_total{event=%q,outcome=%q} %d\n", label.event, label.outcome, r.webhookEvents[label])
	}

	fmt.Fprintln(w, "# HELP framecast_videohost_attempts_total Outbound video host operations attempted by action")
	fmt.Fprintln(w, "# TYPE framecast_videohost_attempts_total counter")
	for _, op := range videohostOps {
		fmt.Fprintf(w, "framecast_videohost_attempts_total{operation=%q} %d\n", op, r.videohostAttempts[op])
	}

	fmt.Fprintln(w, "# HELP framecast_videohost_failures_total Outbound video host operation failures by action")
	fmt.Fprintln(w, "# TYPE framecast_videohost_failures_total counter")
	for _, op := range videohostOps {
		fmt.Fprintf(w, "framecast_videohost_failures_total{operation=%q} %d\n", op, r.videohostFailures[op])
	}

	fmt.Fprintln(w, "# HELP framecast_live_comment_events_total Live comment events by type")
	fmt.Fprintln(w, "# TYPE framecast_live_comment_events_total counter")
	for _, event := range liveCommentEvents {
		fmt.Fprintf(w, "framecast_live_comment_events_total{event=%q} %d\n", event, r.liveCommentEvents[event])
	}

	fmt.Fprintln(w, "# HELP framecast_intent_lookups_total Upload intent cache lookups by result")
	fmt.Fprintln(w, "# TYPE framecast_intent_lookups_total counter")
	for _, result := range intentResults {
		fmt.Fprintf(w, "framecast_intent_lookups_total{result=%q} %d\n", result, r.intentLookups[result])
	}
}

func (r *Recorder) sortedRequestLabels() []requestLabel {
	labels := make([]requestLabel, 0, len(r.requestCount))
	for label := range r.requestCount {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].path != labels[j].path {
			return labels[i].path < labels[j].path
		}
		if labels[i].method != labels[j].method {
			return labels[i].method < labels[j].method
		}
		return labels[i].status < labels[j].status
	})
	return labels
}

func (r *Recorder) sortedWebhookLabels() []webhookLabel {
	labels := make([]webhookLabel, 0, len(r.webhookEvents))
	for label := range r.webhookEvents {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].event != labels[j].event {
			return labels[i].event < labels[j].event
		}
		return labels[i].outcome < labels[j].outcome
	})
	return labels
}

func sortedKeys(maps ...map[string]uint64) []string {
	seen := make(map[string]struct{})
	for _, m := range maps {
		for k := range m {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func normalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if looksLikeIdentifier(part) {
			parts[i] = ":id"
		}
	}
	normalized := strings.Join(parts, "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if strings.HasSuffix(normalized, "/") && len(normalized) > 1 {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}

func looksLikeIdentifier(segment string) bool {
	if len(segment) >= 16 {
		return true
	}
	digitCount := 0
	for _, r := range segment {
		if r >= '0' && r <= '9' {
			digitCount++
		}
	}
	return digitCount >= 3
}

func normalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

// ObserveRequest records a request on the default recorder.
func ObserveRequest(method, path string, status int, duration time.Duration) {
	defaultRecorder.ObserveRequest(method, path, status, duration)
}

// ObserveWebhookEvent records a webhook delivery on the default recorder.
func ObserveWebhookEvent(event, outcome string) {
	defaultRecorder.ObserveWebhookEvent(event, outcome)
}

// ObserveVideohostAttempt records a video host attempt on the default recorder.
func ObserveVideohostAttempt(operation string) {
	defaultRecorder.ObserveVideohostAttempt(operation)
}

// ObserveVideohostFailure records a video host failure on the default recorder.
func ObserveVideohostFailure(operation string) {
	defaultRecorder.ObserveVideohostFailure(operation)
}

// ObserveLiveCommentEvent records a live comment event on the default recorder.
func ObserveLiveCommentEvent(event string) {
	defaultRecorder.ObserveLiveCommentEvent(event)
}

// ObserveIntentLookup records an intent cache lookup on the default recorder.
func ObserveIntentLookup(result string) {
	defaultRecorder.ObserveIntentLookup(result)
}

// Handler exposes the default recorder as an HTTP handler.
func Handler() http.Handler {
	return defaultRecorder.Handler()
}
