package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tributary-ai/llm-router/internal/amproute"
	"github.com/tributary-ai/llm-router/internal/balancer"
	"github.com/tributary-ai/llm-router/internal/config"
	"github.com/tributary-ai/llm-router/internal/errorclass"
	"github.com/tributary-ai/llm-router/internal/metrics"
	"github.com/tributary-ai/llm-router/internal/ratelimit"
	"github.com/tributary-ai/llm-router/internal/resolver"
	"github.com/tributary-ai/llm-router/internal/statestore"
	"github.com/tributary-ai/llm-router/internal/translate"
)

// Handler runs the request handling pipeline, wiring the resolver,
// balancer, rate-limit accountant, translator, and the upstream HTTP
// client together.
type Handler struct {
	cfg        *config.RuntimeConfig
	store      statestore.Store
	metrics    *metrics.Metrics
	translator translate.Translator
	rewriter   *amproute.Rewriter
	httpClient *http.Client
	logger     *logrus.Logger

	jitter func() float64 // overridden in tests; nil uses math/rand
}

// New builds a Handler. httpClient may be nil, in which case a client with
// no default timeout is used (per-request timeouts are applied via
// context instead, since candidates may carry different deadlines).
func New(cfg *config.RuntimeConfig, store statestore.Store, m *metrics.Metrics, translator translate.Translator, rewriter *amproute.Rewriter, httpClient *http.Client, logger *logrus.Logger) *Handler {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if m == nil {
		m = metrics.New("llm_router", prometheus.NewRegistry())
	}
	return &Handler{
		cfg:        cfg,
		store:      store,
		metrics:    m,
		translator: translator,
		rewriter:   rewriter,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Request is the transport-agnostic input to ServeRequest. internal/server
// builds one per inbound HTTP request after enforcing the max body size.
type Request struct {
	Path   string
	Body   []byte
	Header http.Header

	// SourceFormat, when non-empty, overrides path/body-shape detection
	// (set by routes that pin a format explicitly, e.g. /v1/messages).
	SourceFormat config.WireFormat
}

// ServeRequest runs the full pipeline and returns the response to write.
func (h *Handler) ServeRequest(ctx context.Context, req Request) *Result {
	if !json.Valid(req.Body) {
		return errorResult(http.StatusBadRequest, "invalid_request", "request body is not valid JSON")
	}

	sourceFormat := req.SourceFormat
	if sourceFormat == "" {
		sourceFormat = DetectSourceFormat(req.Path, req.Body)
	}

	requestedModel := extractRequestedModel(req.Body)
	routedModel := h.rewriter.Rewrite(requestedModel, req.Header)

	plan := resolver.Resolve(h.cfg, routedModel, sourceFormat)
	debug := DebugFields{
		Enabled:        h.cfg.Server.DebugRouting,
		RequestedModel: requestedModel,
		RouteType:      string(plan.RouteType),
		RouteRef:       plan.RouteRef,
		RouteStrategy:  string(plan.RouteStrategy),
	}

	if plan.Primary == nil {
		status := http.StatusBadRequest
		if strings.Contains(plan.Error, "disabled") || strings.Contains(plan.Error, "no eligible candidates") {
			status = http.StatusServiceUnavailable
		}
		res := errorResult(status, "routing_error", plan.Error)
		res.DebugFields = debug
		return res
	}

	if _, err := h.store.PruneExpired(ctx, nowMs()); err != nil {
		h.logger.WithError(err).Debug("best-effort state prune failed")
	}

	all := plan.AllCandidates()
	var formatCompatible []resolver.Candidate
	for _, c := range all {
		if supportsFormat(c) {
			formatCompatible = append(formatCompatible, c)
		} else {
			debug.SkippedCandidates = append(debug.SkippedCandidates, balancer.CandidateKey(&c)+":format-incompatible")
			h.metrics.RecordSkip(plan.RouteRef, c.ProviderID, c.ModelID, "format-incompatible")
		}
	}

	if len(formatCompatible) == 0 {
		res := errorResult(http.StatusServiceUnavailable, "routing_error", "no candidate supports a compatible wire format")
		res.DebugFields = debug
		return res
	}

	routeKey := balancer.RouteKey(string(plan.RouteType), plan.RouteRef, string(sourceFormat))
	now := nowMs()
	rank, err := balancer.Rank(ctx, h.store, h.cfg, formatCompatible, plan.RouteStrategy, routeKey, now, h.metrics)
	if err != nil {
		h.logger.WithError(err).Error("balancer rank failed")
		res := errorResult(http.StatusInternalServerError, "internal_error", "ranking candidates failed")
		res.DebugFields = debug
		return res
	}
	for _, skipped := range rank.SkippedEntries {
		for _, reason := range skipped.SkipReasons {
			debug.SkippedCandidates = append(debug.SkippedCandidates, skipped.CandidateKey+":"+reason)
			h.metrics.RecordSkip(plan.RouteRef, skipped.Candidate.ProviderID, skipped.Candidate.ModelID, reason)
		}
	}

	if rank.SelectedEntry == nil {
		res := errorResult(http.StatusServiceUnavailable, "routing_error", "no eligible candidate is available")
		res.DebugFields = debug
		return res
	}

	originalKey := rank.SelectedEntry.CandidateKey
	committed := false
	var attempts []attemptRecord
	var lastErr *Result

	for i, entry := range rank.Entries {
		if !entry.Eligible {
			continue
		}
		isOriginal := entry.CandidateKey == originalKey
		if !committed {
			if cerr := balancer.Commit(ctx, h.store, routeKey, rank); cerr != nil {
				h.logger.WithError(cerr).Warn("failed to commit route cursor")
			}
			committed = true
		}
		if i > 0 || !isOriginal {
			h.metrics.RecordFallback(plan.RouteRef, rank.Entries[0].Candidate.ProviderID, entry.Candidate.ProviderID)
		}

		debug.SelectedCandidate = entry.CandidateKey
		bucketConsumed := false
		attempt := 1
		for {
			result, cls, status, reachedUpstream := h.attemptUpstream(ctx, sourceFormat, req.Path, req.Body, req.Header, entry)
			attempts = append(attempts, attemptRecord{candidateKey: entry.CandidateKey, status: status, category: string(cls.Category), attempt: attempt})

			if reachedUpstream && !bucketConsumed {
				if cerr := ratelimit.Consume(ctx, h.store, entry.RateLimitBuckets, nowMs()); cerr != nil {
					h.logger.WithError(cerr).Warn("failed to consume rate-limit bucket")
				}
				bucketConsumed = true
			}

			if cls.Category == errorclass.CategoryOK {
				h.setCandidateState(ctx, entry.CandidateKey, errorclass.ApplySuccess(nowMs()))
				debug.Attempts = attemptStrings(attempts)
				result.DebugFields = debug
				return result
			}

			h.setCandidateState(ctx, entry.CandidateKey, errorclass.ApplyFailure(entry.State, cls, status, nowMs(), int64(h.cfg.Server.FailureThreshold), h.cfg.Server.CooldownMs))
			lastErr = result

			if !cls.AllowFallback {
				debug.Attempts = attemptStrings(attempts)
				lastErr.DebugFields = debug
				return lastErr
			}

			if cls.RetryOrigin && isOriginal && attempt < h.cfg.Server.OriginRetryAttempts {
				h.metrics.RecordRetry(entry.Candidate.ProviderID, entry.Candidate.ModelID)
				delay := computeRetryDelayMs(attempt, h.jitter)
				if !sleepCtx(ctx, time.Duration(delay)*time.Millisecond) {
					debug.Attempts = attemptStrings(attempts)
					lastErr.DebugFields = debug
					return lastErr
				}
				attempt++
				continue
			}
			break
		}
	}

	debug.Attempts = attemptStrings(attempts)
	if lastErr == nil {
		lastErr = errorResult(http.StatusServiceUnavailable, "routing_error", "no eligible candidate is available")
	}
	lastErr.DebugFields = debug
	return lastErr
}

func (h *Handler) setCandidateState(ctx context.Context, key string, state *statestore.CandidateState) {
	if err := h.store.SetCandidateState(ctx, key, state); err != nil {
		h.logger.WithError(err).WithField("candidate", key).Warn("failed to persist candidate state")
	}
}

// attemptUpstream translates the request, dispatches it to one candidate,
// and returns the (translated) Result plus the failure classification that
// drives the retry/fallback decision. A Result with a 2xx/3xx-derived
// success classification is still returned through this path so the
// caller can decide state-clearing and rate-limit consumption uniformly.
func (h *Handler) attemptUpstream(ctx context.Context, sourceFormat config.WireFormat, inboundPath string, body []byte, hdrs http.Header, entry balancer.Entry) (*Result, errorclass.Classification, int, bool) {
	c := entry.Candidate

	effort, hasEffort := translate.ExtractEffort(body, hdrs)
	translated, err := h.translator.TranslateRequest(ctx, body, sourceFormat, c.TargetFormat)
	if err != nil {
		return errorResult(http.StatusBadGateway, "translation_error", err.Error()), errorclass.Classification{Category: errorclass.CategoryInvalidRequest}, 0, false
	}
	if hasEffort {
		translated, err = h.translator.ApplyEffort(translated, c.TargetFormat, effort)
		if err != nil {
			return errorResult(http.StatusBadGateway, "translation_error", err.Error()), errorclass.Classification{Category: errorclass.CategoryInvalidRequest}, 0, false
		}
	}

	op := operationFromPath(inboundPath)
	url := resolveProviderURL(baseURLFor(c.Provider, c.TargetFormat), string(c.TargetFormat), op)
	upstreamHeaders := buildUpstreamHeaders(c.Provider, c.TargetFormat, hdrs)

	timeout := h.cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := timeNow()
	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(translated))
	if err != nil {
		return errorResult(http.StatusBadGateway, "internal_error", err.Error()), errorclass.ClassifyNetworkError(), 0, false
	}
	httpReq.Header = upstreamHeaders

	resp, err := h.httpClient.Do(httpReq)
	duration := timeNow().Sub(start).Seconds()
	if err != nil {
		h.metrics.RecordUpstreamRequest(c.ProviderID, c.ModelID, "network_error", duration)
		return errorResult(http.StatusBadGateway, "network_error", err.Error()), errorclass.ClassifyNetworkError(), 0, false
	}

	var retryAfterMs int64
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, perr := strconv.Atoi(ra); perr == nil {
			retryAfterMs = int64(secs) * 1000
		}
	}
	cls := errorclass.ClassifyStatus(resp.StatusCode, retryAfterMs)
	h.metrics.RecordUpstreamRequest(c.ProviderID, c.ModelID, string(cls.Category), duration)

	if cls.Category != errorclass.CategoryOK {
		defer resp.Body.Close()
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return errorResult(http.StatusBadGateway, "network_error", err.Error()), errorclass.ClassifyNetworkError(), 0, false
		}
		return errorResult(upstreamErrorStatus(resp.StatusCode), string(cls.Category), string(respBody)), cls, resp.StatusCode, true
	}

	if requestsStream(body) {
		streamBody := readCloser{
			Reader: h.translator.TranslateStream(ctx, resp.Body, c.TargetFormat, sourceFormat),
			closer: resp.Body,
		}
		header := make(http.Header)
		header.Set("Content-Type", "text/event-stream")
		return &Result{Status: http.StatusOK, Header: header, Stream: &StreamResult{Body: streamBody, ContentType: "text/event-stream"}}, cls, resp.StatusCode, true
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorResult(http.StatusBadGateway, "network_error", err.Error()), errorclass.ClassifyNetworkError(), 0, false
	}

	translatedResp, err := h.translator.TranslateResponse(ctx, respBody, c.TargetFormat, sourceFormat)
	if err != nil {
		return errorResult(http.StatusBadGateway, "translation_error", err.Error()), errorclass.Classification{Category: errorclass.CategoryServerError, RetryOrigin: true, AllowFallback: true}, resp.StatusCode, true
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &Result{Status: http.StatusOK, Header: header, Body: translatedResp}, cls, resp.StatusCode, true
}

// readCloser pairs a translated stream reader with the original upstream
// body, so closing it (on client disconnect or stream end) releases the
// upstream connection.
type readCloser struct {
	io.Reader
	closer io.Closer
}

func (r readCloser) Close() error { return r.closer.Close() }

func requestsStream(body []byte) bool {
	var probe struct {
		Stream bool `json:"stream"`
	}
	_ = json.Unmarshal(body, &probe)
	return probe.Stream
}

// baseURLFor picks the provider's format-specific base URL when configured.
func baseURLFor(p *config.ProviderSpec, format config.WireFormat) string {
	if p.BaseURLByFormat != nil {
		if u, ok := p.BaseURLByFormat[format]; ok && u != "" {
			return u
		}
	}
	return p.BaseURL
}

// upstreamErrorStatus preserves the upstream's status code for the client
// when it is a well-formed HTTP status (e.g. 429 stays 429 rather than
// collapsing to a generic 502).
func upstreamErrorStatus(status int) int {
	if status >= 400 && status < 600 {
		return status
	}
	return http.StatusBadGateway
}

func errorResult(status int, errType, message string) *Result {
	body, _ := json.Marshal(map[string]interface{}{
		"type": "error",
		"error": map[string]string{
			"type":    errType,
			"message": message,
		},
	})
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &Result{Status: status, Header: header, Body: body}
}

func attemptStrings(attempts []attemptRecord) []string {
	out := make([]string, len(attempts))
	for i, a := range attempts {
		out[i] = a.String()
	}
	return out
}

// sleepCtx sleeps for d or returns early (false) if ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func nowMs() int64 { return timeNow().UnixMilli() }

var timeNow = time.Now
