package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	boardViewSpanName    = "api.board_view"
	boardViewEventName   = "board_view.request"
	boardViewEventDomain = "boardsync"
	boardViewRoute       = "/api/boards/:boardId/cards"
)

// boardViewMetrics records the timing breakdown of a board view request and
// emits it twice: as attributes on an OTel span and as a structured
// observability.event log record.
type boardViewMetrics struct {
	logger *log.Logger
	span   trace.Span
	start  time.Time

	authDuration   time.Duration
	fetchDuration  time.Duration
	encodeDuration time.Duration
	cardsReturned  int
	tasksReturned  int
	errorStage     string
}

func newBoardViewMetrics(ctx context.Context, logger *log.Logger) (*boardViewMetrics, context.Context) {
	m := &boardViewMetrics{logger: logger, start: time.Now()}
	spanCtx, span := otel.Tracer("boardsync/api").Start(ctx, boardViewSpanName)
	m.span = span
	return m, spanCtx
}

func (m *boardViewMetrics) ObserveAuth(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.authDuration = duration
}

func (m *boardViewMetrics) ObserveFetch(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.fetchDuration = duration
}

func (m *boardViewMetrics) ObserveEncode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.encodeDuration = duration
}

func (m *boardViewMetrics) SetCardsReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.cardsReturned = count
}

func (m *boardViewMetrics) SetTasksReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.tasksReturned = count
}

func (m *boardViewMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log finalizes the span and writes the observability.event record.
func (m *boardViewMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	total := durationToMillis(time.Since(m.start))
	severityText, severityNumber := severityForStatus(status, err)

	attrs := []attribute.KeyValue{
		attribute.String("http.route", boardViewRoute),
		attribute.Int("http.status_code", status),
		attribute.Float64("boardsync.board_view.total_ms", total),
		attribute.Int("boardsync.board_view.cards_returned", m.cardsReturned),
		attribute.Int("boardsync.board_view.tasks_returned", m.tasksReturned),
	}
	if m.authDuration > 0 {
		attrs = append(attrs, attribute.Float64("boardsync.board_view.auth_ms", durationToMillis(m.authDuration)))
	}
	if m.fetchDuration > 0 {
		attrs = append(attrs, attribute.Float64("boardsync.board_view.fetch_ms", durationToMillis(m.fetchDuration)))
	}
	if m.encodeDuration > 0 {
		attrs = append(attrs, attribute.Float64("boardsync.board_view.encode_ms", durationToMillis(m.encodeDuration)))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("boardsync.board_view.error_stage", m.errorStage))
	}

	var traceID string
	if m.span != nil {
		m.span.SetAttributes(attrs...)

		eventAttrs := append(attrs[:len(attrs):len(attrs)],
			attribute.String("event.name", boardViewEventName),
			attribute.String("event.domain", boardViewEventDomain),
			attribute.String("severity_text", severityText),
		)
		if err != nil {
			eventAttrs = append(eventAttrs, attribute.String("error.message", err.Error()))
		}
		m.span.AddEvent("observability.event", trace.WithAttributes(eventAttrs...))

		if err != nil || status >= http.StatusInternalServerError {
			desc := "request failed"
			if err != nil {
				desc = err.Error()
			}
			m.span.SetStatus(codes.Error, desc)
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		if sc := m.span.SpanContext(); sc.IsValid() {
			traceID = sc.TraceID().String()
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}

	logAttrs := map[string]any{
		"http.route":                          boardViewRoute,
		"http.status_code":                    status,
		"boardsync.board_view.total_ms":       total,
		"boardsync.board_view.cards_returned": m.cardsReturned,
		"boardsync.board_view.tasks_returned": m.tasksReturned,
	}
	if m.authDuration > 0 {
		logAttrs["boardsync.board_view.auth_ms"] = durationToMillis(m.authDuration)
	}
	if m.fetchDuration > 0 {
		logAttrs["boardsync.board_view.fetch_ms"] = durationToMillis(m.fetchDuration)
	}
	if m.encodeDuration > 0 {
		logAttrs["boardsync.board_view.encode_ms"] = durationToMillis(m.encodeDuration)
	}
	if m.errorStage != "" {
		logAttrs["boardsync.board_view.error_stage"] = m.errorStage
	}
	if err != nil {
		logAttrs["error.message"] = err.Error()
	}

	fields := log.Fields{
		"event.name":      boardViewEventName,
		"event.domain":    boardViewEventDomain,
		"attributes":      logAttrs,
		"severity_text":   severityText,
		"severity_number": severityNumber,
	}
	if traceID != "" {
		fields["trace_id"] = traceID
	}
	m.logger.WithFields(fields).Log(levelForSeverity(severityText), "observability.event")
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= http.StatusInternalServerError:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func levelForSeverity(text string) log.Level {
	switch text {
	case "ERROR":
		return log.ErrorLevel
	case "WARN":
		return log.WarnLevel
	default:
		return log.InfoLevel
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
