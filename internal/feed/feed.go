// Package feed turns raw collector messages into routing elements and fans
// them out to the configured outputs and sinks.
package feed

import "go.opentelemetry.io/otel"

import (
	"context"
	"errors"

	"github.com/bgpkit/ris-live-go/internal/decode"
	"github.com/bgpkit/ris-live-go/internal/logging"
	"github.com/bgpkit/ris-live-go/internal/metrics"
	"github.com/bgpkit/ris-live-go/internal/output"
	"github.com/bgpkit/ris-live-go/internal/queue"
	"github.com/bgpkit/ris-live-go/internal/rate"
	"github.com/bgpkit/ris-live-go/internal/stats"
)

type Handler struct {
	raw          bool
	wantAnnounce bool
	wantWithdraw bool
	writer       *output.Writer
	sink         *queue.RedisSink
	batches      chan<- []decode.Element
	tracker      *stats.Tracker
	sampler      *rate.Sampler
	log          *logging.Logger
}

func New(raw, wantAnnounce, wantWithdraw bool, w *output.Writer, sink *queue.RedisSink, batches chan<- []decode.Element, tracker *stats.Tracker, log *logging.Logger) *Handler {
	return &Handler{
		raw: raw, wantAnnounce: wantAnnounce, wantWithdraw: wantWithdraw,
		writer: w, sink: sink, batches: batches, tracker: tracker,
		sampler: rate.NewSampler(1.0, 5), log: log,
	}
}

// Handle processes one message off the wire. It never returns an error:
// a bad message is counted, maybe logged, and dropped so the stream keeps
// flowing.
func (h *Handler) Handle(ctx context.Context, raw string) {
	tr := otel.Tracer("rislive/feed")
	ctx, span := tr.Start(ctx, "HandleMessage")
	defer span.End()

	if h.raw {
		metrics.MessagesTotal.WithLabelValues("raw").Inc()
		if err := h.writer.WriteRaw(raw); err != nil {
			h.log.Errorw("write raw message", "err", err)
		}
		return
	}

	elems, err := decode.Decode(raw)
	if err != nil {
		h.observeError(err, raw)
		return
	}
	metrics.MessagesTotal.WithLabelValues("decoded").Inc()
	if len(elems) == 0 {
		return
	}

	kept := make([]decode.Element, 0, len(elems))
	for _, e := range elems {
		if e.Type == decode.TypeAnnounce && !h.wantAnnounce {
			continue
		}
		if e.Type == decode.TypeWithdraw && !h.wantWithdraw {
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == 0 {
		return
	}

	for _, e := range kept {
		metrics.ElementsTotal.WithLabelValues(string(e.Type)).Inc()
		h.tracker.Observe(e)
	}
	if err := h.writer.WriteElements(kept); err != nil {
		h.log.Errorw("write elements", "err", err)
	}
	if h.sink != nil {
		for _, e := range kept {
			if err := h.sink.Publish(ctx, e); err != nil {
				metrics.SinkErrorsTotal.WithLabelValues("redis").Inc()
				if h.sampler.Allow("redis") {
					h.log.Warnw("redis publish failed", "err", err)
				}
			}
		}
	}
	if h.batches != nil {
		select {
		case h.batches <- kept:
		default:
			metrics.SinkErrorsTotal.WithLabelValues("ingest").Inc()
			if h.sampler.Allow("ingest") {
				h.log.Warnw("ingest buffer full, dropping batch", "elements", len(kept))
			}
		}
	}
}

func (h *Handler) observeError(err error, raw string) {
	switch {
	case errors.Is(err, decode.ErrEndOfRIB):
		metrics.MessagesTotal.WithLabelValues("skipped").Inc()
		h.log.Debugw("end of RIB marker")
	case errors.Is(err, decode.ErrUnsupportedEnvelope):
		metrics.MessagesTotal.WithLabelValues("skipped").Inc()
		var de *decode.Error
		if errors.As(err, &de) {
			h.log.Debugw("skipping non-routing envelope", "envelope", de.Fragment)
		}
	default:
		metrics.MessagesTotal.WithLabelValues("error").Inc()
		kind := "malformed_json"
		var de *decode.Error
		if errors.As(err, &de) {
			kind = de.Kind.String()
		}
		metrics.DecodeErrorsTotal.WithLabelValues(kind).Inc()
		if h.sampler.Allow(kind) {
			h.log.Warnw("decode failed", "err", err, "message", clip(raw))
		}
	}
}

func clip(s string) string {
	if len(s) > 160 {
		return s[:160] + "..."
	}
	return s
}
