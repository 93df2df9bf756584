package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ssw-logs-capture/internal/metrics"
	gwerrors "ssw-logs-capture/pkg/errors"
	"ssw-logs-capture/pkg/types"
)

// ingestHandler implements POST /v1/logs:ingest, per spec.md §6.
func (s *Server) ingestHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	tenant, err := s.rt.Auth.Authenticate(r)
	if err != nil {
		writeGatewayError(w, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeGatewayError(w, gwerrors.Validation("bad_request", "failed to read request body"))
		return
	}
	defer r.Body.Close()

	var batch types.IngestBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		writeGatewayError(w, gwerrors.Validation("bad_json", "request body is not valid JSON"))
		return
	}

	result, err := s.rt.Ingest.Submit(r.Context(), tenant, batch)
	if err != nil {
		outcome := "error"
		var gwErr *gwerrors.GatewayError
		if ok := asGatewayError(err, &gwErr); ok {
			outcome = gwErr.Code
		}
		metrics.RecordIngest(tenant, outcome, 0, time.Since(start))
		writeGatewayError(w, err)
		return
	}

	metrics.RecordIngest(tenant, "accepted", result.EntriesAccepted, time.Since(start))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":          "accepted",
		"entries_accepted": result.EntriesAccepted,
		"request_id":       result.RequestID,
		"timestamp":        result.Timestamp,
	})
}

// adminFlushHandler implements POST /v1/admin/flush, per spec.md §6.
func (s *Server) adminFlushHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.Auth.AuthenticateAdmin(r); err != nil {
		writeGatewayError(w, err)
		return
	}

	if !s.rt.Scheduler.Running() {
		http.Error(w, "forwarder is not running", http.StatusServiceUnavailable)
		return
	}

	entries, segments, err := s.rt.Scheduler.ForceFlush(r.Context(), "")
	if err != nil {
		s.logger.WithError(err).Warn("httpapi: admin flush cycle reported an error")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"entries_forwarded":  entries,
		"segments_processed": segments,
	})
}

// livenessHandler reports whether the process is up. Unlike
// readiness, liveness never depends on disk state: per spec.md §5 the
// gateway should be restarted only when it is truly wedged, not
// because a downstream disk is temporarily full.
func (s *Server) livenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// readinessHandler implements the disk-free-ratio readiness check
// from spec.md §5: "Readiness health turns unhealthy when disk free
// ratio < 0.20."
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	ready, m := s.rt.Ready()

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ready":      ready,
		"free_ratio": m.FreeRatio,
		"free_mb":    m.FreeMB,
		"path":       m.Path,
	})
}

// writeGatewayError maps a *gwerrors.GatewayError to the HTTP status
// codes and body shape spec.md §6/§7 define. Any other error is
// treated as an internal error.
func writeGatewayError(w http.ResponseWriter, err error) {
	var gwErr *gwerrors.GatewayError
	if !asGatewayError(err, &gwErr) {
		gwErr = gwerrors.Internal(err)
	}

	status := http.StatusInternalServerError
	switch gwErr.Code {
	case gwerrors.CodeValidation:
		status = http.StatusBadRequest
	case gwerrors.CodeAuth:
		status = http.StatusUnauthorized
	case "missing_auth":
		status = http.StatusForbidden
	case gwerrors.CodeRateLimited, gwerrors.CodeQuotaExceeded:
		status = http.StatusTooManyRequests
	case gwerrors.CodeWALError, gwerrors.CodeForwarder, gwerrors.CodeMasking, gwerrors.CodeInternal:
		status = http.StatusInternalServerError
	}

	if gwErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", gwErr.RetryAfter))
	}

	details := map[string]interface{}{}
	if gwErr.Reason != "" {
		details["reason"] = gwErr.Reason
	}
	if gwErr.RetryAfter > 0 {
		details["retry_after"] = gwErr.RetryAfter
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   gwErr.Code,
		"message": gwErr.Message,
		"details": details,
	})
}

func asGatewayError(err error, target **gwerrors.GatewayError) bool {
	type unwrapper interface{ Unwrap() error }
	for e := err; e != nil; {
		if gwErr, ok := e.(*gwerrors.GatewayError); ok {
			*target = gwErr
			return true
		}
		u, ok := e.(unwrapper)
		if !ok {
			return false
		}
		e = u.Unwrap()
	}
	return false
}
