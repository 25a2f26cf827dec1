package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/dommirror/idgen"
	"github.com/hazyhaar/dommirror/mutation"
)

// ErrUnknownRoot is returned by Replicas for a root that has not been
// synchronised yet.
var ErrUnknownRoot = errors.New("transport: unknown root")

// Replicas is the replica side fed by a Receiver.
type Replicas interface {
	// Deliver applies one envelope to the replica of env.Root. A snapshot
	// envelope creates the replica when needed.
	Deliver(ctx context.Context, env mutation.Envelope) error
	// Markup renders the replica of root.
	Markup(root string) (string, error)
}

// ReceiverConfig configures a Receiver.
type ReceiverConfig struct {
	// MaxBody bounds request bodies. Default: 8 MiB.
	MaxBody int64
	// Sanitize passes the replica view through a user-generated-content
	// policy before serving it.
	Sanitize bool
	Logger   *slog.Logger
}

// Receiver exposes a set of replicas over HTTP:
//
//	PUT  /roots/{root}/snapshot  replace the replica with a DocumentFragment snapshot
//	POST /roots/{root}/records   apply envelopes (one JSON value or JSON lines) in order
//	GET  /roots/{root}           replica markup
//	GET  /health                 liveness
type Receiver struct {
	reps   Replicas
	cfg    ReceiverConfig
	policy *bluemonday.Policy
	logger *slog.Logger
}

// NewReceiver creates a Receiver feeding reps.
func NewReceiver(reps Replicas, cfg ReceiverConfig) *Receiver {
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = 8 << 20
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Receiver{
		reps:   reps,
		cfg:    cfg,
		policy: bluemonday.UGCPolicy(),
		logger: cfg.Logger,
	}
}

// Handler returns the HTTP routes of the receiver.
func (rc *Receiver) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(HeadToGet)
	r.Use(TraceID(rc.logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	api := r.With(rc.checkRoot, SecurityHeaders(APIHeaders()), MaxBody(rc.cfg.MaxBody))
	api.Put("/roots/{root}/snapshot", rc.putSnapshot)
	api.Post("/roots/{root}/records", rc.postRecords)

	r.With(rc.checkRoot, SecurityHeaders(ViewHeaders())).Get("/roots/{root}", rc.view)
	return r
}

func (rc *Receiver) checkRoot(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := idgen.ValidRoot(chi.URLParam(r, "root")); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rc *Receiver) putSnapshot(w http.ResponseWriter, r *http.Request) {
	root := chi.URLParam(r, "root")
	logger := requestLogger(r.Context(), rc.logger)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, bodyStatus(err), err)
		return
	}
	snap, err := mutation.UnmarshalSnapshot(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	env := mutation.Envelope{Type: mutation.TypeSnapshot, Root: root, ID: r.Header.Get("X-Envelope-ID"), Snapshot: snap}
	if err := rc.reps.Deliver(r.Context(), env); err != nil {
		logger.Warn("transport: snapshot rejected", "root", root, "error", err)
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	logger.Info("transport: replica synchronised", "root", root)
	writeJSON(w, http.StatusOK, map[string]any{"applied": 1})
}

func (rc *Receiver) postRecords(w http.ResponseWriter, r *http.Request) {
	root := chi.URLParam(r, "root")
	logger := requestLogger(r.Context(), rc.logger)

	dec := json.NewDecoder(r.Body)
	applied := 0
	for {
		var env mutation.Envelope
		err := dec.Decode(&env)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writeApplyError(w, bodyStatus(err), applied, fmt.Errorf("envelope %d: %w", applied, err))
			return
		}
		if env.Root != "" && env.Root != root {
			writeApplyError(w, http.StatusBadRequest, applied,
				fmt.Errorf("envelope %d: root %q does not match %q", applied, env.Root, root))
			return
		}
		env.Root = root
		if err := rc.reps.Deliver(r.Context(), env); err != nil {
			status := http.StatusConflict
			if errors.Is(err, ErrUnknownRoot) {
				status = http.StatusNotFound
			}
			logger.Warn("transport: envelope rejected", "root", root, "id", env.ID, "applied", applied, "error", err)
			writeApplyError(w, status, applied, err)
			return
		}
		applied++
	}
	logger.Debug("transport: envelopes applied", "root", root, "count", applied)
	writeJSON(w, http.StatusOK, map[string]any{"applied": applied})
}

func (rc *Receiver) view(w http.ResponseWriter, r *http.Request) {
	root := chi.URLParam(r, "root")
	markup, err := rc.reps.Markup(root)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrUnknownRoot) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	if rc.cfg.Sanitize {
		markup = rc.policy.Sanitize(markup)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, markup)
}

func bodyStatus(err error) int {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeApplyError(w http.ResponseWriter, code, applied int, err error) {
	writeJSON(w, code, map[string]any{"error": err.Error(), "applied": applied})
}
