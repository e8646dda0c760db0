package main

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/google/shlex"

	"github.com/getsentry/timestats/internal/errorutil"
	"github.com/getsentry/timestats/internal/replay"
)

// postTimeStats runs an operator command. Arguments are read from the body,
// or from the args query parameter if the body is empty, and split like a
// shell would.
func (e *environment) postTimeStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)

	s := sentry.StartSpan(ctx, "http.read")
	body, err := io.ReadAll(r.Body)
	s.Finish()
	if err != nil {
		if hub != nil {
			hub.CaptureException(err)
		}
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	raw := strings.TrimSpace(string(body))
	if raw == "" {
		raw = r.URL.Query().Get("args")
	}
	args, err := shlex.Split(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	structured := r.URL.Query().Get("format") == "json"
	if hub != nil {
		hub.Scope().SetTag("args", strings.Join(args, " "))
	}

	b, err := e.service.ParseArgs(ctx, args, structured)
	if err != nil {
		if errors.Is(err, errorutil.ErrTooManyArgs) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if hub != nil {
			hub.CaptureException(err)
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if len(b) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if structured {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	_, _ = w.Write(b)
}

// postReplay applies an uploaded JSON lines trace to the service.
func (e *environment) postReplay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)

	s := sentry.StartSpan(ctx, "replay.decode")
	events, err := replay.Decode(r.Body)
	s.Finish()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s = sentry.StartSpan(ctx, "replay.run")
	err = replay.New(e.service, nil).Run(ctx, events)
	s.Finish()
	if err != nil {
		if errors.Is(err, errorutil.ErrDataIntegrity) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if hub != nil {
			hub.CaptureException(err)
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
