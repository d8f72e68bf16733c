package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"github.com/MJE43/montecarlo-pi/internal/engine"
	"github.com/MJE43/montecarlo-pi/internal/estimator"
	"github.com/MJE43/montecarlo-pi/internal/render"
)

const maxStreamInterval = time.Second

func queryFloat(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, invalid(name, "not a number: %q", raw)
	}
	return v, nil
}

// queryConfig reads an estimator config from the query string. Missing values take
// the estimator's defaults.
func (s *Server) queryConfig(r *http.Request, spec estimator.Spec, maxTries int) (estimator.Config, error) {
	cfg := s.configFor(spec, estimator.Config{})
	q := r.URL.Query()

	var err error
	if cfg.Tries, err = queryInt(r, "tries", spec.Defaults.Tries); err != nil {
		return cfg, err
	}
	if err := validateTries("tries", cfg.Tries, min(maxTries, s.opts.MaxTries)); err != nil {
		return cfg, err
	}

	cfg.Seed = spec.Defaults.Seed
	if raw := q.Get("seed"); raw != "" {
		if cfg.Seed, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return cfg, invalid("seed", "not an integer: %q", raw)
		}
	}

	if cfg.NeedleLength, err = queryFloat(r, "needle_length", cfg.NeedleLength); err != nil {
		return cfg, err
	}
	if cfg.StripeWidth, err = queryFloat(r, "stripe_width", cfg.StripeWidth); err != nil {
		return cfg, err
	}
	if cfg.Width, err = queryFloat(r, "width", cfg.Width); err != nil {
		return cfg, err
	}
	if cfg.Stripes, err = queryInt(r, "stripes", cfg.Stripes); err != nil {
		return cfg, err
	}
	if q.Get("stripes") != "" && (cfg.Stripes < 1 || cfg.Stripes > maxStripes) {
		return cfg, invalid("stripes", "must be between 1 and %d, got %d", maxStripes, cfg.Stripes)
	}
	if raw := q.Get("generator"); raw != "" {
		kind, err := engine.ParseKind(raw)
		if err != nil {
			return cfg, invalid("generator", "%v", err)
		}
		cfg.Generator = kind
	}
	return cfg, nil
}

// lookupPath resolves the {id} estimator and its query config.
func (s *Server) lookupPath(w http.ResponseWriter, r *http.Request, maxTries int) (estimator.Estimator, bool) {
	id := chi.URLParam(r, "id")
	spec, ok := estimator.Lookup(id)
	if !ok {
		s.errorHandler.HandleError(w, r, fmt.Errorf("%w: %q", estimator.ErrUnknownEstimator, id), map[string]any{
			"available": estimator.IDs(),
		})
		return nil, false
	}

	cfg, err := s.queryConfig(r, spec, maxTries)
	if err != nil {
		s.handleInvalid(w, r, err)
		return nil, false
	}
	est, err := estimator.New(id, cfg)
	if err != nil {
		s.errorHandler.HandleError(w, r, err, map[string]any{"method": id})
		return nil, false
	}
	return est, true
}

// handleBoard renders the final board of a run as PNG
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	est, ok := s.lookupPath(w, r, maxBoardTries)
	if !ok {
		return
	}

	trials := estimator.Trials(est, est.Config().Tries)
	p, err := render.Board(est, trials)
	if err != nil {
		s.errorHandler.HandleError(w, r, err, nil)
		return
	}
	data, err := render.PNG(p, 0)
	if err != nil {
		s.errorHandler.HandleError(w, r, err, nil)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Debug("board write failed", zap.Error(err))
	}
}

// handleStream sends the board geometry, then one message per trial with the
// running tally, then a final "done" message. interval_ms paces the trials.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	est, ok := s.lookupPath(w, r, maxStreamTries)
	if !ok {
		return
	}
	intervalMs, err := queryInt(r, "interval_ms", 0)
	if err == nil && (intervalMs < 0 || time.Duration(intervalMs)*time.Millisecond > maxStreamInterval) {
		err = invalid("interval_ms", "must be between 0 and %d", maxStreamInterval.Milliseconds())
	}
	if err != nil {
		s.handleInvalid(w, r, err)
		return
	}
	interval := time.Duration(intervalMs) * time.Millisecond

	cfg := est.Config()
	method := est.Spec().ID
	log := s.logger.With(
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("method", method),
		zap.Int("tries", cfg.Tries),
	)

	websocket.Handler(func(ws *websocket.Conn) {
		defer ws.Close()
		ctx := r.Context()
		// Paced streams may outlast the server's write timeout.
		ws.SetWriteDeadline(time.Time{})

		if err := websocket.JSON.Send(ws, StreamBoard{
			Type:   "board",
			Spec:   est.Spec(),
			Config: cfg,
			Board:  est.Board(),
		}); err != nil {
			log.Debug("stream closed", zap.Error(err))
			return
		}

		var ticker *time.Ticker
		if interval > 0 {
			ticker = time.NewTicker(interval)
			defer ticker.Stop()
		}

		for i := 0; i < cfg.Tries; i++ {
			if ticker != nil {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			} else if ctx.Err() != nil {
				return
			}

			trial := est.Next()
			res, err := est.Result()
			if err != nil && !errors.Is(err, estimator.ErrDegenerateResult) {
				log.Error("stream tally failed", zap.Int("sent", i), zap.Error(err))
				return
			}
			if err := websocket.JSON.Send(ws, StreamTrial{Type: "trial", Trial: &trial, Result: res}); err != nil {
				log.Debug("stream closed", zap.Int("sent", i), zap.Error(err))
				return
			}
		}

		res, err := est.Result()
		outcome := "ok"
		switch {
		case errors.Is(err, estimator.ErrDegenerateResult):
			outcome = "degenerate"
		case err != nil:
			log.Error("stream tally failed", zap.Error(err))
			return
		}
		recordEstimate(method, "stream", outcome, res.Tries)
		if err := websocket.JSON.Send(ws, StreamTrial{Type: "done", Result: res}); err != nil {
			log.Debug("stream closed before done", zap.Error(err))
			return
		}
		log.Info("stream_completed", zap.Int("hits", res.Hits))
	}).ServeHTTP(w, r)
}
