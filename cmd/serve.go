package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/naf-analyzer/internal/fetcher"
	"github.com/sells-group/naf-analyzer/internal/inference"
	"github.com/sells-group/naf-analyzer/internal/metrics"
	"github.com/sells-group/naf-analyzer/internal/model"
	"github.com/sells-group/naf-analyzer/internal/store"
)

// maxBodyBytes caps a classify request body.
const maxBodyBytes = 8 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the classification HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		m := metrics.New()
		env, err := initClassifier(ctx, envOptions{Metrics: m})
		if err != nil {
			return eris.Wrap(err, "serve: init")
		}
		defer env.Close()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		api := &apiServer{
			classifier:  env.Classifier,
			store:       st,
			metrics:     m,
			maxBatch:    cfg.Server.MaxBatch,
			concurrency: cfg.Batch.Concurrency,
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.routes(cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSecs)*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// apiServer serves classification requests.
type apiServer struct {
	classifier  *inference.Classifier
	store       store.Store // may be nil; results are then not persisted
	metrics     *metrics.Metrics
	maxBatch    int
	concurrency int
}

// classifyResponse is the body of POST /v1/classify.
type classifyResponse struct {
	Results      []model.Classification `json:"results"`
	Unrecognized []string               `json:"unrecognized_columns,omitempty"`
	Suggestions  map[string]string      `json:"suggestions,omitempty"`
}

func (s *apiServer) routes(origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	r.Route("/v1", func(r chi.Router) {
		r.Post("/classify", s.handleClassify)
		r.Get("/classifications", s.handleListClassifications)
	})
	return r
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleClassify accepts one flat profile object or an array of them.
func (s *apiServer) handleClassify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	rs, err := fetcher.DecodeRecordSet(r.Context(), r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if rs.Len() == 0 {
		respondError(w, http.StatusBadRequest, "no profiles in request")
		return
	}
	if s.maxBatch > 0 && rs.Len() > s.maxBatch {
		respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("batch of %d exceeds limit of %d", rs.Len(), s.maxBatch))
		return
	}

	results, norm := s.classifier.ClassifyBatch(r.Context(), rs, s.concurrency)

	if s.store != nil {
		if _, err := s.store.SaveClassifications(r.Context(), results); err != nil {
			zap.L().Error("serve: save classifications", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to store results")
			return
		}
	}

	respondJSON(w, http.StatusOK, classifyResponse{
		Results:      results,
		Unrecognized: norm.Unrecognized,
		Suggestions:  norm.Suggestions,
	})
}

func (s *apiServer) handleListClassifications(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "no store configured")
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	results, err := s.store.ListClassifications(r.Context(), filter)
	if err != nil {
		zap.L().Error("serve: list classifications", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list results")
		return
	}
	if results == nil {
		results = []model.Classification{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

// parseFilter reads label, source, ref, failed, limit and offset query
// parameters.
func parseFilter(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	f := store.Filter{Ref: q.Get("ref")}

	if v := q.Get("label"); v != "" {
		label, err := strconv.Atoi(v)
		if err != nil || (label != 0 && label != 1) {
			return f, eris.New("label must be 0 or 1")
		}
		f.Label = &label
	}
	switch src := model.DecisionSource(q.Get("source")); src {
	case "", model.SourceRule, model.SourceModel:
		f.Source = src
	default:
		return f, eris.Errorf("unknown source %q", src)
	}
	if v := q.Get("failed"); v != "" {
		failed, err := strconv.ParseBool(v)
		if err != nil {
			return f, eris.New("failed must be a boolean")
		}
		f.Failed = &failed
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, eris.Errorf("%s must be a non-negative integer", name)
		}
		*dst = n
	}
	return f, nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("serve: encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
