package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"jericho/internal/domain"
	"jericho/internal/engine"
	"jericho/internal/repo"
	"jericho/internal/suggest"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Log      *zap.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_transition"`
	Message string         `json:"message" example:"invalid suggestion transition: sugg-g1-2 is rejected"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Jericho API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(requestLogger(log))
	hcfg := huma.DefaultConfig("Jericho API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerGuidance(group, cfg.Engine)
	registerMetrics(group, cfg.Engine)
	registerSuggestions(group, cfg.Engine)
	registerCapabilities(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			log.Debug("request", zap.String("method", r.Method), zap.String("path", r.URL.Path))
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case errors.Is(err, repo.ErrNotFound), errors.Is(err, suggest.ErrUnknownSuggestion):
		return newAPIError(http.StatusNotFound, "not_found", msg, nil)
	case errors.Is(err, suggest.ErrInvalidTransition):
		return newAPIError(http.StatusConflict, "invalid_transition", msg, nil)
	case errors.Is(err, suggest.ErrAlreadyPlanned):
		return newAPIError(http.StatusConflict, "already_planned", msg, nil)
	case errors.Is(err, suggest.ErrInvalidReason):
		return newAPIError(http.StatusBadRequest, "invalid_reason", msg, map[string]any{"allowed": suggest.RejectionReasons})
	case errors.Is(err, suggest.ErrInvalidDaysPerWeek),
		errors.Is(err, engine.ErrInvalid),
		errors.Is(err, engine.ErrNoActiveGoal):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var doc []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if doc == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			doc, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Put, item.Post, item.Delete, item.Patch} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Jericho API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body HealthResponse `json:"body"`
	}, error) {
		return &struct {
			Body HealthResponse `json:"body"`
		}{Body: HealthResponse{Status: "ok"}}, nil
	})
}

func registerGuidance(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "next-move",
		Method:      http.MethodGet,
		Path:        "/goals/{goal_id}/next-move",
		Summary:     "Compute the day's directive for a goal",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		GoalID string `path:"goal_id"`
		Day    string `query:"day" doc:"Day key; defaults to today"`
	}) (*nextMoveOutput, error) {
		res, err := e.NextMove(ctx, input.GoalID, input.Day)
		if err != nil {
			return nil, handleError(err)
		}
		return &nextMoveOutput{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "truth-panel",
		Method:      http.MethodGet,
		Path:        "/truth-panel",
		Summary:     "Render the truth panel for the resolved goal",
	}, func(ctx context.Context, _ *struct{}) (*truthPanelOutput, error) {
		p, err := e.TruthPanel(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &truthPanelOutput{Body: p}, nil
	})
}

type windowQuery struct {
	Mode   string `query:"mode" enum:"day,week,month,quarter,year" default:"week"`
	Anchor string `query:"anchor" doc:"Day key inside the window; defaults to today"`
	Padded bool   `query:"padded" doc:"Use the padded month grid"`
}

func registerMetrics(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "window-metrics",
		Method:      http.MethodGet,
		Path:        "/metrics/window",
		Summary:     "Planned and completed minutes over a window",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Mode    string `query:"mode" enum:"day,week,month,quarter,year" default:"week"`
		Anchor  string `query:"anchor" doc:"Day key inside the window; defaults to today"`
		Padded  bool   `query:"padded" doc:"Use the padded month grid"`
		PerDay  bool   `query:"per_day"`
		Targets bool   `query:"targets" doc:"Project planned minutes from pattern targets when nothing is scheduled"`
	}) (*windowOutput, error) {
		rep, err := e.WindowMetrics(ctx, engine.WindowOptions{
			Mode:    input.Mode,
			Anchor:  input.Anchor,
			Padded:  input.Padded,
			PerDay:  input.PerDay,
			Targets: input.Targets,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &windowOutput{Body: rep}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "today-metrics",
		Method:      http.MethodGet,
		Path:        "/metrics/today",
		Summary:     "Per-domain instrumentation for one day",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Day string `query:"day"`
	}) (*instrumentationOutput, error) {
		rows, err := e.TodayInstrumentation(ctx, input.Day)
		if err != nil {
			return nil, handleError(err)
		}
		day := input.Day
		if day == "" {
			day = e.Today()
		}
		return &instrumentationOutput{Body: InstrumentationResponse{DayKey: day, Domains: nonNilItems(rows)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "drift-metrics",
		Method:      http.MethodGet,
		Path:        "/metrics/drift",
		Summary:     "Practice mix drift against pattern targets",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *windowQuery) (*driftOutput, error) {
		rep, err := e.Drift(ctx, engine.WindowOptions{Mode: input.Mode, Anchor: input.Anchor, Padded: input.Padded})
		if err != nil {
			return nil, handleError(err)
		}
		return &driftOutput{Body: rep}, nil
	})
}

func registerSuggestions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-suggestions",
		Method:      http.MethodGet,
		Path:        "/suggestions",
		Summary:     "List a goal's suggestions with replayed status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		GoalID string `query:"goal_id" doc:"Defaults to the active goal"`
	}) (*planOutput, error) {
		plan, err := e.ListSuggestions(ctx, input.GoalID)
		if err != nil {
			return nil, handleError(err)
		}
		plan.Suggestions = nonNilItems(plan.Suggestions)
		return &planOutput{Body: plan}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "plan-suggestions",
		Method:        http.MethodPost,
		Path:          "/goals/{goal_id}/suggestions/plan",
		Summary:       "Generate the first suggestion set for a goal",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		GoalID string                 `path:"goal_id"`
		Body   PlanSuggestionsRequest `json:"body"`
	}) (*planOutput, error) {
		plan, err := e.PlanSuggestions(ctx, input.GoalID, input.Body.DaysPerWeek, input.Body.StartDay)
		if err != nil {
			return nil, handleError(err)
		}
		return &planOutput{Body: plan}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "recalibrate-suggestions",
		Method:      http.MethodPost,
		Path:        "/goals/{goal_id}/suggestions/recalibrate",
		Summary:     "Regenerate the still-suggested set for a new days-per-week value",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		GoalID string             `path:"goal_id"`
		Body   RecalibrateRequest `json:"body"`
	}) (*recalibrateOutput, error) {
		plan, applied, err := e.Recalibrate(ctx, input.GoalID, input.Body.DaysPerWeek)
		if err != nil {
			return nil, handleError(err)
		}
		plan.Suggestions = nonNilItems(plan.Suggestions)
		return &recalibrateOutput{Body: RecalibrateResponse{SuggestionPlan: plan, Applied: applied}}, nil
	})

	type idPath struct {
		ID string `path:"id"`
	}
	transition := func(op, summary string, apply func(context.Context, string) (domain.SuggestedBlock, bool, error)) {
		huma.Register(api, huma.Operation{
			OperationID: op + "-suggestion",
			Method:      http.MethodPost,
			Path:        "/suggestions/{id}/" + op,
			Summary:     summary,
			Errors:      []int{http.StatusNotFound, http.StatusConflict},
		}, func(ctx context.Context, input *idPath) (*suggestionOutput, error) {
			s, applied, err := apply(ctx, input.ID)
			if err != nil {
				return nil, handleError(err)
			}
			return &suggestionOutput{Body: SuggestionResponse{Suggestion: s, Applied: applied}}, nil
		})
	}
	transition("accept", "Accept a suggestion and schedule it", e.AcceptSuggestion)
	transition("ignore", "Ignore a suggestion", e.IgnoreSuggestion)
	transition("dismiss", "Dismiss a suggestion", e.DismissSuggestion)

	huma.Register(api, huma.Operation{
		OperationID: "reject-suggestion",
		Method:      http.MethodPost,
		Path:        "/suggestions/{id}/reject",
		Summary:     "Reject a suggestion with a reason",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string                  `path:"id"`
		Body RejectSuggestionRequest `json:"body"`
	}) (*suggestionOutput, error) {
		s, applied, err := e.RejectSuggestion(ctx, input.ID, input.Body.Reason)
		if err != nil {
			return nil, handleError(err)
		}
		return &suggestionOutput{Body: SuggestionResponse{Suggestion: s, Applied: applied}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "suggestion-history",
		Method:      http.MethodGet,
		Path:        "/suggestions/history",
		Summary:     "Lifecycle history rows for the trailing window",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Days   int      `query:"days" minimum:"0"`
		Day    string   `query:"day"`
		Type   []string `query:"type"`
		Domain []string `query:"domain"`
		Reason []string `query:"reason"`
	}) (*historyOutput, error) {
		f := suggest.Filters{Reasons: input.Reason}
		for _, t := range input.Type {
			f.Types = append(f.Types, suggest.HistoryType(strings.ToUpper(t)))
		}
		for _, d := range input.Domain {
			f.Domains = append(f.Domains, domain.NormalizeDomain(d))
		}
		rows, err := e.SuggestionHistory(ctx, engine.HistoryOptions{Days: input.Days, DayKey: input.Day, Filters: f})
		if err != nil {
			return nil, handleError(err)
		}
		return &historyOutput{Body: HistoryResponse{Items: rows}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "correction-signals",
		Method:      http.MethodGet,
		Path:        "/suggestions/signals",
		Summary:     "Rejection-reason ratios over the trailing window",
	}, func(ctx context.Context, input *struct {
		Days int `query:"days" minimum:"0"`
	}) (*signalsOutput, error) {
		s, err := e.CorrectionSignals(ctx, input.Days)
		if err != nil {
			return nil, handleError(err)
		}
		return &signalsOutput{Body: s}, nil
	})
}

func registerCapabilities(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "adjust-weights",
		Method:      http.MethodPost,
		Path:        "/goals/{goal_id}/weights/adjust",
		Summary:     "Rescale capability weights from cycle history",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		GoalID string               `path:"goal_id"`
		Body   AdjustWeightsRequest `json:"body,omitempty" required:"false"`
	}) (*weightsOutput, error) {
		adj, err := e.AdjustWeights(ctx, input.GoalID, input.Body.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &weightsOutput{Body: adj}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "identity-snapshots",
		Method:      http.MethodGet,
		Path:        "/snapshots",
		Summary:     "Newest identity snapshots, oldest first",
	}, func(ctx context.Context, input *struct {
		UserID string `query:"user_id"`
		Limit  int    `query:"limit" minimum:"0" default:"10"`
	}) (*snapshotsOutput, error) {
		snaps, err := e.IdentitySnapshots(ctx, input.UserID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &snapshotsOutput{Body: SnapshotsResponse{Items: snaps}}, nil
	})
}
