package inspection

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/handler"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/helpers/problem"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/metrics"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/middleware"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/loopfz/gadgeto/tonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/wI2L/fizz"
	"github.com/wI2L/fizz/openapi"
)

var (
	apiVersionHeader = fizz.Header(
		"API-Version",
		"De API-versie van de response",
		"",
	)

	unauthorizedResponse = fizz.Response(
		"401",
		"Unauthorized",
		problem.APIError{},
		nil,
		nil,
	)
)

// RouterDeps groups what NewRouter wires together.
type RouterDeps struct {
	Auth           *handler.AuthController
	Inspection     *handler.InspectionController
	Sessions       *middleware.Sessions
	Principals     middleware.Principals
	MaxUploadBytes int64
	Registry       *prometheus.Registry
}

func NewRouter(apiVersion string, deps RouterDeps) *fizz.Fizz {
	tonic.SetErrorHook(errorHook)

	g := gin.Default()
	g.Use(APIVersionMiddleware(apiVersion))
	f := fizz.NewFromEngine(g)

	f.Generator().SetServers([]*openapi.Server{
		{
			URL:         "http://localhost:1337/v1",
			Description: "Local",
		},
	})

	gen := f.Generator()
	gen.API().Components.Headers["API-Version"] = &openapi.HeaderOrRef{
		Header: &openapi.Header{
			Description: "De API-versie van de response",
			Schema: &openapi.SchemaOrRef{
				Schema: &openapi.Schema{
					Type: "string",
				},
			},
		},
	}

	info := &openapi.Info{
		Title:       "Defect register API v1",
		Description: "Intake, classificatie en historie van onderdeelinspecties",
		Version:     apiVersion,
	}

	root := f.Group("/v1", "API v1", "Defect register V1 routes", middleware.BodyLimit(deps.MaxUploadBytes))

	// 1) Accounts
	account := root.Group("", "Accounts", "Registreren, inloggen en uitloggen")
	account.POST("/users",
		[]fizz.OperationOption{
			fizz.Summary("Registreer een operator"),
			apiVersionHeader,
		},
		tonic.Handler(deps.Auth.Register, 201),
	)
	account.POST("/sessions",
		[]fizz.OperationOption{
			fizz.Summary("Inloggen; zet de sessiecookie en geeft een bearer token terug"),
			apiVersionHeader,
			unauthorizedResponse,
		},
		tonic.Handler(deps.Auth.Login, 200),
	)
	account.DELETE("/sessions",
		[]fizz.OperationOption{
			fizz.Summary("Uitloggen"),
		},
		tonic.Handler(deps.Auth.Logout, 204),
	)

	// 2) Inspecties, alleen voor ingelogde operators
	ctrl := deps.Inspection
	inspect := root.Group("", "Inspecties", "Intake, bevestiging en historie", middleware.RequireUser(deps.Sessions, deps.Principals))
	inspect.POST("/detect",
		[]fizz.OperationOption{
			fizz.Summary("Upload of camera-opname classificeren; 303 naar /v1/result"),
		},
		ctrl.Detect,
	)
	inspect.GET("/result",
		[]fizz.OperationOption{
			fizz.Summary("Openstaand resultaat ophalen (eenmalig)"),
			apiVersionHeader,
			unauthorizedResponse,
		},
		tonic.Handler(ctrl.Result, 200),
	)
	inspect.POST("/detections",
		[]fizz.OperationOption{
			fizz.Summary("Resultaat bevestigen; 303 naar /v1/detections"),
		},
		ctrl.Confirm,
	)
	inspect.GET("/detections",
		[]fizz.OperationOption{
			fizz.Summary("Historie van de operator"),
			apiVersionHeader,
			unauthorizedResponse,
		},
		tonic.Handler(ctrl.ListDetections, 200),
	)
	inspect.POST("/detections/:id/delete",
		[]fizz.OperationOption{
			fizz.Summary("Detectie verwijderen; altijd 303 naar /v1/detections"),
		},
		ctrl.Delete,
	)
	inspect.GET("/dashboard",
		[]fizz.OperationOption{
			fizz.Summary("Statistieken van de operator"),
			apiVersionHeader,
			unauthorizedResponse,
		},
		tonic.Handler(ctrl.Dashboard, 200),
	)
	inspect.GET("/uploads/*ref",
		[]fizz.OperationOption{
			fizz.Summary("Opgeslagen afbeelding"),
		},
		ctrl.ServeImage,
	)

	// 3) Metrics en OpenAPI documentatie
	if deps.Registry != nil {
		f.Engine().GET("/metrics", gin.WrapH(metrics.Handler(deps.Registry)))
	}
	f.GET("/v1/openapi.json", nil, f.OpenAPI(info, "json"))

	return f
}

func errorHook(c *gin.Context, err error) (int, interface{}) {
	c.Header("Content-Type", "application/problem+json")

	// 1) Bind/validate errors → 400 met invalidParams
	var be tonic.BindError
	if errors.As(err, &be) || isValidationErr(err) {
		invalids := invalidParamsFromBinding(err, bindingType(c))
		apiErr := problem.NewBadRequest("body", "Invalid input", invalids...)
		return apiErr.Status, apiErr
	}

	// 2) Eigen APIError → pass-through
	var apiErr problem.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status, apiErr
	}

	// 3) Alles anders → 500 zonder interne details
	internal := problem.NewInternalServerError("Something went wrong")
	return internal.Status, internal
}

// bindingType returns the input struct of the tonic handler serving c, or nil
// outside a tonic route.
func bindingType(c *gin.Context) reflect.Type {
	h := c.Handler()
	if h == nil {
		return nil
	}
	route, err := tonic.GetRouteByHandler(h)
	if err != nil {
		return nil
	}
	return route.InputType()
}

// invalidParamsFromBinding names each failed field after its json tag on t.
// A nil t keeps the validator's field names.
func invalidParamsFromBinding(err error, t reflect.Type) []problem.InvalidParam {
	var verrs validator.ValidationErrors
	var be tonic.BindError
	if errors.As(err, &be) {
		verrs = be.ValidationErrors()
	}
	if verrs == nil && !errors.As(err, &verrs) {
		return []problem.InvalidParam{{Name: "body", Reason: err.Error()}}
	}

	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t != nil && t.Kind() != reflect.Struct {
		t = nil
	}

	out := make([]problem.InvalidParam, 0, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if t != nil {
			if f, ok := t.FieldByName(fe.StructField()); ok {
				if tag := f.Tag.Get("json"); tag != "" && tag != "-" {
					name = strings.Split(tag, ",")[0]
				}
			}
		}
		out = append(out, problem.InvalidParam{
			Name:   name,
			Reason: humanReason(fe),
			Code:   fe.Tag(),
		})
	}
	return out
}

func humanReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fe.Error()
	}
}

func isValidationErr(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs)
}

type apiVersionWriter struct {
	gin.ResponseWriter
	version string
}

func (w *apiVersionWriter) WriteHeader(code int) {
	if code >= 200 && code < 300 {
		w.Header().Set("API-Version", w.version)
	}
	w.ResponseWriter.WriteHeader(code)
}

func APIVersionMiddleware(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer = &apiVersionWriter{c.Writer, version}
		c.Next()
	}
}
