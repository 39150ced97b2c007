package herald

import (
	"github.com/dmitrymomot/herald/internal"
	"github.com/dmitrymomot/herald/pkg/health"
	"github.com/dmitrymomot/herald/pkg/job"
	"github.com/dmitrymomot/herald/pkg/logger"
)

type (
	// App is the HTTP application. It owns the server and job worker lifecycle.
	App = internal.App

	Router       = internal.Router
	Context      = internal.Context
	Handler      = internal.Handler
	HandlerFunc  = internal.HandlerFunc
	Middleware   = internal.Middleware
	ErrorHandler = internal.ErrorHandler

	Option       = internal.Option
	RunOption    = internal.RunOption
	HealthOption = internal.HealthOption

	ResponseWriter  = internal.ResponseWriter
	HTTPError       = internal.HTTPError
	HTTPErrorOption = internal.HTTPErrorOption

	// Validator is implemented by request payloads checked in Context.BindJSON.
	Validator = internal.Validator

	// ContextExtractor adds request-scoped attributes to log records.
	ContextExtractor = logger.ContextExtractor

	Extractor       = internal.Extractor
	ExtractorSource = internal.ExtractorSource

	// Scalar lists the types Param, Query and QueryDefault decode.
	Scalar = internal.Scalar
)

// App construction.
var (
	New                         = internal.New
	WithMiddleware              = internal.WithMiddleware
	WithHandlers                = internal.WithHandlers
	WithErrorHandler            = internal.WithErrorHandler
	WithNotFoundHandler         = internal.WithNotFoundHandler
	WithMethodNotAllowedHandler = internal.WithMethodNotAllowedHandler
	WithLogger                  = internal.WithLogger
	WithCustomLogger            = internal.WithCustomLogger
	WithBodyLimit               = internal.WithBodyLimit
	WithJobManager              = internal.WithJobManager
	WithJobEnqueuer             = internal.WithJobEnqueuer
)

// Health endpoints.
var (
	WithHealthChecks           = internal.WithHealthChecks
	WithLivenessPath           = internal.WithLivenessPath
	WithReadinessPath          = internal.WithReadinessPath
	WithReadinessCheck         = internal.WithReadinessCheck
	WithOptionalReadinessCheck = internal.WithOptionalReadinessCheck
)

// Server lifecycle, passed to App.Run.
var (
	Address         = internal.Address
	Logger          = internal.Logger
	ShutdownTimeout = internal.ShutdownTimeout
	StartupHook     = internal.StartupHook
	ShutdownHook    = internal.ShutdownHook
	WithContext     = internal.WithContext
)

// ErrBodyTooLarge is returned by Context.Body above the body limit.
var ErrBodyTooLarge = internal.ErrBodyTooLarge

// HTTP errors.
var (
	NewHTTPError          = internal.NewHTTPError
	ErrBadRequest         = internal.ErrBadRequest
	ErrUnauthorized       = internal.ErrUnauthorized
	ErrForbidden          = internal.ErrForbidden
	ErrNotFound           = internal.ErrNotFound
	ErrConflict           = internal.ErrConflict
	ErrUnprocessable      = internal.ErrUnprocessable
	ErrInternal           = internal.ErrInternal
	ErrTooManyRequests    = internal.ErrTooManyRequests
	ErrServiceUnavailable = internal.ErrServiceUnavailable
	IsHTTPError           = internal.IsHTTPError
	AsHTTPError           = internal.AsHTTPError
	WithError             = internal.WithError
	WithErrorCode         = internal.WithErrorCode
	WithDetail            = internal.WithDetail
	WithRequestID         = internal.WithRequestID
)

// Request value extraction.
var (
	NewExtractor    = internal.NewExtractor
	FromHeader      = internal.FromHeader
	FromQuery       = internal.FromQuery
	FromParam       = internal.FromParam
	FromBearerToken = internal.FromBearerToken
)

// Param decodes a URL parameter, yielding the zero T when missing or malformed.
func Param[T Scalar](c Context, name string) T { return internal.Param[T](c, name) }

// Query decodes a query parameter, yielding the zero T when missing or malformed.
func Query[T Scalar](c Context, name string) T { return internal.Query[T](c, name) }

// QueryDefault decodes a query parameter with a fallback.
func QueryDefault[T Scalar](c Context, name string, def T) T {
	return internal.QueryDefault(c, name, def)
}

// ContextValue returns the value stored with Context.Set under key, or the zero T.
func ContextValue[T any](c Context, key any) T { return internal.ContextValue[T](c, key) }

// JobHealthcheck fails while the job manager is not running.
func JobHealthcheck(m *job.Manager) health.CheckFunc { return job.Healthcheck(m) }
