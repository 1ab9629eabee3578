package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gilrm92/trading-spot/internal/adapter/metrics"
	"github.com/gilrm92/trading-spot/internal/app"
	"github.com/gilrm92/trading-spot/internal/domain"
	"github.com/gilrm92/trading-spot/internal/platform/correlation"
	apperrors "github.com/gilrm92/trading-spot/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlation.FromHeader(c.Request().Header.Get(correlation.HeaderName))
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(correlation.HeaderName, id)
		return next(c)
	}
}

// ErrorHandlingMiddleware renders returned errors as structured JSON. m may be nil.
func ErrorHandlingMiddleware(m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var structuredErr *apperrors.Error
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				structuredErr = WrapHTTPError(httpErr)
			} else {
				structuredErr = toStructured(err)
			}
			logError(c, structuredErr)
			if m != nil {
				m.ErrorsTotal.WithLabelValues(string(structuredErr.Type)).Inc()
			}

			if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

// toStructured maps domain errors onto the HTTP error taxonomy. Anything unknown is internal.
func toStructured(err error) *apperrors.Error {
	var structuredErr *apperrors.Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		e := apperrors.ValidationError(validationErr.Message)
		if validationErr.Field != "" {
			e.WithField("field", validationErr.Field)
		}
		return e
	}

	var rateLimitedErr *app.RateLimitedError
	if errors.As(err, &rateLimitedErr) {
		return apperrors.RateLimitedError("Too many attempts").
			WithField("waitTime", waitSeconds(rateLimitedErr.Decision))
	}

	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		return apperrors.NotFoundError("Item not found")
	case errors.Is(err, domain.ErrAlreadyLiked):
		return apperrors.ConflictError("You already liked this item")
	case errors.Is(err, domain.ErrAlreadyDisliked):
		return apperrors.ConflictError("You already disliked this item")
	case errors.Is(err, domain.ErrSyncInProgress):
		return apperrors.ConflictError("Sync already in progress")
	case errors.Is(err, domain.ErrIdentityNotAllowed):
		return apperrors.UnauthorizedError("Invalid API key").WithField("details", "Unauthorized user")
	case errors.Is(err, domain.ErrInvalidCredential):
		details := strings.TrimPrefix(err.Error(), domain.ErrInvalidCredential.Error()+": ")
		return apperrors.UnauthorizedError("Invalid API key").WithField("details", details)
	}

	var upstreamErr *domain.UpstreamError
	if errors.As(err, &upstreamErr) {
		e := apperrors.ExternalError("Failed to fetch from Torn API", err)
		if upstreamErr.Message != "" {
			e.WithField("details", upstreamErr.Message)
		}
		return e
	}

	return apperrors.InternalError("internal server error", err)
}

func logError(c echo.Context, err *apperrors.Error) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	if userID := c.Get("userID"); userID != nil {
		attrs = append(attrs, "user_id", userID)
	}

	ctx := c.Request().Context()
	switch err.Type {
	case apperrors.TypeValidation:
		slog.InfoContext(ctx, "Validation error", attrs...)
	case apperrors.TypeNotFound:
		slog.InfoContext(ctx, "Not found", attrs...)
	case apperrors.TypeConflict:
		slog.InfoContext(ctx, "Conflict", attrs...)
	case apperrors.TypeUnauthorized:
		slog.WarnContext(ctx, "Unauthorized", attrs...)
	case apperrors.TypeRateLimited:
		slog.WarnContext(ctx, "Rate limited", attrs...)
	case apperrors.TypeInternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Internal error", attrs...)
	case apperrors.TypeExternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "External service error", attrs...)
	default:
		slog.ErrorContext(ctx, "Unknown error type", attrs...)
	}
}

func WrapHTTPError(httpErr *echo.HTTPError) *apperrors.Error {
	message := "internal server error"
	if httpErr.Message != nil {
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		}
	}

	var errType apperrors.ErrorType
	switch httpErr.Code {
	case http.StatusBadRequest:
		errType = apperrors.TypeValidation
	case http.StatusUnauthorized:
		errType = apperrors.TypeUnauthorized
	case http.StatusNotFound:
		errType = apperrors.TypeNotFound
	case http.StatusConflict:
		errType = apperrors.TypeConflict
	case http.StatusTooManyRequests:
		errType = apperrors.TypeRateLimited
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		errType = apperrors.TypeExternal
	default:
		errType = apperrors.TypeInternal
	}

	err := &apperrors.Error{
		Type:    errType,
		Message: message,
		Context: make(map[string]any),
	}

	if httpErr.Internal != nil {
		err.Cause = httpErr.Internal
	}

	return err
}
