package http

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"social-api/internal/domain"
)

const genericErrorMessage = "Something went very wrong!"

// respondOK escribe el sobre de éxito con los datos dados.
func respondOK(c *gin.Context, status int, data gin.H) {
	body := gin.H{"status": "success"}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

// respondList agrega el conteo de resultados al sobre.
func respondList(c *gin.Context, key string, items any, n int) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"results": n,
		"data":    gin.H{key: items},
	})
}

func respondFail(c *gin.Context, status int, message string) {
	state := "fail"
	if status >= http.StatusInternalServerError {
		state = "error"
	}
	c.AbortWithStatusJSON(status, gin.H{"status": state, "message": message})
}

// respondError es la única frontera que traduce errores a HTTP. Los errores
// que no son de dominio se registran y se ocultan al cliente.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		respondFail(c, http.StatusBadRequest, formatValidationErrors(ve))
		return
	}

	var de *domain.Error
	if errors.As(err, &de) {
		status := statusForKind(de.Kind)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.Error(err),
				zap.String("path", c.FullPath()),
				zap.String("request_id", requestID(c)),
			)
		}
		if de.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(de.RetryAfter)))
		}
		msg := de.Message
		if msg == "" {
			msg = genericErrorMessage
		}
		respondFail(c, status, msg)
		return
	}

	logger.Error("unhandled error",
		zap.Error(err),
		zap.String("path", c.FullPath()),
		zap.String("request_id", requestID(c)),
	)
	respondFail(c, http.StatusInternalServerError, genericErrorMessage)
}

// retryAfterSeconds redondea hacia arriba; Retry-After no admite fracciones.
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func statusForKind(k domain.Kind) int {
	switch k {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuthentication:
		return http.StatusUnauthorized
	case domain.KindAuthorization:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// bindJSON decodifica y valida el cuerpo; en error ya respondió 400.
func bindJSON(c *gin.Context, logger *zap.Logger, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		respondFail(c, http.StatusBadRequest, formatValidationErrors(ve))
		return false
	}
	logger.Warn("invalid request body", zap.Error(err), zap.String("path", c.FullPath()))
	respondFail(c, http.StatusBadRequest, "Invalid request body")
	return false
}

func formatValidationErrors(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid email", field))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters long", field, fe.Param()))
		case "eqfield":
			msgs = append(msgs, fmt.Sprintf("%s must match %s", field, lowerFirst(fe.Param())))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return "Invalid input data. " + strings.Join(msgs, ". ")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

var registerTagNameOnce sync.Once

// useJSONFieldNames hace que los errores del validador de gin usen el nombre
// del campo JSON en lugar del nombre Go.
func useJSONFieldNames() {
	registerTagNameOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	})
}
