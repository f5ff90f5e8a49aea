package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medidesk/clinic-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, code int, data interface{}) {
	c.JSON(code, Response{
		Status: "success",
		Data:   data,
	})
}

// RespondWithError maps an error to its HTTP status. Conflicts surface as
// 409, validation failures as 400; anything unrecognized is a 500 with the
// internal detail kept out of the body.
func RespondWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	if appErr, ok := asAppError(err); ok {
		message = appErr.Message
		switch appErr.Code {
		case errors.ErrValidation, errors.ErrBadRequest:
			status = http.StatusBadRequest
		case errors.ErrUnauthorized:
			status = http.StatusUnauthorized
		case errors.ErrForbidden:
			status = http.StatusForbidden
		case errors.ErrNotFound:
			status = http.StatusNotFound
		case errors.ErrConflict:
			status = http.StatusConflict
		default:
			status = http.StatusInternalServerError
			message = "internal server error"
		}
	}

	c.JSON(status, Response{
		Status:  "error",
		Message: message,
	})
}

func asAppError(err error) (*errors.AppError, bool) {
	for err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return appErr, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
