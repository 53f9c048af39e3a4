package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConstraint:
		return http.StatusUnprocessableEntity
	case apperr.KindState, apperr.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError renders err with its stable kind and code. Internal errors are
// logged and never leak their cause to the caller.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	resp := ErrorResponse{
		Error: string(kind),
		Code:  string(apperr.CodeOf(err)),
	}
	if kind == apperr.KindInternal {
		logger.Error("request failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		resp.Details = "internal error"
	} else {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			resp.Details = appErr.Message
			resp.Fields = appErr.Details
		}
	}
	writeJSON(w, statusFor(kind), resp)
}

// decodeJSON reads a single JSON object into dst and runs struct validation.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("could not parse JSON body: " + err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.Validation(err.Error())
	}
	msgs := make([]string, 0, len(fieldErrs))
	out := apperr.Validation("")
	for _, fe := range fieldErrs {
		field := jsonName(fe.Namespace())
		msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		out = out.With(field, fe.Tag())
	}
	out.Message = strings.Join(msgs, "; ")
	return out
}

// jsonName turns "CreateAppointmentRequest.DoctorID" into "DoctorID".
func jsonName(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
