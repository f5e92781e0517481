package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// FromError extracts a SearchError from anywhere in err's chain.
func FromError(err error) (*SearchError, bool) {
	var se *SearchError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// HTTPStatus maps an error to the HTTP status code the API should return.
func HTTPStatus(err error) int {
	se, ok := FromError(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch se.Code {
	case ErrCodeQueryTooLong, ErrCodeInvalidDate, ErrCodeInvalidInput, ErrCodeMalformedID:
		return http.StatusBadRequest
	case ErrCodeIndexNotLoaded, ErrCodeVectorStoreUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// FormatForCLI formats an error for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	se, ok := FromError(err)
	if !ok {
		se = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", se.Message))
	if se.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", se.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", se.Code))
	return sb.String()
}
