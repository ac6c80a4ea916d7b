package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesOnCode(t *testing.T) {
	err := fmt.Errorf("step failed: %w", ConfigError("unknown filterer: foo"))

	assert.True(t, errors.Is(err, ErrConfig))
	assert.False(t, errors.Is(err, ErrStorage))
	assert.True(t, IsAppError(err))
}

func TestAsAppError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"app error", NotFound("domain"), CodeNotFound, http.StatusNotFound},
		{"wrapped", fmt.Errorf("load: %w", MissingField("keyword")), CodeMissingField, http.StatusBadRequest},
		{"plain", errors.New("boom"), CodeInternalError, http.StatusInternalServerError},
		{"timeout", Timeout("fetch"), CodeTimeout, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := AsAppError(tt.err)
			assert.Equal(t, tt.wantCode, appErr.Code)
			assert.Equal(t, tt.wantStatus, appErr.HTTPStatus())
		})
	}
}

func TestWithDetail(t *testing.T) {
	err := InvalidInput("country", "unsupported").WithDetail("allowed", []string{"CH", "AT"})
	assert.Equal(t, []string{"CH", "AT"}, err.Details["allowed"])
	assert.Contains(t, err.Error(), CodeInvalidInput)
}
