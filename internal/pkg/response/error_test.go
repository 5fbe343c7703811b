package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/reservation-backend/internal/pkg/apperror"
)

func runError(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	Error(c, err)
	return w
}

func TestErrorUsesAppErrorCode(t *testing.T) {
	sentinel := apperror.New(http.StatusBadRequest, "invalid reservation data")
	w := runError(fmt.Errorf("create: %w", apperror.WithDetails(sentinel, []string{"email is invalid"})))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "invalid reservation data", body.Error)
	assert.Equal(t, []string{"email is invalid"}, body.Details)
}

func TestErrorDefaultsToInternal(t *testing.T) {
	w := runError(errors.New("connection reset"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body.Error)
	assert.Empty(t, body.Details)
}
