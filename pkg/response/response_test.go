package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mthirumalai2905/clubly-community-hub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failWith(t *testing.T, err error) (int, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Fail(c, err)

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestFailMapsErrorKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{service.ErrEmptyContent, http.StatusBadRequest},
		{service.ErrSelfRequest, http.StatusBadRequest},
		{service.ErrRequestAlreadyExists, http.StatusConflict},
		{service.ErrRequestNotPending, http.StatusConflict},
		{service.ErrRequestNotFound, http.StatusNotFound},
		{service.ErrNotFriends, http.StatusNotFound},
		{service.ErrNotRequestReceiver, http.StatusForbidden},
		{fmt.Errorf("wrapped: %w", service.ErrAlreadyFriends), http.StatusConflict},
	}
	for _, tc := range cases {
		status, body := failWith(t, tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.status, body.Code)
		assert.NotEmpty(t, body.Reason)
	}
}

func TestFailHidesInfrastructureErrors(t *testing.T) {
	status, body := failWith(t, errors.New("dial tcp 10.0.0.1:5432: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "操作失败，请稍后重试", body.Message)
	assert.Empty(t, body.Error)
	assert.Empty(t, body.Reason)
}
