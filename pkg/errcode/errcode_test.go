package errcode

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	wrapped := ErrInvalidParam.Wrap(errors.New("bad json"))
	assert.Equal(t, http.StatusBadRequest, wrapped.Code)
	assert.Equal(t, "invalid parameter: bad json", wrapped.Msg)
	assert.NotSame(t, ErrInvalidParam, wrapped)

	assert.Same(t, ErrInvalidParam, ErrInvalidParam.Wrap(nil))
}

func TestError(t *testing.T) {
	assert.Equal(t, "errcode: 404, msg: message not found", ErrMessageNotFound.Error())
	assert.Equal(t, http.StatusServiceUnavailable, ErrStoreUnavailable.Code)
	assert.Equal(t, "Missing required fields", ErrMissingFields.Msg)
}
