package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPageResponse(t *testing.T) {
	p := NewPageResponse[string](nil, 2, 20, 41)
	assert.NotNil(t, p.Items)
	assert.Empty(t, p.Items)
	assert.Equal(t, 3, p.TotalPages)
}

func TestPageCount(t *testing.T) {
	assert.Equal(t, 0, PageCount(0, 20))
	assert.Equal(t, 1, PageCount(20, 20))
	assert.Equal(t, 2, PageCount(21, 20))
	assert.Equal(t, 0, PageCount(5, 0))
}
