package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSuccessResponseWithMeta(t *testing.T) {
	t.Run("rounds total pages up", func(t *testing.T) {
		resp := NewSuccessResponseWithMeta([]string{"a"}, 21, 1, 10)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, 3, resp.Meta.TotalPages)
	})

	t.Run("exact division", func(t *testing.T) {
		resp := NewSuccessResponseWithMeta(nil, 20, 2, 10)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, 2, resp.Meta.TotalPages)
		assert.Equal(t, 2, resp.Meta.Page)
	})
}

func TestListRequestNormalize(t *testing.T) {
	tests := []struct {
		name         string
		in           ListRequest
		wantPage     int
		wantPageSize int
	}{
		{"zero values", ListRequest{}, 1, 20},
		{"negative page", ListRequest{Page: -3, PageSize: 10}, 1, 10},
		{"oversized page size", ListRequest{Page: 2, PageSize: 500}, 2, 100},
		{"already sane", ListRequest{Page: 3, PageSize: 50}, 3, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Normalize()
			assert.Equal(t, tt.wantPage, tt.in.Page)
			assert.Equal(t, tt.wantPageSize, tt.in.PageSize)
		})
	}
}
