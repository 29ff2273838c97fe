package apiclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestDecodeCollectionShapes(t *testing.T) {
	list, err := DecodeCollection[item]([]byte(`[{"id":1,"name":"a"},{"id":2,"name":"b"}]`))
	require.NoError(t, err)
	assert.Equal(t, ShapeList, list.Shape)
	assert.Len(t, list.Items, 2)

	page, err := DecodeCollection[item]([]byte(`{"count":12,"next":"http://x/?page=2","previous":null,"results":[{"id":3,"name":"c"}]}`))
	require.NoError(t, err)
	assert.Equal(t, ShapePage, page.Shape)
	assert.Equal(t, 12, page.Count)
	assert.Equal(t, "http://x/?page=2", page.Next)
	assert.Equal(t, []item{{ID: 3, Name: "c"}}, page.Items)

	single, err := DecodeCollection[item]([]byte(`{"id":4,"name":"d"}`))
	require.NoError(t, err)
	assert.Equal(t, ShapeSingle, single.Shape)
	assert.Equal(t, []item{{ID: 4, Name: "d"}}, single.Items)
}

func TestDecodeCollectionEmpty(t *testing.T) {
	for _, raw := range []string{``, `null`, `[]`, `{"results":[]}`} {
		c, err := DecodeCollection[item]([]byte(raw))
		require.NoError(t, err, raw)
		assert.NotNil(t, c.Items, raw)
		assert.Empty(t, c.Items, raw)
	}
}

func TestDecodeCollectionRejectsScalars(t *testing.T) {
	_, err := DecodeCollection[item]([]byte(`"nope"`))
	assert.Error(t, err)
	assert.Equal(t, "page", ShapePage.String())
}
