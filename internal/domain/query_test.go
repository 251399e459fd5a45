package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPictureQueryNormalize(t *testing.T) {
	q := PictureQuery{Current: -3, PageSize: 0}
	q.Normalize()
	assert.Equal(t, 1, q.Current)
	assert.Equal(t, 10, q.PageSize)
	assert.Zero(t, q.Offset())

	q = PictureQuery{Current: 3, PageSize: 50}
	q.Normalize()
	assert.Equal(t, 3, q.Current)
	assert.Equal(t, 50, q.PageSize)
	assert.Equal(t, 100, q.Offset())
}

func TestSpaceQueryNormalize(t *testing.T) {
	q := SpaceQuery{PageSize: -1}
	q.Normalize()
	assert.Equal(t, 1, q.Current)
	assert.Equal(t, 10, q.PageSize)

	q = SpaceQuery{Current: 2, PageSize: 20}
	q.Normalize()
	assert.Equal(t, 20, q.Offset())
}
