package session

import (
	"testing"

	"rhealth-backend/application/session/sessiontest"

	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := sessiontest.NewRecorder("a")
	b := sessiontest.NewRecorder("b")
	c := sessiontest.NewRecorder("c")

	r.Register(a)
	r.Register(b)
	r.Register(c)
	r.Register(a)

	assert.Equal(t, 3, r.Count())
	ids := []string{}
	for _, s := range r.Sessions() {
		ids = append(ids, s.ID())
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	assert.True(t, r.Unregister(b))
	assert.False(t, r.Unregister(b), "double unregister is a no-op")
	assert.Equal(t, 2, r.Count())
	assert.Equal(t, "c", r.Sessions()[1].ID())
}
