package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := NewCollector("rhealth")

	c.SessionOpened()
	c.SessionOpened()
	c.SessionClosed()
	c.MessageSent("patients")
	c.MessageDropped("patients")
	c.RecordMutation("add_patient", "success", 5*time.Millisecond)
	c.RecordStoreOperation("insert", time.Millisecond, errors.New("boom"))
	c.SetRosterSize(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.ActiveSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.MessagesDropped.WithLabelValues("patients")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Mutations.WithLabelValues("add_patient", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.StoreOperations.WithLabelValues("insert", "error")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.RosterSize))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rhealth_roster_size 4")
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.SessionOpened()
		c.MessageSent("patients")
		c.RecordMutation("x", "y", time.Second)
		c.RecordEventPublished("patient.added", nil)
	})
}

func TestNewLogger(t *testing.T) {
	logger, level, err := NewLogger("development", "debug")
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Equal(t, "debug", level.String())

	level.SetLevel(level.Level() + 1)
	assert.Equal(t, "info", level.String())

	_, _, err = NewLogger("production", "shouty")
	assert.Error(t, err)
}
