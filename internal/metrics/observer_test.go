package metrics

import (
	"context"
	"testing"
	"time"

	"hrportal/internal/events"
	"hrportal/internal/model"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveTransition(t *testing.T) {
	counter := RequestTransitions.WithLabelValues(string(events.RequestApproved))
	before := testutil.ToFloat64(counter)

	evt := events.New(events.RequestApproved, &model.Request{ID: "REQ-20240115-001"}, "", time.Now())
	require.NoError(t, ObserveTransition(context.Background(), evt))

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
