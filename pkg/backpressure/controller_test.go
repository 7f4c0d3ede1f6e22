package backpressure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestController_Thresholds(t *testing.T) {
	c := NewController(200, 800, 1000)

	assert.Equal(t, StateAccepting, c.Observe(0))
	assert.Equal(t, StateAccepting, c.Observe(200))
	assert.Equal(t, StatePressured, c.Observe(800))
	assert.Equal(t, StateRejecting, c.Observe(1000))
	assert.Equal(t, StateRejecting, c.Observe(5000))
}

// P7: once pressured at depth >= highWater, the controller cannot return to
// accepting until depth <= lowWater.
func TestController_Hysteresis(t *testing.T) {
	c := NewController(200, 800, 1000)

	assert.Equal(t, StatePressured, c.Observe(800))
	assert.Equal(t, StatePressured, c.Observe(500))
	assert.Equal(t, StatePressured, c.Observe(201))
	assert.Equal(t, StateAccepting, c.Observe(200))
}

func TestController_RejectingRelaxesToPressured(t *testing.T) {
	c := NewController(200, 800, 1000)

	assert.Equal(t, StateRejecting, c.Observe(1000))
	assert.Equal(t, StatePressured, c.Observe(500))
	assert.True(t, c.CanAccept())
}

func TestController_AcceptingHoldsBelowHighWater(t *testing.T) {
	c := NewController(200, 800, 1000)

	assert.Equal(t, StateAccepting, c.Observe(500))
	assert.Equal(t, StateAccepting, c.Observe(799))
}

func TestController_Admit(t *testing.T) {
	c := NewController(200, 800, 1000)

	assert.True(t, c.Admit(799))
	assert.True(t, c.Admit(999))
	assert.False(t, c.Admit(1000))
}

func TestNewController_BadThresholdsFallBack(t *testing.T) {
	c := NewController(900, 100, 10)

	assert.Equal(t, StateAccepting, c.Observe(DefaultLowWater))
	assert.Equal(t, StateRejecting, c.Observe(DefaultMaxDepth))
}
