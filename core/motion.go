package core

import (
	"time"

	"github.com/signalsfoundry/relaychain-simulator/model"
)

// MotionModel updates a node's position for a given simulation step.
// The controller owns relay motion itself; motion models drive only the
// externally-moved endpoints.
type MotionModel interface {
	Advance(dt time.Duration, n *model.Node)
}

// StaticMotionModel leaves the node's position unchanged.
type StaticMotionModel struct{}

// Advance for static motion does nothing.
func (m *StaticMotionModel) Advance(dt time.Duration, n *model.Node) {
	// no-op
}

// ConstantVelocityMotionModel moves the node along the corridor at a
// fixed speed, one explicit Euler step per call.
type ConstantVelocityMotionModel struct {
	SpeedMps float64
}

// Advance applies one step of corridor motion and records the speed as
// the node's current velocity.
func (m *ConstantVelocityMotionModel) Advance(dt time.Duration, n *model.Node) {
	n.VX = m.SpeedMps
	n.Coordinates.X += m.SpeedMps * dt.Seconds()
}

// NewMotionModel chooses an appropriate MotionModel for the node: the
// user moves at the configured speed, everything else stays put.
func NewMotionModel(n *model.Node, userSpeedMps float64) MotionModel {
	if n.Role == model.RoleUser && userSpeedMps != 0 {
		return &ConstantVelocityMotionModel{SpeedMps: userSpeedMps}
	}
	return &StaticMotionModel{}
}
