// core/scenario_loader.go
package core

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/signalsfoundry/relaychain-simulator/kb"
	"github.com/signalsfoundry/relaychain-simulator/model"
)

// Scenario is a small summary of what was loaded from JSON.
// It’s mainly useful for logging or debugging from main().
type Scenario struct {
	UserID        string
	AccessPointID string
	RelayIDs      []string
	Placement     model.PlacementMode
	UserSpeedMps  float64
}

// internal JSON shapes – keep them unexported so we’re free to evolve them.
type scenarioJSON struct {
	User        userJSON   `json:"user"`
	AccessPoint apJSON     `json:"access_point"`
	Relays      relaysJSON `json:"relays"`
}

type userJSON struct {
	StartX   float64 `json:"start_x"`
	SpeedMps float64 `json:"speed_mps"`
}

type apJSON struct {
	X float64 `json:"x"`
}

type relaysJSON struct {
	Count     int    `json:"count"`
	Placement string `json:"placement"` // "even" | "clustered-near-source" | "staged-for-deployment"
}

// LoadScenario reads a JSON scenario from r, populates the NodeStore
// with the user, the access point, and the fleet of relays laid out
// according to the requested placement mode, and returns a summary of
// what was loaded.
//
// It fails only on JSON / structural errors and on store invariant
// violations (duplicate endpoints, bad slots) surfaced by Add.
func LoadScenario(store *kb.NodeStore, r io.Reader) (*Scenario, error) {
	if store == nil {
		return nil, fmt.Errorf("LoadScenario: store is nil")
	}

	var payload scenarioJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadScenario: decode failed: %w", err)
	}
	if payload.Relays.Count < 0 {
		return nil, fmt.Errorf("LoadScenario: negative relay count %d", payload.Relays.Count)
	}

	placement, err := model.ParsePlacementMode(payload.Relays.Placement)
	if err != nil {
		return nil, fmt.Errorf("LoadScenario: %w", err)
	}

	result := &Scenario{
		UserID:        "user",
		AccessPointID: "access-point",
		RelayIDs:      make([]string, 0, payload.Relays.Count),
		Placement:     placement,
		UserSpeedMps:  payload.User.SpeedMps,
	}

	user := &model.Node{
		ID:          result.UserID,
		Name:        "user",
		Role:        model.RoleUser,
		Coordinates: model.Position{X: payload.User.StartX},
		VX:          payload.User.SpeedMps,
	}
	if err := store.Add(user); err != nil {
		return nil, fmt.Errorf("LoadScenario: add user: %w", err)
	}

	ap := &model.Node{
		ID:          result.AccessPointID,
		Name:        "access-point",
		Role:        model.RoleAccessPoint,
		Coordinates: model.Position{X: payload.AccessPoint.X},
	}
	if err := store.Add(ap); err != nil {
		return nil, fmt.Errorf("LoadScenario: add access point: %w", err)
	}

	for slot := 1; slot <= payload.Relays.Count; slot++ {
		x, active := relayPlacement(placement, slot, payload.Relays.Count,
			payload.AccessPoint.X, payload.User.StartX)
		relay := &model.Node{
			ID:          fmt.Sprintf("relay-%d", slot),
			Name:        fmt.Sprintf("relay-%d", slot),
			Role:        model.RoleRelay,
			RelayIndex:  slot,
			Coordinates: model.Position{X: x},
			Active:      active,
		}
		if err := store.Add(relay); err != nil {
			return nil, fmt.Errorf("LoadScenario: add relay %d: %w", slot, err)
		}
		result.RelayIDs = append(result.RelayIDs, relay.ID)
	}

	return result, nil
}

// relayPlacement returns the initial position and activation state for
// the relay in the given slot.
//
//   - even: active relays spread at equal fractions of the corridor
//     between access point and user.
//   - clustered-near-source: active relays parked a few metres ahead of
//     the user on the access-point side, one metre apart, waiting for
//     the balancer to spread them out.
//   - staged-for-deployment: inactive relays stacked just behind the
//     access point, released one at a time by the deployer.
func relayPlacement(mode model.PlacementMode, slot, count int, apX, userX float64) (x float64, active bool) {
	dir := 1.0
	if userX < apX {
		dir = -1.0
	}
	switch mode {
	case model.PlacementEven:
		step := (userX - apX) / float64(count+1)
		return apX + float64(slot)*step, true
	case model.PlacementClusteredNearSource:
		return userX - dir*(5.0+float64(slot-1)), true
	default: // staged-for-deployment
		return apX - dir*float64(slot), false
	}
}
