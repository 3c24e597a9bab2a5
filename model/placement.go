package model

import "fmt"

// PlacementMode selects how relay slots are positioned at simulation
// start.
type PlacementMode string

const (
	// PlacementEven spaces relays evenly between user and access point
	// and activates all of them immediately.
	PlacementEven PlacementMode = "even"
	// PlacementClusteredNearSource stages active relays in a tight
	// cluster just ahead of the user.
	PlacementClusteredNearSource PlacementMode = "clustered-near-source"
	// PlacementStagedForDeployment parks relays inactive at the access
	// point; the deployment engine moves them into the chain on demand.
	PlacementStagedForDeployment PlacementMode = "staged-for-deployment"
)

// ParsePlacementMode maps a config string to a PlacementMode. The empty
// string defaults to staged-for-deployment, the reference behaviour.
func ParsePlacementMode(s string) (PlacementMode, error) {
	switch PlacementMode(s) {
	case PlacementEven, PlacementClusteredNearSource, PlacementStagedForDeployment:
		return PlacementMode(s), nil
	case "":
		return PlacementStagedForDeployment, nil
	default:
		return "", fmt.Errorf("unknown placement mode %q", s)
	}
}
