package core

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/signalsfoundry/relaychain-simulator/kb"
	"github.com/signalsfoundry/relaychain-simulator/model"
)

// RenderCorridorMap draws a one-line ASCII view of the corridor, one
// column per stepM metres, with a position ruler underneath. Staged
// relays are drawn too; where two nodes share a column the one further
// along the corridor wins.
func RenderCorridorMap(store *kb.NodeStore, stepM float64) string {
	if stepM <= 0 {
		stepM = 10.0
	}

	type entry struct {
		x     float64
		label string
	}

	var ents []entry
	minX := math.Inf(1)
	maxX := math.Inf(-1)

	addNode := func(n *model.Node) {
		if n == nil {
			return
		}
		var label string
		switch n.Role {
		case model.RoleUser:
			label = "U"
		case model.RoleAccessPoint:
			label = "A"
		default:
			label = fmt.Sprintf("D%d", n.RelayIndex)
			if !n.Active {
				label = strings.ToLower(label)
			}
		}
		ents = append(ents, entry{x: n.Coordinates.X, label: label})
		minX = math.Min(minX, n.Coordinates.X)
		maxX = math.Max(maxX, n.Coordinates.X)
	}

	addNode(store.User())
	addNode(store.AccessPoint())
	for _, r := range store.Relays() {
		addNode(r)
	}
	if len(ents) == 0 {
		return ""
	}

	if maxX-minX < stepM {
		maxX = minX + stepM
	}
	sort.Slice(ents, func(i, j int) bool { return ents[i].x < ents[j].x })

	cols := int(math.Ceil((maxX - minX) / stepM))
	if cols < 10 {
		cols = 10
	}

	row := make([]string, cols)
	for i := range row {
		row[i] = "-"
	}
	for _, e := range ents {
		idx := int(math.Floor((e.x - minX) / stepM))
		if idx >= cols {
			idx = cols - 1
		}
		row[idx] = e.label
	}

	var line, ruler strings.Builder
	for c := 0; c < cols; c++ {
		fmt.Fprintf(&line, "%4s", row[c])
		x := minX + (float64(c)+0.5)*stepM
		s := fmt.Sprintf("%.0f", x)
		if len(s) > 4 {
			s = s[:4]
		}
		fmt.Fprintf(&ruler, "%4s", s)
	}
	return "[MAP] " + line.String() + "\n[POS] " + ruler.String()
}
