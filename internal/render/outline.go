// Package render draws a mind map as plain text. It only reads state.
package render

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/starford/casemap/internal/models"
	"github.com/starford/casemap/internal/timeline"
)

const selectedMark = " *"

// Outline renders m as a timeline: the outcome first, then one row per
// visible year from the latest down with its cards ordered left to right,
// then cards outside the range, then the links. The selected node is marked.
func Outline(m models.MindMap, selected string, mapper *timeline.Mapper) string {
	var b strings.Builder

	if o := m.Outcome(); o != nil {
		fmt.Fprintf(&b, "OUTCOME %s [%s]%s\n", o.Text, o.ID, mark(o.ID, selected))
	}

	byYear := make(map[int][]models.Node)
	var outside []models.Node
	for _, n := range m.Nodes {
		if n.Type != models.NodeCause {
			continue
		}
		if mapper.Contains(n.Year) {
			byYear[n.Year] = append(byYear[n.Year], n)
		} else {
			outside = append(outside, n)
		}
	}

	for _, year := range mapper.Years() {
		cards := byYear[year]
		slices.SortStableFunc(cards, byX)
		fmt.Fprintf(&b, "%d |", year)
		for _, n := range cards {
			fmt.Fprintf(&b, " %s [%s]%s", n.Text, n.ID, mark(n.ID, selected))
		}
		b.WriteByte('\n')
	}

	if len(outside) > 0 {
		slices.SortStableFunc(outside, func(a, c models.Node) int {
			return cmp.Compare(c.Year, a.Year)
		})
		b.WriteString("outside range:\n")
		for _, n := range outside {
			fmt.Fprintf(&b, "  %d %s [%s]%s\n", n.Year, n.Text, n.ID, mark(n.ID, selected))
		}
	}

	if len(m.Links) > 0 {
		b.WriteString("links:\n")
		for _, l := range m.Links {
			fmt.Fprintf(&b, "  %s -> %s [%s]\n", l.Source, l.Target, l.ID)
		}
	}
	return b.String()
}

func byX(a, b models.Node) int {
	return cmp.Compare(a.X, b.X)
}

func mark(id, selected string) string {
	if selected != "" && id == selected {
		return selectedMark
	}
	return ""
}
