package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/casemap/internal/drag"
	"github.com/starford/casemap/internal/models"
	"github.com/starford/casemap/internal/timeline"
)

type recordingSaver struct {
	saves []models.MindMap
}

func (r *recordingSaver) Save(_ string, m models.MindMap) {
	r.saves = append(r.saves, m)
}

type stubLoader struct {
	m  models.MindMap
	ok bool
}

func (s stubLoader) Load(context.Context, string) (models.MindMap, bool) {
	return s.m, s.ok
}

type harness struct {
	s       *Session
	saver   *recordingSaver
	renders int
	lastSel string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{saver: &recordingSaver{}}
	node, link := 0, 0
	s, err := NewSession("berlin-wall",
		WithSaver(h.saver),
		WithRenderer(func(_ models.MindMap, sel string) {
			h.renders++
			h.lastSel = sel
		}),
		WithIDs(
			func() string { node++; return fmt.Sprintf("cause-%d", node) },
			func() string { link++; return fmt.Sprintf("l-%d", link) },
		),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatal(err)
	}
	s.Open(context.Background(), nil, "Fall of the Berlin Wall")
	h.s = s
	h.reset()
	return h
}

func (h *harness) reset() {
	h.saver.saves = nil
	h.renders = 0
}

func (h *harness) assertEffects(t *testing.T, saves, renders int) {
	t.Helper()
	if len(h.saver.saves) != saves || h.renders != renders {
		t.Errorf("saves/renders = %d/%d, want %d/%d", len(h.saver.saves), h.renders, saves, renders)
	}
	h.reset()
}

func countOutcomes(m models.MindMap) int {
	n := 0
	for _, node := range m.Nodes {
		if node.Type == models.NodeOutcome {
			n++
		}
	}
	return n
}

func assertIntegrity(t *testing.T, m models.MindMap) {
	t.Helper()
	if got := countOutcomes(m); got != 1 {
		t.Errorf("outcome count = %d, want 1", got)
	}
	for _, l := range m.Links {
		if !m.HasNode(l.Source) || !m.HasNode(l.Target) {
			t.Errorf("dangling link %+v", l)
		}
	}
}

func intp(v int) *int { return &v }

func TestOpen_SynthesizesOutcome(t *testing.T) {
	saver := &recordingSaver{}
	s, err := NewSession("c1", WithSaver(saver))
	if err != nil {
		t.Fatal(err)
	}
	s.Open(context.Background(), stubLoader{}, "Fall of the Berlin Wall")

	m := s.Snapshot()
	want := []models.Node{{
		ID:      "outcome",
		Text:    "Fall of the Berlin Wall",
		X:       310,
		Y:       50,
		Type:    models.NodeOutcome,
		IsFixed: true,
	}}
	if diff := cmp.Diff(want, m.Nodes); diff != "" {
		t.Errorf("nodes mismatch (-want +got):\n%s", diff)
	}
	if len(saver.saves) != 1 {
		t.Errorf("saves = %d, want 1", len(saver.saves))
	}
}

func TestOpen_LoadedMapIsNotSaved(t *testing.T) {
	saver := &recordingSaver{}
	renders := 0
	s, _ := NewSession("c1", WithSaver(saver), WithRenderer(func(models.MindMap, string) { renders++ }))
	stored := models.MindMap{
		Nodes: []models.Node{
			{ID: "outcome", Type: models.NodeOutcome, IsFixed: true},
			{ID: "a", Text: "Leipzig (1989)", Type: models.NodeCause, Year: 1989},
		},
	}
	s.Open(context.Background(), stubLoader{m: stored, ok: true}, "ignored")

	if len(saver.saves) != 0 || renders != 1 {
		t.Errorf("saves/renders = %d/%d, want 0/1", len(saver.saves), renders)
	}
	if got := len(s.Snapshot().Nodes); got != 2 {
		t.Errorf("nodes = %d, want 2", got)
	}
}

func TestOpen_PrependsMissingOutcome(t *testing.T) {
	s, _ := NewSession("c1")
	stored := models.MindMap{Nodes: []models.Node{{ID: "a", Type: models.NodeCause}}}
	s.Open(context.Background(), stubLoader{m: stored, ok: true}, "Headline")

	m := s.Snapshot()
	if len(m.Nodes) != 2 || m.Nodes[0].ID != models.OutcomeID || m.Nodes[0].Text != "Headline" {
		t.Errorf("nodes = %+v", m.Nodes)
	}
}

func TestOpen_ReconcilesCardYears(t *testing.T) {
	saver := &recordingSaver{}
	renders := 0
	s, _ := NewSession("c1", WithSaver(saver), WithRenderer(func(models.MindMap, string) { renders++ }))
	stored := models.MindMap{
		Nodes: []models.Node{
			{ID: "outcome", Type: models.NodeOutcome, IsFixed: true},
			{ID: "missing", Text: "Leipzig (1989)", Type: models.NodeCause},
			{ID: "stale", Text: "Glasnost (1986)", Type: models.NodeCause, Year: 1988},
			{ID: "untagged", Text: "Solidarity", Type: models.NodeCause, Year: 1985},
			{ID: "neither", Text: "Stagnation", Type: models.NodeCause},
		},
	}
	s.Open(context.Background(), stubLoader{m: stored, ok: true}, "ignored")

	if len(saver.saves) != 1 || renders != 1 {
		t.Errorf("saves/renders = %d/%d, want 1/1", len(saver.saves), renders)
	}
	want := map[string]struct {
		year int
		text string
	}{
		"missing":  {1989, "Leipzig (1989)"},
		"stale":    {1986, "Glasnost (1986)"},
		"untagged": {1985, "Solidarity (1985)"},
		"neither":  {1987, "Stagnation (1987)"},
	}
	snap := s.Snapshot()
	for id, w := range want {
		n := snap.Node(id)
		if n.Year != w.year || n.Text != w.text {
			t.Errorf("%s = year %d text %q, want %d %q", id, n.Year, n.Text, w.year, w.text)
		}
	}

	if err := s.RepositionAllForRange(1985, 1990); err != nil {
		t.Fatal(err)
	}
	snap = s.Snapshot()
	if got := snap.Node("missing").Y; got != 280 {
		t.Errorf("reloaded card y = %v, want 280", got)
	}
}

func TestDropEvidence_SuggestedYear(t *testing.T) {
	h := newHarness(t)
	n, ok := h.s.DropEvidence(Drop{Text: "Hungarian Border Opening", Year: intp(1989)})
	if !ok {
		t.Fatal("drop ignored")
	}
	if !strings.HasSuffix(n.Text, "(1989)") || n.Year != 1989 {
		t.Errorf("node = %+v", n)
	}
	if n.Y != h.s.Mapper().YearToY(1989) {
		t.Errorf("y = %v, want %v", n.Y, h.s.Mapper().YearToY(1989))
	}
	if n.X != 250 {
		t.Errorf("x = %v, want lane 250", n.X)
	}
	h.assertEffects(t, 1, 1)
}

func TestDropEvidence_YearResolution(t *testing.T) {
	tests := []struct {
		name string
		drop Drop
		year int
		text string
	}{
		{"token in text", Drop{Text: "Glasnost (1986)"}, 1986, "Glasnost (1986)"},
		{"explicit wins over token", Drop{Text: "Glasnost (1986)", Year: intp(1988)}, 1988, "Glasnost (1988)"},
		{"midpoint fallback", Drop{Text: "Economic stagnation"}, 1987, "Economic stagnation (1987)"},
		{"explicit midpoint is honoured", Drop{Text: "Summit", Year: intp(1987)}, 1987, "Summit (1987)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			n, ok := h.s.DropEvidence(tt.drop)
			if !ok || n.Year != tt.year || n.Text != tt.text {
				t.Errorf("got %+v, %v", n, ok)
			}
		})
	}
}

func TestDropEvidence_BlankIsNoop(t *testing.T) {
	h := newHarness(t)
	if _, ok := h.s.DropEvidence(Drop{Text: "   "}); ok {
		t.Error("blank drop accepted")
	}
	h.assertEffects(t, 0, 0)
}

func TestAddCause_PlacesRightOfSiblings(t *testing.T) {
	h := newHarness(t)
	a := h.s.AddCauseFromEvidence("A", 1989)
	b := h.s.AddCauseFromEvidence("B", 1989)
	c := h.s.AddCauseFromEvidence("C", 1989)
	if a.X != 250 || b.X != 440 {
		t.Errorf("x = %v, %v, want 250, 440", a.X, b.X)
	}
	// 440+180+10 overflows the 800px canvas and is clamped to 620.
	if c.X != 620 {
		t.Errorf("third x = %v, want 620", c.X)
	}
	other := h.s.AddCauseFromEvidence("D", 1986)
	if other.X != 250 {
		t.Errorf("other year x = %v, want 250", other.X)
	}
}

func TestClick_SelectLinkReselect(t *testing.T) {
	h := newHarness(t)
	a := h.s.AddCauseFromEvidence("A", 1988)
	b := h.s.AddCauseFromEvidence("B", 1989)
	h.reset()

	if r := h.s.Click(a.ID); r != ClickSelected || h.s.Selected() != a.ID {
		t.Fatalf("first click = %v, selected %q", r, h.s.Selected())
	}
	h.assertEffects(t, 0, 1)

	if r := h.s.Click(b.ID); r != ClickLinked {
		t.Fatalf("second click = %v", r)
	}
	h.assertEffects(t, 1, 1)
	m := h.s.Snapshot()
	want := []models.Link{{ID: "l-1", Source: a.ID, Target: b.ID}}
	if diff := cmp.Diff(want, m.Links); diff != "" {
		t.Errorf("links mismatch (-want +got):\n%s", diff)
	}
	if h.s.Selected() != "" {
		t.Errorf("selection not cleared: %q", h.s.Selected())
	}

	if r := h.s.Click(b.ID); r != ClickSelected || h.s.Selected() != b.ID {
		t.Errorf("re-click = %v, selected %q", r, h.s.Selected())
	}
	if got := len(h.s.Snapshot().Links); got != 1 {
		t.Errorf("links = %d, want 1", got)
	}
}

func TestClick_ToggleAndDuplicate(t *testing.T) {
	h := newHarness(t)
	a := h.s.AddCauseFromEvidence("A", 1988)
	b := h.s.AddCauseFromEvidence("B", 1989)
	h.s.Click(a.ID)
	h.s.Click(b.ID)
	h.reset()

	if r := h.s.Click(a.ID); r != ClickSelected {
		t.Fatalf("select = %v", r)
	}
	if r := h.s.Click(a.ID); r != ClickDeselected || h.s.Selected() != "" {
		t.Errorf("toggle = %v, selected %q", r, h.s.Selected())
	}
	h.assertEffects(t, 0, 2)

	h.s.Click(b.ID)
	if r := h.s.Click(a.ID); r != ClickLinkRejected {
		t.Errorf("reverse duplicate = %v", r)
	}
	if h.s.Selected() != "" {
		t.Error("selection not cleared after rejected link")
	}
	h.assertEffects(t, 0, 2)
}

func TestClick_UnknownNodeIgnored(t *testing.T) {
	h := newHarness(t)
	if r := h.s.Click("ghost"); r != ClickIgnored {
		t.Errorf("click = %v", r)
	}
	h.assertEffects(t, 0, 0)
}

func TestDeleteNode_Cascade(t *testing.T) {
	h := newHarness(t)
	a := h.s.AddCauseFromEvidence("A", 1986)
	b := h.s.AddCauseFromEvidence("B", 1987)
	c := h.s.AddCauseFromEvidence("C", 1988)
	h.s.Click(a.ID)
	h.s.Click(b.ID)
	h.s.Click(c.ID)
	h.s.Click(a.ID)
	h.s.Click(b.ID)
	h.s.Click(c.ID)
	before := len(h.s.Snapshot().Links)
	if before != 3 {
		t.Fatalf("links = %d, want 3", before)
	}
	h.s.Click(a.ID)
	h.reset()

	if !h.s.DeleteNode(a.ID) {
		t.Fatal("DeleteNode failed")
	}
	h.assertEffects(t, 1, 1)
	m := h.s.Snapshot()
	if len(m.Links) != before-2 {
		t.Errorf("links = %d, want %d", len(m.Links), before-2)
	}
	if m.HasNode(a.ID) {
		t.Error("node still present")
	}
	if h.s.Selected() != "" {
		t.Error("selection of deleted node not cleared")
	}
	assertIntegrity(t, m)
}

func TestDeleteNode_OutcomeAndUnknownAreNoops(t *testing.T) {
	h := newHarness(t)
	if h.s.DeleteNode(models.OutcomeID) {
		t.Error("outcome deleted")
	}
	if h.s.DeleteNode("ghost") {
		t.Error("unknown node deleted")
	}
	h.assertEffects(t, 0, 0)
	assertIntegrity(t, h.s.Snapshot())
}

func TestDeleteLink(t *testing.T) {
	h := newHarness(t)
	a := h.s.AddCauseFromEvidence("A", 1986)
	h.s.Click(a.ID)
	h.s.Click(models.OutcomeID)
	h.reset()

	if !h.s.DeleteLink("l-1") {
		t.Fatal("DeleteLink failed")
	}
	h.assertEffects(t, 1, 1)
	if h.s.DeleteLink("l-1") {
		t.Error("second delete succeeded")
	}
	h.assertEffects(t, 0, 0)
}

func TestRepositionAllForRange(t *testing.T) {
	h := newHarness(t)
	a := h.s.AddCauseFromEvidence("A", 1989)
	b := h.s.AddCauseFromEvidence("B", 1989)
	h.reset()

	if err := h.s.RepositionAllForRange(1980, 1995); err != nil {
		t.Fatal(err)
	}
	h.assertEffects(t, 1, 1)
	m := h.s.Snapshot()
	for _, id := range []string{a.ID, b.ID} {
		n := m.Node(id)
		if n.X != 250 || n.Y != 180+6*100 {
			t.Errorf("%s at (%v, %v), want (250, 780)", id, n.X, n.Y)
		}
	}
	if got, want := h.s.Canvas().Height, 180+15*100+100.0; got != want {
		t.Errorf("canvas height = %v, want %v", got, want)
	}
}

func TestRepositionAllForRange_InvalidLeavesState(t *testing.T) {
	h := newHarness(t)
	h.s.AddCauseFromEvidence("A", 1989)
	h.reset()
	if err := h.s.RepositionAllForRange(1990, 1985); err == nil {
		t.Fatal("reversed range accepted")
	}
	h.assertEffects(t, 0, 0)
	if s, e := h.s.Mapper().Range(); s != 1985 || e != 1990 {
		t.Errorf("range = %d..%d", s, e)
	}
}

func TestYearOutsideTokenRange(t *testing.T) {
	h := newHarness(t)
	n, ok := h.s.DropEvidence(Drop{Text: "Ancient thing", Year: intp(500)})
	if !ok {
		t.Fatal("drop ignored")
	}
	if y, ok := models.ExtractYear(n.Text); !ok || y != n.Year || n.Year != 1987 {
		t.Fatalf("drop = year %d text %q", n.Year, n.Text)
	}

	if moved := h.s.RetagYear(1987, 12345); moved != 0 {
		t.Errorf("retag onto the midpoint itself moved %d", moved)
	}
	h.s.RetagYear(1987, 1989)
	h.s.RetagYear(1989, -1)
	snap := h.s.Snapshot()
	got := snap.Node(n.ID)
	if got.Text != "Ancient thing (1987)" || got.Year != 1987 {
		t.Errorf("after retags = year %d text %q", got.Year, got.Text)
	}
	if got.Y != h.s.Mapper().YearToY(1987) {
		t.Errorf("y = %v, want midpoint row", got.Y)
	}

	added := h.s.AddCauseFromEvidence("Far future", 10000)
	if added.Year != 1987 || added.Text != "Far future (1987)" {
		t.Errorf("added = year %d text %q", added.Year, added.Text)
	}
}

func TestRepositionAllForRange_SpanCap(t *testing.T) {
	h := newHarness(t)
	h.s.AddCauseFromEvidence("A", 1989)
	h.reset()
	height := h.s.Canvas().Height
	if err := h.s.RepositionAllForRange(1, 20_000_000); !errors.Is(err, timeline.ErrInvalidRange) {
		t.Fatalf("huge range err = %v", err)
	}
	h.assertEffects(t, 0, 0)
	if s, e := h.s.Mapper().Range(); s != 1985 || e != 1990 {
		t.Errorf("range = %d..%d", s, e)
	}
	if h.s.Canvas().Height != height {
		t.Errorf("canvas height changed to %v", h.s.Canvas().Height)
	}
}

func TestRetagYear(t *testing.T) {
	h := newHarness(t)
	h.s.AddCauseFromEvidence("A (1986)", 1986)
	h.s.AddCauseFromEvidence("B", 1986)
	h.s.AddCauseFromEvidence("C", 1988)
	h.reset()

	if n := h.s.RetagYear(1986, 1987); n != 2 {
		t.Fatalf("moved = %d, want 2", n)
	}
	h.assertEffects(t, 1, 1)
	for _, n := range h.s.Snapshot().Nodes {
		if n.Year == 1986 {
			t.Errorf("node %s still at 1986", n.ID)
		}
	}
	if got := h.s.UsedYears(); !cmp.Equal(got, []int{1988, 1987}) {
		t.Errorf("UsedYears = %v", got)
	}
	if h.s.RetagYear(1975, 1976) != 0 {
		t.Error("retag of unused year moved nodes")
	}
	h.assertEffects(t, 0, 0)
}

func TestYearFromInput(t *testing.T) {
	h := newHarness(t)
	for in, want := range map[string]int{"1989": 1989, " 1986 ": 1986, "": 1987, "soon": 1987, "500": 1987, "12345": 1987} {
		if got := h.s.YearFromInput(in); got != want {
			t.Errorf("YearFromInput(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestDrag_FullGesture(t *testing.T) {
	h := newHarness(t)
	n := h.s.AddCauseFromEvidence("Reforms", 1985)
	h.reset()

	if !h.s.BeginDrag(n.ID, drag.Point{X: n.X + 10, Y: n.Y + 10}) {
		t.Fatal("BeginDrag refused")
	}
	h.assertEffects(t, 0, 0)
	if !h.s.DragTo(drag.Point{X: 500, Y: 290}) {
		t.Fatal("DragTo refused")
	}
	h.assertEffects(t, 0, 1)

	if r := h.s.Click(n.ID); r != ClickIgnored {
		t.Errorf("click during drag = %v", r)
	}

	year, ok := h.s.EndDrag(drag.Point{X: 500, Y: 290})
	if !ok || year != 1989 {
		t.Fatalf("EndDrag = %d, %v", year, ok)
	}
	h.assertEffects(t, 1, 1)
	snap := h.s.Snapshot()
	got := snap.Node(n.ID)
	if got.Year != 1989 || got.Text != "Reforms (1989)" || got.Y != 250 {
		t.Errorf("node = %+v", got)
	}
	if _, active := h.s.Dragging(); active {
		t.Error("gesture still active")
	}
}

func TestDrag_OutcomeRejected(t *testing.T) {
	h := newHarness(t)
	if h.s.BeginDrag(models.OutcomeID, drag.Point{X: 320, Y: 60}) {
		t.Error("outcome drag accepted")
	}
	if h.s.DragTo(drag.Point{X: 0, Y: 0}) {
		t.Error("DragTo without gesture accepted")
	}
	if _, ok := h.s.EndDrag(drag.Point{}); ok {
		t.Error("EndDrag without gesture snapped")
	}
	h.assertEffects(t, 0, 0)
}

func TestDrag_ClampFarOutside(t *testing.T) {
	h := newHarness(t)
	n := h.s.AddCauseFromEvidence("Reforms", 1987)
	h.s.BeginDrag(n.ID, drag.Point{X: n.X, Y: n.Y})
	h.s.DragTo(drag.Point{X: 1e5, Y: 1e5})
	h.s.EndDrag(drag.Point{X: 1e5, Y: 1e5})

	snap := h.s.Snapshot()
	got := snap.Node(n.ID)
	c := h.s.Canvas()
	if got.X < 0 || got.X > c.Width-c.NodeWidth || got.Y < 0 || got.Y > c.Height-c.NodeHeight {
		t.Errorf("node escaped canvas: (%v, %v)", got.X, got.Y)
	}
}

func TestInvariantsAcrossMixedMutations(t *testing.T) {
	h := newHarness(t)
	var ids []string
	for i, y := range []int{1985, 1986, 1987, 1988, 1989, 1990} {
		ids = append(ids, h.s.AddCauseFromEvidence(fmt.Sprintf("E%d", i), y).ID)
	}
	for i := range ids {
		h.s.Click(ids[i])
		h.s.Click(ids[(i+1)%len(ids)])
		h.s.Click(ids[i])
		h.s.Click(models.OutcomeID)
	}
	h.s.DeleteNode(ids[2])
	h.s.DeleteNode(models.OutcomeID)
	h.s.BeginDrag(models.OutcomeID, drag.Point{})
	h.s.RetagYear(1989, 1986)
	_ = h.s.RepositionAllForRange(1986, 1992)
	h.s.DeleteNode(ids[4])
	assertIntegrity(t, h.s.Snapshot())
}

func TestSnapshotIsolation(t *testing.T) {
	h := newHarness(t)
	snap := h.s.Snapshot()
	snap.Nodes[0].Text = "mutated"
	if h.s.Snapshot().Nodes[0].Text == "mutated" {
		t.Error("snapshot shares storage with the session")
	}
}

func TestNewSession_InvalidTimeline(t *testing.T) {
	cfg := timeline.DefaultConfig()
	cfg.RangeStart, cfg.RangeEnd = 2000, 1990
	if _, err := NewSession("c1", WithTimeline(cfg)); err == nil {
		t.Error("invalid timeline accepted")
	}
}
