package orchestrator

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/Ballpark/internal/domain"
)

func dateParams(dates ...string) domain.RunParams {
	parse := func(s string) time.Time {
		d, _ := time.Parse(domain.DateLayout, s)
		return d
	}
	p := domain.RunParams{Season: 2025}
	switch len(dates) {
	case 1:
		d := parse(dates[0])
		p.TargetDate = &d
	case 2:
		from, to := parse(dates[0]), parse(dates[1])
		p.FromDate = &from
		p.ToDate = &to
	}
	return p
}

// --- BuildDAG Tests ---

func TestBuildDAGDaily(t *testing.T) {
	dag, err := BuildDAG(domain.PipelineDaily, dateParams("2025-07-01"))
	if err != nil {
		t.Fatalf("BuildDAG: %v", err)
	}

	// 3 цепочки по 3 узла, 2 пары extract→load, freshness, alert.
	if dag.Size() != 15 {
		t.Errorf("size = %d, want 15", dag.Size())
	}
	if len(dag.Order) != 15 {
		t.Errorf("order length = %d, want 15", len(dag.Order))
	}

	// Сверка standings требует загруженных игр.
	vs := dag.Nodes["validate_standings"]
	if vs == nil {
		t.Fatal("validate_standings node missing")
	}
	foundGamesDep := false
	for _, dep := range vs.DependsOn {
		if dep.ID == "load_games" {
			foundGamesDep = true
		}
	}
	if !foundGamesDep {
		t.Error("validate_standings should depend on load_games")
	}

	// Freshness после всех пяти load.
	freshness := dag.Nodes["freshness"]
	if freshness == nil {
		t.Fatal("freshness node missing")
	}
	if freshness.InDegree != 5 {
		t.Errorf("freshness in-degree = %d, want 5", freshness.InDegree)
	}

	// Alert после трёх validate и freshness.
	alert := dag.Nodes["alert"]
	if alert == nil {
		t.Fatal("alert node missing")
	}
	if alert.InDegree != 4 {
		t.Errorf("alert in-degree = %d, want 4", alert.InDegree)
	}
	if len(alert.Dependents) != 0 {
		t.Error("alert should be a sink node")
	}
}

func TestBuildDAGLive(t *testing.T) {
	dag, err := BuildDAG(domain.PipelineLive, dateParams("2025-07-01"))
	if err != nil {
		t.Fatalf("BuildDAG: %v", err)
	}

	if dag.Size() != 4 {
		t.Errorf("size = %d, want 4", dag.Size())
	}

	// Фиксированная линейная цепочка.
	want := []string{"extract_games", "load_games", "extract_game_events", "load_game_events"}
	for i, node := range dag.Order {
		if node.ID != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, node.ID, want[i])
		}
	}
}

func TestBuildDAGQuality(t *testing.T) {
	dag, err := BuildDAG(domain.PipelineQuality, dateParams("2025-07-01"))
	if err != nil {
		t.Fatalf("BuildDAG: %v", err)
	}

	if dag.Size() != 5 {
		t.Errorf("size = %d, want 5", dag.Size())
	}
	for _, id := range []string{"validate_games", "validate_standings", "validate_player_stats", "freshness", "alert"} {
		if dag.Nodes[id] == nil {
			t.Errorf("node %s missing", id)
		}
	}
	if dag.Nodes["alert"].InDegree != 4 {
		t.Errorf("alert in-degree = %d, want 4", dag.Nodes["alert"].InDegree)
	}
}

func TestBuildDAGBackfill(t *testing.T) {
	dag, err := BuildDAG(domain.PipelineBackfill, dateParams("2025-07-01", "2025-07-03"))
	if err != nil {
		t.Fatalf("BuildDAG: %v", err)
	}

	// 3 даты × (2 цепочки по 3 узла) + общий alert.
	if dag.Size() != 19 {
		t.Errorf("size = %d, want 19", dag.Size())
	}

	for _, suffix := range []string{"_2025-07-01", "_2025-07-02", "_2025-07-03"} {
		for _, prefix := range []string{"extract_games", "load_games", "validate_games", "extract_standings", "load_standings", "validate_standings"} {
			if dag.Nodes[prefix+suffix] == nil {
				t.Errorf("node %s%s missing", prefix, suffix)
			}
		}
	}

	// Alert после всех validate: 2 на каждую дату.
	if dag.Nodes["alert"].InDegree != 6 {
		t.Errorf("alert in-degree = %d, want 6", dag.Nodes["alert"].InDegree)
	}

	// Цепочки разных дат независимы: extract второй даты не зависит
	// ни от чего.
	if dag.Nodes["extract_games_2025-07-02"].InDegree != 0 {
		t.Error("per-date chains should be independent")
	}
}

func TestBuildDAGBackfillSingleEntity(t *testing.T) {
	p := dateParams("2025-07-01", "2025-07-03")
	p.Entities = []domain.EntityType{domain.EntityGames}

	dag, err := BuildDAG(domain.PipelineBackfill, p)
	if err != nil {
		t.Fatalf("BuildDAG: %v", err)
	}

	// 3 даты × цепочка games + общий alert.
	if dag.Size() != 10 {
		t.Errorf("size = %d, want 10", dag.Size())
	}

	extracts := 0
	for id := range dag.Nodes {
		if strings.HasPrefix(id, "extract_") {
			extracts++
		}
	}
	if extracts != 3 {
		t.Errorf("extract nodes = %d, want 3 (one per date)", extracts)
	}

	if dag.Nodes["extract_standings_2025-07-01"] != nil {
		t.Error("standings chain should not be built when not requested")
	}
	if dag.Nodes["alert"].InDegree != 3 {
		t.Errorf("alert in-degree = %d, want 3", dag.Nodes["alert"].InDegree)
	}
}

func TestBuildDAGBackfillStandingsOnly(t *testing.T) {
	p := dateParams("2025-07-01", "2025-07-01")
	p.Entities = []domain.EntityType{domain.EntityStandings}

	dag, err := BuildDAG(domain.PipelineBackfill, p)
	if err != nil {
		t.Fatalf("BuildDAG: %v", err)
	}

	// Без цепочки games сверка standings ждёт только свой load.
	vs := dag.Nodes["validate_standings_2025-07-01"]
	if vs == nil {
		t.Fatal("validate_standings node missing")
	}
	if vs.InDegree != 1 {
		t.Errorf("validate_standings in-degree = %d, want 1", vs.InDegree)
	}
}

func TestBuildDAGBackfillUnsupportedEntity(t *testing.T) {
	p := dateParams("2025-07-01", "2025-07-02")
	p.Entities = []domain.EntityType{domain.EntityPlayers}

	_, err := BuildDAG(domain.PipelineBackfill, p)
	if !errors.Is(err, ErrUnsupportedEntity) {
		t.Errorf("err = %v, want ErrUnsupportedEntity", err)
	}
}

func TestBuildDAGMissingDates(t *testing.T) {
	_, err := BuildDAG(domain.PipelineDaily, domain.RunParams{Season: 2025})
	if !errors.Is(err, ErrMissingDates) {
		t.Errorf("err = %v, want ErrMissingDates", err)
	}
}

func TestBuildDAGUnknownKind(t *testing.T) {
	_, err := BuildDAG(domain.PipelineKind("weekly"), dateParams("2025-07-01"))
	if !errors.Is(err, ErrUnknownPipeline) {
		t.Errorf("err = %v, want ErrUnknownPipeline", err)
	}
}

// --- Topological Sort Tests ---

func TestTopologicalSortOrderRespectsEdges(t *testing.T) {
	dag, err := BuildDAG(domain.PipelineDaily, dateParams("2025-07-01"))
	if err != nil {
		t.Fatalf("BuildDAG: %v", err)
	}

	pos := make(map[string]int, len(dag.Order))
	for i, node := range dag.Order {
		pos[node.ID] = i
	}
	for _, node := range dag.Order {
		for _, dep := range node.DependsOn {
			if pos[dep.ID] >= pos[node.ID] {
				t.Errorf("%s ordered before its dependency %s", node.ID, dep.ID)
			}
		}
	}
}

func TestTopologicalSortDetectsCycle(t *testing.T) {
	d := &DAG{Nodes: make(map[string]*Node)}
	a := d.addNode("a", domain.TaskExtract, domain.TaskParams{})
	b := d.addNode("b", domain.TaskLoad, domain.TaskParams{})
	d.addEdge(a, b)
	d.addEdge(b, a)

	_, err := d.topologicalSort()
	if !errors.Is(err, ErrCyclicDependency) {
		t.Errorf("err = %v, want ErrCyclicDependency", err)
	}
}

// --- GetReadyNodes / TransitiveDependents Tests ---

func TestGetReadyNodes(t *testing.T) {
	dag, err := BuildDAG(domain.PipelineLive, dateParams("2025-07-01"))
	if err != nil {
		t.Fatalf("BuildDAG: %v", err)
	}

	ready := dag.GetReadyNodes(map[string]bool{}, map[string]bool{})
	if len(ready) != 1 || ready[0].ID != "extract_games" {
		t.Fatalf("ready = %v, want [extract_games]", readyIDs(ready))
	}

	completed := map[string]bool{"extract_games": true}
	ready = dag.GetReadyNodes(completed, map[string]bool{})
	if len(ready) != 1 || ready[0].ID != "load_games" {
		t.Errorf("ready = %v, want [load_games]", readyIDs(ready))
	}

	running := map[string]bool{"load_games": true}
	ready = dag.GetReadyNodes(completed, running)
	if len(ready) != 0 {
		t.Errorf("ready = %v, want none while load_games is running", readyIDs(ready))
	}
}

func TestTransitiveDependents(t *testing.T) {
	dag, err := BuildDAG(domain.PipelineDaily, dateParams("2025-07-01"))
	if err != nil {
		t.Fatalf("BuildDAG: %v", err)
	}

	deps := dag.TransitiveDependents("extract_games")
	got := make(map[string]bool, len(deps))
	for _, n := range deps {
		got[n.ID] = true
	}

	// Падение extract_games тянет за собой цепочку games, сверку
	// standings, freshness и alert.
	for _, id := range []string{"load_games", "validate_games", "validate_standings", "freshness", "alert"} {
		if !got[id] {
			t.Errorf("%s should be a transitive dependent of extract_games", id)
		}
	}
	// Но не чужие extract/load.
	for _, id := range []string{"extract_standings", "load_standings", "extract_teams"} {
		if got[id] {
			t.Errorf("%s should not depend on extract_games", id)
		}
	}
}

func readyIDs(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}
