package orchestrator

import (
	"fmt"
	"time"

	"github.com/shaiso/Ballpark/internal/domain"
)

// Node — узел DAG pipeline.
type Node struct {
	// ID — идентификатор узла (уникален в рамках run).
	ID string

	// Kind — тип узла.
	Kind domain.TaskKind

	// Params — параметры узла.
	Params domain.TaskParams

	// DependsOn — узлы, от которых зависит этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла.
	Dependents []*Node

	// InDegree — количество входящих рёбер.
	InDegree int
}

// DAG — направленный ациклический граф узлов pipeline.
//
// Форма графа фиксирована для каждого PipelineKind; пользовательских
// определений pipeline нет.
type DAG struct {
	// Nodes — все узлы графа (nodeID → Node).
	Nodes map[string]*Node

	// Order — топологически отсортированный список узлов.
	Order []*Node
}

// BuildDAG строит фиксированный DAG для run.
//
// daily:    extract → load → validate для каждой сущности;
//           freshness после всех load; alert после validate и freshness.
// live:     extract_games → load_games → extract_events → load_events.
// quality:  validate всех сущностей + freshness → alert (без extract).
// backfill: независимые цепочки extract → load → validate на каждую
//           дату диапазона по выбранным сущностям; alert после всех
//           validate.
func BuildDAG(kind domain.PipelineKind, params domain.RunParams) (*DAG, error) {
	dates := params.Dates()
	if len(dates) == 0 {
		return nil, ErrMissingDates
	}

	d := &DAG{Nodes: make(map[string]*Node)}

	switch kind {
	case domain.PipelineDaily:
		d.buildDaily(dates[0], params.Season)
	case domain.PipelineLive:
		d.buildLive(dates[0], params.Season)
	case domain.PipelineQuality:
		d.buildQuality(dates[0], params.Season)
	case domain.PipelineBackfill:
		if err := d.buildBackfill(dates, params.Season, params.Entities); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPipeline, kind)
	}

	order, err := d.topologicalSort()
	if err != nil {
		return nil, err
	}
	d.Order = order
	return d, nil
}

func (d *DAG) buildDaily(date time.Time, season int) {
	games := d.chain(date, season, domain.EntityGames, "")
	standings := d.chain(date, season, domain.EntityStandings, "")
	teamsLoad := d.extractLoad(date, season, domain.EntityTeams, "")
	playersLoad := d.extractLoad(date, season, domain.EntityPlayers, "")
	stats := d.chain(date, season, domain.EntityPlayerStats, "")

	// Сверка standings требует загруженных игр дня.
	d.addEdge(games.load, standings.validate)

	freshness := d.addNode("freshness", domain.TaskFreshness, domain.TaskParams{Date: &date, Season: season})
	for _, load := range []*Node{games.load, standings.load, teamsLoad, playersLoad, stats.load} {
		d.addEdge(load, freshness)
	}

	alert := d.addNode("alert", domain.TaskAlert, domain.TaskParams{Date: &date, Season: season})
	for _, validate := range []*Node{games.validate, standings.validate, stats.validate} {
		d.addEdge(validate, alert)
	}
	d.addEdge(freshness, alert)
}

func (d *DAG) buildLive(date time.Time, season int) {
	gamesLoad := d.extractLoad(date, season, domain.EntityGames, "")

	extractEvents := d.addNode("extract_game_events", domain.TaskExtract,
		domain.TaskParams{Entity: domain.EntityGameEvents, Date: &date, Season: season})
	loadEvents := d.addNode("load_game_events", domain.TaskLoad,
		domain.TaskParams{Entity: domain.EntityGameEvents, Date: &date, Season: season})

	// Список live-игр известен только после загрузки расписания.
	d.addEdge(gamesLoad, extractEvents)
	d.addEdge(extractEvents, loadEvents)
}

func (d *DAG) buildQuality(date time.Time, season int) {
	params := func(e domain.EntityType) domain.TaskParams {
		return domain.TaskParams{Entity: e, Date: &date, Season: season}
	}

	validates := []*Node{
		d.addNode("validate_games", domain.TaskValidate, params(domain.EntityGames)),
		d.addNode("validate_standings", domain.TaskValidate, params(domain.EntityStandings)),
		d.addNode("validate_player_stats", domain.TaskValidate, params(domain.EntityPlayerStats)),
	}
	freshness := d.addNode("freshness", domain.TaskFreshness, domain.TaskParams{Date: &date, Season: season})

	alert := d.addNode("alert", domain.TaskAlert, domain.TaskParams{Date: &date, Season: season})
	for _, v := range validates {
		d.addEdge(v, alert)
	}
	d.addEdge(freshness, alert)
}

// buildBackfill строит цепочки по сущностям из params.Entities.
// Backfill перезагружает только датированные сущности; пустой список
// означает games и standings.
func (d *DAG) buildBackfill(dates []time.Time, season int, entities []domain.EntityType) error {
	if len(entities) == 0 {
		entities = []domain.EntityType{domain.EntityGames, domain.EntityStandings}
	}
	want := make(map[domain.EntityType]bool, len(entities))
	for _, e := range entities {
		switch e {
		case domain.EntityGames, domain.EntityStandings:
			want[e] = true
		default:
			return fmt.Errorf("%w: backfill %s", ErrUnsupportedEntity, e)
		}
	}

	alert := d.addNode("alert", domain.TaskAlert, domain.TaskParams{Season: season})

	for _, date := range dates {
		suffix := "_" + date.Format(domain.DateLayout)

		var games chainNodes
		if want[domain.EntityGames] {
			games = d.chain(date, season, domain.EntityGames, suffix)
			d.addEdge(games.validate, alert)
		}
		if want[domain.EntityStandings] {
			standings := d.chain(date, season, domain.EntityStandings, suffix)
			d.addEdge(standings.validate, alert)
			// Сверка standings требует загруженных игр дня.
			if want[domain.EntityGames] {
				d.addEdge(games.load, standings.validate)
			}
		}
	}
	return nil
}

// chainNodes — узлы одной цепочки extract → load → validate.
type chainNodes struct {
	extract  *Node
	load     *Node
	validate *Node
}

// chain строит цепочку extract → load → validate для сущности.
func (d *DAG) chain(date time.Time, season int, entity domain.EntityType, suffix string) chainNodes {
	load := d.extractLoad(date, season, entity, suffix)
	validate := d.addNode("validate_"+string(entity)+suffix, domain.TaskValidate,
		domain.TaskParams{Entity: entity, Date: &date, Season: season})
	d.addEdge(load, validate)
	return chainNodes{extract: load.DependsOn[0], load: load, validate: validate}
}

// extractLoad строит пару extract → load и возвращает load-узел.
func (d *DAG) extractLoad(date time.Time, season int, entity domain.EntityType, suffix string) *Node {
	params := domain.TaskParams{Entity: entity, Date: &date, Season: season}
	extract := d.addNode("extract_"+string(entity)+suffix, domain.TaskExtract, params)
	load := d.addNode("load_"+string(entity)+suffix, domain.TaskLoad, params)
	d.addEdge(extract, load)
	return load
}

func (d *DAG) addNode(id string, kind domain.TaskKind, params domain.TaskParams) *Node {
	node := &Node{ID: id, Kind: kind, Params: params}
	d.Nodes[id] = node
	return node
}

// addEdge добавляет ребро между узлами, избегая дубликатов.
func (d *DAG) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep.ID == from.ID {
			return
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Возвращает ошибку, если обнаружен цикл.
func (d *DAG) topologicalSort() ([]*Node, error) {
	inDegree := make(map[string]int, len(d.Nodes))
	var queue []*Node
	for id, node := range d.Nodes {
		inDegree[id] = node.InDegree
		if node.InDegree == 0 {
			queue = append(queue, node)
		}
	}

	order := make([]*Node, 0, len(d.Nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, dependent := range node.Dependents {
			inDegree[dependent.ID]--
			if inDegree[dependent.ID] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(d.Nodes) {
		return nil, ErrCyclicDependency
	}
	return order, nil
}

// GetReadyNodes возвращает узлы, готовые к выполнению: все зависимости
// в completed, сам узел не в completed и не в running.
func (d *DAG) GetReadyNodes(completed, running map[string]bool) []*Node {
	var ready []*Node
	for _, node := range d.Order {
		if completed[node.ID] || running[node.ID] {
			continue
		}
		allDepsCompleted := true
		for _, dep := range node.DependsOn {
			if !completed[dep.ID] {
				allDepsCompleted = false
				break
			}
		}
		if allDepsCompleted {
			ready = append(ready, node)
		}
	}
	return ready
}

// TransitiveDependents возвращает всех прямых и косвенных зависимых
// узла — их нужно пометить SKIPPED при его падении.
func (d *DAG) TransitiveDependents(id string) []*Node {
	var out []*Node
	seen := map[string]bool{id: true}
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, dep := range n.Dependents {
			if seen[dep.ID] {
				continue
			}
			seen[dep.ID] = true
			out = append(out, dep)
			walk(dep)
		}
	}
	if node, ok := d.Nodes[id]; ok {
		walk(node)
	}
	return out
}

// Size возвращает количество узлов в DAG.
func (d *DAG) Size() int {
	return len(d.Nodes)
}
