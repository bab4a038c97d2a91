package engine

import (
	"fmt"
	"sort"

	"github.com/shaiso/Flowkit/internal/domain"
)

// Node — узел в DAG.
type Node struct {
	// Step — объявление шага.
	Step *StepDef

	// ID — идентификатор узла (имя шага).
	ID string

	// Index — позиция шага в порядке объявления.
	Index int

	// InDegree — количество входящих рёбер (зависимостей).
	InDegree int

	// DependsOn — узлы, от которых зависит этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла.
	Dependents []*Node
}

// DAG — направленный ациклический граф шагов workflow.
type DAG struct {
	// Nodes — все узлы графа (имя шага → Node).
	Nodes map[string]*Node

	// RootNodes — узлы без зависимостей, в порядке объявления.
	RootNodes []*Node

	// Order — топологически отсортированный список узлов.
	// Среди готовых узлов первым идёт объявленный раньше.
	Order []*Node
}

// BuildDAG строит DAG из Definition.
func BuildDAG(def *Definition) (*DAG, error) {
	dag := &DAG{
		Nodes:     make(map[string]*Node, len(def.Steps)),
		RootNodes: make([]*Node, 0),
	}

	// Первый проход: создаём все узлы
	for i := range def.Steps {
		step := &def.Steps[i]
		if _, exists := dag.Nodes[step.Name]; exists {
			return nil, NewValidationError(step.Name, "name",
				fmt.Sprintf("duplicate step name: %s", step.Name), ErrDuplicateStepName)
		}
		dag.Nodes[step.Name] = &Node{
			Step:       step,
			ID:         step.Name,
			Index:      i,
			DependsOn:  make([]*Node, 0),
			Dependents: make([]*Node, 0),
		}
	}

	// Второй проход: связываем узлы по зависимостям
	for i := range def.Steps {
		if err := dag.linkDependencies(&def.Steps[i]); err != nil {
			return nil, err
		}
	}

	dag.findRootNodes()

	// Проверяем на циклы и строим топологический порядок
	order, err := dag.topologicalSort()
	if err != nil {
		return nil, err
	}
	dag.Order = order

	return dag, nil
}

// linkDependencies связывает узел с его зависимостями.
func (d *DAG) linkDependencies(step *StepDef) error {
	node := d.Nodes[step.Name]

	for _, depID := range step.DependsOn {
		depNode, exists := d.Nodes[depID]
		if !exists {
			return NewValidationError(step.Name, "depends_on",
				fmt.Sprintf("depends on unknown step: %s", depID), ErrMissingDependency)
		}
		d.addEdge(depNode, node)
	}

	return nil
}

// addEdge добавляет ребро между узлами.
// Дополнительно проверяет на дубликаты, чтобы избежать двойного учета InDegree.
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

// findRootNodes находит узлы без входящих рёбер.
func (d *DAG) findRootNodes() {
	d.RootNodes = make([]*Node, 0)
	for _, node := range d.byIndex() {
		if node.InDegree == 0 {
			d.RootNodes = append(d.RootNodes, node)
		}
	}
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Из готовых узлов всегда берётся объявленный раньше, поэтому порядок
// не зависит от обхода map. Возвращает ошибку, если обнаружен цикл.
func (d *DAG) topologicalSort() ([]*Node, error) {
	inDegree := make(map[string]int, len(d.Nodes))
	for id, node := range d.Nodes {
		inDegree[id] = node.InDegree
	}

	ready := make([]*Node, len(d.RootNodes))
	copy(ready, d.RootNodes)

	order := make([]*Node, 0, len(d.Nodes))

	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		order = append(order, node)

		for _, dependent := range node.Dependents {
			inDegree[dependent.ID]--
			if inDegree[dependent.ID] == 0 {
				ready = insertByIndex(ready, dependent)
			}
		}
	}

	if len(order) != len(d.Nodes) {
		return nil, NewValidationError(d.cycleMember(inDegree), "depends_on",
			"cyclic dependency detected", ErrCyclicDependency)
	}

	return order, nil
}

// cycleMember возвращает первый по объявлению узел, оставшийся в цикле.
func (d *DAG) cycleMember(inDegree map[string]int) string {
	for _, node := range d.byIndex() {
		if inDegree[node.ID] > 0 {
			return node.ID
		}
	}
	return ""
}

// insertByIndex вставляет узел, сохраняя сортировку по Index.
func insertByIndex(nodes []*Node, node *Node) []*Node {
	pos := sort.Search(len(nodes), func(i int) bool { return nodes[i].Index > node.Index })
	nodes = append(nodes, nil)
	copy(nodes[pos+1:], nodes[pos:])
	nodes[pos] = node
	return nodes
}

// byIndex возвращает узлы в порядке объявления.
func (d *DAG) byIndex() []*Node {
	nodes := make([]*Node, 0, len(d.Nodes))
	for _, node := range d.Nodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Index < nodes[j].Index })
	return nodes
}

// GetReadyNodes возвращает узлы, готовые к выполнению, в топологическом порядке.
//
// Узел готов, если:
// - Все его зависимости завершены (в completed)
// - Сам узел ещё не завершён и не в процессе (не в completed и не в running)
func (d *DAG) GetReadyNodes(completed, running map[string]bool) []*Node {
	ready := make([]*Node, 0)

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

// GetNode возвращает узел по ID.
func (d *DAG) GetNode(id string) *Node {
	return d.Nodes[id]
}

// Size возвращает количество узлов в DAG.
func (d *DAG) Size() int {
	return len(d.Nodes)
}

// OrderIDs возвращает имена шагов в топологическом порядке.
func (d *DAG) OrderIDs() []string {
	ids := make([]string, len(d.Order))
	for i, node := range d.Order {
		ids[i] = node.ID
	}
	return ids
}

// IsComplete проверяет, все ли узлы в финальном статусе.
func (d *DAG) IsComplete(statuses map[string]domain.StepStatus) bool {
	for id := range d.Nodes {
		if !statuses[id].IsTerminal() {
			return false
		}
	}
	return true
}
