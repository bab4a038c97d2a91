package engine

import (
	"github.com/shaiso/Flowkit/internal/domain"
)

// Progress — решение о следующих шагах по наблюдаемым статусам.
type Progress struct {
	// Ready — шаги, которые можно запускать: зависимости удовлетворены.
	Ready []string

	// Skipped — шаги, которые должны стать SKIPPED из-за упавших зависимостей.
	Skipped []string

	// Waiting — шаги, ожидающие завершения зависимостей.
	Waiting []string

	// Running — шаги в процессе выполнения.
	Running []string
}

// Done возвращает true, если запускать и ждать больше нечего.
func (p Progress) Done() bool {
	return len(p.Ready) == 0 && len(p.Waiting) == 0 && len(p.Running) == 0
}

// Evaluate применяет правило зависимостей к статусам шагов.
//
// Шаг готов к RUNNING только когда все depends_on в COMPLETED.
// При fail_fast шаг с неуспешной зависимостью (FAILED, CANCELLED, SKIPPED)
// становится SKIPPED, и это распространяется дальше по графу.
// При continue зависимые шаги запускаются, как только все зависимости
// в финальном статусе; отсутствующие входы трактуются как пустое состояние.
//
// Отсутствующий в statuses шаг считается PENDING.
func (d *DAG) Evaluate(statuses map[string]domain.StepStatus, strategy domain.FailureStrategy) Progress {
	if strategy == "" {
		strategy = domain.FailureStrategyFailFast
	}

	effective := make(map[string]domain.StepStatus, len(d.Nodes))
	for id := range d.Nodes {
		status := statuses[id]
		if status == "" {
			status = domain.StepStatusPending
		}
		effective[id] = status
	}

	var p Progress
	for _, node := range d.Order {
		status := effective[node.ID]
		if status == domain.StepStatusRunning {
			p.Running = append(p.Running, node.ID)
			continue
		}
		if status.IsTerminal() {
			continue
		}

		allCompleted, allTerminal, anyUnsuccessful := true, true, false
		for _, dep := range node.DependsOn {
			depStatus := effective[dep.ID]
			if depStatus != domain.StepStatusCompleted {
				allCompleted = false
			}
			if !depStatus.IsTerminal() {
				allTerminal = false
			}
			if depStatus.IsUnsuccessful() {
				anyUnsuccessful = true
			}
		}

		switch {
		case allCompleted:
			p.Ready = append(p.Ready, node.ID)
		case anyUnsuccessful && strategy == domain.FailureStrategyFailFast:
			effective[node.ID] = domain.StepStatusSkipped
			p.Skipped = append(p.Skipped, node.ID)
		case allTerminal && strategy == domain.FailureStrategyContinue:
			p.Ready = append(p.Ready, node.ID)
		default:
			p.Waiting = append(p.Waiting, node.ID)
		}
	}

	return p
}
