package engine

import (
	"github.com/shaiso/Flowkit/internal/domain"
)

// defaultImage — образ шага, если он не указан явно.
// Оркестратор подставляет свой образ по умолчанию.
const defaultImage = "default"

// StepDef — объявление шага workflow.
type StepDef struct {
	// Name — уникальное имя шага, оно же ID на стороне оркестратора.
	Name string `json:"name"`

	// Kind — вид шага (sequential, parallel, reduce).
	Kind domain.StepKind `json:"type"`

	// DependsOn — имена шагов, от которых зависит этот шаг.
	DependsOn []string `json:"depends_on,omitempty"`

	// Config — конфигурация шага.
	Config domain.StepConfig `json:"config"`

	// Description — описание шага (попадает в metadata).
	Description string `json:"description,omitempty"`
}

// Definition — провалидированное объявление workflow.
//
// Шаги хранятся в порядке объявления. Этот порядок сохраняется
// в payload и в топологической сортировке.
type Definition struct {
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Config      domain.WorkflowConfig `json:"config"`
	Steps       []StepDef             `json:"steps"`
}

// Step возвращает объявление шага по имени или nil.
func (d *Definition) Step(name string) *StepDef {
	for i := range d.Steps {
		if d.Steps[i].Name == name {
			return &d.Steps[i]
		}
	}
	return nil
}

// StepNames возвращает имена шагов в порядке объявления.
func (d *Definition) StepNames() []string {
	names := make([]string, len(d.Steps))
	for i, s := range d.Steps {
		names[i] = s.Name
	}
	return names
}
