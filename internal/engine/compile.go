package engine

import (
	"github.com/shaiso/Flowkit/internal/domain"
)

// Compile превращает Definition в payload для POST /workflows.
//
// ID шага совпадает с его именем, шаги идут в порядке объявления.
// Перед компиляцией Definition проходит Validate.
func Compile(def *Definition) (*domain.CreateWorkflowRequest, error) {
	if err := Validate(def); err != nil {
		return nil, err
	}

	req := &domain.CreateWorkflowRequest{
		Name:        def.Name,
		Description: def.Description,
		Config:      def.Config,
		Steps:       make([]domain.Step, 0, len(def.Steps)),
	}

	for _, s := range def.Steps {
		step := domain.Step{
			ID:        s.Name,
			Name:      s.Name,
			Type:      s.Kind,
			Status:    domain.StepStatusPending,
			Config:    s.Config,
			DependsOn: append([]string(nil), s.DependsOn...),
		}
		if s.Description != "" {
			step.Metadata = map[string]any{"description": s.Description}
		}
		req.Steps = append(req.Steps, step)
	}

	return req, nil
}
