package engine

import (
	"encoding/json"
	"fmt"

	"github.com/shaiso/Flowkit/internal/domain"
)

// fileStep — шаг в JSON-файле workflow.
//
// Формат совместим с payload POST /workflows: имя берётся из name или id,
// вид шага из type или из флагов reduce/parallel.
type fileStep struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Type        domain.StepKind   `json:"type"`
	Reduce      bool              `json:"reduce"`
	Parallel    bool              `json:"parallel"`
	DependsOn   []string          `json:"depends_on"`
	Config      domain.StepConfig `json:"config"`
	Description string            `json:"description"`
}

type fileWorkflow struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Config      domain.WorkflowConfig `json:"config"`
	Steps       []fileStep            `json:"steps"`
}

// Parse разбирает JSON-описание workflow и валидирует его.
//
// Шаги могут ссылаться на шаги, объявленные ниже; циклы отклоняются.
func Parse(data []byte) (*Definition, error) {
	var wf fileWorkflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}

	def := &Definition{
		Name:        wf.Name,
		Description: wf.Description,
		Config:      wf.Config,
		Steps:       make([]StepDef, 0, len(wf.Steps)),
	}

	for _, fs := range wf.Steps {
		name := fs.Name
		if name == "" {
			name = fs.ID
		}

		decl := stepDecl{
			def: StepDef{
				Name:        name,
				DependsOn:   fs.DependsOn,
				Config:      fs.Config,
				Description: fs.Description,
			},
			reduce:   fs.Reduce,
			parallel: fs.Parallel,
		}
		decl.def.Kind = fs.Type
		if decl.def.Kind == "" {
			decl.def.Kind = decl.kind()
		}
		if decl.def.Config.Image == "" {
			decl.def.Config.Image = defaultImage
		}

		def.Steps = append(def.Steps, decl.def)
	}

	if err := Validate(def); err != nil {
		return nil, err
	}
	return def, nil
}
