package research

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/model"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		bc   model.BusinessContext
		want []string
	}{
		{"nil context", nil, model.CriticalFields},
		{"complete", fullContext(), []string{}},
		{
			name: "blank values count as missing",
			bc: model.BusinessContext{
				model.FieldCompanyName: "Pollería Don Tito",
				model.FieldLocation:    "   ",
				model.FieldProducts:    "pollo a la brasa",
			},
			want: []string{model.FieldLocation, model.FieldDescription},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.bc))
		})
	}
}

func TestCompleteness(t *testing.T) {
	bc := model.BusinessContext{
		model.FieldCompanyName: "Pollería Don Tito",
		model.FieldLocation:    "Lima",
		model.FieldSector:      "restaurantes",
	}
	r := Completeness(bc)
	assert.Equal(t, []string{model.FieldProducts, model.FieldDescription}, r.MissingCritical)
	assert.Equal(t, []string{model.FieldChallenges, model.FieldYears, model.FieldEmployees}, r.MissingOptional)
	assert.InDelta(t, 0.5, r.Percentage, 1e-9)
	assert.False(t, r.CanResearch)
	assert.Contains(t, r.StatusMessage(), "productos_servicios_principales, descripcion_negocio")

	full := Completeness(fullContext())
	assert.True(t, full.CanResearch)
	assert.Equal(t, 1.0, full.Percentage)
}
