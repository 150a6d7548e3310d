package research

import (
	"fmt"
	"strings"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/model"
)

// Validate 返回缺失或为空的关键字段，顺序固定；全部存在时返回空切片
func Validate(bc model.BusinessContext) []string {
	missing := []string{}
	for _, f := range model.CriticalFields {
		if bc.Get(f) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// CompletenessReport 画像完整度
type CompletenessReport struct {
	MissingCritical []string `json:"missing_critical"`
	MissingOptional []string `json:"missing_optional"`
	Percentage      float64  `json:"completeness_percentage"` // 关键字段已填比例，0~1
	CanResearch     bool     `json:"can_start_deep_research"`
}

// StatusMessage 给终端用户的完整度说明
func (c CompletenessReport) StatusMessage() string {
	if c.CanResearch {
		return "Información completa - Lista para investigación profunda"
	}
	return "Información incompleta - Falta: " + strings.Join(c.MissingCritical, ", ")
}

// Completeness 计算画像完整度
func Completeness(bc model.BusinessContext) CompletenessReport {
	r := CompletenessReport{MissingCritical: Validate(bc), MissingOptional: []string{}}
	for _, f := range model.OptionalFields {
		if bc.Get(f) == "" {
			r.MissingOptional = append(r.MissingOptional, f)
		}
	}
	total := len(model.CriticalFields)
	r.Percentage = float64(total-len(r.MissingCritical)) / float64(total)
	r.CanResearch = len(r.MissingCritical) == 0
	return r
}

func missingFieldsMessage(missing []string) string {
	return fmt.Sprintf("Para realizar investigación profunda, necesito completar la información de tu negocio. Falta: %s. ¿Podrías proporcionarla?",
		strings.Join(missing, ", "))
}
