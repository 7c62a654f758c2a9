package emissions

// ReductionResult is the outcome of applying a ReductionPlan to a source list
type ReductionResult struct {
	NewTotal         float64            `json:"new_total"`
	OriginalTotal    float64            `json:"original_total"`
	PerRecordReduced []float64          `json:"per_record_reduced"`
	PerSourceReduced map[string]float64 `json:"per_source_reduced"`
}

// TonsReduced returns the total tons removed by the plan
func (r ReductionResult) TonsReduced() float64 {
	return r.OriginalTotal - r.NewTotal
}

// ApplyReduction cuts each record by plan[type] percent. Types absent from the
// plan are left unchanged. PerSourceReduced sums the removed tons by type.
func ApplyReduction(sources []EmissionSource, plan ReductionPlan) ReductionResult {
	result := ReductionResult{
		PerRecordReduced: make([]float64, len(sources)),
		PerSourceReduced: make(map[string]float64),
	}

	for i, s := range sources {
		reduced := s.Emission * (1 - plan[s.Type]/100)
		result.NewTotal += reduced
		result.OriginalTotal += s.Emission
		result.PerRecordReduced[i] = s.Emission - reduced
		result.PerSourceReduced[s.Type] += s.Emission - reduced
	}

	return result
}

// ReductionCost prices the tons removed by a reduction using costs per type
func ReductionCost(result ReductionResult, costs CostModel) float64 {
	total := 0.0
	for sourceType, tons := range result.PerSourceReduced {
		total += tons * costs.CostFor(sourceType)
	}
	return total
}
