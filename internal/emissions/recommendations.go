package emissions

import (
	"fmt"
	"sort"
)

// Recommendation is a suggested action for one emission source
type Recommendation struct {
	SourceType     string  `json:"source_type"`
	Emission       float64 `json:"emission"`
	ReductionShare float64 `json:"reduction_share"`
	TonsSaved      float64 `json:"tons_saved"`
	Message        string  `json:"message"`
	Link           string  `json:"link,omitempty"`
}

type recommendationRule struct {
	share    float64
	template string
	link     string
}

var recommendationRules = map[string]recommendationRule{
	SourceElectricity: {
		share:    0.20,
		template: "Consider switching a portion of your electricity use to renewables. Reducing electricity emissions by 20%% could save %.1f tons CO2e per year.",
		link:     "https://www.epa.gov/greenpower/green-power-partnership-basics",
	},
	SourceTransport: {
		share:    0.10,
		template: "Transitioning company vehicles to electric or hybrid could reduce transport emissions. Cutting transport emissions by 10%% saves %.1f tons CO2e.",
		link:     "https://www.epa.gov/greenvehicles",
	},
	SourceSupplyChain: {
		share:    0.05,
		template: "Work with suppliers who prioritize sustainability. A 5%% reduction in supply chain emissions saves %.1f tons CO2e.",
		link:     "https://www.cdp.net/en/supply-chain",
	},
}

var defaultRecommendationRule = recommendationRule{
	share:    0.05,
	template: "Review and optimize this source. Even a small reduction (5%%) saves %.1f tons CO2e.",
}

// Recommend produces one recommendation per record, largest emitters first
func Recommend(sources []EmissionSource) []Recommendation {
	sorted := make([]EmissionSource, len(sources))
	copy(sorted, sources)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Emission > sorted[j].Emission
	})

	recs := make([]Recommendation, 0, len(sorted))
	for _, s := range sorted {
		if s.Emission <= 0 {
			recs = append(recs, Recommendation{
				SourceType: s.Type,
				Emission:   s.Emission,
				Message:    fmt.Sprintf("No emissions recorded for %s.", s.Type),
			})
			continue
		}

		rule, ok := recommendationRules[s.Type]
		if !ok {
			rule = defaultRecommendationRule
		}
		saved := s.Emission * rule.share
		recs = append(recs, Recommendation{
			SourceType:     s.Type,
			Emission:       s.Emission,
			ReductionShare: rule.share,
			TonsSaved:      saved,
			Message:        fmt.Sprintf(rule.template, saved),
			Link:           rule.link,
		})
	}
	return recs
}
