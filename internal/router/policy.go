package router

import (
	"slices"

	"github.com/normanking/conductor/internal/catalog"
)

// SelectionPolicy describes how to pick a model. It holds no state and the
// same policy over the same snapshot always yields the same model.
type SelectionPolicy struct {
	// TaskTags maps a task type to the capability tags that qualify a model.
	// Nil uses DefaultTaskTags.
	TaskTags map[TaskType][]string

	// MaxCost is the ceiling in USD per 1K tokens. Zero or negative disables it.
	MaxCost float64

	// PreferLocal picks the largest local model when one qualifies.
	PreferLocal bool

	// ExcludeModels lists catalog ids that must not be selected.
	ExcludeModels []string

	// ExcludeProviders lists providers to avoid. The exclusion is dropped
	// when it would leave no candidate.
	ExcludeProviders []string
}

// DefaultTaskTags returns the task type to capability tags table.
func DefaultTaskTags() map[TaskType][]string {
	return map[TaskType][]string{
		TaskCode:     {catalog.TagCodeGeneration, catalog.TagCodeAnalysis, catalog.TagDebugging},
		TaskChat:     {catalog.TagConversational, catalog.TagGeneral},
		TaskAnalysis: {catalog.TagAnalysis, catalog.TagReasoning},
		TaskResearch: {catalog.TagResearch, catalog.TagAnalysis, catalog.TagLargeContext},
		TaskGeneral:  {catalog.TagGeneral, catalog.TagConversational},
	}
}

// Select picks the best model for taskType from models:
//
//  1. drop excluded models and, when others remain, excluded providers;
//  2. keep models carrying a tag for the task (all models when none do);
//  3. keep models within MaxCost (all candidates when none are);
//  4. with PreferLocal, take the local model with the largest size,
//     otherwise the cheapest remote;
//  5. without PreferLocal, take the cheapest model.
//
// Ties break on id. Select returns nil when no model is available.
func Select(models []catalog.ModelDescriptor, taskType TaskType, policy SelectionPolicy) *catalog.ModelDescriptor {
	pool := filter(models, func(m catalog.ModelDescriptor) bool {
		return !slices.Contains(policy.ExcludeModels, m.ID)
	})
	if len(policy.ExcludeProviders) > 0 {
		if kept := filter(pool, func(m catalog.ModelDescriptor) bool {
			return !slices.Contains(policy.ExcludeProviders, m.Provider)
		}); len(kept) > 0 {
			pool = kept
		}
	}
	if len(pool) == 0 {
		return nil
	}

	table := policy.TaskTags
	if table == nil {
		table = DefaultTaskTags()
	}
	tags, ok := table[taskType]
	if !ok {
		tags = table[TaskGeneral]
	}

	candidates := filter(pool, func(m catalog.ModelDescriptor) bool {
		return m.HasAnyTag(tags)
	})
	if len(candidates) == 0 {
		candidates = pool
	}

	if policy.MaxCost > 0 {
		if affordable := filter(candidates, func(m catalog.ModelDescriptor) bool {
			return m.CostPer1KTokens <= policy.MaxCost
		}); len(affordable) > 0 {
			candidates = affordable
		}
	}

	var best *catalog.ModelDescriptor
	if policy.PreferLocal {
		if locals := filter(candidates, catalog.ModelDescriptor.IsLocal); len(locals) > 0 {
			best = pick(locals, largerModel)
		} else {
			best = pick(candidates, cheaperModel)
		}
	} else {
		best = pick(candidates, cheaperModel)
	}

	out := *best
	return &out
}

func filter(models []catalog.ModelDescriptor, keep func(catalog.ModelDescriptor) bool) []catalog.ModelDescriptor {
	var out []catalog.ModelDescriptor
	for _, m := range models {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

// pick returns the model that ranks first under better.
func pick(models []catalog.ModelDescriptor, better func(a, b *catalog.ModelDescriptor) bool) *catalog.ModelDescriptor {
	best := &models[0]
	for i := 1; i < len(models); i++ {
		if better(&models[i], best) {
			best = &models[i]
		}
	}
	return best
}

func largerModel(a, b *catalog.ModelDescriptor) bool {
	if a.SizeMetric != b.SizeMetric {
		return a.SizeMetric > b.SizeMetric
	}
	return a.ID < b.ID
}

func cheaperModel(a, b *catalog.ModelDescriptor) bool {
	if a.CostPer1KTokens != b.CostPer1KTokens {
		return a.CostPer1KTokens < b.CostPer1KTokens
	}
	return a.ID < b.ID
}
