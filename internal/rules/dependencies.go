// internal/rules/dependencies.go
package rules

import "sort"

/*
 * Dependency extraction.
 *
 * ExtractDependencies walks an expression tree and collects every field id
 * it reads through a "field" key, recursing into and/or/not. field_count
 * reads by prefix rather than by id and contributes nothing; custom
 * expressions contribute a string "field" param when present.
 *
 * The engine itself always re-evaluates every rule. These helpers exist so
 * a form renderer can narrow re-evaluation to the fields affected by a change.
 */

// ExtractDependencies returns the sorted, deduplicated field ids expr reads.
func ExtractDependencies(expr Expression) []string {
	seen := make(map[string]struct{})
	collectDependencies(expr, seen)

	deps := make([]string, 0, len(seen))
	for field := range seen {
		deps = append(deps, field)
	}
	sort.Strings(deps)
	return deps
}

func collectDependencies(expr Expression, seen map[string]struct{}) {
	add := func(field string) {
		if field != "" {
			seen[field] = struct{}{}
		}
	}

	switch x := expr.(type) {
	case Equals:
		add(x.Field)
	case NotEquals:
		add(x.Field)
	case Comparison:
		add(x.Field)
	case Contains:
		add(x.Field)
	case Regex:
		add(x.Field)
	case IsEmpty:
		add(x.Field)
	case IsNotEmpty:
		add(x.Field)
	case InList:
		add(x.Field)
	case NotInList:
		add(x.Field)
	case And:
		for _, c := range x.Conditions {
			collectDependencies(c, seen)
		}
	case Or:
		for _, c := range x.Conditions {
			collectDependencies(c, seen)
		}
	case Not:
		collectDependencies(x.Condition, seen)
	case Custom:
		if field, ok := x.Params["field"].(string); ok {
			add(field)
		}
	}
}

// Dependents maps each field id to the sorted ids of fields whose state may
// change when it changes: rule targets whose condition reads it, and fields
// whose own visibility condition reads it.
func (s *CompiledSchema) Dependents() map[string][]string {
	index := make(map[string]map[string]struct{})
	link := func(source, target string) {
		if index[source] == nil {
			index[source] = make(map[string]struct{})
		}
		index[source][target] = struct{}{}
	}

	for _, rule := range s.Rules {
		if _, ok := s.fieldIndex[rule.Target]; !ok {
			continue
		}
		for _, dep := range ExtractDependencies(rule.Condition) {
			link(dep, rule.Target)
		}
	}
	for _, field := range s.Fields {
		if field.Visibility == nil {
			continue
		}
		for _, dep := range ExtractDependencies(field.Visibility) {
			link(dep, field.Definition.ID)
		}
	}

	out := make(map[string][]string, len(index))
	for source, targets := range index {
		list := make([]string, 0, len(targets))
		for t := range targets {
			list = append(list, t)
		}
		sort.Strings(list)
		out[source] = list
	}
	return out
}
