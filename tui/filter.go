package tui

import "strings"

type filterKind int

const (
	filterText filterKind = iota // plain text substring match against Summary
	filterDir                    // dir:send, dir:recv
	filterType                   // type:Invoke, type:Return, ...
)

type filterCondition struct {
	kind filterKind
	text string
}

// parseFilter splits a whitespace-separated filter query into
// conditions. "dir:" and "type:" tokens match structured fields;
// everything else is a case-insensitive substring match against the
// event summary, the way tui/filter.go treats a bare token as SQL text.
func parseFilter(input string) []filterCondition {
	tokens := strings.Fields(input)
	conds := make([]filterCondition, 0, len(tokens))

	for _, tok := range tokens {
		lower := strings.ToLower(tok)
		switch {
		case strings.HasPrefix(lower, "dir:"):
			conds = append(conds, filterCondition{kind: filterDir, text: strings.TrimPrefix(lower, "dir:")})
		case strings.HasPrefix(lower, "type:"):
			conds = append(conds, filterCondition{kind: filterType, text: strings.TrimPrefix(lower, "type:")})
		default:
			conds = append(conds, filterCondition{kind: filterText, text: lower})
		}
	}
	return conds
}

func (c filterCondition) matches(ev displayEvent) bool {
	switch c.kind {
	case filterText:
		return strings.Contains(strings.ToLower(ev.Summary), c.text)
	case filterDir:
		return strings.EqualFold(ev.Direction, c.text)
	case filterType:
		return strings.EqualFold(ev.TypeName, c.text)
	}
	return false
}

func matchAllConditions(ev displayEvent, conds []filterCondition) bool {
	for _, c := range conds {
		if !c.matches(ev) {
			return false
		}
	}
	return true
}

func describeFilter(input string) string {
	conds := parseFilter(input)
	if len(conds) == 0 {
		return input
	}
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		switch c.kind {
		case filterText:
			parts = append(parts, "text:"+c.text)
		case filterDir:
			parts = append(parts, "dir:"+c.text)
		case filterType:
			parts = append(parts, "type:"+c.text)
		}
	}
	return strings.Join(parts, " ")
}
