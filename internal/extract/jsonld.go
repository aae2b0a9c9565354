package extract

import (
	"encoding/json"

	"verity-ai-gateway/internal/models"
)

// walkJSONLD visits a decoded JSON-LD document and accumulates the facts the
// pipeline cares about. It is a recursive-descent visitor over the closed set
// of shapes real pages emit: a bare object, an array of objects, an @graph
// wrapper, and nested mainEntity blocks. Missing fields are tolerated
// everywhere.
func parseJSONLD(raw string, facts *models.StructuredFacts) {
	var decoded interface{}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return
	}
	walkJSONLD(decoded, facts, 0)
}

const maxJSONLDDepth = 6

func walkJSONLD(node interface{}, facts *models.StructuredFacts, depth int) {
	if depth > maxJSONLDDepth {
		return
	}

	switch value := node.(type) {
	case []interface{}:
		for _, item := range value {
			walkJSONLD(item, facts, depth+1)
		}
	case map[string]interface{}:
		collectFacts(value, facts)
		if graph, ok := value["@graph"]; ok {
			walkJSONLD(graph, facts, depth+1)
		}
		if entity, ok := value["mainEntity"]; ok {
			walkJSONLD(entity, facts, depth+1)
		}
		if entity, ok := value["mainEntityOfPage"]; ok {
			walkJSONLD(entity, facts, depth+1)
		}
	}
}

func collectFacts(obj map[string]interface{}, facts *models.StructuredFacts) {
	for _, t := range stringsOf(obj["@type"]) {
		if !contains(facts.Types, t) {
			facts.Types = append(facts.Types, t)
		}
	}

	if facts.Author == "" {
		facts.Author = authorName(obj["author"])
	}
	if facts.Published == "" {
		facts.Published = stringOf(obj["datePublished"])
	}
	if facts.Modified == "" {
		facts.Modified = stringOf(obj["dateModified"])
	}
}

// authorName handles the three spellings in the wild: a plain string, a
// Person object, and an array of either.
func authorName(node interface{}) string {
	switch value := node.(type) {
	case string:
		return value
	case map[string]interface{}:
		return stringOf(value["name"])
	case []interface{}:
		for _, item := range value {
			if name := authorName(item); name != "" {
				return name
			}
		}
	}
	return ""
}

func stringOf(node interface{}) string {
	s, _ := node.(string)
	return s
}

func stringsOf(node interface{}) []string {
	switch value := node.(type) {
	case string:
		return []string{value}
	case []interface{}:
		var out []string
		for _, item := range value {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func contains(list []string, target string) bool {
	for _, item := range list {
		if item == target {
			return true
		}
	}
	return false
}
