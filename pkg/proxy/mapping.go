package proxy

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"ccg-hq/gateway/pkg/store"
)

// modelPathPattern extracts the model token from Gemini-style paths such as
// /v1beta/models/gemini-pro:generateContent. The token excludes '/' and ':'.
var modelPathPattern = regexp.MustCompile(`/models/([^/:]+)`)

// MappingResult is the outcome of applying a provider's model maps to a
// request. SourceModel is recorded whenever a model identifier could be
// extracted, even if no rule matched; TargetModel is set only when one did.
type MappingResult struct {
	Body        []byte
	Path        string
	SourceModel string
	TargetModel string
}

// ModelID returns the identifier surfaced to telemetry: the target when a
// mapping fired, otherwise the source. Empty when neither was extractable.
func (r MappingResult) ModelID() string {
	if r.TargetModel != "" {
		return r.TargetModel
	}
	return r.SourceModel
}

// applyBodyModelMapping rewrites the "model" key of a JSON request body.
// Rules are tried in the order given and the first wildcard match wins; on a
// match the body is re-serialized with the target model. A body without a
// string "model" key, or one that is not JSON, passes through untouched.
func applyBodyModelMapping(maps []store.ModelMap, body []byte, path string) MappingResult {
	res := MappingResult{Body: body, Path: path}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return res
	}
	model, ok := payload["model"].(string)
	if !ok {
		return res
	}
	res.SourceModel = model

	for _, m := range maps {
		if !wildcardMatch(m.SourceModel, model) {
			continue
		}
		res.TargetModel = m.TargetModel
		payload["model"] = m.TargetModel
		if b, err := json.Marshal(payload); err == nil {
			res.Body = b
		}
		break
	}
	return res
}

// applyURLModelMapping rewrites the /models/<token> segment of the URL path.
// The body never changes for URL-form clients. Rules are tried in order;
// first match wins.
func applyURLModelMapping(maps []store.ModelMap, path string) MappingResult {
	res := MappingResult{Path: path}

	sub := modelPathPattern.FindStringSubmatch(path)
	if sub == nil || sub[1] == "" {
		return res
	}
	source := sub[1]
	res.SourceModel = source

	for _, m := range maps {
		if !wildcardMatch(m.SourceModel, source) {
			continue
		}
		res.TargetModel = m.TargetModel
		res.Path = strings.ReplaceAll(path, "/models/"+source, "/models/"+m.TargetModel)
		break
	}
	return res
}
