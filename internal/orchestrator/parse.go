package orchestrator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/normanking/conductor/internal/tools"
)

// Tool-call block formats accepted in model replies:
//
//	```tool
//	{"tool": "file_write", "parameters": {"path": "a.md", "content": "..."}}
//	```
//
//	<tool_call>{"tool": "web_search", "parameters": {"query": "..."}}</tool_call>
//
//	<tool>web_search</tool><params>{"query": "..."}</params>
var (
	fencedBlock    = regexp.MustCompile("(?s)```tool[ \\t]*\\r?\\n(.*?)```")
	taggedBlock    = regexp.MustCompile(`(?s)<tool_call>(.*?)</tool_call>`)
	canonicalBlock = regexp.MustCompile(`(?s)<tool>\s*([\w.-]+)\s*</tool>\s*<params>(.*?)</params>`)
)

type rawBlock struct {
	pos  int
	end  int
	name string // set for the canonical form
	body string
}

// ParseToolCalls extracts tool calls from reply in document order.
// Malformed blocks are skipped and reported as errors.
func ParseToolCalls(reply string) ([]ToolCall, []error) {
	var blocks []rawBlock
	for _, m := range fencedBlock.FindAllStringSubmatchIndex(reply, -1) {
		blocks = append(blocks, rawBlock{pos: m[0], end: m[1], body: reply[m[2]:m[3]]})
	}
	for _, m := range taggedBlock.FindAllStringSubmatchIndex(reply, -1) {
		blocks = append(blocks, rawBlock{pos: m[0], end: m[1], body: reply[m[2]:m[3]]})
	}
	for _, m := range canonicalBlock.FindAllStringSubmatchIndex(reply, -1) {
		blocks = append(blocks, rawBlock{pos: m[0], end: m[1], name: reply[m[2]:m[3]], body: reply[m[4]:m[5]]})
	}
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].pos != blocks[j].pos {
			return blocks[i].pos < blocks[j].pos
		}
		return blocks[i].end > blocks[j].end
	})

	var (
		calls []ToolCall
		errs  []error
		outer = -1
	)
	for _, b := range blocks {
		// A block nested in an earlier one (a <tool_call> inside a ```tool
		// fence) is the same call.
		if b.end <= outer {
			continue
		}
		outer = b.end

		call, err := parseBlock(b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		calls = append(calls, call)
	}
	return calls, errs
}

func parseBlock(b rawBlock) (ToolCall, error) {
	body := strings.TrimSpace(b.body)
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		if b.name != "" && body == "" {
			return ToolCall{Tool: b.name, Parameters: tools.Params{}}, nil
		}
		return ToolCall{}, fmt.Errorf("tool block at %d: no JSON object", b.pos)
	}
	body = body[start : end+1]
	if !gjson.Valid(body) {
		return ToolCall{}, fmt.Errorf("tool block at %d: invalid JSON", b.pos)
	}
	doc := gjson.Parse(body)

	if b.name != "" {
		return ToolCall{Tool: b.name, Parameters: toParams(doc)}, nil
	}

	name := strings.TrimSpace(firstOf(doc, "tool", "name", "tool_name").String())
	if name == "" {
		return ToolCall{}, fmt.Errorf("tool block at %d: missing tool name", b.pos)
	}

	params := firstOf(doc, "parameters", "params", "arguments", "args")
	// Some models send arguments as a JSON-encoded string.
	if params.Type == gjson.String && gjson.Valid(params.String()) {
		params = gjson.Parse(params.String())
	}
	if params.Exists() && params.Type != gjson.Null && !params.IsObject() {
		return ToolCall{}, fmt.Errorf("tool block at %d: parameters must be an object", b.pos)
	}
	return ToolCall{Tool: name, Parameters: toParams(params)}, nil
}

func firstOf(doc gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := doc.Get(p); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func toParams(obj gjson.Result) tools.Params {
	out := tools.Params{}
	if !obj.IsObject() {
		return out
	}
	if m, ok := obj.Value().(map[string]any); ok {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
