package action

import (
	"bytes"
	"encoding/json"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// fencedJSON matches a ```json fenced block holding an object
var fencedJSON = regexp.MustCompile("(?is)```json\\s*(\\{.*?\\})\\s*```")

// Extract pulls the intent payload out of model output. It tries a fenced
// json block first, then the widest {...} span, and otherwise returns the
// text as a PlainResponse. It never fails.
func Extract(text string) Payload {
	if strings.TrimSpace(text) == "" {
		return PlainResponse{}
	}

	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		if obj, ok := parseObject(m[1]); ok {
			return fromObject(obj, text)
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if obj, ok := parseObject(text[start : end+1]); ok {
			return fromObject(obj, text)
		}
	}

	return PlainResponse{Content: text}
}

func parseObject(raw string) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, false
	}
	// anything but whitespace after the object means the span was not one object
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return obj, obj != nil
}

// field returns the first non-empty value among keys, rendered as a string
func field(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch val := v.(type) {
		case string:
			s = val
		case json.Number:
			s = val.String()
		case bool:
			s = strconv.FormatBool(val)
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
