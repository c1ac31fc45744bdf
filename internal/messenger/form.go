package messenger

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
)

// encodeForm flattens nested maps and slices into bracketed form keys
// (history[messages][0][user]=...), the encoding the Messenger API expects.
func encodeForm(values map[string]any) string {
	form := url.Values{}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		addFormValue(form, k, values[k])
	}
	return form.Encode()
}

func addFormValue(form url.Values, key string, v any) {
	switch val := v.(type) {
	case nil:
	case map[string]any:
		for k, inner := range val {
			addFormValue(form, key+"["+k+"]", inner)
		}
	case map[string]string:
		for k, inner := range val {
			form.Add(key+"["+k+"]", inner)
		}
	case []transcriptLine:
		for i, line := range val {
			prefix := key + "[" + strconv.Itoa(i) + "]"
			form.Add(prefix+"[message]", line.Message)
			form.Add(prefix+"[user]", line.User)
		}
	case []any:
		for i, inner := range val {
			addFormValue(form, key+"["+strconv.Itoa(i)+"]", inner)
		}
	case bool:
		if val {
			form.Add(key, "1")
		} else {
			form.Add(key, "0")
		}
	case string:
		form.Add(key, val)
	default:
		form.Add(key, fmt.Sprint(val))
	}
}
