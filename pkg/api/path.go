package api

// SetAtPath stores value in data under the nested keys of path, creating
// intermediate maps as needed. A non-map value found on the way is replaced.
// An empty path is a no-op.
func SetAtPath(data map[string]any, path []string, value any) {
	if data == nil || len(path) == 0 {
		return
	}
	node := data
	for _, key := range path[:len(path)-1] {
		next, ok := node[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			node[key] = next
		}
		node = next
	}
	node[path[len(path)-1]] = value
}

// GetAtPath returns the value under the nested keys of path, or nil when any
// level is missing. An empty path returns data itself.
func GetAtPath(data map[string]any, path []string) any {
	if len(path) == 0 {
		return data
	}
	var cur any = data
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[key]
		if !ok {
			return nil
		}
	}
	return cur
}
