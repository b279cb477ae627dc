package routes

import "net/http"

// Group organizes routes under a common path prefix. Children inherit the
// accumulated prefix of their parents.
type Group struct {
	Prefix   string
	Routes   []Route
	Children []Group
}

// Register adds all routes from the given groups to the mux.
func Register(mux *http.ServeMux, groups ...Group) {
	Walk(func(pattern string, route Route) {
		mux.HandleFunc(pattern, route.Handler)
	}, groups...)
}

// Walk calls fn for every route in groups with its full "METHOD /path" pattern,
// in declaration order.
func Walk(fn func(pattern string, route Route), groups ...Group) {
	for _, group := range groups {
		walkGroup(fn, "", group)
	}
}

// Patterns returns the full "METHOD /path" pattern of every route in groups.
func Patterns(groups ...Group) []string {
	var out []string
	Walk(func(pattern string, _ Route) {
		out = append(out, pattern)
	}, groups...)
	return out
}

func walkGroup(fn func(string, Route), parentPrefix string, group Group) {
	fullPrefix := parentPrefix + group.Prefix
	for _, route := range group.Routes {
		fn(route.Method+" "+fullPrefix+route.Pattern, route)
	}
	for _, child := range group.Children {
		walkGroup(fn, fullPrefix, child)
	}
}
