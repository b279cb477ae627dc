package openapi

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/JaimeStill/rtoval/pkg/routes"
)

var pathParam = regexp.MustCompile(`\{([a-zA-Z_]+)(\.\.\.)?\}`)

// FromRoutes builds a spec describing every route in groups, mounted under
// basePath. Operations are tagged by their first path segment; collection
// GETs carry the pagination query parameters.
func FromRoutes(cfg *Config, version, basePath string, groups ...routes.Group) *Spec {
	spec := NewSpec(cfg.Title, version)
	spec.SetDescription(cfg.Description)
	spec.AddServer(basePath)

	routes.Walk(func(pattern string, _ routes.Route) {
		method, path, ok := strings.Cut(pattern, " ")
		if !ok {
			return
		}
		spec.AddOperation(method, path)
	}, groups...)

	return spec
}

// AddOperation records a generated operation for method on path.
func (s *Spec) AddOperation(method, path string) {
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		path = "/"
	}
	clean := pathParam.ReplaceAllString(path, "{$1}")

	item, ok := s.Paths[clean]
	if !ok {
		item = &PathItem{}
		s.Paths[clean] = item
	}

	op := &Operation{
		Summary:   method + " " + clean,
		Tags:      []string{tag(clean)},
		Responses: responses(method),
	}
	for _, m := range pathParam.FindAllStringSubmatch(path, -1) {
		op.Parameters = append(op.Parameters, PathParam(m[1], ""))
	}
	if method == http.MethodGet && len(op.Parameters) == 0 {
		op.Parameters = append(op.Parameters,
			QueryParam("page", "integer", "Page number (1-indexed)", false),
			QueryParam("page_size", "integer", "Results per page", false),
			QueryParam("search", "string", "Search query", false),
			QueryParam("sort", "string", "Sort fields", false),
		)
	}

	switch method {
	case http.MethodGet:
		item.Get = op
	case http.MethodPost:
		item.Post = op
	case http.MethodPut:
		item.Put = op
	case http.MethodPatch:
		item.Patch = op
	case http.MethodDelete:
		item.Delete = op
	}
}

func tag(path string) string {
	seg, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if seg == "" {
		return "root"
	}
	return seg
}

func responses(method string) map[int]*Response {
	ok := &Response{Description: "OK"}
	out := map[int]*Response{
		http.StatusBadRequest: ResponseRef("BadRequest"),
		http.StatusNotFound:   ResponseRef("NotFound"),
	}
	switch method {
	case http.MethodPost:
		out[http.StatusOK] = ok
		out[http.StatusCreated] = &Response{Description: "Created"}
		out[http.StatusConflict] = ResponseRef("Conflict")
	case http.MethodDelete:
		out[http.StatusNoContent] = &Response{Description: "Deleted"}
		out[http.StatusConflict] = ResponseRef("Conflict")
	default:
		out[http.StatusOK] = ok
	}
	return out
}
