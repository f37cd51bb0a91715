package engine

// pathRecorder collects changed paths in first-seen order.
type pathRecorder struct {
	seen  map[string]struct{}
	paths []string
}

func newPathRecorder() *pathRecorder {
	return &pathRecorder{
		seen: make(map[string]struct{}, 16),
	}
}

// Add records a relative path once. Paths are taken as given.
func (r *pathRecorder) Add(path string) {
	if path == "" {
		return
	}
	if _, exists := r.seen[path]; exists {
		return
	}
	r.seen[path] = struct{}{}
	r.paths = append(r.paths, path)
}

func (r *pathRecorder) Paths() []string {
	return append([]string(nil), r.paths...)
}
