package ports

import "context"

// ResourceFetcher retrieves a projection of a changed remote resource.
// path is the resource path named by the notification; selectFields narrows
// the projection to the fields the subscriber actually needs.
type ResourceFetcher interface {
	Get(ctx context.Context, path string, selectFields []string) (map[string]any, error)
}
