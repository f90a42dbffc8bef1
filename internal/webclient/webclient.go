package webclient

import "context"

// WebClient fetches plain HTTP resources such as the axe-core bundle.
// Rendering pages is the browser package's job, not this one.
type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)
	Get(ctx context.Context, url string) (*Response, error)

	Close() error
}
