// Package llm abstracts the generative-text provider used to write minutes.
package llm

import "context"

// Request is a single prompt invocation. MaxOutputTokens and Temperature are
// caller configuration; zero MaxOutputTokens leaves the provider default.
type Request struct {
	Prompt          string
	MaxOutputTokens int32
	Temperature     float32
}

type Response struct {
	Text string
}

// Client is safe for concurrent use by many jobs.
type Client interface {
	Invoke(ctx context.Context, req Request) (Response, error)
	Close() error
}
