package fetch

import "context"

// Outcome is the result of one logical page fetch.
// It is created per request and never persisted.
type Outcome struct {
	// FinalURL is the last URL of the redirect chain, the one that served HTML.
	FinalURL string

	// HTML is the response body decoded to UTF-8.
	HTML string

	// ContentType is the Content-Type header of the final response.
	ContentType string
}

// PageFetcher fetches the HTML of an untrusted, user-supplied URL.
//
// Example usage:
//
//	outcome, err := fetcher.Fetch(ctx, "https://shop.example.com/item/42")
//	if err != nil {
//	    var fe *fetch.Error
//	    if errors.As(err, &fe) && fe.Kind.IsClientFault() {
//	        // reject the request
//	    }
//	}
//
// Security considerations:
//   - Implementations MUST re-check the destination host before every hop
//   - Implementations MUST cap redirects, response size and per-hop time
//   - Implementations MUST only accept text/html responses
//   - Implementations MUST NOT retry; retries are a caller policy
type PageFetcher interface {
	// Fetch follows redirects up to the configured cap and returns the final
	// URL together with the decoded HTML.
	//
	// Errors are always *Error values; inspect Kind to classify them.
	Fetch(ctx context.Context, rawURL string) (*Outcome, error)
}
