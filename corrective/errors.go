package corrective

import "errors"

var (
	ErrSearchURLRequired = errors.New("searxng base url is required")
	ErrSearchFailed      = errors.New("web search failed")
)
