// Package catalog assembles the built-in filter types.
package catalog

import (
	"refinery/internal/filter"
	"refinery/internal/filter/llmgen"
	"refinery/internal/filter/transcode"
)

// Default returns a fresh catalog of every built-in filter type.
func Default() filter.Catalog {
	return filter.Catalog{
		llmgen.Type:    llmgen.Factory,
		transcode.Type: transcode.Factory,
	}
}
