package extraction

import (
	"context"
)

// RawProp is a single prop as recovered from source, before filtering and
// normalization into the wire shape.
type RawProp struct {
	Name          string
	Type          string
	Description   string
	DefaultValue  any
	Values        []string
	Required      bool
	IsChildren    bool
	DeclaringFile string
}

// PropsInput carries everything a props extractor needs for one component.
type PropsInput struct {
	ComponentName string
	FilePath      string
	Source        []byte
}

// PropsResult is the outcome of a props extraction pass.
type PropsResult struct {
	Props []RawProp
}

// PropsExtractor resolves the typed prop surface of a component. The engine
// treats it as a capability: when it fails or comes back thin, the literal
// fallback walker takes over.
type PropsExtractor interface {
	Name() string
	ExtractProps(ctx context.Context, in PropsInput) (*PropsResult, error)
}
