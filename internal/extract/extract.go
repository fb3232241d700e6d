// Package extract contains the built-in extractors selectable from the CLI.
package extract

import (
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/Alia5/extypegen/typegen"
)

var extractors = map[string]typegen.Extractor{
	"descriptors": Descriptors,
	"gosource":    GoSource,
}

// ByName returns the built-in extractor registered under name.
func ByName(name string) (typegen.Extractor, error) {
	ex, ok := extractors[name]
	if !ok {
		return nil, errors.Newf("unsupported extractor '%s' (supported: %v)", name, Names())
	}
	return ex, nil
}

// Names lists the built-in extractors in sorted order.
func Names() []string {
	names := make([]string, 0, len(extractors))
	for k := range extractors {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
