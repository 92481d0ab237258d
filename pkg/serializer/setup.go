// Package serializer maps the assembled payload onto the coveralls wire
// format.
package serializer

import (
	"encoding/json"
	"regexp"

	"github.com/covclient/coveralls-go/pkg/core"
	"github.com/covclient/coveralls-go/pkg/errs"
	"github.com/covclient/coveralls-go/pkg/lumber"
)

var repoTokenRegex = regexp.MustCompile(`"repo_token":"(.+?)"`)

type serializer struct {
	logger lumber.Logger
}

// New returns a Serializer.
func New(logger lumber.Logger) core.Serializer {
	return &serializer{logger: logger}
}

// Marshal produces the wire JSON document. Output is deterministic: field
// order is fixed by the payload struct and file order is preserved as built.
// A payload without source files signals a broken invariant upstream.
func (s *serializer) Marshal(p *core.CoveragePayload) ([]byte, error) {
	if p == nil {
		return nil, &errs.SerializationError{Reason: "nil payload"}
	}
	if len(p.SourceFiles) == 0 {
		return nil, &errs.SerializationError{Reason: "payload has no source files"}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, &errs.SerializationError{Reason: err.Error()}
	}
	return data, nil
}

// Redact masks the repo token so reports can be logged safely.
func Redact(report []byte) string {
	return repoTokenRegex.ReplaceAllString(string(report), `"repo_token":"[secure]"`)
}
