// Package parser defines the contract every raw-input parser satisfies.
package parser

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
)

// Parser turns an input stream into a raw, all-text record. The int result
// counts rows that were skipped as unreadable.
type Parser interface {
	Parse(r io.Reader) (arrow.Record, int, error)
}
