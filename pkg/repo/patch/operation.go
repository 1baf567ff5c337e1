package patch

import (
	"encoding/json"
	"fmt"

	"github.com/marmos91/baserepo/pkg/repo"
)

// OpKind identifies one of the six patch operation variants. The set is
// closed: anything else is rejected before validation even starts.
type OpKind string

const (
	OpAdd     OpKind = "add"
	OpReplace OpKind = "replace"
	OpRemove  OpKind = "remove"
	OpMove    OpKind = "move"
	OpCopy    OpKind = "copy"
	OpTest    OpKind = "test"
)

// Operation is a single patch operation targeting a field path.
//
// Patches are transient: they are consumed atomically by the engine and
// never persisted.
type Operation struct {
	// Op is the operation kind
	Op OpKind `json:"op"`

	// Path is the JSON pointer of the target field
	Path string `json:"path"`

	// From is the source pointer for move and copy operations
	From string `json:"from,omitempty"`

	// Value is the operand for add, replace and test operations
	Value any `json:"value,omitempty"`
}

// validate checks the structural well-formedness of a single operation
// (kind known, required members present). Authorization is a separate
// concern handled by the engine.
func (op Operation) validate() error {
	switch op.Op {
	case OpAdd, OpReplace, OpTest:
		if op.Path == "" {
			return repo.NewError(repo.ErrBadArgument, fmt.Sprintf("%s operation requires a path", op.Op))
		}
	case OpRemove:
		if op.Path == "" {
			return repo.NewError(repo.ErrBadArgument, "remove operation requires a path")
		}
	case OpMove, OpCopy:
		if op.Path == "" || op.From == "" {
			return repo.NewError(repo.ErrBadArgument, fmt.Sprintf("%s operation requires path and from", op.Op))
		}
	default:
		return repo.NewError(repo.ErrBadArgument, fmt.Sprintf("unknown patch operation %q", op.Op))
	}

	return nil
}

// apply executes the operation against the document view.
func (op Operation) apply(doc *Document) error {
	switch op.Op {
	case OpAdd:
		return doc.Add(op.Path, op.Value)
	case OpReplace:
		return doc.Replace(op.Path, op.Value)
	case OpRemove:
		return doc.Remove(op.Path)
	case OpMove:
		return doc.Move(op.Path, op.From)
	case OpCopy:
		return doc.Copy(op.Path, op.From)
	case OpTest:
		return doc.Test(op.Path, op.Value)
	default:
		return repo.NewError(repo.ErrBadArgument, fmt.Sprintf("unknown patch operation %q", op.Op))
	}
}

// ParseOperations decodes a JSON patch document (an array of operations).
func ParseOperations(data []byte) ([]Operation, error) {
	var ops []Operation
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, repo.NewError(repo.ErrBadArgument, fmt.Sprintf("malformed patch document: %v", err))
	}
	return ops, nil
}
