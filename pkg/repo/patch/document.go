// Package patch implements the secured patch engine: RFC-6902-style partial
// updates applied to a resource under per-field authorization and
// locked-field invariants.
//
// Patches operate on a path-addressable document view of the resource (a
// JSON object tree) rather than on the struct directly. Field security and
// locked-field hashing run against this same view, so there is no second
// addressing scheme that could drift out of sync.
package patch

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/marmos91/baserepo/pkg/repo"
)

// Document is the path-addressable view of a resource that patch operations
// are applied to. It wraps the JSON object tree obtained from encoding the
// resource.
type Document struct {
	root map[string]any
}

// FromResource builds the document view of a resource.
func FromResource(resource *repo.Resource) (*Document, error) {
	encoded, err := json.Marshal(resource)
	if err != nil {
		return nil, repo.NewError(repo.ErrInternal, fmt.Sprintf("failed to encode resource: %v", err))
	}

	var root map[string]any
	if err := json.Unmarshal(encoded, &root); err != nil {
		return nil, repo.NewError(repo.ErrInternal, fmt.Sprintf("failed to build document view: %v", err))
	}

	return &Document{root: root}, nil
}

// ToResource converts the (patched) document view back into a resource.
func (d *Document) ToResource() (*repo.Resource, error) {
	encoded, err := json.Marshal(d.root)
	if err != nil {
		return nil, repo.NewError(repo.ErrInternal, fmt.Sprintf("failed to encode document view: %v", err))
	}

	var resource repo.Resource
	if err := json.Unmarshal(encoded, &resource); err != nil {
		return nil, repo.NewPathError(repo.ErrBadArgument,
			fmt.Sprintf("patched document is not a valid resource: %v", err), "")
	}

	return &resource, nil
}

// parsePointer splits a JSON pointer into its reference tokens, applying the
// ~1 and ~0 unescaping rules. The empty pointer (whole document) is not a
// valid patch target here: patches always address a field.
func parsePointer(pointer string) ([]string, error) {
	if pointer == "" || !strings.HasPrefix(pointer, "/") {
		return nil, repo.NewPathError(repo.ErrBadArgument, "invalid JSON pointer", pointer)
	}

	raw := strings.Split(pointer[1:], "/")
	tokens := make([]string, len(raw))
	for i, token := range raw {
		token = strings.ReplaceAll(token, "~1", "/")
		token = strings.ReplaceAll(token, "~0", "~")
		tokens[i] = token
	}

	return tokens, nil
}

// escapeToken reverses the pointer unescaping so a token can be rebuilt into
// a valid pointer. "~" must be escaped before "/" so the replacement output
// is not itself re-escaped.
func escapeToken(token string) string {
	token = strings.ReplaceAll(token, "~", "~0")
	return strings.ReplaceAll(token, "/", "~1")
}

// step descends one reference token into a container.
func step(container any, token, pointer string) (any, error) {
	switch typed := container.(type) {
	case map[string]any:
		child, ok := typed[token]
		if !ok {
			return nil, repo.NewPathError(repo.ErrBadArgument, "no such member", pointer)
		}
		return child, nil

	case []any:
		index, err := arrayIndex(token, len(typed), false)
		if err != nil {
			return nil, repo.NewPathError(repo.ErrBadArgument, err.Error(), pointer)
		}
		return typed[index], nil

	default:
		return nil, repo.NewPathError(repo.ErrBadArgument, "path traverses a scalar value", pointer)
	}
}

// arrayIndex parses an array reference token. When appendOK is true the "-"
// token and the one-past-the-end index are allowed (add semantics).
func arrayIndex(token string, length int, appendOK bool) (int, error) {
	if token == "-" {
		if !appendOK {
			return 0, fmt.Errorf("index '-' only valid for add")
		}
		return length, nil
	}

	index, err := strconv.Atoi(token)
	if err != nil {
		return 0, fmt.Errorf("invalid array index %q", token)
	}

	limit := length
	if appendOK {
		limit = length + 1
	}
	if index < 0 || index >= limit {
		return 0, fmt.Errorf("array index %d out of bounds", index)
	}

	return index, nil
}

// parent resolves the container holding the pointer's final token.
func (d *Document) parent(pointer string) (container any, token string, err error) {
	tokens, err := parsePointer(pointer)
	if err != nil {
		return nil, "", err
	}

	container = any(d.root)
	for _, t := range tokens[:len(tokens)-1] {
		container, err = step(container, t, pointer)
		if err != nil {
			return nil, "", err
		}
	}

	return container, tokens[len(tokens)-1], nil
}

// Get resolves the value at the pointer.
func (d *Document) Get(pointer string) (any, error) {
	tokens, err := parsePointer(pointer)
	if err != nil {
		return nil, err
	}

	current := any(d.root)
	for _, token := range tokens {
		current, err = step(current, token, pointer)
		if err != nil {
			return nil, err
		}
	}

	return current, nil
}

// Add inserts a value at the pointer. Object members are created or
// replaced; array elements are inserted, shifting subsequent elements, with
// "-" appending.
func (d *Document) Add(pointer string, value any) error {
	container, token, err := d.parent(pointer)
	if err != nil {
		return err
	}

	switch typed := container.(type) {
	case map[string]any:
		typed[token] = value
		return nil

	case []any:
		index, err := arrayIndex(token, len(typed), true)
		if err != nil {
			return repo.NewPathError(repo.ErrBadArgument, err.Error(), pointer)
		}
		typed = append(typed, nil)
		copy(typed[index+1:], typed[index:])
		typed[index] = value
		return d.writeBack(pointer, typed)

	default:
		return repo.NewPathError(repo.ErrBadArgument, "cannot add into a scalar value", pointer)
	}
}

// Replace overwrites the value at the pointer, which must exist.
func (d *Document) Replace(pointer string, value any) error {
	container, token, err := d.parent(pointer)
	if err != nil {
		return err
	}

	switch typed := container.(type) {
	case map[string]any:
		if _, ok := typed[token]; !ok {
			return repo.NewPathError(repo.ErrBadArgument, "no such member", pointer)
		}
		typed[token] = value
		return nil

	case []any:
		index, err := arrayIndex(token, len(typed), false)
		if err != nil {
			return repo.NewPathError(repo.ErrBadArgument, err.Error(), pointer)
		}
		typed[index] = value
		return nil

	default:
		return repo.NewPathError(repo.ErrBadArgument, "cannot replace inside a scalar value", pointer)
	}
}

// Remove deletes the value at the pointer, which must exist.
func (d *Document) Remove(pointer string) error {
	container, token, err := d.parent(pointer)
	if err != nil {
		return err
	}

	switch typed := container.(type) {
	case map[string]any:
		if _, ok := typed[token]; !ok {
			return repo.NewPathError(repo.ErrBadArgument, "no such member", pointer)
		}
		delete(typed, token)
		return nil

	case []any:
		index, err := arrayIndex(token, len(typed), false)
		if err != nil {
			return repo.NewPathError(repo.ErrBadArgument, err.Error(), pointer)
		}
		typed = append(typed[:index], typed[index+1:]...)
		return d.writeBack(pointer, typed)

	default:
		return repo.NewPathError(repo.ErrBadArgument, "cannot remove from a scalar value", pointer)
	}
}

// Move removes the value at from and adds it at the pointer.
func (d *Document) Move(pointer, from string) error {
	value, err := d.Get(from)
	if err != nil {
		return err
	}
	if err := d.Remove(from); err != nil {
		return err
	}
	return d.Add(pointer, value)
}

// Copy reads the value at from and adds it at the pointer.
func (d *Document) Copy(pointer, from string) error {
	value, err := d.Get(from)
	if err != nil {
		return err
	}
	return d.Add(pointer, value)
}

// Test verifies that the value at the pointer equals the expected value.
// Equality follows JSON semantics via a normalizing round-trip, so numbers
// supplied as int compare equal to decoded float64 values.
func (d *Document) Test(pointer string, expected any) error {
	actual, err := d.Get(pointer)
	if err != nil {
		return err
	}

	if !reflect.DeepEqual(normalize(actual), normalize(expected)) {
		return repo.NewPathError(repo.ErrUnprocessable, "test operation failed", pointer)
	}

	return nil
}

// writeBack re-attaches a reallocated slice to its parent container. Needed
// because append may move the backing array, which in-place mutation of the
// fetched slice would not reflect.
func (d *Document) writeBack(pointer string, value []any) error {
	tokens, err := parsePointer(pointer)
	if err != nil {
		return err
	}

	if len(tokens) == 1 {
		// Slice is a top-level member.
		d.root[tokens[0]] = value
		return nil
	}

	// The tokens are already unescaped, so rebuilding the parent pointer
	// must re-apply the escaping or a token containing "/" or "~" would
	// resolve to the wrong member.
	escaped := make([]string, len(tokens)-1)
	for i, token := range tokens[:len(tokens)-1] {
		escaped[i] = escapeToken(token)
	}
	parentPointer := "/" + strings.Join(escaped, "/")

	container, token, err := d.parent(parentPointer)
	if err != nil {
		return err
	}

	switch typed := container.(type) {
	case map[string]any:
		typed[token] = value
	case []any:
		index, err := arrayIndex(token, len(typed), false)
		if err != nil {
			return repo.NewPathError(repo.ErrBadArgument, err.Error(), parentPointer)
		}
		typed[index] = value
	}

	return nil
}

// normalize round-trips a value through JSON so that comparisons see the
// same representation the document itself uses.
func normalize(value any) any {
	encoded, err := json.Marshal(value)
	if err != nil {
		return value
	}

	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return value
	}

	return decoded
}
