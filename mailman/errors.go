package mailman

import (
	"errors"
	"fmt"
)

// ErrNoLocation indicates a create call that answered without a Location header
var ErrNoLocation = errors.New("response has no Location header")

// NotAMemberError is returned when an address has no membership on a list.
// Err is the underlying 404 HTTPError.
type NotAMemberError struct {
	Address string
	List    string
	Err     error
}

// Error implements the error interface
func (e *NotAMemberError) Error() string {
	return fmt.Sprintf("%s is not a member address of %s", e.Address, e.List)
}

func (e *NotAMemberError) Unwrap() error {
	return e.Err
}
