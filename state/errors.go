package state

import "errors"

// ErrStateNotFound is returned by UpdateState when the parent snapshot id is
// unknown. It is the only structured error UpdateState can raise.
var ErrStateNotFound = errors.New("state: snapshot not found")

// ErrInvalidChecksum is returned by MergeRemoteState when the incoming
// snapshot's checksum does not match its data. The snapshot is not
// registered when this error is returned.
var ErrInvalidChecksum = errors.New("state: checksum mismatch")
