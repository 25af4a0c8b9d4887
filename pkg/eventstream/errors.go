package eventstream

import "errors"

// ErrNilReport indicates a nil report event payload was provided to a publisher.
var ErrNilReport = errors.New("nil report event")
