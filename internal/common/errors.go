package common

import "errors"

// Session data that cannot be decoded is reported as absent by stores,
// this error only surfaces from low-level decoders.
var ErrMalformedSession = errors.New("malformed session")
