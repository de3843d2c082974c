package api

import "github.com/okian/dronesoccer/internal/domain/failure"

const codeBadRequest = "bad_request"

// ErrBadRequest marks a request the handlers could not decode.
var ErrBadRequest = failure.New(failure.Validation, codeBadRequest, "bad request")
