package types

import "errors"

// ErrMissingVariable reports a template placeholder with no declared
// variable during Render. Render failures are input-validation failures
// local to the Prompt and are never silently absorbed.
var ErrMissingVariable = errors.New("prompt render: undeclared template variable")
