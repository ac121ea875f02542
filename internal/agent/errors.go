package agent

import "errors"

// NoFinalResponseMessage is the user-facing text for ErrNoFinalResponse.
const NoFinalResponseMessage = "Agent failed to produce a final response."

// ErrNoFinalResponse indicates the model finished without usable text,
// typically after exhausting its tool-call turns.
var ErrNoFinalResponse = errors.New("agent failed to produce a final response")

// ErrUnknownModel indicates the requested model selector is not registered.
// Ask does not return it; unknown selectors fall back to the default model.
// It exists for callers that want to validate a selector up front.
var ErrUnknownModel = errors.New("unknown model selector")
