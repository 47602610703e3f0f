// Package explain turns code execution errors into learner-friendly explanations.
//
// The Service first asks a chat model acting as a programming tutor. When the
// model is disabled or the call fails for any reason, it falls back to an
// ordered catalog of canned explanations matched by substring against the
// lowercased error text; the first matching rule wins and a generic debugging
// guide is returned when nothing matches.
package explain
