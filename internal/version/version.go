// In file: internal/version/version.go

// Package version centralizes the versions of the assistant's persisted
// formats and prompt logic.
//
// Every Redis key embeds the version of the format stored under it. Bumping
// a version here makes the old keys unreachable, so a changed transcript
// encoding or a rewritten routing prompt never reads entries written by the
// previous release. Old keys expire on their own TTL.
package version

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComponentVersions holds the version strings for the persisted formats.
// Manually increment a version here before you deploy a change to that component.
var ComponentVersions = struct {
	// Transcript is bumped whenever the JSON encoding of a stored Message changes.
	Transcript string

	// Profile is bumped whenever the fields of the model usage profile change.
	Profile string

	// PromptLogic is bumped whenever the routing or tool prompts change, so
	// usage numbers from different prompts are not mixed.
	PromptLogic string
}{
	Transcript:  "v1",
	Profile:     "v1",
	PromptLogic: "v1",
}

// TranscriptKey returns the Redis key holding a session's transcript.
//
// Example output: "transcript:v1:3f2a..."
func TranscriptKey(sessionID string) string {
	return fmt.Sprintf("transcript:%s:%s", ComponentVersions.Transcript, sessionID)
}

// ProfileKey returns the Redis key of a model's usage profile. The model ID
// is hashed because provider model names may contain ':' and '/'.
//
// Example output: "profile:v1_pv1:a1b2c3d4e5f6a7b8"
func ProfileKey(modelID string) string {
	hasher := sha256.New()
	hasher.Write([]byte(modelID))
	modelHash := hex.EncodeToString(hasher.Sum(nil))[:16]

	return fmt.Sprintf("profile:%s_p%s:%s", ComponentVersions.Profile, ComponentVersions.PromptLogic, modelHash)
}
