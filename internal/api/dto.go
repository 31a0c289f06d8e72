package api

import (
	"github.com/starford/brainreset/internal/brainreset"
	"github.com/starford/brainreset/internal/validate"
)

// BrainResetRequest is the request body of POST /api/brain-reset.
type BrainResetRequest = validate.RawRequest

// BrainResetResponse is returned after the reflection was written to Craft.
type BrainResetResponse = brainreset.Result
