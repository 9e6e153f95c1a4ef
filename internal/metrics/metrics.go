// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Label values used by the Recorder methods.
const (
	UserKindRegular   = "user"
	UserKindSuperuser = "superuser"

	UpdateModeFull    = "full"
	UpdateModePartial = "partial"

	UploadStatusSuccess = "success"
	UploadStatusInvalid = "invalid"
	UploadStatusFailed  = "failed"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, tests, etc.
type Recorder interface {
	// Account metrics
	IncUserCreated(kind string)   // kind: "user" or "superuser"
	IncAuthFailure(reason string) // reason: "missing_token", "invalid_token", "bad_credentials", ...

	// Recipe metrics
	IncRecipeCreated()
	IncRecipeUpdated(mode string) // mode: "full" or "partial"
	IncRecipeDeleted()
	IncImageUpload(status string) // status: "success", "invalid", "failed"
	ObserveRecipeListDuration(duration time.Duration)
}
