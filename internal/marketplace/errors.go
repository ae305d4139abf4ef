package marketplace

import (
	"fmt"
	"time"
)

// UploadError means the page never exposed a file input for images. Images
// are mandatory, so this aborts the submission.
type UploadError struct {
	Diag string
}

func (e *UploadError) Error() string {
	return withDiag("could not find an image upload input on the listing form", e.Diag)
}

// FieldNotFoundError names a mandatory form field the page did not expose.
type FieldNotFoundError struct {
	Field string
	Diag  string
}

func (e *FieldNotFoundError) Error() string {
	return withDiag(fmt.Sprintf("could not find the %s field on the listing form", e.Field), e.Diag)
}

// NavigationControlNotFoundError means a next/publish affordance is missing,
// so the multi-page flow cannot proceed.
type NavigationControlNotFoundError struct {
	Label string
	Diag  string
}

func (e *NavigationControlNotFoundError) Error() string {
	return withDiag(fmt.Sprintf("could not find the %q control on the listing form", e.Label), e.Diag)
}

// AuthenticationTimeoutError means the operator did not complete the manual
// login within the allowed window. Fatal to the whole run.
type AuthenticationTimeoutError struct {
	Wait time.Duration
}

func (e *AuthenticationTimeoutError) Error() string {
	return fmt.Sprintf("login not completed within %s, aborting run", e.Wait)
}

func withDiag(msg, diag string) string {
	if diag == "" {
		return msg
	}
	return msg + " (" + diag + ")"
}
