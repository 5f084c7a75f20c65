package transfer

import (
	"fmt"
	"net/http"

	"github.com/imrenagi/go-drive-relay/storage"
)

type FailureKind int

const (
	LocalFailure FailureKind = iota
	PermissionDenied
	TargetNotFound
	MalformedRequest
	ServiceError
)

func (k FailureKind) String() string {
	switch k {
	case LocalFailure:
		return "local_failure"
	case PermissionDenied:
		return "permission_denied"
	case TargetNotFound:
		return "target_not_found"
	case MalformedRequest:
		return "malformed_request"
	case ServiceError:
		return "service_error"
	default:
		return "unknown"
	}
}

// Failure is the terminal outcome of a transfer that did not complete. Code
// is the status reported by the storage service, 0 for local failures.
type Failure struct {
	Kind   FailureKind
	Code   int
	Detail string
}

func (Failure) isResult() {}

func (f Failure) Error() string {
	if f.Code != 0 {
		return fmt.Sprintf("%s (status %d): %s", f.Kind, f.Code, f.Detail)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

// Classify maps err onto the failure taxonomy. Only errors carrying a status
// from the storage service are treated as remote; everything else, including
// download and filesystem errors, is a LocalFailure.
func Classify(err error) Failure {
	if err == nil {
		return Failure{Kind: LocalFailure, Detail: "unknown error"}
	}
	code, ok := storage.StatusCode(err)
	if !ok {
		return Failure{Kind: LocalFailure, Detail: err.Error()}
	}

	f := Failure{Kind: ServiceError, Code: code, Detail: err.Error()}
	switch code {
	case http.StatusForbidden:
		f.Kind = PermissionDenied
	case http.StatusNotFound:
		f.Kind = TargetNotFound
	case http.StatusBadRequest:
		f.Kind = MalformedRequest
	}
	return f
}

// Message renders the failure for the user. destination is the configured
// destination identity, empty for the service's default root.
func (f Failure) Message(destination string) string {
	switch f.Kind {
	case PermissionDenied:
		return "❌ Permission denied by the storage service.\n\nCheck that the relay has write access to the destination folder."
	case TargetNotFound:
		if destination == "" {
			return "❌ The destination was not found in the storage service's default root."
		}
		return fmt.Sprintf("❌ Destination folder %q was not found.\n\nCheck the configured destination folder id.", destination)
	case MalformedRequest:
		return fmt.Sprintf("❌ The storage service rejected the upload request.\n\n%s", f.Detail)
	case ServiceError:
		return fmt.Sprintf("❌ Storage service error (status %d).\n\n%s", f.Code, f.Detail)
	default:
		return fmt.Sprintf("❌ Error: %s", f.Detail)
	}
}
