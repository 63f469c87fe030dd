package errors

import (
	stderrors "errors"

	"github.com/louisbranch/hexterrain/internal/platform/errors/i18n"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// HandleError converts err to a gRPC status for client responses.
//
// Domain errors keep their mapped code and gain a localized message for
// locale (an Accept-Language style value). Errors that already carry a gRPC
// status pass through. Anything else becomes Internal with a generic message.
func HandleError(err error, locale string) error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if stderrors.As(err, &appErr) {
		catalog := i18n.GetCatalog(locale)
		userMsg := catalog.Format(string(appErr.Code), appErr.Metadata)
		return appErr.ToGRPCStatus(catalog.Locale(), userMsg)
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codes.Internal, "an unexpected error occurred")
}
