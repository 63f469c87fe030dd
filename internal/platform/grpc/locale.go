package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"
)

// LocaleHeader carries the caller's preferred locales in Accept-Language form.
const LocaleHeader = "accept-language"

// LocaleFromContext returns the caller's locale preference, or "" when the
// request carried none.
func LocaleFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(LocaleHeader)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(strings.Join(values, ","))
}

// WithLocale attaches locale to outgoing call metadata.
func WithLocale(ctx context.Context, locale string) context.Context {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, LocaleHeader, locale)
}
