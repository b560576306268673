package snsctx

import "context"

type ctxIndex int

const (
	ctxIndexVerbose ctxIndex = iota
	ctxIndexDevice
)

// IsVerbose reports whether bus traffic should be dumped to the debug log.
func IsVerbose(ctx context.Context) bool {
	val := ctx.Value(ctxIndexVerbose)
	if val == nil {
		return false
	}
	return val.(bool)
}

func SetVerbose(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, ctxIndexVerbose, value)
}

// Device returns the bus device path attached with WithDevice or an empty string.
func Device(ctx context.Context) string {
	val, _ := ctx.Value(ctxIndexDevice).(string)
	return val
}

func WithDevice(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, ctxIndexDevice, path)
}
