package errors

import "fmt"

// Wrap adds context to errors at package boundaries.
// It returns nil if err is nil, allowing for safe inline usage:
//
//	if err := bus.Publish(ctx, subject, body); err != nil {
//	    return errors.Wrap(err, "failed to publish status")
//	}
//
// The original chain is preserved, so errors.Is() keeps matching sentinels
// such as ErrPublishFailed.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf adds formatted context to errors at package boundaries.
// It returns nil if err is nil:
//
//	return errors.Wrapf(err, "failed to observe %s", path)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", msg, err)
}
