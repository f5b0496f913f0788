package errext

import "errors"

// Format turns err into a log message and fields. An [Exception] is logged
// with its stack trace. The hint of a [HasHint] and the exit code of a
// [HasExitCode] are added as fields.
func Format(err error) (string, map[string]any) {
	if err == nil {
		return "", nil
	}

	msg := err.Error()
	if xerr := Exception(nil); errors.As(err, &xerr) {
		msg = xerr.StackTrace()
	}

	fields := map[string]any{}
	if herr := HasHint(nil); errors.As(err, &herr) {
		fields["hint"] = herr.Hint()
	}
	if cerr := HasExitCode(nil); errors.As(err, &cerr) {
		fields["exit_code"] = int(cerr.ExitCode())
	}
	return msg, fields
}
