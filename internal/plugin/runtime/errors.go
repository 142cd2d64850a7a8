package runtime

import "github.com/dop251/goja"

// describeJSError unwraps a goja.Exception down to the thrown value's
// message, so a plugin's `throw new Error("Not logged in")` surfaces as
// exactly "Not logged in" rather than goja's default exception formatting
// (which includes the script's anonymous stack frame).
func describeJSError(err error) error {
	ex, ok := err.(*goja.Exception)
	if !ok {
		return err
	}
	return scriptError(exceptionMessage(ex))
}

type scriptError string

func (e scriptError) Error() string { return string(e) }

func exceptionMessage(ex *goja.Exception) string {
	val := ex.Value()
	if obj, ok := val.(*goja.Object); ok {
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			if s := msg.String(); s != "" {
				return s
			}
		}
	}
	return val.String()
}
