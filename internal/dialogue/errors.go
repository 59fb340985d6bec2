package dialogue

import "fmt"

// FormatError reports a file that is in a supported format but cannot be
// turned into a dialogue.
type FormatError struct {
	Format string
	Line   int
	Msg    string
	Err    error
}

func (e *FormatError) Error() string {
	msg := e.Format + ": " + e.Msg
	if e.Line > 0 {
		msg = fmt.Sprintf("%s: line %d: %s", e.Format, e.Line, e.Msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func formatErr(format, msg string, err error) *FormatError {
	return &FormatError{Format: format, Msg: msg, Err: err}
}

type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Ext == "" {
		return "unsupported dialogue format: missing file extension"
	}
	return fmt.Sprintf("unsupported dialogue format %q (supported: %v)", e.Ext, SupportedFormats())
}
