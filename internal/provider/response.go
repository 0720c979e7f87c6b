// Package provider defines the types shared by the push provider client and
// the record packages that persist its raw replies.
package provider

// Response captures the raw fields of a provider reply. Records persist
// these verbatim; state-machine guards read the code. A non-2xx code is not
// an error here: it is data the delivery state machines act on.
type Response struct {
	Code    int
	Message string
	Body    string
}

// OK reports whether the code is in the 2xx range.
func (r *Response) OK() bool {
	return r.Code >= 200 && r.Code < 300
}
