package dtos

// ParseState carries a request decoding failure from the HTTP layer into the
// service, which rejects and audits it like any other invalid request.
type ParseState struct {
	ParseError error `json:"-" query:"-" form:"-"`
}

func (p ParseState) ParseFailure() error {
	return p.ParseError
}
