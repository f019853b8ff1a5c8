package binfmt

// Encoder is implemented by types that know how to append themselves to a stream.
type Encoder interface {
	Encode(s *Stream) error
}

// Decoder is implemented by types that know how to read themselves from a stream.
// Decode must leave the receiver untouched when it returns an error.
type Decoder interface {
	Decode(s *Stream) error
}

// Put appends v to s.
func (s *Stream) Put(v Encoder) error { return v.Encode(s) }

// Get reads v from s.
func (s *Stream) Get(v Decoder) error { return v.Decode(s) }
