package typedvalue

// Field is one named entry of a Record.
type Field struct {
	Name  string
	Value any
}

// Record is an ordered set of named fields. Map values decode to a Record and
// a Record encodes to a Map with Symbol keys in field order.
type Record []Field

// Get returns the value of the first field called name.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Names returns the field names in order.
func (r Record) Names() []string {
	names := make([]string, len(r))
	for i, f := range r {
		names[i] = f.Name
	}
	return names
}

// LocationProof is a zero-knowledge proof that a player is inside an area cell.
type LocationProof struct {
	Proof        []byte
	PublicInputs []uint32
}

// Value returns the proof as the contract expects it: a Map with the Symbol
// keys "proof" then "public_inputs". The contract's struct decoder depends on that order.
func (p LocationProof) Value() Map {
	inputs := make(Vec, len(p.PublicInputs))
	for i, in := range p.PublicInputs {
		inputs[i] = U32(in)
	}
	proof := p.Proof
	if proof == nil {
		proof = []byte{}
	}
	return Map{
		{Key: Symbol("proof"), Val: Bytes(proof)},
		{Key: Symbol("public_inputs"), Val: inputs},
	}
}
