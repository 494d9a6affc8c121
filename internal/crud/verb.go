package crud

import "fmt"

// Verb identifies one CRUD operation. Validator tables are indexed by Verb.
type Verb int

const (
	VerbCreate Verb = iota
	VerbGetByID
	VerbUpdate
	VerbPartialUpdate
	VerbDelete
	VerbGetByOwnerID

	verbCount
)

var verbNames = [verbCount]string{
	VerbCreate:        "Create",
	VerbGetByID:       "GetByID",
	VerbUpdate:        "Update",
	VerbPartialUpdate: "PartialUpdate",
	VerbDelete:        "Delete",
	VerbGetByOwnerID:  "GetByOwnerID",
}

// Verbs lists every verb in declaration order.
func Verbs() []Verb {
	out := make([]Verb, 0, verbCount)
	for v := Verb(0); v < verbCount; v++ {
		out = append(out, v)
	}
	return out
}

// Valid reports whether v names a known verb.
func (v Verb) Valid() bool {
	return v >= 0 && v < verbCount
}

func (v Verb) String() string {
	if !v.Valid() {
		return fmt.Sprintf("Verb(%d)", int(v))
	}
	return verbNames[v]
}
