// Package patient holds the patient record schema shared by the store, the
// mutation processor and the wire protocol.
package patient

import "strings"

// Patient is one row of the roster. Vitals are nil when not recorded.
type Patient struct {
	ID               int64    `json:"id"`
	Name             string   `json:"name"`
	Age              int      `json:"age"`
	Gender           string   `json:"gender"`
	HeartRate        *float64 `json:"heartRate"`
	OxygenSaturation *float64 `json:"oxygenSaturation"`
	Temperature      *float64 `json:"temperature"`
}

// Fields is the input of an add mutation. Age is a pointer so that a missing
// age can be told apart from a newborn.
type Fields struct {
	Name             string   `json:"name" validate:"required,max=255"`
	Age              *int     `json:"age" validate:"required,gte=0,lte=150"`
	Gender           string   `json:"gender" validate:"required,max=32"`
	HeartRate        *float64 `json:"heartRate" validate:"omitempty,gte=0,lte=400"`
	OxygenSaturation *float64 `json:"oxygenSaturation" validate:"omitempty,gte=0,lte=100"`
	Temperature      *float64 `json:"temperature" validate:"omitempty,gte=0,lte=120"`
}

// OptionalFloat is a vital in an update. Set=false leaves the stored value
// alone; Set=true with a nil Value clears it.
type OptionalFloat struct {
	Set   bool
	Value *float64
}

// Keep returns an OptionalFloat that leaves the stored value untouched.
func Keep() OptionalFloat { return OptionalFloat{} }

// SetTo returns an OptionalFloat that overwrites the stored value.
func SetTo(v float64) OptionalFloat { return OptionalFloat{Set: true, Value: &v} }

// Clear returns an OptionalFloat that nulls the stored value.
func Clear() OptionalFloat { return OptionalFloat{Set: true} }

// Patch is the input of an update mutation. Nil/unset members are not changed.
type Patch struct {
	Name             *string
	Age              *int
	Gender           *string
	HeartRate        OptionalFloat
	OxygenSaturation OptionalFloat
	Temperature      OptionalFloat
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Age == nil && p.Gender == nil &&
		!p.HeartRate.Set && !p.OxygenSaturation.Set && !p.Temperature.Set
}

// New builds a record from validated fields. The store assigns the ID.
func New(id int64, f Fields) Patient {
	p := Patient{
		ID:               id,
		Name:             strings.TrimSpace(f.Name),
		Gender:           strings.TrimSpace(f.Gender),
		HeartRate:        copyFloat(f.HeartRate),
		OxygenSaturation: copyFloat(f.OxygenSaturation),
		Temperature:      copyFloat(f.Temperature),
	}
	if f.Age != nil {
		p.Age = *f.Age
	}
	return p
}

// Apply returns p with the patch applied. The ID never changes.
func Apply(p Patient, patch Patch) Patient {
	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Age != nil {
		p.Age = *patch.Age
	}
	if patch.Gender != nil {
		p.Gender = strings.TrimSpace(*patch.Gender)
	}
	if patch.HeartRate.Set {
		p.HeartRate = copyFloat(patch.HeartRate.Value)
	}
	if patch.OxygenSaturation.Set {
		p.OxygenSaturation = copyFloat(patch.OxygenSaturation.Value)
	}
	if patch.Temperature.Set {
		p.Temperature = copyFloat(patch.Temperature.Value)
	}
	return p
}

// Clone returns a deep copy so callers can't alias vitals held by a store.
func (p Patient) Clone() Patient {
	p.HeartRate = copyFloat(p.HeartRate)
	p.OxygenSaturation = copyFloat(p.OxygenSaturation)
	p.Temperature = copyFloat(p.Temperature)
	return p
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Float returns a pointer to v, handy for literals.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v, handy for literals.
func Int(v int) *int { return &v }

// String returns a pointer to v, handy for literals.
func String(v string) *string { return &v }
