package simulation

// Mode gates which kind of intent the producer emits on its next firing.
type Mode int32

const (
	Opening Mode = iota
	Closing
)

func (m Mode) String() string {
	if m == Closing {
		return "closing"
	}

	return "opening"
}
