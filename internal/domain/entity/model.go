package entity

// Kind names a synchronized entity type. Reservation and staging registries are kept per kind.
type Kind string

const (
	KindMatch  Kind = "match"
	KindRoster Kind = "roster"
	KindTeam   Kind = "team"
	KindPlayer Kind = "player"
)

func (k Kind) String() string {
	return string(k)
}
