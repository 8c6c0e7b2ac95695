package player

import "fmt"

// Player is keyed by its 64-bit Steam id. Complete is false until a profile fetch fills it.
type Player struct {
	ID          int64
	DisplayName *string
	Forename    *string
	Surname     *string
	Avatar      *string
	Banned      bool
	Verified    bool
	Complete    bool
}

func (p Player) Validate() error {
	if p.ID <= 0 {
		return fmt.Errorf("player steam id is required")
	}
	return nil
}

func Stub(id int64) Player {
	return Player{ID: id}
}

// Overwrite copies profile fields from other, keeping the id.
func (p *Player) Overwrite(other Player) {
	p.DisplayName = other.DisplayName
	p.Forename = other.Forename
	p.Surname = other.Surname
	p.Avatar = other.Avatar
	p.Banned = other.Banned
	p.Verified = other.Verified
	p.Complete = other.Complete
}
