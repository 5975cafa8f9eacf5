package util

// GameSide selects between the client and server halves of an installation.
type GameSide string

const (
	SideClient GameSide = "client"
	SideServer GameSide = "server"
)

func (s GameSide) Other() GameSide {
	if s == SideClient {
		return SideServer
	}
	return SideClient
}
