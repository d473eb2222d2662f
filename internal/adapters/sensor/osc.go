package sensor

import (
	"fmt"
	"math"

	"github.com/hypebeast/go-osc/osc"
)

// PlayersAddress is the message address carried by every players datagram.
const PlayersAddress = "/mangacatch/players"

// MaxPlayers is the number of player entries in one datagram.
const MaxPlayers = 3

const playersArgs = 1 + 3*MaxPlayers

// Player is one decoded entry. ID <= 0 marks an empty entry.
type Player struct {
	ID int
	X  float64
	Y  float64
}

// Players is one decoded datagram.
type Players struct {
	Frame   int
	Players []Player
}

// EncodePlayers builds a datagram with the given frame number and up to
// MaxPlayers entries. Missing entries are sent as empty.
func EncodePlayers(frame int, players []Player) ([]byte, error) {
	if len(players) > MaxPlayers {
		return nil, fmt.Errorf("%w: %d players, at most %d", ErrMalformed, len(players), MaxPlayers)
	}

	args := make([]interface{}, playersArgs)
	args[0] = float32(frame)
	for i := range MaxPlayers {
		base := 1 + 3*i
		args[base], args[base+1], args[base+2] = float32(0), float32(0), float32(0)
		if i < len(players) && players[i].ID > 0 {
			args[base] = float32(players[i].X)
			args[base+1] = float32(players[i].Y)
			args[base+2] = float32(players[i].ID)
		}
	}

	data, err := osc.NewMessage(PlayersAddress, args...).MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return data, nil
}

// DecodePlayers parses a players datagram. Integer arguments are accepted
// in place of floats. Empty entries are omitted from the result.
func DecodePlayers(data []byte) (Players, error) {
	if len(data) == 0 {
		return Players{}, fmt.Errorf("%w: empty datagram", ErrMalformed)
	}
	pkt, err := osc.ParsePacket(string(data))
	if err != nil {
		return Players{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	msg, ok := pkt.(*osc.Message)
	if !ok {
		return Players{}, fmt.Errorf("%w: %T is not a message", ErrMalformed, pkt)
	}
	if msg.Address != PlayersAddress {
		return Players{}, fmt.Errorf("%w: %q", ErrWrongAddr, msg.Address)
	}
	if len(msg.Arguments) != playersArgs {
		return Players{}, fmt.Errorf("%w: %d arguments, want %d", ErrMalformed, len(msg.Arguments), playersArgs)
	}

	args := make([]float64, playersArgs)
	for i, a := range msg.Arguments {
		v, err := numericArg(a)
		if err != nil {
			return Players{}, fmt.Errorf("%w: argument %d: %v", ErrMalformed, i, err)
		}
		args[i] = v
	}

	out := Players{Frame: int(args[0])}
	for i := range MaxPlayers {
		base := 1 + 3*i
		id := int(args[base+2])
		if id <= 0 {
			continue
		}
		out.Players = append(out.Players, Player{ID: id, X: args[base], Y: args[base+1]})
	}
	return out, nil
}

func numericArg(a interface{}) (float64, error) {
	var v float64
	switch n := a.(type) {
	case float32:
		v = float64(n)
	case float64:
		v = n
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("unsupported type %T", a)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not finite")
	}
	return v, nil
}
