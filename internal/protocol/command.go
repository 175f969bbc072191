package protocol

import (
	"strconv"
	"strings"

	"github.com/mcp2everything/PID-agent/internal/errors"
)

// Command is a parsed device command. The device side of the wire
// (the simulator, or firmware) consumes these.
type Command interface {
	ChannelID() int
}

// SetGainsCommand is a parsed PID command.
type SetGainsCommand struct {
	Channel       int
	Kp            float64
	Ki            float64
	Kd            float64
	TargetTemp    float64
	ControlPeriod int
	MaxDuty       int
}

func (c SetGainsCommand) ChannelID() int { return c.Channel }

// SetHeatingCommand is a parsed HEAT command.
type SetHeatingCommand struct {
	Channel int
	On      bool
}

func (c SetHeatingCommand) ChannelID() int { return c.Channel }

const pidParamCount = 6

// ParseCommand parses one command line of the form
// PID:<ch>:<kp>,<ki>,<kd>,<target>,<period>,<duty> or HEAT:<ch>:<1|0>.
func ParseCommand(line string) (Command, error) {
	errFactory := errors.New()

	parts := strings.Split(strings.TrimSpace(line), ":")
	if len(parts) != 3 {
		return nil, errFactory.WithData(ErrBadCommand, line)
	}

	channelID, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, errFactory.Wrap(ErrBadCommand, err)
	}

	switch parts[0] {
	case "PID":
		return parseSetGains(channelID, parts[2])
	case "HEAT":
		return parseSetHeating(channelID, parts[2])
	default:
		return nil, errFactory.WithData(ErrUnknownCommand, parts[0])
	}
}

func parseSetGains(channelID int, payload string) (Command, error) {
	errFactory := errors.New()

	fields := strings.Split(payload, ",")
	if len(fields) != pidParamCount {
		return nil, errFactory.WithData(ErrBadCommand, payload)
	}

	values := make([]float64, 4)
	for i := 0; i < 4; i++ {
		value, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, errFactory.Wrap(ErrBadCommand, err)
		}
		values[i] = value
	}

	period, err := strconv.Atoi(fields[4])
	if err != nil {
		return nil, errFactory.Wrap(ErrBadCommand, err)
	}
	duty, err := strconv.Atoi(fields[5])
	if err != nil {
		return nil, errFactory.Wrap(ErrBadCommand, err)
	}

	return SetGainsCommand{
		Channel:       channelID,
		Kp:            values[0],
		Ki:            values[1],
		Kd:            values[2],
		TargetTemp:    values[3],
		ControlPeriod: period,
		MaxDuty:       duty,
	}, nil
}

func parseSetHeating(channelID int, payload string) (Command, error) {
	errFactory := errors.New()

	state, err := strconv.Atoi(payload)
	if err != nil {
		return nil, errFactory.Wrap(ErrBadCommand, err)
	}

	return SetHeatingCommand{Channel: channelID, On: state != 0}, nil
}
