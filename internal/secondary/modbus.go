package secondary

import (
	"context"
	"fmt"
	"time"

	"github.com/goburrow/modbus"

	"roofmon/internal/types"
)

// bitClient is the slice of the modbus client API this source needs.
type bitClient interface {
	ReadDiscreteInputs(address, quantity uint16) ([]byte, error)
	ReadCoils(address, quantity uint16) ([]byte, error)
}

// ModbusSource reads one discrete input or coil from a roof PLC over
// Modbus TCP. A fresh connection per read keeps the source stateless;
// at one read per poll interval that costs nothing.
type ModbusSource struct {
	Endpoint      string
	SlaveID       uint8
	Address       uint16
	InputType     string // "discrete" or "coil"
	ClosedWhenSet bool
	Timeout       time.Duration

	dial func() (bitClient, func() error, error)
}

func NewModbusSource(endpoint string, slaveID uint8, address uint16, inputType string, closedWhenSet bool, timeout time.Duration) *ModbusSource {
	s := &ModbusSource{
		Endpoint:      endpoint,
		SlaveID:       slaveID,
		Address:       address,
		InputType:     inputType,
		ClosedWhenSet: closedWhenSet,
		Timeout:       timeout,
	}
	s.dial = s.dialTCP
	return s
}

func (s *ModbusSource) Name() string { return "modbus" }

func (s *ModbusSource) dialTCP() (bitClient, func() error, error) {
	handler := modbus.NewTCPClientHandler(s.Endpoint)
	handler.Timeout = s.Timeout
	handler.SlaveId = s.SlaveID
	if err := handler.Connect(); err != nil {
		return nil, nil, fmt.Errorf("modbus connect %s: %w", s.Endpoint, err)
	}
	return modbus.NewClient(handler), handler.Close, nil
}

func (s *ModbusSource) Read(ctx context.Context) (types.Label, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return types.Unknown, time.Time{}, err
	}

	client, closeFn, err := s.dial()
	if err != nil {
		return types.Unknown, time.Time{}, err
	}
	defer func() { _ = closeFn() }()

	var data []byte
	switch s.InputType {
	case "coil":
		data, err = client.ReadCoils(s.Address, 1)
	default:
		data, err = client.ReadDiscreteInputs(s.Address, 1)
	}
	if err != nil {
		return types.Unknown, time.Time{}, fmt.Errorf("modbus read %s[%d]: %w", s.InputType, s.Address, err)
	}
	if len(data) == 0 {
		return types.Unknown, time.Time{}, fmt.Errorf("modbus read %s[%d]: empty response", s.InputType, s.Address)
	}

	set := data[0]&0x01 == 1
	label := types.Open
	if set == s.ClosedWhenSet {
		label = types.Closed
	}
	return label, time.Now(), nil
}
