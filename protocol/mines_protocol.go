package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/tomasstrnad1997/minesweeper/mines"
	"github.com/tomasstrnad1997/minesweeper/players"
)

type MessageType byte

const (
	MoveCommand      MessageType = 0x01
	TextMessage      MessageType = 0x02
	GameState        MessageType = 0x03
	StartGame        MessageType = 0x04
	CellUpdate       MessageType = 0x05
	GameEnd          MessageType = 0x07
	SaveGameRequest  MessageType = 0x08
	SaveGameResponse MessageType = 0x09
	LoadGameRequest  MessageType = 0x0A

	RegisterPlayerRequest  MessageType = 0xC0
	RegisterPlayerResponse MessageType = 0xC1
	AuthRequest            MessageType = 0xC2
	AuthResponseMessage    MessageType = 0xC3
	AuthWithToken          MessageType = 0xC6
)

func (t MessageType) String() string {
	switch t {
	case MoveCommand:
		return "MoveCommand"
	case TextMessage:
		return "TextMessage"
	case GameState:
		return "GameState"
	case StartGame:
		return "StartGame"
	case CellUpdate:
		return "CellUpdate"
	case GameEnd:
		return "GameEnd"
	case SaveGameRequest:
		return "SaveGameRequest"
	case SaveGameResponse:
		return "SaveGameResponse"
	case LoadGameRequest:
		return "LoadGameRequest"
	case RegisterPlayerRequest:
		return "RegisterPlayerRequest"
	case RegisterPlayerResponse:
		return "RegisterPlayerResponse"
	case AuthRequest:
		return "AuthRequest"
	case AuthResponseMessage:
		return "AuthResponse"
	case AuthWithToken:
		return "AuthWithToken"
	default:
		return fmt.Sprintf("MessageType(0x%02x)", byte(t))
	}
}

type GameEndType byte

const (
	Win     GameEndType = 0x01
	Loss    GameEndType = 0x02
	Aborted GameEndType = 0x03
)

const (
	HeaderLength         = 6
	MoveByteLength       = 5
	UpdateCellByteLength = 5
	// Large enough for any board the presets produce plus a generous custom one.
	MaxPayloadLength = 1 << 22
)

var (
	ErrInvalidPayloadSize = errors.New("invalid payload size")
	ErrPayloadTooLarge    = errors.New("payload too large")
)

type AuthResponse struct {
	Success bool
	Player  *players.PlayerInfo
	Token   *players.AuthToken
}

type AuthPlayerParams struct {
	Name     string
	Password string
}

// GameStartRequest asks for a new game. Default leaves the level to the
// server. Params is only sent for mines.Custom.
type GameStartRequest struct {
	Default bool
	Level   mines.Level
	Params  mines.GameParams
}

// ReadMessage reads one framed message, header included.
func ReadMessage(r io.Reader) ([]byte, error) {
	header := make([]byte, HeaderLength)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	messageLength := int(binary.BigEndian.Uint32(header[2:HeaderLength]))
	if messageLength > MaxPayloadLength {
		return nil, fmt.Errorf("%w: %s with %d bytes", ErrPayloadTooLarge, MessageType(header[0]), messageLength)
	}
	message := make([]byte, messageLength+HeaderLength)
	copy(message[0:HeaderLength], header)
	if _, err := io.ReadFull(r, message[HeaderLength:]); err != nil {
		return nil, fmt.Errorf("Failed to read %s payload: %w", MessageType(header[0]), err)
	}
	return message, nil
}

func checkAndDecodeLength(data []byte, message MessageType) (int, error) {
	if len(data) < HeaderLength {
		return 0, fmt.Errorf("Data too short to decode")
	}
	if MessageType(data[0]) != message {
		return 0, fmt.Errorf("Invalid message type for command E:%s R:%s", message, MessageType(data[0]))
	}
	payloadLength := int(binary.BigEndian.Uint32(data[2:6]))
	if payloadLength != len(data)-HeaderLength {
		return payloadLength, fmt.Errorf("%w: header says %d, got %d", ErrInvalidPayloadSize, payloadLength, len(data)-HeaderLength)
	}
	return payloadLength, nil
}

func newMessage(tp MessageType, payloadLength int) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	buf.Grow(HeaderLength + payloadLength)
	buf.WriteByte(byte(tp))
	// Reserved byte for future use
	buf.WriteByte(byte(0x00))
	if err := writePayloadLength(&buf, payloadLength); err != nil {
		return nil, err
	}
	return &buf, nil
}

func intToBytes(i int) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(i))
	return buf
}

func bytesToInt(bytes []byte) int {
	return int(binary.BigEndian.Uint32(bytes))
}

func writePayloadLength(buf *bytes.Buffer, length int) error {
	err := binary.Write(buf, binary.BigEndian, uint32(length))
	if err != nil {
		return fmt.Errorf("Failed to write length (%d)", length)
	}
	return nil
}

func writeStringWithLength(buf *bytes.Buffer, str string) error {
	err := writePayloadLength(buf, len(str))
	if err != nil {
		return err
	}
	_, err = buf.WriteString(str)
	return err
}

func EncodeTextMessage(message string) ([]byte, error) {
	payload := []byte(message)
	buf, err := newMessage(TextMessage, len(payload))
	if err != nil {
		return nil, err
	}
	buf.Write(payload)
	return buf.Bytes(), nil
}

func DecodeTextMessage(data []byte) (string, error) {
	_, err := checkAndDecodeLength(data, TextMessage)
	if err != nil {
		return "", err
	}
	return string(data[HeaderLength:]), nil
}

func EncodeMove(move mines.Move) ([]byte, error) {
	if move.Cell < 0 {
		return nil, fmt.Errorf("Cannot encode move on cell %d", move.Cell)
	}
	buf, err := newMessage(MoveCommand, MoveByteLength)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, MoveByteLength)
	payload[0] = byte(move.Type)
	copy(payload[1:5], intToBytes(move.Cell))
	buf.Write(payload)
	return buf.Bytes(), nil
}

func DecodeMove(data []byte) (*mines.Move, error) {
	payloadLength, err := checkAndDecodeLength(data, MoveCommand)
	if err != nil {
		return nil, err
	}
	if payloadLength != MoveByteLength {
		return nil, fmt.Errorf("%w: move has %d bytes", ErrInvalidPayloadSize, payloadLength)
	}
	payload := data[HeaderLength:]
	return &mines.Move{
		Type: mines.MoveType(payload[0]),
		Cell: int(binary.BigEndian.Uint32(payload[1:5])),
	}, nil
}

func EncodeGameStart(request GameStartRequest) ([]byte, error) {
	switch {
	case request.Default:
		buf, err := newMessage(StartGame, 0)
		if err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case request.Level == mines.Custom:
		buf, err := newMessage(StartGame, 1+3*4)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(byte(mines.Custom))
		buf.Write(intToBytes(request.Params.Rows))
		buf.Write(intToBytes(request.Params.Cols))
		buf.Write(intToBytes(request.Params.Mines))
		return buf.Bytes(), nil
	default:
		buf, err := newMessage(StartGame, 1)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(byte(request.Level))
		return buf.Bytes(), nil
	}
}

func DecodeGameStart(data []byte) (*GameStartRequest, error) {
	payloadLength, err := checkAndDecodeLength(data, StartGame)
	if err != nil {
		return nil, err
	}
	payload := data[HeaderLength:]
	if payloadLength == 0 {
		return &GameStartRequest{Default: true}, nil
	}
	level := mines.Level(payload[0])
	if level != mines.Custom {
		if payloadLength != 1 {
			return nil, fmt.Errorf("%w: game start for %s has %d bytes", ErrInvalidPayloadSize, level, payloadLength)
		}
		return &GameStartRequest{Level: level}, nil
	}
	if payloadLength != 1+3*4 {
		return nil, fmt.Errorf("%w: custom game start has %d bytes", ErrInvalidPayloadSize, payloadLength)
	}
	return &GameStartRequest{
		Level: mines.Custom,
		Params: mines.GameParams{
			Rows:  int(int32(binary.BigEndian.Uint32(payload[1:5]))),
			Cols:  int(int32(binary.BigEndian.Uint32(payload[5:9]))),
			Mines: int(int32(binary.BigEndian.Uint32(payload[9:13]))),
		},
	}, nil
}

func encodeCellUpdate(cell mines.UpdatedCell) []byte {
	data := make([]byte, UpdateCellByteLength)
	copy(data[0:4], intToBytes(cell.Cell))
	data[4] = byte(cell.Value)
	return data
}

func EncodeCellUpdates(cells []mines.UpdatedCell) ([]byte, error) {
	payloadLength := len(cells) * UpdateCellByteLength
	buf, err := newMessage(CellUpdate, payloadLength)
	if err != nil {
		return nil, err
	}
	for _, cell := range cells {
		buf.Write(encodeCellUpdate(cell))
	}
	if payloadLength+HeaderLength != buf.Len() {
		return nil, fmt.Errorf("Incorrect payload length while encoding cell updates")
	}
	return buf.Bytes(), nil
}

func decodeCellUpdate(data []byte) (*mines.UpdatedCell, error) {
	if len(data) != UpdateCellByteLength {
		return nil, fmt.Errorf("incorrect byte length to decode cell update (%d)", len(data))
	}
	value := mines.Display(data[4])
	if !value.Valid() {
		return nil, fmt.Errorf("unknown cell value %s", value)
	}
	return &mines.UpdatedCell{
		Cell:  int(binary.BigEndian.Uint32(data[0:4])),
		Value: value,
	}, nil
}

func DecodeCellUpdates(data []byte) ([]mines.UpdatedCell, error) {
	payloadLength, err := checkAndDecodeLength(data, CellUpdate)
	if err != nil {
		return nil, err
	}
	payload := data[HeaderLength:]
	if payloadLength%UpdateCellByteLength != 0 {
		return nil, fmt.Errorf("update cells payload length mismatch %d", payloadLength)
	}
	cells := make([]mines.UpdatedCell, payloadLength/UpdateCellByteLength)
	for i := range payloadLength / UpdateCellByteLength {
		cell, err := decodeCellUpdate(payload[i*UpdateCellByteLength : (i+1)*UpdateCellByteLength])
		if err != nil {
			return nil, err
		}
		cells[i] = *cell
	}
	return cells, nil
}

func EncodeGameEnd(endType GameEndType) ([]byte, error) {
	buf, err := newMessage(GameEnd, 1)
	if err != nil {
		return nil, err
	}
	buf.WriteByte(byte(endType))
	return buf.Bytes(), nil
}

func DecodeGameEnd(data []byte) (GameEndType, error) {
	payloadLength, err := checkAndDecodeLength(data, GameEnd)
	if err != nil {
		return 0, err
	}
	if payloadLength != 1 {
		return 0, ErrInvalidPayloadSize
	}
	return GameEndType(data[HeaderLength]), nil
}

func EncodeSaveGameRequest() ([]byte, error) {
	buf, err := newMessage(SaveGameRequest, 0)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeSaveGameRequest(data []byte) error {
	payloadLength, err := checkAndDecodeLength(data, SaveGameRequest)
	if err != nil {
		return err
	}
	if payloadLength != 0 {
		return ErrInvalidPayloadSize
	}
	return nil
}

func EncodeSaveGameResponse(id uuid.UUID) ([]byte, error) {
	return encodeGameID(SaveGameResponse, id)
}

func DecodeSaveGameResponse(data []byte) (uuid.UUID, error) {
	return decodeGameID(data, SaveGameResponse)
}

func EncodeLoadGameRequest(id uuid.UUID) ([]byte, error) {
	return encodeGameID(LoadGameRequest, id)
}

func DecodeLoadGameRequest(data []byte) (uuid.UUID, error) {
	return decodeGameID(data, LoadGameRequest)
}

func encodeGameID(tp MessageType, id uuid.UUID) ([]byte, error) {
	buf, err := newMessage(tp, len(id))
	if err != nil {
		return nil, err
	}
	buf.Write(id[:])
	return buf.Bytes(), nil
}

func decodeGameID(data []byte, tp MessageType) (uuid.UUID, error) {
	if _, err := checkAndDecodeLength(data, tp); err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.FromBytes(data[HeaderLength:])
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidPayloadSize, err)
	}
	return id, nil
}

func EncodeAuthWithToken(token players.AuthToken) ([]byte, error) {
	buf, err := newMessage(AuthWithToken, players.AuthTokenLength)
	if err != nil {
		return nil, err
	}
	buf.Write(encodeAuthToken(token))
	return buf.Bytes(), nil
}

func DecodeAuthWithToken(data []byte) (players.AuthToken, error) {
	if _, err := checkAndDecodeLength(data, AuthWithToken); err != nil {
		return players.AuthToken{}, err
	}
	return decodeAuthToken(data[HeaderLength:])
}

func decodeAuthToken(data []byte) (players.AuthToken, error) {
	if len(data) != players.AuthTokenLength {
		return players.AuthToken{}, fmt.Errorf("invalid data size to decode auth token: %d", len(data))
	}
	var token players.AuthToken
	token.PlayerID = binary.BigEndian.Uint32(data[0:4])
	token.Expiry = int64(binary.BigEndian.Uint64(data[4:12]))
	copy(token.Nonce[:], data[12:28])
	copy(token.Signature[:], data[28:players.AuthTokenLength])
	return token, nil
}

func encodeAuthToken(token players.AuthToken) []byte {
	encoded := make([]byte, players.AuthTokenLength)
	binary.BigEndian.PutUint32(encoded[0:4], token.PlayerID)
	binary.BigEndian.PutUint64(encoded[4:12], uint64(token.Expiry))
	copy(encoded[12:28], token.Nonce[:])
	copy(encoded[28:players.AuthTokenLength], token.Signature[:])
	return encoded
}

func EncodeAuthRequest(params AuthPlayerParams) ([]byte, error) {
	return encodeAuthPlayerParamsMessage(params, AuthRequest)
}

func DecodeAuthRequest(data []byte) (*AuthPlayerParams, error) {
	return decodeAuthPlayerParams(data, AuthRequest)
}

func EncodeRegisterPlayerRequest(params AuthPlayerParams) ([]byte, error) {
	return encodeAuthPlayerParamsMessage(params, RegisterPlayerRequest)
}

func DecodeRegisterPlayerRequest(data []byte) (*AuthPlayerParams, error) {
	return decodeAuthPlayerParams(data, RegisterPlayerRequest)
}

func encodeAuthPlayerParamsMessage(params AuthPlayerParams, tp MessageType) ([]byte, error) {
	payload, err := encodePlayerParams(params)
	if err != nil {
		return nil, err
	}
	buf, err := newMessage(tp, len(payload))
	if err != nil {
		return nil, err
	}
	buf.Write(payload)
	return buf.Bytes(), nil
}

func encodePlayerParams(args AuthPlayerParams) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, int32(len(args.Name))); err != nil {
		return nil, err
	}
	if _, err := buf.WriteString(args.Name + args.Password); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeAuthPlayerParams(data []byte, tp MessageType) (*AuthPlayerParams, error) {
	payloadLength, err := checkAndDecodeLength(data, tp)
	if err != nil {
		return nil, err
	}
	if payloadLength < 4 {
		return nil, ErrInvalidPayloadSize
	}
	payload := data[HeaderLength:]
	nameLen := bytesToInt(payload[0:4])
	if nameLen < 0 || nameLen > payloadLength-4 {
		return nil, fmt.Errorf("%w: name length %d", ErrInvalidPayloadSize, nameLen)
	}
	passwordOffset := nameLen + 4
	return &AuthPlayerParams{
		Name:     string(payload[4:passwordOffset]),
		Password: string(payload[passwordOffset:]),
	}, nil
}

func EncodeRegisterPlayerResponse(success bool) ([]byte, error) {
	buf, err := newMessage(RegisterPlayerResponse, 1)
	if err != nil {
		return nil, err
	}
	var b byte = 0
	if success {
		b = 1
	}
	buf.WriteByte(b)
	return buf.Bytes(), nil
}

func DecodeRegisterPlayerResponse(data []byte) (bool, error) {
	payloadLength, err := checkAndDecodeLength(data, RegisterPlayerResponse)
	if err != nil {
		return false, err
	}
	if payloadLength != 1 {
		return false, ErrInvalidPayloadSize
	}
	return data[HeaderLength] == 1, nil
}

func EncodeAuthResponse(response AuthResponse) ([]byte, error) {
	if !response.Success {
		buf, err := newMessage(AuthResponseMessage, 1)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(0)
		return buf.Bytes(), nil
	}
	if response.Player == nil || response.Token == nil {
		return nil, fmt.Errorf("player and token cannot be nil when success is true")
	}
	// Success + playerID + nameLen + name + token
	payloadLength := 1 + 4 + 4 + len(response.Player.Name) + players.AuthTokenLength
	buf, err := newMessage(AuthResponseMessage, payloadLength)
	if err != nil {
		return nil, err
	}
	buf.WriteByte(1)
	if err := binary.Write(buf, binary.BigEndian, response.Player.ID); err != nil {
		return nil, err
	}
	if err := writeStringWithLength(buf, response.Player.Name); err != nil {
		return nil, err
	}
	buf.Write(encodeAuthToken(*response.Token))
	return buf.Bytes(), nil
}

func DecodeAuthResponse(data []byte) (*AuthResponse, error) {
	pLen, err := checkAndDecodeLength(data, AuthResponseMessage)
	if err != nil {
		return nil, err
	}
	if pLen == 0 {
		return nil, ErrInvalidPayloadSize
	}
	payload := data[HeaderLength:]

	// Auth failed
	if payload[0] != 1 {
		if pLen != 1 {
			return nil, ErrInvalidPayloadSize
		}
		return &AuthResponse{Success: false}, nil
	}

	// Success + id + nameLen + name (atleast 1 char) + token
	if pLen < 1+4+4+1+players.AuthTokenLength {
		return nil, ErrInvalidPayloadSize
	}
	id := binary.BigEndian.Uint32(payload[1:5])
	nameLen := bytesToInt(payload[5:9])
	if nameLen != pLen-9-players.AuthTokenLength {
		return nil, fmt.Errorf("%w: name length %d", ErrInvalidPayloadSize, nameLen)
	}
	name := string(payload[9 : 9+nameLen])
	token, err := decodeAuthToken(payload[9+nameLen:])
	if err != nil {
		return nil, err
	}
	return &AuthResponse{
		Success: true,
		Player:  &players.PlayerInfo{ID: id, Name: name},
		Token:   &token,
	}, nil
}
