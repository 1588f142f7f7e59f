package players

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	MaxNameLength     = 32
	MinPasswordLength = 4
)

type Service struct {
	Store    PlayerStore
	Secret   []byte
	TokenTTL time.Duration
}

type AuthToken struct {
	PlayerID  uint32
	Expiry    int64
	Nonce     [16]byte
	Signature [32]byte
}

const AuthTokenLength = 4 + 8 + 16 + 32

var (
	ErrTokenExpired     = errors.New("token has expired")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidFormat    = errors.New("invalid token format")

	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidName        = errors.New("invalid player name")
	ErrPasswordTooShort   = errors.New("password too short")
)

func NewService(store PlayerStore, secret []byte, ttl time.Duration) *Service {
	return &Service{Store: store, Secret: secret, TokenTTL: ttl}
}

func (s *Service) Register(ctx context.Context, username, password string) error {
	if err := validateName(username); err != nil {
		return err
	}
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	passwordHash, err := hashPassword(password)
	if err != nil {
		return err
	}
	return s.Store.CreatePlayer(ctx, username, passwordHash)
}

func (s *Service) Login(ctx context.Context, username, password string) (*Player, error) {
	player, err := s.Store.FindPlayerByName(ctx, username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !checkPasswordHash(password, player.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return player, nil
}

func (s *Service) FindPlayerByName(ctx context.Context, name string) (*Player, error) {
	return s.Store.FindPlayerByName(ctx, name)
}

// IssueToken signs a token the player can later trade for a session
// without sending the password again.
func (s *Service) IssueToken(player *Player) (AuthToken, error) {
	return GenerateAuthToken(player, s.Secret, s.TokenTTL)
}

// Authenticate validates token and loads the player it was issued to.
func (s *Service) Authenticate(ctx context.Context, token AuthToken) (*Player, error) {
	if _, err := ValidateAuthToken(token, s.Secret); err != nil {
		return nil, err
	}
	player, err := s.Store.FindPlayerByID(ctx, token.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("token for unknown player %d: %w", token.PlayerID, err)
	}
	return player, nil
}

func validateName(name string) error {
	if name == "" || len(name) > MaxNameLength || strings.TrimSpace(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func GenerateAuthToken(player *Player, secret []byte, ttl time.Duration) (AuthToken, error) {
	expiration := time.Now().Add(ttl).Unix()
	var nonce [16]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return AuthToken{}, err
	}
	toSign := constructSignatureData(player.ID, nonce, expiration)
	signature, err := calculateSignature(toSign, secret)
	if err != nil {
		return AuthToken{}, err
	}
	return AuthToken{
		PlayerID:  player.ID,
		Expiry:    expiration,
		Nonce:     nonce,
		Signature: [32]byte(signature),
	}, nil
}

func constructSignatureData(playerID uint32, nonce [16]byte, expiration int64) []byte {
	// playerID + expiration + nonce
	data := make([]byte, 4+8+16)
	binary.BigEndian.PutUint32(data[0:4], playerID)
	binary.BigEndian.PutUint64(data[4:12], uint64(expiration))
	copy(data[12:], nonce[:])
	return data
}

func ValidateAuthToken(token AuthToken, secret []byte) (bool, error) {
	if time.Now().Unix() > token.Expiry {
		return false, ErrTokenExpired
	}
	toVerify := constructSignatureData(token.PlayerID, token.Nonce, token.Expiry)
	expectedSignature, err := calculateSignature(toVerify, secret)
	if err != nil {
		return false, ErrInvalidFormat
	}
	if !hmac.Equal(token.Signature[:], expectedSignature) {
		return false, ErrInvalidSignature
	}
	return true, nil
}

func calculateSignature(data []byte, key []byte) ([]byte, error) {
	mac := hmac.New(sha256.New, key)
	if _, err := mac.Write(data); err != nil {
		return nil, err
	}
	return mac.Sum(nil), nil
}
