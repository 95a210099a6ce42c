package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
)

type CallClaims struct {
	RoomID        string `json:"room_id"`
	ParticipantID string `json:"participant_id"`
	jwt.RegisteredClaims
}

func CreateCallToken(roomId, participantId string) (string, error) {
	duration := viper.GetDuration("calling.token_duration")
	if duration <= 0 {
		duration = time.Hour * 6
	}

	claims := CallClaims{
		RoomID:        roomId,
		ParticipantID: participantId,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "telecare",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(duration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	tks, err := token.SignedString([]byte(viper.GetString("security.call_token_secret")))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %v", err)
	}
	return tks, nil
}

func ParseCallToken(tk string) (CallClaims, error) {
	var claims CallClaims
	token, err := jwt.ParseWithClaims(tk, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method)
		}
		return []byte(viper.GetString("security.call_token_secret")), nil
	})
	if err != nil {
		return claims, err
	}
	if !token.Valid {
		return claims, fmt.Errorf("invalid token")
	}
	return claims, nil
}
