package bridge

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"playrelay/pkg/clientdata"
)

// simpleTokenIssuer validates per-connection user tokens against the
// HMAC key the central server handed down in LoginOk. The token's
// claims carry the same fields as clientdata.TokenData; ValidateMatch
// additionally checks the claimed account id against the token's own
// account_id claim so a client cannot present someone else's token
// under its own account id.
type simpleTokenIssuer struct {
	key    string
	expiry int64
}

func (i simpleTokenIssuer) ValidateMatch(token string, claimedAccountID int32) (clientdata.TokenData, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("bridge: unexpected signing method %v", t.Header["alg"])
		}
		return []byte(i.key), nil
	})
	if err != nil {
		return clientdata.TokenData{}, fmt.Errorf("bridge: parse token: %w", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return clientdata.TokenData{}, errors.New("bridge: invalid token")
	}

	data := clientdata.TokenData{
		Username:  stringClaim(claims, "username"),
		RolesStr:  stringClaim(claims, "roles"),
		NameColor: stringClaim(claims, "name_color"),
	}
	data.AccountID = int32Claim(claims, "account_id")
	data.UserID = int32Claim(claims, "user_id")

	if data.AccountID != claimedAccountID {
		return clientdata.TokenData{}, fmt.Errorf("bridge: token account %d does not match claimed %d", data.AccountID, claimedAccountID)
	}
	return data, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}

func int32Claim(claims jwt.MapClaims, key string) int32 {
	switch v := claims[key].(type) {
	case float64:
		return int32(v)
	case int32:
		return v
	default:
		return 0
	}
}

// hmacScriptSigner verifies a level script's signature against the
// key handed down in LoginOk, used when verify_script_signatures is
// enabled.
type hmacScriptSigner struct {
	key []byte
}

func (s hmacScriptSigner) Verify(content, signature []byte) error {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(content)
	expected := mac.Sum(nil)
	if !hmac.Equal(expected, signature) {
		return errors.New("bridge: script signature mismatch")
	}
	return nil
}
