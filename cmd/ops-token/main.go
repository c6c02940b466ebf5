// Command ops-token mints an HS256 bearer token for the ops admin API.
// The secret must match the ops_jwt_secret the bot was started with.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	secretFlag  = flag.String("secret", "", "Signing secret (defaults to OPS_JWT_SECRET)")
	ttlFlag     = flag.Duration("ttl", time.Hour, "Token lifetime")
	subjectFlag = flag.String("subject", "ops", "Subject recorded in admin logs")
)

func main() {
	log.SetFlags(0)
	flag.Parse()

	secret := *secretFlag
	if secret == "" {
		secret = os.Getenv("OPS_JWT_SECRET")
	}
	if secret == "" {
		log.Fatal("no secret: pass -secret or set OPS_JWT_SECRET")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": *subjectFlag,
		"iat": now.Unix(),
		"exp": now.Add(*ttlFlag).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(signed)
}
