// Command tokengen mints service tokens for the mutating file routes.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"file-manager-api/config"
	"file-manager-api/internal/infrastructure/jwt"
)

func main() {
	clientID := flag.String("client", "", "client id put into the token")
	scope := flag.String("scope", jwt.ScopeWrite, "space separated scopes")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load(".env")
	secret := config.Load().App.JWTSecret

	if *clientID == "" || secret == "" {
		fmt.Fprintln(os.Stderr, "usage: tokengen -client <id> [-scope files:write] [-ttl 24h]; SERVICE_JWT_SECRET must be set")
		os.Exit(2)
	}

	tok, err := jwt.New(secret).GenerateJWT(*clientID, *scope, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
